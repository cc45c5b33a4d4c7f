// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package window

// BindingRegistrar announces the feeder's input bindings to the
// consumer once at startup.
type BindingRegistrar interface {
	RegisterBindings(port ChannelPort) error
}

// LabelProcessor handles input label events that the channel's own
// handler did not consume. It may adjust the cursor for the duration of
// the call; it must not retain the pointer.
type LabelProcessor interface {
	ProcessLabel(cursor *Cursor, label string)
}

// NoBindings registers nothing. The channel already provides the basic
// bindings.
type NoBindings struct{}

// RegisterBindings implements [BindingRegistrar].
func (NoBindings) RegisterBindings(ChannelPort) error { return nil }

// NoLabels ignores every label.
type NoLabels struct{}

// ProcessLabel implements [LabelProcessor].
func (NoLabels) ProcessLabel(*Cursor, string) {}
