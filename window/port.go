// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package window

import "fmt"

// Geometry is the consumer's view shape: bytes per visual row and the
// number of rows in the viewport. Owned by the consumer side; the feeder
// only reads it.
type Geometry struct {
	RowSize int `json:"row_size"`
	Rows    int `json:"rows"`
}

// Span returns the number of bytes one full viewport covers.
func (geometry Geometry) Span() int64 {
	return int64(geometry.RowSize) * int64(geometry.Rows)
}

// ClockMode selects how the consumer paces window updates.
type ClockMode uint8

const (
	// ClockBlock makes the consumer wait for explicit pushes. The feeder
	// always runs in this mode.
	ClockBlock ClockMode = 1

	// ClockFree lets the consumer repaint on its own schedule.
	ClockFree ClockMode = 2
)

// String returns the human-readable name of a clock mode.
func (mode ClockMode) String() string {
	switch mode {
	case ClockBlock:
		return "block"
	case ClockFree:
		return "free"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(mode))
	}
}

// Identity is announced to the consumer once at startup.
type Identity struct {
	// Name is the feeder kind (e.g., "fsense").
	Name string `json:"name"`

	// Instance distinguishes concurrent feeders of the same kind.
	Instance string `json:"instance,omitempty"`

	// Size is the backing buffer length in bytes.
	Size int64 `json:"size"`

	// Fingerprint is a content digest of the backing buffer, hex
	// encoded. Empty when the owner did not compute one.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// ChannelPort is the downstream consumer as seen by the feeder. It is
// the only way the feeder touches the transport: geometry queries,
// window payloads, resize negotiation and the incoming event queue all
// go through this one capability.
//
// Implementations are used from a single goroutine (the feeder loop).
type ChannelPort interface {
	// Geometry returns the consumer's current row size and viewport
	// height. Read on every refresh; it may change between calls.
	Geometry() Geometry

	// Reanchor moves the consumer's notion of the window origin to
	// offset. Sent before the chunks of every refresh.
	Reanchor(offset int64) error

	// Push sends a chunk of backing buffer bytes.
	Push(data []byte) error

	// PushGap sends a run of length bytes that have no backing data.
	// The consumer renders a gap as blank, never as an error.
	PushGap(length int) error

	// Resize asks the transport to adopt an edge x edge surface and, on
	// success, propagates the new geometry to the channel. A non-nil
	// error means the resize was refused and nothing changed.
	Resize(edge int) error

	// Identify announces the feeder to the consumer.
	Identify(identity Identity) error

	// SwitchClock sets the consumer's pacing mode.
	SwitchClock(mode ClockMode) error

	// Consume offers an event to the channel's own handler (geometry
	// updates and standard bindings). Returns true if the event was
	// handled and must not be dispatched further.
	Consume(event Event) bool

	// Events returns the queue of events arriving from the consumer.
	Events() EventSource
}

// EventSource is a non-blocking event queue with a readiness descriptor.
type EventSource interface {
	// Descriptor returns a file descriptor that polls readable whenever
	// events may be queued.
	Descriptor() int

	// Next returns the next queued event. ok is false when the queue is
	// currently empty. A non-nil error means the stream has ended and no
	// further events will arrive.
	Next() (event Event, ok bool, err error)
}
