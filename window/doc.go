// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package window implements the data-window feeder: a long-running loop
// that exposes a fixed-size view into a large read-only backing buffer
// to a downstream consumer and moves that view in response to two
// independent input sources.
//
// The package is organized around the feeder data flow:
//
//   - cursor.go: [Cursor] position state and the [Normalize] / [AlignDown]
//     arithmetic that keeps it inside the buffer
//   - port.go: the [ChannelPort] capability the feeder writes windows to
//     and receives events from
//   - event.go: transport events and their decoding into [Command] values
//   - refresh.go: [Refresher], which splits a window across the buffer end
//     and pushes one or two chunks (or a zero-fill gap)
//   - processor.go: [Processor], the seek / step / resize / exit dispatcher
//   - feeder.go: [Feeder], the poll(2) loop multiplexing the control pipe
//     and the transport event queue
//   - position.go: the native-endian word format of the control and
//     observer pipes
//
// A Feeder is single-threaded. The cursor is owned by the loop and is
// handed to handlers by pointer for the duration of one call only; the
// backing buffer is never written.
package window
