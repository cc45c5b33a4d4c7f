// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package window

import (
	"errors"
	"fmt"
	"io"
)

// Chunk is one transfer of a refresh: either Length bytes of the backing
// buffer starting at Offset, or (Gap set) Length bytes with no data.
type Chunk struct {
	Offset int64
	Length int64
	Gap    bool
}

// Plan splits a window of needed bytes anchored at target across the end
// of a size-byte buffer.
//
// A window that fits is a single chunk. Otherwise the bytes up to the end
// of the buffer come first, followed by the overflow: read from the start
// of the buffer when wrap is set, or as a gap when it is not. An empty
// leading chunk (target at the very end) is omitted. The wrapped chunk
// never exceeds the buffer; anything beyond that is a gap.
func Plan(target, needed, size int64, wrap bool) []Chunk {
	if needed <= 0 {
		return nil
	}
	if target < 0 {
		target = 0
	}
	if target > size {
		target = size
	}

	remaining := size - target
	if needed <= remaining {
		return []Chunk{{Offset: target, Length: needed}}
	}

	chunks := make([]Chunk, 0, 3)
	if remaining > 0 {
		chunks = append(chunks, Chunk{Offset: target, Length: remaining})
	}
	overflow := needed - remaining
	if wrap && size > 0 {
		wrapped := min(overflow, size)
		chunks = append(chunks, Chunk{Offset: 0, Length: wrapped})
		overflow -= wrapped
	}
	if overflow > 0 {
		chunks = append(chunks, Chunk{Length: overflow, Gap: true})
	}
	return chunks
}

// Refresher repopulates the consumer's window from the backing buffer.
// It never modifies the cursor; callers commit the target offset
// themselves.
type Refresher struct {
	buffer   []byte
	port     ChannelPort
	observer io.Writer
}

// NewRefresher creates a Refresher over a read-only backing buffer.
// observer receives every refreshed offset and may be nil.
func NewRefresher(buffer []byte, port ChannelPort, observer io.Writer) *Refresher {
	return &Refresher{buffer: buffer, port: port, observer: observer}
}

// Refresh reports target to the observer, re-anchors the channel, and
// pushes the window the channel's current geometry needs.
//
// Every step is attempted even if an earlier one fails. The returned
// error joins all failures; none of them are fatal to the feeder.
func (refresher *Refresher) Refresh(target int64, wrap bool) error {
	var errs []error

	if refresher.observer != nil {
		if err := WritePosition(refresher.observer, target); err != nil {
			errs = append(errs, fmt.Errorf("report position %d: %w", target, err))
		}
	}

	if err := refresher.port.Reanchor(target); err != nil {
		errs = append(errs, fmt.Errorf("reanchor at %d: %w", target, err))
	}

	needed := refresher.port.Geometry().Span()
	for _, chunk := range Plan(target, needed, int64(len(refresher.buffer)), wrap) {
		if chunk.Gap {
			if err := refresher.port.PushGap(int(chunk.Length)); err != nil {
				errs = append(errs, fmt.Errorf("push %d byte gap: %w", chunk.Length, err))
			}
			continue
		}
		data := refresher.buffer[chunk.Offset : chunk.Offset+chunk.Length]
		if err := refresher.port.Push(data); err != nil {
			errs = append(errs, fmt.Errorf("push %d bytes at %d: %w", chunk.Length, chunk.Offset, err))
		}
	}

	return errors.Join(errs...)
}
