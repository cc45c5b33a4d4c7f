// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/bureau-foundation/fsense/lib/codec"
	"github.com/bureau-foundation/fsense/window"
)

// Frame is one decoded feeder→consumer message. Only the fields that
// belong to Type are set.
type Frame struct {
	Type byte

	// Identity is set for MessageTypeIdentify.
	Identity window.Identity

	// Clock is set for MessageTypeClock.
	Clock window.ClockMode

	// Offset is set for MessageTypeReanchor.
	Offset int64

	// Data is the decompressed window bytes of a MessageTypeData frame,
	// and Compression the tag they travelled with.
	Data        []byte
	Compression CompressionTag

	// Length is the run length of a MessageTypeGap frame.
	Length int

	// Edge is set for MessageTypeResize.
	Edge int
}

// Viewer is the consumer side of a connection: it decodes what a
// [Port] sends and sends events back. ReadFrame and the Send methods
// may be used from different goroutines.
type Viewer struct {
	conn       io.ReadWriter
	writeMutex sync.Mutex
}

// NewViewer wraps an accepted feeder connection.
func NewViewer(conn io.ReadWriter) *Viewer {
	return &Viewer{conn: conn}
}

// ReadFrame reads and decodes the next frame. Returns io.EOF when the
// feeder closed the connection cleanly.
func (viewer *Viewer) ReadFrame() (Frame, error) {
	message, err := ReadMessage(viewer.conn)
	if err != nil {
		return Frame{}, err
	}
	return DecodeFrame(message)
}

// DecodeFrame decodes a feeder→consumer message.
func DecodeFrame(message Message) (Frame, error) {
	frame := Frame{Type: message.Type}
	var err error
	switch message.Type {
	case MessageTypeIdentify:
		err = codec.Unmarshal(message.Payload, &frame.Identity)
	case MessageTypeClock:
		if len(message.Payload) != 1 {
			return Frame{}, fmt.Errorf("clock payload must be 1 byte, got %d", len(message.Payload))
		}
		frame.Clock = window.ClockMode(message.Payload[0])
	case MessageTypeReanchor:
		frame.Offset, err = ParseReanchorPayload(message.Payload)
	case MessageTypeData:
		frame.Data, frame.Compression, err = ParseDataPayload(message.Payload)
		frame.Length = len(frame.Data)
	case MessageTypeGap:
		frame.Length, err = parseUint32Payload(message.Payload)
	case MessageTypeResize:
		frame.Edge, err = parseUint32Payload(message.Payload)
	default:
		return Frame{}, fmt.Errorf("unknown message type 0x%02x", message.Type)
	}
	if err != nil {
		return Frame{}, fmt.Errorf("decoding message type 0x%02x: %w", message.Type, err)
	}
	return frame, nil
}

// Send encodes and sends an event to the feeder.
func (viewer *Viewer) Send(event window.Event) error {
	payload, err := codec.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	viewer.writeMutex.Lock()
	defer viewer.writeMutex.Unlock()
	return WriteMessage(viewer.conn, Message{Type: MessageTypeEvent, Payload: payload})
}

// SendGeometry announces the consumer's geometry.
func (viewer *Viewer) SendGeometry(geometry window.Geometry) error {
	return viewer.Send(window.NewGeometryEvent(geometry))
}

// SendCommand sends a target event.
func (viewer *Viewer) SendCommand(kind window.TargetKind, arguments ...int64) error {
	return viewer.Send(window.NewTargetEvent(kind, arguments...))
}

// Assembler rebuilds the feeder's window from frames. A Reanchor frame
// starts a new window; Data and Gap frames extend it. Gap runs are
// zero-filled.
type Assembler struct {
	Identity window.Identity
	Clock    window.ClockMode
	Edge     int

	anchored bool
	anchor   int64
	contents []byte
	gaps     int
}

// Apply folds one frame into the assembled state.
func (assembler *Assembler) Apply(frame Frame) error {
	switch frame.Type {
	case MessageTypeIdentify:
		assembler.Identity = frame.Identity
	case MessageTypeClock:
		assembler.Clock = frame.Clock
	case MessageTypeResize:
		assembler.Edge = frame.Edge
	case MessageTypeReanchor:
		assembler.anchored = true
		assembler.anchor = frame.Offset
		assembler.contents = assembler.contents[:0]
		assembler.gaps = 0
	case MessageTypeData:
		if !assembler.anchored {
			return errors.New("data frame before any reanchor")
		}
		assembler.contents = append(assembler.contents, frame.Data...)
	case MessageTypeGap:
		if !assembler.anchored {
			return errors.New("gap frame before any reanchor")
		}
		assembler.contents = append(assembler.contents, make([]byte, frame.Length)...)
		assembler.gaps += frame.Length
	default:
		return fmt.Errorf("unknown frame type 0x%02x", frame.Type)
	}
	return nil
}

// Anchor returns the offset of the current window.
func (assembler *Assembler) Anchor() int64 { return assembler.anchor }

// Len returns how many window bytes have arrived since the last
// reanchor, gaps included.
func (assembler *Assembler) Len() int { return len(assembler.contents) }

// GapBytes returns how many of those bytes were gap fill.
func (assembler *Assembler) GapBytes() int { return assembler.gaps }

// Window returns a copy of the current window contents.
func (assembler *Assembler) Window() []byte {
	return append([]byte(nil), assembler.contents...)
}
