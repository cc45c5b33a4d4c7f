// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Message type constants for the channel wire format. Each message is a
// 5-byte header (1 byte type + 4 byte big-endian payload length)
// followed by the payload.
const (
	// MessageTypeIdentify announces the feeder. Feeder→consumer, sent
	// once before any window data. Payload is a CBOR window.Identity.
	MessageTypeIdentify byte = 0x01

	// MessageTypeClock selects the consumer's pacing mode.
	// Feeder→consumer. Payload is 1 byte (window.ClockMode).
	MessageTypeClock byte = 0x02

	// MessageTypeReanchor starts a new window at an offset into the
	// backing buffer. Feeder→consumer. Payload is the offset as a
	// uint64 big-endian.
	MessageTypeReanchor byte = 0x03

	// MessageTypeData carries window bytes that follow the previous
	// Data or Gap frame. Feeder→consumer. Payload is 1 byte compression
	// tag, 4 bytes uncompressed length (uint32 big-endian), then the
	// possibly compressed bytes.
	MessageTypeData byte = 0x04

	// MessageTypeGap carries a run of window bytes with no backing
	// data. Feeder→consumer. Payload is the run length as a uint32
	// big-endian.
	MessageTypeGap byte = 0x05

	// MessageTypeResize tells the consumer to adopt an edge x edge
	// surface. Feeder→consumer. Payload is the edge as a uint32
	// big-endian.
	MessageTypeResize byte = 0x06

	// MessageTypeEvent carries a CBOR window.Event. Consumer→feeder.
	MessageTypeEvent byte = 0x10
)

// messageHeaderLength is the fixed size of a message header: 1 byte type
// + 4 bytes payload length.
const messageHeaderLength = 5

// maxPayloadLength is the maximum allowed payload size.
const maxPayloadLength = 16 * 1024 * 1024

// maxDataLength is the largest uncompressed run carried by one Data
// frame. Longer pushes are split across frames.
const maxDataLength = 1024 * 1024

// dataHeaderLength prefixes every Data payload: tag + raw length.
const dataHeaderLength = 5

// Message is a single channel protocol message.
type Message struct {
	Type    byte
	Payload []byte
}

// WriteMessage writes a framed message to w. The frame format is:
// [1 byte type] [4 bytes payload length, big-endian uint32] [payload].
// Header and payload go out in one write so that concurrent writers on
// a stream socket cannot interleave inside a frame.
func WriteMessage(w io.Writer, message Message) error {
	if len(message.Payload) > maxPayloadLength {
		return fmt.Errorf("payload length %d exceeds maximum %d", len(message.Payload), maxPayloadLength)
	}
	frame := make([]byte, messageHeaderLength+len(message.Payload))
	frame[0] = message.Type
	binary.BigEndian.PutUint32(frame[1:5], uint32(len(message.Payload)))
	copy(frame[messageHeaderLength:], message.Payload)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write message type 0x%02x: %w", message.Type, err)
	}
	return nil
}

// ReadMessage reads a framed message from r. Returns an error if the
// stream is malformed or the payload exceeds maxPayloadLength. A clean
// end of stream before a header returns io.EOF unwrapped.
func ReadMessage(r io.Reader) (Message, error) {
	var header [messageHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Message{}, io.EOF
		}
		return Message{}, fmt.Errorf("read message header: %w", err)
	}

	messageType := header[0]
	payloadLength := binary.BigEndian.Uint32(header[1:5])
	if payloadLength > maxPayloadLength {
		return Message{}, fmt.Errorf("payload length %d exceeds maximum %d", payloadLength, maxPayloadLength)
	}

	payload := make([]byte, payloadLength)
	if payloadLength > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Message{}, fmt.Errorf("read message payload: %w", err)
		}
	}

	return Message{Type: messageType, Payload: payload}, nil
}

// NewReanchorMessage creates a reanchor message for offset.
func NewReanchorMessage(offset int64) (Message, error) {
	if offset < 0 {
		return Message{}, fmt.Errorf("reanchor offset %d is negative", offset)
	}
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, uint64(offset))
	return Message{Type: MessageTypeReanchor, Payload: payload}, nil
}

// ParseReanchorPayload extracts the offset from a reanchor payload.
func ParseReanchorPayload(payload []byte) (int64, error) {
	if len(payload) != 8 {
		return 0, fmt.Errorf("reanchor payload must be 8 bytes, got %d", len(payload))
	}
	offset := binary.BigEndian.Uint64(payload)
	if offset > math.MaxInt64 {
		return 0, fmt.Errorf("reanchor offset %d out of range", offset)
	}
	return int64(offset), nil
}

// newUint32Message creates a message whose payload is a single uint32.
func newUint32Message(messageType byte, value int) (Message, error) {
	if value < 0 || int64(value) > math.MaxUint32 {
		return Message{}, fmt.Errorf("value %d out of range for message type 0x%02x", value, messageType)
	}
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(value))
	return Message{Type: messageType, Payload: payload}, nil
}

// parseUint32Payload extracts a single uint32 payload.
func parseUint32Payload(payload []byte) (int, error) {
	if len(payload) != 4 {
		return 0, fmt.Errorf("payload must be 4 bytes, got %d", len(payload))
	}
	return int(binary.BigEndian.Uint32(payload)), nil
}

// NewGapMessage creates a gap message of length bytes.
func NewGapMessage(length int) (Message, error) {
	return newUint32Message(MessageTypeGap, length)
}

// NewResizeMessage creates a resize message for an edge x edge surface.
func NewResizeMessage(edge int) (Message, error) {
	return newUint32Message(MessageTypeResize, edge)
}

// NewDataMessage compresses data with tag and frames it. The tag
// actually used is recorded in the payload: incompressible data is sent
// uncompressed whatever tag was requested.
func NewDataMessage(data []byte, tag CompressionTag) (Message, error) {
	if len(data) > maxDataLength {
		return Message{}, fmt.Errorf("data length %d exceeds frame maximum %d", len(data), maxDataLength)
	}
	body, used, err := compress(data, tag)
	if err != nil {
		return Message{}, err
	}
	payload := make([]byte, dataHeaderLength+len(body))
	payload[0] = byte(used)
	binary.BigEndian.PutUint32(payload[1:5], uint32(len(data)))
	copy(payload[dataHeaderLength:], body)
	return Message{Type: MessageTypeData, Payload: payload}, nil
}

// ParseDataPayload decompresses a data payload. Returns the window
// bytes and the compression tag they travelled with.
func ParseDataPayload(payload []byte) ([]byte, CompressionTag, error) {
	if len(payload) < dataHeaderLength {
		return nil, 0, fmt.Errorf("data payload must be at least %d bytes, got %d", dataHeaderLength, len(payload))
	}
	tag := CompressionTag(payload[0])
	rawLength := binary.BigEndian.Uint32(payload[1:5])
	if rawLength > maxDataLength {
		return nil, tag, fmt.Errorf("data length %d exceeds frame maximum %d", rawLength, maxDataLength)
	}
	data, err := decompress(payload[dataHeaderLength:], tag, int(rawLength))
	if err != nil {
		return nil, tag, err
	}
	return data, tag, nil
}
