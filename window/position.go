// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package window

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// PositionWordLength is the size of one position on the control and
// observer pipes: a host-native unsigned 64-bit word with no framing.
const PositionWordLength = 8

// WritePosition writes offset as a single host-native word.
func WritePosition(w io.Writer, offset int64) error {
	if offset < 0 {
		return fmt.Errorf("position %d is negative", offset)
	}
	var word [PositionWordLength]byte
	binary.NativeEndian.PutUint64(word[:], uint64(offset))
	if _, err := w.Write(word[:]); err != nil {
		return fmt.Errorf("write position: %w", err)
	}
	return nil
}

// ReadPosition reads exactly one host-native word. Values beyond the
// int64 range saturate; the caller normalizes against the buffer size.
// A stream that ends before a full word is an error (io.EOF when nothing
// was read, io.ErrUnexpectedEOF for a partial word).
func ReadPosition(r io.Reader) (int64, error) {
	var word [PositionWordLength]byte
	if _, err := io.ReadFull(r, word[:]); err != nil {
		return 0, err
	}
	value := binary.NativeEndian.Uint64(word[:])
	if value > math.MaxInt64 {
		return math.MaxInt64, nil
	}
	return int64(value), nil
}
