// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package window

// Cursor is the authoritative window position. It is created once when a
// [Feeder] starts and mutated only from the feeder's loop.
type Cursor struct {
	// Offset is the absolute byte position anchoring the window.
	// Always within [0, Size].
	Offset int64

	// Size is the length of the backing buffer.
	Size int64

	// Wrap selects the out-of-range policy: true re-enters at 0, false
	// clamps to Size.
	Wrap bool

	// SmallStep is the byte distance of a unit step. Set from the
	// channel's row size at startup.
	SmallStep int64

	// LargeStep is a shift exponent, not a byte count: a large step
	// moves by one viewport's byte span shifted right by LargeStep.
	LargeStep uint
}

// Normalize maps a candidate offset into [0, size]. Offsets past the end
// become 0 when wrap is set and size otherwise. Offsets within range are
// returned unchanged; negative input is the caller's bug and is not
// corrected here.
func Normalize(offset, size int64, wrap bool) int64 {
	if offset > size {
		if wrap {
			return 0
		}
		return size
	}
	return offset
}

// AlignDown rounds offset down to a multiple of alignment and renormalizes
// the result. An alignment of zero or less leaves offset unchanged.
func AlignDown(offset, alignment, size int64, wrap bool) int64 {
	if alignment <= 0 {
		return offset
	}
	remainder := offset % alignment
	if remainder == 0 {
		return offset
	}
	return Normalize(offset-remainder, size, wrap)
}

// Seek commits an absolute position.
func (cursor *Cursor) Seek(position int64) {
	if position < 0 {
		position = 0
	}
	cursor.Offset = Normalize(position, cursor.Size, cursor.Wrap)
}

// Step moves the cursor by a signed byte delta. A backward step that
// would cross zero stops at zero.
func (cursor *Cursor) Step(delta int64) {
	target := cursor.Offset + delta
	if target < 0 {
		target = 0
	}
	cursor.Offset = Normalize(target, cursor.Size, cursor.Wrap)
}

// Align rounds the current offset down to a multiple of alignment.
func (cursor *Cursor) Align(alignment int64) {
	cursor.Offset = AlignDown(cursor.Offset, alignment, cursor.Size, cursor.Wrap)
}

// LargeDelta returns the unsigned distance of a large step: one
// viewport's byte span shifted right by shift.
func LargeDelta(geometry Geometry, shift uint) int64 {
	return geometry.Span() >> shift
}
