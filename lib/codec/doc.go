// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding configuration shared by the
// feeder and its consumers.
//
// The channel protocol carries structured payloads (consumer events,
// the feeder identity) as CBOR inside binary frames. Window data and
// positions stay raw bytes; only the variable-shape messages go through
// this package.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. Same
// logical data always produces identical bytes, so frames can be
// compared byte-for-byte in tests.
//
//	data, err := codec.Marshal(event)
//	err = codec.Unmarshal(data, &event)
//
// # Struct Tag Rules
//
//   - `cbor` tag: the type only ever travels as CBOR (window.Event).
//   - `json` tag: the type may also be printed as JSON (window.Identity,
//     window.Geometry). fxamacker/cbor v2 reads `json` tags as fallback
//     when `cbor` tags are absent.
//
// Never use both tags on the same field.
package codec
