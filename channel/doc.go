// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package channel connects a feeder to its consumer over a unix stream
// socket.
//
// The package is organized around the two ends of the connection:
//
//   - protocol.go: wire format (framed binary messages)
//   - compress.go: window payload compression
//   - port.go: feeder side, a [window.ChannelPort] with a pollable
//     event queue
//   - viewer.go: consumer side, frame decoding and window assembly
//
// Window payloads flow feeder to consumer as Reanchor, Data and Gap
// frames. Commands and geometry announcements flow consumer to feeder
// as CBOR-encoded [window.Event] values.
package channel
