// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mapping opens the feeder's backing buffer: a file mapped
// read-only into memory so that windows are served straight from the
// page cache without copying the file.
//
// A [Mapping] is immutable for its lifetime. The feeder never writes to
// it, and the mapping is shared, so another process appending to the
// file does not change the size the feeder observed at open time.
//
// [Fingerprint] identifies the buffer contents to the consumer so a
// consumer can tell two feeders over the same data apart from two
// feeders over different data with the same name.
package mapping
