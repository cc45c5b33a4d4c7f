// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for fsense packages.
//
// [RequireReceive] and [RequireClosed] encapsulate the timeout safety
// valve pattern (select with time.After fallback) so that individual
// tests do not need direct time.After calls. A feeder blocked in
// poll(2) never returns on its own, so every test that runs one waits
// through these helpers.
//
// [SocketDir] creates a short temporary directory for unix domain
// sockets, whose paths are limited to 108 bytes.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
