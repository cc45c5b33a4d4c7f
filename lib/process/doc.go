// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers. It covers the one
// legitimate raw I/O pattern that exists outside the structured logger:
// reporting an error from run() when the logger may not have been
// created yet, then exiting.
package process
