// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	originalCommit, originalDirty := GitCommit, GitDirty
	defer func() { GitCommit, GitDirty = originalCommit, originalDirty }()

	GitCommit = "abc1234"
	GitDirty = "false"
	if got := Info(); !strings.Contains(got, "(abc1234, ") {
		t.Errorf("Info() = %q, want the commit in parentheses", got)
	}

	GitDirty = "true"
	if got := Info(); !strings.Contains(got, "abc1234-dirty") {
		t.Errorf("Info() = %q, want a -dirty suffix", got)
	}
}

func TestFull(t *testing.T) {
	if got := Full(); !strings.HasPrefix(got, Info()) || !strings.Contains(got, "Platform: ") {
		t.Errorf("Full() = %q", got)
	}
}
