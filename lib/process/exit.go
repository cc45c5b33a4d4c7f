// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"io"
	"os"
)

// Fatal writes "program: err" to stderr and exits with code 1. Use it in
// main() for errors from run().
func Fatal(program string, err error) {
	report(os.Stderr, program, err)
	os.Exit(1)
}

func report(w io.Writer, program string, err error) {
	fmt.Fprintf(w, "%s: %v\n", program, err)
}
