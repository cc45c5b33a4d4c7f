// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/fsense/lib/testutil"
	"github.com/bureau-foundation/fsense/window"
)

const testTimeout = 5 * time.Second

var testGeometry = window.Geometry{RowSize: 16, Rows: 4}

// connect dials a Port to a fresh unix socket listener and returns both
// ends. Cleanup closes both.
func connect(t *testing.T, options Options) (*Port, *Viewer, net.Conn) {
	t.Helper()

	path := filepath.Join(testutil.SocketDir(t), "consumer.sock")
	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- conn
	}()

	if options.Geometry == (window.Geometry{}) {
		options.Geometry = testGeometry
	}
	port, err := Dial(path, options)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	conn := testutil.RequireReceive(t, accepted, testTimeout, "accepting feeder connection")

	t.Cleanup(func() {
		conn.Close()
		port.Close()
	})
	return port, NewViewer(conn), conn
}

// frameStream decodes frames in the background until the connection
// ends. The channel is closed on the first error; tests that expect
// more frames fail in RequireReceive.
func frameStream(t *testing.T, viewer *Viewer) <-chan Frame {
	t.Helper()

	frames := make(chan Frame, 64)
	go func() {
		defer close(frames)
		for {
			frame, err := viewer.ReadFrame()
			if err != nil {
				return
			}
			frames <- frame
		}
	}()
	return frames
}

// nextFrame receives one frame and checks its type.
func nextFrame(t *testing.T, frames <-chan Frame, wantType byte) Frame {
	t.Helper()
	frame := testutil.RequireReceive(t, frames, testTimeout, "waiting for frame 0x%02x", wantType)
	if frame.Type != wantType {
		t.Fatalf("frame type = 0x%02x, want 0x%02x (%+v)", frame.Type, wantType, frame)
	}
	return frame
}

// readWindow waits for a reanchor and then for length window bytes.
func readWindow(t *testing.T, frames <-chan Frame, length int) (int64, []byte, int) {
	t.Helper()

	var assembler Assembler
	if err := assembler.Apply(nextFrame(t, frames, MessageTypeReanchor)); err != nil {
		t.Fatal(err)
	}
	for assembler.Len() < length {
		frame := testutil.RequireReceive(t, frames, testTimeout, "waiting for window bytes")
		if err := assembler.Apply(frame); err != nil {
			t.Fatalf("Apply(%+v): %v", frame, err)
		}
	}
	if assembler.Len() != length {
		t.Fatalf("window length = %d, want %d", assembler.Len(), length)
	}
	return assembler.Anchor(), assembler.Window(), assembler.GapBytes()
}

// waitReadable blocks until descriptor polls readable.
func waitReadable(t *testing.T, descriptor int) {
	t.Helper()
	descriptors := []unix.PollFd{{Fd: int32(descriptor), Events: unix.POLLIN}}
	for {
		count, err := unix.Poll(descriptors, int(testTimeout/time.Millisecond))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		if count == 0 {
			t.Fatalf("descriptor %d not readable after %v", descriptor, testTimeout)
		}
		return
	}
}

// sequential returns size bytes where byte i is i mod 251.
func sequential(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}
