// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package window

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"golang.org/x/sys/unix"
)

// portCall records one ChannelPort operation in call order.
type portCall struct {
	operation string
	offset    int64
	data      []byte
	length    int
}

func (call portCall) String() string {
	switch call.operation {
	case "push":
		return fmt.Sprintf("push(%d bytes)", len(call.data))
	case "gap":
		return fmt.Sprintf("gap(%d)", call.length)
	case "reanchor":
		return fmt.Sprintf("reanchor(%d)", call.offset)
	default:
		return call.operation
	}
}

// fakePort is an in-memory ChannelPort. Geometry events are consumed
// the same way the socket channel consumes them. Calls are recorded
// from the feeder goroutine; read them only after Run returns or
// through the observer pipe's happens-before edge.
type fakePort struct {
	geometry    Geometry
	maxEdge     int
	identity    Identity
	clock       ClockMode
	calls       []portCall
	consumed    []Event
	pushErr     error
	reanchorErr error
	events      *fakeEvents
}

func newFakePort(t *testing.T, geometry Geometry) *fakePort {
	t.Helper()
	return &fakePort{
		geometry: geometry,
		maxEdge:  1024,
		events:   newFakeEvents(t),
	}
}

func (port *fakePort) Geometry() Geometry { return port.geometry }

func (port *fakePort) Reanchor(offset int64) error {
	port.calls = append(port.calls, portCall{operation: "reanchor", offset: offset})
	return port.reanchorErr
}

func (port *fakePort) Push(data []byte) error {
	port.calls = append(port.calls, portCall{operation: "push", data: bytes.Clone(data)})
	return port.pushErr
}

func (port *fakePort) PushGap(length int) error {
	port.calls = append(port.calls, portCall{operation: "gap", length: length})
	return port.pushErr
}

func (port *fakePort) Resize(edge int) error {
	if edge > port.maxEdge {
		return fmt.Errorf("edge %d exceeds %d", edge, port.maxEdge)
	}
	port.calls = append(port.calls, portCall{operation: "resize", length: edge})
	port.geometry = Geometry{RowSize: edge, Rows: edge}
	return nil
}

func (port *fakePort) Identify(identity Identity) error {
	port.identity = identity
	port.calls = append(port.calls, portCall{operation: "identify"})
	return nil
}

func (port *fakePort) SwitchClock(mode ClockMode) error {
	port.clock = mode
	port.calls = append(port.calls, portCall{operation: "clock"})
	return nil
}

func (port *fakePort) Consume(event Event) bool {
	if event.Category != CategoryGeometry {
		return false
	}
	port.consumed = append(port.consumed, event)
	if geometry, err := GeometryFromEvent(event); err == nil {
		port.geometry = geometry
	}
	return true
}

func (port *fakePort) Events() EventSource { return port.events }

// callsOf returns the recorded calls with the given operation names.
func (port *fakePort) callsOf(operations ...string) []portCall {
	var result []portCall
	for _, call := range port.calls {
		for _, operation := range operations {
			if call.operation == operation {
				result = append(result, call)
			}
		}
	}
	return result
}

// fakeEvents is a queue with a non-blocking wake pipe, the same shape
// as the socket channel's event queue.
type fakeEvents struct {
	mutex     sync.Mutex
	queue     []Event
	err       error
	wakeRead  int
	wakeWrite int
}

func newFakeEvents(t *testing.T) *fakeEvents {
	t.Helper()
	var descriptors [2]int
	if err := unix.Pipe2(descriptors[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		t.Fatalf("pipe2: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(descriptors[0])
		unix.Close(descriptors[1])
	})
	return &fakeEvents{wakeRead: descriptors[0], wakeWrite: descriptors[1]}
}

func (events *fakeEvents) Descriptor() int { return events.wakeRead }

func (events *fakeEvents) Next() (Event, bool, error) {
	var drain [64]byte
	for {
		if _, err := unix.Read(events.wakeRead, drain[:]); err != nil {
			break
		}
	}
	events.mutex.Lock()
	defer events.mutex.Unlock()
	if len(events.queue) > 0 {
		event := events.queue[0]
		events.queue = events.queue[1:]
		return event, true, nil
	}
	if events.err != nil {
		return Event{}, false, events.err
	}
	return Event{}, false, nil
}

func (events *fakeEvents) push(queued ...Event) {
	events.mutex.Lock()
	events.queue = append(events.queue, queued...)
	events.mutex.Unlock()
	unix.Write(events.wakeWrite, []byte{1})
}

func (events *fakeEvents) close(err error) {
	events.mutex.Lock()
	events.err = err
	events.mutex.Unlock()
	unix.Write(events.wakeWrite, []byte{1})
}

func (events *fakeEvents) pending() int {
	events.mutex.Lock()
	defer events.mutex.Unlock()
	return len(events.queue)
}

// sequentialBuffer returns size bytes where byte i is i mod 251, so any
// chunk identifies where it was read from.
func sequentialBuffer(size int) []byte {
	buffer := make([]byte, size)
	for index := range buffer {
		buffer[index] = byte(index % 251)
	}
	return buffer
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// failingWriter fails every write.
type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("observer gone") }
