// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/fsense/lib/codec"
	"github.com/bureau-foundation/fsense/lib/netutil"
	"github.com/bureau-foundation/fsense/window"
)

// ErrConnectionClosed is reported by the event queue once the consumer
// connection has ended and every queued event has been delivered.
var ErrConnectionClosed = errors.New("consumer connection closed")

// ErrEdgeRefused is returned by [Port.Resize] for edges the transport
// cannot provide.
var ErrEdgeRefused = errors.New("resize edge refused")

// DefaultMaxEdge is the resize limit used when [Options.MaxEdge] is
// zero.
const DefaultMaxEdge = 4096

// Options configures a [Port].
type Options struct {
	// Compression is applied to every Data frame.
	Compression CompressionTag

	// MaxEdge is the largest surface edge Resize accepts.
	MaxEdge int

	// Geometry is assumed until the consumer announces its own.
	// Required.
	Geometry window.Geometry

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Port is the feeder side of a consumer connection. It implements
// [window.ChannelPort].
//
// All methods except Close and Done are meant for the feeder loop's
// goroutine. A background goroutine reads consumer events into a queue
// whose readiness is signalled through a pipe, so the loop can wait on
// the queue with poll alongside its other descriptors.
type Port struct {
	conn        io.ReadWriteCloser
	compression CompressionTag
	maxEdge     int
	logger      *slog.Logger

	geometryMutex sync.Mutex
	geometry      window.Geometry

	events *eventQueue

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

var _ window.ChannelPort = (*Port)(nil)

// Dial connects to the consumer listening on the unix socket at path.
func Dial(path string, options Options) (*Port, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("connecting to consumer at %s: %w", path, err)
	}
	port, err := NewPort(conn, options)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return port, nil
}

// NewPort wraps an established connection and starts reading events
// from it. The Port owns conn from here on.
func NewPort(conn io.ReadWriteCloser, options Options) (*Port, error) {
	if options.Geometry.RowSize <= 0 || options.Geometry.Rows <= 0 {
		return nil, fmt.Errorf("initial geometry %dx%d must be positive",
			options.Geometry.RowSize, options.Geometry.Rows)
	}
	if options.MaxEdge < 0 {
		return nil, fmt.Errorf("max edge %d is negative", options.MaxEdge)
	}
	if options.MaxEdge == 0 {
		options.MaxEdge = DefaultMaxEdge
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	events, err := newEventQueue()
	if err != nil {
		return nil, err
	}

	port := &Port{
		conn:        conn,
		compression: options.Compression,
		maxEdge:     options.MaxEdge,
		logger:      options.Logger,
		geometry:    options.Geometry,
		events:      events,
		done:        make(chan struct{}),
	}
	go port.receive()
	return port, nil
}

// receive decodes consumer messages into the event queue until the
// connection ends.
func (port *Port) receive() {
	defer close(port.done)
	for {
		message, err := ReadMessage(port.conn)
		if err != nil {
			if netutil.IsExpectedCloseError(err) {
				port.events.finish(ErrConnectionClosed)
			} else {
				port.logger.Warn("consumer connection failed", "error", err)
				port.events.finish(fmt.Errorf("%w: %w", ErrConnectionClosed, err))
			}
			return
		}

		if message.Type != MessageTypeEvent {
			port.logger.Debug("ignoring unexpected message from consumer",
				"type", fmt.Sprintf("0x%02x", message.Type))
			continue
		}

		var event window.Event
		if err := codec.Unmarshal(message.Payload, &event); err != nil {
			port.logger.Warn("discarding malformed consumer event", "error", err)
			continue
		}
		port.events.push(event)
	}
}

// Done is closed when the receive goroutine exits: the consumer hung
// up or Close was called.
func (port *Port) Done() <-chan struct{} {
	return port.done
}

// Close closes the connection, waits for the receive goroutine and
// releases the wake pipe. Safe to call more than once.
func (port *Port) Close() error {
	port.closeOnce.Do(func() {
		connErr := port.conn.Close()
		<-port.done
		port.closeErr = errors.Join(connErr, port.events.close())
	})
	return port.closeErr
}

// Geometry returns the most recently announced consumer geometry.
func (port *Port) Geometry() window.Geometry {
	port.geometryMutex.Lock()
	defer port.geometryMutex.Unlock()
	return port.geometry
}

func (port *Port) setGeometry(geometry window.Geometry) {
	port.geometryMutex.Lock()
	port.geometry = geometry
	port.geometryMutex.Unlock()
}

// Reanchor implements [window.ChannelPort].
func (port *Port) Reanchor(offset int64) error {
	message, err := NewReanchorMessage(offset)
	if err != nil {
		return err
	}
	return WriteMessage(port.conn, message)
}

// Push sends data as one or more Data frames.
func (port *Port) Push(data []byte) error {
	for len(data) > 0 {
		chunk := data[:min(len(data), maxDataLength)]
		message, err := NewDataMessage(chunk, port.compression)
		if err != nil {
			return err
		}
		if err := WriteMessage(port.conn, message); err != nil {
			return err
		}
		data = data[len(chunk):]
	}
	return nil
}

// PushGap sends length gap bytes as one or more Gap frames.
func (port *Port) PushGap(length int) error {
	if length < 0 {
		return fmt.Errorf("gap length %d is negative", length)
	}
	for length > 0 {
		run := min(length, maxDataLength)
		message, err := NewGapMessage(run)
		if err != nil {
			return err
		}
		if err := WriteMessage(port.conn, message); err != nil {
			return err
		}
		length -= run
	}
	return nil
}

// Resize asks the consumer to adopt an edge x edge surface and adopts
// the matching geometry.
func (port *Port) Resize(edge int) error {
	if edge <= 0 || edge > port.maxEdge {
		return fmt.Errorf("%w: %d is outside 1..%d", ErrEdgeRefused, edge, port.maxEdge)
	}
	message, err := NewResizeMessage(edge)
	if err != nil {
		return err
	}
	if err := WriteMessage(port.conn, message); err != nil {
		return err
	}
	port.setGeometry(window.Geometry{RowSize: edge, Rows: edge})
	return nil
}

// Identify announces the feeder.
func (port *Port) Identify(identity window.Identity) error {
	payload, err := codec.Marshal(identity)
	if err != nil {
		return fmt.Errorf("encoding identity: %w", err)
	}
	return WriteMessage(port.conn, Message{Type: MessageTypeIdentify, Payload: payload})
}

// SwitchClock sets the consumer's pacing mode.
func (port *Port) SwitchClock(mode window.ClockMode) error {
	return WriteMessage(port.conn, Message{Type: MessageTypeClock, Payload: []byte{byte(mode)}})
}

// Consume handles geometry announcements. Malformed announcements are
// consumed and ignored.
func (port *Port) Consume(event window.Event) bool {
	if event.Category != window.CategoryGeometry {
		return false
	}
	geometry, err := window.GeometryFromEvent(event)
	if err != nil {
		port.logger.Debug("ignoring geometry announcement", "error", err)
		return true
	}
	port.setGeometry(geometry)
	return true
}

// Events returns the consumer event queue.
func (port *Port) Events() window.EventSource {
	return port.events
}

// eventQueue buffers decoded events between the receive goroutine and
// the feeder loop. Every push writes a byte to a non-blocking pipe; the
// read end is the queue's poll descriptor.
type eventQueue struct {
	mutex   sync.Mutex
	pending []window.Event
	err     error

	wakeRead  int
	wakeWrite int
}

func newEventQueue() (*eventQueue, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, fmt.Errorf("creating event wake pipe: %w", err)
	}
	return &eventQueue{wakeRead: fds[0], wakeWrite: fds[1]}, nil
}

func (queue *eventQueue) push(event window.Event) {
	queue.mutex.Lock()
	queue.pending = append(queue.pending, event)
	queue.mutex.Unlock()
	queue.wake()
}

// finish records the end of the stream. Queued events are still
// delivered before the error.
func (queue *eventQueue) finish(err error) {
	queue.mutex.Lock()
	if queue.err == nil {
		queue.err = err
	}
	queue.mutex.Unlock()
	queue.wake()
}

// wake makes the read end readable. A full pipe is already readable, so
// EAGAIN is not an error.
func (queue *eventQueue) wake() {
	unix.Write(queue.wakeWrite, []byte{1})
}

// Descriptor implements [window.EventSource].
func (queue *eventQueue) Descriptor() int {
	return queue.wakeRead
}

// Next implements [window.EventSource]. The wake pipe is drained before
// the queue is inspected: a push that lands after the drain leaves a
// byte behind, so the next poll still wakes.
func (queue *eventQueue) Next() (window.Event, bool, error) {
	var discard [64]byte
	for {
		n, err := unix.Read(queue.wakeRead, discard[:])
		if n <= 0 || err != nil {
			break
		}
	}

	queue.mutex.Lock()
	defer queue.mutex.Unlock()
	if len(queue.pending) > 0 {
		event := queue.pending[0]
		queue.pending[0] = window.Event{}
		queue.pending = queue.pending[1:]
		return event, true, nil
	}
	if queue.err != nil {
		return window.Event{}, false, queue.err
	}
	return window.Event{}, false, nil
}

func (queue *eventQueue) close() error {
	return errors.Join(unix.Close(queue.wakeRead), unix.Close(queue.wakeWrite))
}
