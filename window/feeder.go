// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package window

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"
)

// ErrControlClosed is returned by [Feeder.Run] when the control pipe
// fails: end of file, a partial position word, hangup, or a poll error.
// The feeder never retries a failed control read.
var ErrControlClosed = errors.New("control pipe closed")

// ErrTransportClosed is returned by [Feeder.Run] when the consumer's
// event stream ends.
var ErrTransportClosed = errors.New("transport closed")

// pollEvents is the readiness mask requested for both inputs. POLLERR,
// POLLHUP and POLLNVAL are always reported by poll(2); they are listed
// to mirror what the loop reacts to.
const pollEvents = unix.POLLIN | unix.POLLERR | unix.POLLHUP | unix.POLLNVAL

// Config holds everything a Feeder needs. Buffer and Port are required.
type Config struct {
	// Buffer is the backing buffer. Borrowed read-only for the
	// feeder's lifetime.
	Buffer []byte

	// Port is the downstream consumer.
	Port ChannelPort

	// Control delivers absolute positions from the parent process. Nil
	// disables the control source.
	Control *os.File

	// Observer receives each refreshed position. Nil disables
	// reporting.
	Observer io.Writer

	// Wrap selects the out-of-range policy of the cursor.
	Wrap bool

	// LargeStep is the shift exponent of large relative steps.
	LargeStep uint

	// StartOffset is the initial cursor position, normalized against
	// the buffer size.
	StartOffset int64

	// Alignment, if positive, rounds the initial position down to a
	// multiple of this many bytes.
	Alignment int64

	// Identity is announced to the consumer at startup. Size is filled
	// in from Buffer when zero.
	Identity Identity

	// Bindings defaults to [NoBindings].
	Bindings BindingRegistrar

	// Labels defaults to [NoLabels].
	Labels LabelProcessor

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Feeder is the event loop of one data window. Create with [New] and
// call [Feeder.Run] once.
type Feeder struct {
	cursor    Cursor
	port      ChannelPort
	control   *os.File
	refresher *Refresher
	processor *Processor
	identity  Identity
	alignment int64
	bindings  BindingRegistrar
	labels    LabelProcessor
	logger    *slog.Logger
	ran       bool
}

// New validates config and creates a Feeder positioned at the
// normalized start offset.
func New(config Config) (*Feeder, error) {
	if config.Port == nil {
		return nil, errors.New("feeder requires a channel port")
	}
	if config.StartOffset < 0 {
		return nil, fmt.Errorf("start offset %d is negative", config.StartOffset)
	}
	if config.Alignment < 0 {
		return nil, fmt.Errorf("alignment %d is negative", config.Alignment)
	}
	if config.Bindings == nil {
		config.Bindings = NoBindings{}
	}
	if config.Labels == nil {
		config.Labels = NoLabels{}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	size := int64(len(config.Buffer))
	if config.Identity.Size == 0 {
		config.Identity.Size = size
	}

	refresher := NewRefresher(config.Buffer, config.Port, config.Observer)
	return &Feeder{
		cursor: Cursor{
			Offset:    Normalize(config.StartOffset, size, config.Wrap),
			Size:      size,
			Wrap:      config.Wrap,
			LargeStep: config.LargeStep,
		},
		port:      config.Port,
		control:   config.Control,
		refresher: refresher,
		processor: NewProcessor(config.Port, refresher, config.Logger),
		identity:  config.Identity,
		alignment: config.Alignment,
		bindings:  config.Bindings,
		labels:    config.Labels,
		logger:    config.Logger,
	}, nil
}

// Cursor returns a copy of the cursor. Only meaningful before Run or
// after it returns.
func (feeder *Feeder) Cursor() Cursor {
	return feeder.cursor
}

// Run announces the feeder, pushes the initial window, and then blocks
// in poll(2) on the control pipe and the consumer's event descriptor
// until the consumer sends Exit (returns nil) or an input fails (returns
// an error wrapping [ErrControlClosed] or [ErrTransportClosed]).
//
// Each wake-up handles at most one control position and then drains
// every queued event before waiting again. Exit stops the loop at once:
// no further reads happen on either input.
func (feeder *Feeder) Run() error {
	if feeder.ran {
		return errors.New("feeder has already run")
	}
	feeder.ran = true

	if err := feeder.start(); err != nil {
		return err
	}

	events := feeder.port.Events()
	controlDescriptor := -1
	if feeder.control != nil {
		controlDescriptor = int(feeder.control.Fd())
	}

	// poll(2) ignores negative descriptors, so a missing control pipe
	// needs no special case.
	descriptors := []unix.PollFd{
		{Fd: int32(controlDescriptor), Events: pollEvents},
		{Fd: int32(events.Descriptor()), Events: pollEvents},
	}

	for {
		descriptors[0].Revents = 0
		descriptors[1].Revents = 0
		if _, err := unix.Poll(descriptors, -1); err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("wait for input: %w", err)
		}

		if err := feeder.handleControl(descriptors[0].Revents); err != nil {
			return err
		}

		if descriptors[1].Revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
			return fmt.Errorf("%w: event descriptor reported 0x%x", ErrTransportClosed, descriptors[1].Revents)
		}

		running, err := feeder.drainEvents(events)
		if err != nil {
			return err
		}
		if !running {
			feeder.logger.Info("feeder exiting on request", "offset", feeder.cursor.Offset)
			return nil
		}
	}
}

func (feeder *Feeder) start() error {
	if err := feeder.port.Identify(feeder.identity); err != nil {
		return fmt.Errorf("identify to consumer: %w", err)
	}
	if err := feeder.bindings.RegisterBindings(feeder.port); err != nil {
		return fmt.Errorf("register bindings: %w", err)
	}
	if err := feeder.port.SwitchClock(ClockBlock); err != nil {
		return fmt.Errorf("switch clock to %s: %w", ClockBlock, err)
	}

	geometry := feeder.port.Geometry()
	feeder.cursor.SmallStep = int64(geometry.RowSize)
	feeder.cursor.Align(feeder.alignment)

	feeder.logger.Info("feeder started",
		"name", feeder.identity.Name,
		"size", feeder.cursor.Size,
		"offset", feeder.cursor.Offset,
		"wrap", feeder.cursor.Wrap,
		"row_size", geometry.RowSize,
		"rows", geometry.Rows,
	)
	feeder.refresh(feeder.cursor.Offset)
	return nil
}

// handleControl reads one position when the control pipe is readable.
// The position re-anchors the view directly, without seek or step
// semantics, and becomes the cursor's new offset.
func (feeder *Feeder) handleControl(revents int16) error {
	if revents&unix.POLLIN != 0 {
		position, err := ReadPosition(feeder.control)
		if err != nil {
			return fmt.Errorf("%w: read position: %w", ErrControlClosed, err)
		}
		feeder.cursor.Seek(position)
		feeder.refresh(feeder.cursor.Offset)
		return nil
	}
	if revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
		return fmt.Errorf("%w: descriptor reported 0x%x", ErrControlClosed, revents)
	}
	return nil
}

// drainEvents dispatches every queued event. Returns false when an Exit
// command was processed.
func (feeder *Feeder) drainEvents(events EventSource) (bool, error) {
	for {
		event, ok, err := events.Next()
		if err != nil {
			return false, fmt.Errorf("%w: %w", ErrTransportClosed, err)
		}
		if !ok {
			return true, nil
		}
		if !feeder.dispatch(event) {
			return false, nil
		}
	}
}

func (feeder *Feeder) dispatch(event Event) bool {
	if feeder.port.Consume(event) {
		return true
	}

	switch event.Category {
	case CategoryIO:
		feeder.labels.ProcessLabel(&feeder.cursor, event.Label)

	case CategoryTarget:
		command, ok := ParseCommand(event)
		if !ok {
			feeder.logger.Debug("ignoring unrecognized target event",
				"kind", event.Kind, "arguments", event.Arguments)
			return true
		}
		running, err := feeder.processor.Apply(&feeder.cursor, command)
		if err != nil {
			feeder.logger.Warn("refresh incomplete", "offset", feeder.cursor.Offset, "error", err)
		}
		return running
	}
	return true
}

func (feeder *Feeder) refresh(offset int64) {
	if err := feeder.refresher.Refresh(offset, feeder.cursor.Wrap); err != nil {
		feeder.logger.Warn("refresh incomplete", "offset", offset, "error", err)
	}
}
