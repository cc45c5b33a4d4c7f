// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package window

import (
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/bureau-foundation/fsense/lib/testutil"
)

const feederTimeout = 5 * time.Second

// feederHarness runs a Feeder over a 1000-byte sequential buffer and a
// 10x20 fake port, with real pipes for control and observer.
type feederHarness struct {
	port      *fakePort
	feeder    *Feeder
	control   *os.File
	positions chan int64
	done      chan error
}

func newFeederHarness(t *testing.T, configure func(*Config)) *feederHarness {
	t.Helper()

	controlRead, controlWrite, err := os.Pipe()
	if err != nil {
		t.Fatalf("control pipe: %v", err)
	}
	observerRead, observerWrite, err := os.Pipe()
	if err != nil {
		t.Fatalf("observer pipe: %v", err)
	}
	t.Cleanup(func() {
		controlRead.Close()
		controlWrite.Close()
		observerRead.Close()
		observerWrite.Close()
	})

	port := newFakePort(t, Geometry{RowSize: 10, Rows: 20})
	config := Config{
		Buffer:   sequentialBuffer(1000),
		Port:     port,
		Control:  controlRead,
		Observer: observerWrite,
		Identity: Identity{Name: "fsense-test"},
		Logger:   discardLogger(),
	}
	if configure != nil {
		configure(&config)
	}
	feeder, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	positions := make(chan int64, 64)
	go func() {
		defer close(positions)
		for {
			position, err := ReadPosition(observerRead)
			if err != nil {
				return
			}
			positions <- position
		}
	}()

	return &feederHarness{
		port:      port,
		feeder:    feeder,
		control:   controlWrite,
		positions: positions,
		done:      make(chan error, 1),
	}
}

func (harness *feederHarness) start() {
	go func() { harness.done <- harness.feeder.Run() }()
}

func (harness *feederHarness) wait(t *testing.T) error {
	t.Helper()
	return testutil.RequireReceive(t, harness.done, feederTimeout, "waiting for feeder to stop")
}

func (harness *feederHarness) expectPosition(t *testing.T, want int64) {
	t.Helper()
	got := testutil.RequireReceive(t, harness.positions, feederTimeout, "waiting for observer position %d", want)
	if got != want {
		t.Fatalf("observer position = %d, want %d", got, want)
	}
}

func (harness *feederHarness) sendControl(t *testing.T, position int64) {
	t.Helper()
	if err := WritePosition(harness.control, position); err != nil {
		t.Fatalf("WritePosition: %v", err)
	}
}

func TestFeederStartupSequence(t *testing.T) {
	t.Parallel()
	harness := newFeederHarness(t, nil)
	harness.port.events.push(NewTargetEvent(TargetExit))

	harness.start()
	if err := harness.wait(t); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var calls []string
	for _, call := range harness.port.calls {
		calls = append(calls, call.String())
	}
	want := []string{"identify", "clock", "reanchor(0)", "push(200 bytes)"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for index := range want {
		if calls[index] != want[index] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}

	if harness.port.clock != ClockBlock {
		t.Errorf("clock = %s, want block", harness.port.clock)
	}
	if harness.port.identity.Name != "fsense-test" || harness.port.identity.Size != 1000 {
		t.Errorf("identity = %+v", harness.port.identity)
	}
	if cursor := harness.feeder.Cursor(); cursor.SmallStep != 10 {
		t.Errorf("small step = %d, want the row size 10", cursor.SmallStep)
	}
	harness.expectPosition(t, 0)
}

func TestFeederExitStopsReading(t *testing.T) {
	t.Parallel()
	harness := newFeederHarness(t, nil)
	harness.port.events.push(NewTargetEvent(TargetExit), NewTargetEvent(TargetStepFrame, 1))

	harness.start()
	if err := harness.wait(t); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if pending := harness.port.events.pending(); pending != 1 {
		t.Errorf("%d events left in queue, want the step after exit untouched", pending)
	}
	if offset := harness.feeder.Cursor().Offset; offset != 0 {
		t.Errorf("offset = %d, want 0", offset)
	}
}

func TestFeederControlPosition(t *testing.T) {
	t.Parallel()
	harness := newFeederHarness(t, nil)
	harness.start()
	harness.expectPosition(t, 0)

	harness.sendControl(t, 500)
	harness.expectPosition(t, 500)

	// Relative steps continue from the controlled position.
	harness.port.events.push(NewTargetEvent(TargetStepFrame, 1))
	harness.expectPosition(t, 510)

	harness.port.events.push(NewTargetEvent(TargetExit))
	if err := harness.wait(t); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if offset := harness.feeder.Cursor().Offset; offset != 510 {
		t.Errorf("offset = %d, want 510", offset)
	}
}

func TestFeederControlPositionNormalized(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		wrap bool
		want int64
	}{
		{name: "clamped", want: 1000},
		{name: "wrapped", wrap: true, want: 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			harness := newFeederHarness(t, func(config *Config) { config.Wrap = test.wrap })
			harness.start()
			harness.expectPosition(t, 0)

			harness.sendControl(t, 5000)
			harness.expectPosition(t, test.want)

			harness.port.events.push(NewTargetEvent(TargetExit))
			if err := harness.wait(t); err != nil {
				t.Fatalf("Run: %v", err)
			}
		})
	}
}

func TestFeederControlClosed(t *testing.T) {
	t.Parallel()
	harness := newFeederHarness(t, nil)
	harness.start()
	harness.expectPosition(t, 0)

	harness.control.Close()
	err := harness.wait(t)
	if !errors.Is(err, ErrControlClosed) {
		t.Fatalf("Run = %v, want ErrControlClosed", err)
	}
}

func TestFeederPartialControlWord(t *testing.T) {
	t.Parallel()
	harness := newFeederHarness(t, nil)
	harness.start()
	harness.expectPosition(t, 0)

	if _, err := harness.control.Write([]byte{1, 2, 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	harness.control.Close()

	err := harness.wait(t)
	if !errors.Is(err, ErrControlClosed) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("Run = %v, want ErrControlClosed wrapping io.ErrUnexpectedEOF", err)
	}
}

func TestFeederTransportClosed(t *testing.T) {
	t.Parallel()
	harness := newFeederHarness(t, nil)
	harness.start()
	harness.expectPosition(t, 0)

	harness.port.events.close(io.EOF)
	err := harness.wait(t)
	if !errors.Is(err, ErrTransportClosed) || !errors.Is(err, io.EOF) {
		t.Fatalf("Run = %v, want ErrTransportClosed wrapping io.EOF", err)
	}
}

func TestFeederWithoutControl(t *testing.T) {
	t.Parallel()
	harness := newFeederHarness(t, func(config *Config) { config.Control = nil })
	harness.port.events.push(
		NewTargetEvent(TargetSeekTime, 0, 300),
		NewTargetEvent(TargetExit),
	)
	harness.start()
	if err := harness.wait(t); err != nil {
		t.Fatalf("Run: %v", err)
	}
	harness.expectPosition(t, 0)
	harness.expectPosition(t, 300)
}

func TestFeederSeekRefreshesOnce(t *testing.T) {
	t.Parallel()
	harness := newFeederHarness(t, nil)
	harness.port.events.push(
		NewTargetEvent(TargetSeekTime, 1, 300),
		NewTargetEvent(TargetExit),
	)
	harness.start()
	if err := harness.wait(t); err != nil {
		t.Fatalf("Run: %v", err)
	}

	reanchors := harness.port.callsOf("reanchor")
	if len(reanchors) != 2 || reanchors[1].offset != 300 {
		t.Errorf("reanchors = %v, want initial then exactly one at 300", reanchors)
	}
	if offset := harness.feeder.Cursor().Offset; offset != 300 {
		t.Errorf("offset = %d, want 300 (no step applied after seek)", offset)
	}
}

func TestFeederGeometryEventConsumed(t *testing.T) {
	t.Parallel()
	harness := newFeederHarness(t, nil)
	harness.port.events.push(
		NewGeometryEvent(Geometry{RowSize: 16, Rows: 16}),
		NewTargetEvent(TargetStepFrame, 0),
		NewTargetEvent(TargetExit),
	)
	harness.start()
	if err := harness.wait(t); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(harness.port.consumed) != 1 {
		t.Fatalf("port consumed %d events, want 1", len(harness.port.consumed))
	}
	pushes := harness.port.callsOf("push")
	if last := pushes[len(pushes)-1]; len(last.data) != 256 {
		t.Errorf("repaint pushed %d bytes, want 256 for the new geometry", len(last.data))
	}
	if cursor := harness.feeder.Cursor(); cursor.SmallStep != 10 {
		t.Errorf("small step = %d, want it unchanged at 10", cursor.SmallStep)
	}
}

type recordingLabels struct {
	labels []string
}

func (processor *recordingLabels) ProcessLabel(cursor *Cursor, label string) {
	processor.labels = append(processor.labels, label)
}

func TestFeederLabelsAndUnrecognizedEvents(t *testing.T) {
	t.Parallel()
	labels := &recordingLabels{}
	harness := newFeederHarness(t, func(config *Config) { config.Labels = labels })
	harness.port.events.push(
		Event{Category: CategoryIO, Label: "STEP_FORWARD"},
		Event{Category: CategoryExternal, Label: "ignored"},
		NewTargetEvent(TargetKind(42), 1),
		NewTargetEvent(TargetSeekTime),
		NewTargetEvent(TargetStepFrame, 5),
		NewTargetEvent(TargetExit),
	)
	harness.start()
	if err := harness.wait(t); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(labels.labels) != 1 || labels.labels[0] != "STEP_FORWARD" {
		t.Errorf("labels = %v, want [STEP_FORWARD]", labels.labels)
	}
	if reanchors := harness.port.callsOf("reanchor"); len(reanchors) != 1 {
		t.Errorf("got %d refreshes, want only the initial one", len(reanchors))
	}
}

func TestFeederStartOffset(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		start     int64
		alignment int64
		want      int64
	}{
		{name: "unaligned", start: 130, want: 130},
		{name: "aligned down", start: 130, alignment: 64, want: 128},
		{name: "clamped", start: 5000, want: 1000},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			harness := newFeederHarness(t, func(config *Config) {
				config.StartOffset = test.start
				config.Alignment = test.alignment
			})
			harness.port.events.push(NewTargetEvent(TargetExit))
			harness.start()
			if err := harness.wait(t); err != nil {
				t.Fatalf("Run: %v", err)
			}
			harness.expectPosition(t, test.want)
		})
	}
}

func TestFeederRunsOnce(t *testing.T) {
	t.Parallel()
	harness := newFeederHarness(t, nil)
	harness.port.events.push(NewTargetEvent(TargetExit))
	harness.start()
	if err := harness.wait(t); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := harness.feeder.Run(); err == nil {
		t.Error("second Run succeeded")
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()
	port := newFakePort(t, Geometry{RowSize: 1, Rows: 1})
	tests := []struct {
		name   string
		config Config
	}{
		{name: "missing port", config: Config{Buffer: make([]byte, 10)}},
		{name: "negative start", config: Config{Port: port, StartOffset: -1}},
		{name: "negative alignment", config: Config{Port: port, Alignment: -8}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(test.config); err == nil {
				t.Error("New succeeded")
			}
		})
	}
}
