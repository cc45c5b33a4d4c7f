// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package window

import "fmt"

// Category classifies an event arriving from the consumer.
type Category uint8

const (
	// CategoryTarget events carry commands for the feeder (seek, step,
	// resize, exit).
	CategoryTarget Category = 1

	// CategoryIO events carry input labels from the consumer's bindings.
	CategoryIO Category = 2

	// CategoryGeometry events announce a new consumer geometry.
	// Arguments are [row size, rows].
	CategoryGeometry Category = 3

	// CategoryExternal events are informational and never dispatched.
	CategoryExternal Category = 4
)

// String returns the human-readable name of a category.
func (category Category) String() string {
	switch category {
	case CategoryTarget:
		return "target"
	case CategoryIO:
		return "io"
	case CategoryGeometry:
		return "geometry"
	case CategoryExternal:
		return "external"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(category))
	}
}

// TargetKind identifies the command carried by a target event.
type TargetKind uint8

const (
	// TargetDisplayHint requests an edge x edge surface.
	// Arguments[0] is the edge length.
	TargetDisplayHint TargetKind = 1

	// TargetSeekTime requests an absolute seek.
	// Arguments[1] is the target position.
	TargetSeekTime TargetKind = 2

	// TargetStepFrame requests a relative step.
	// Arguments[0] is the magnitude, one of -2, -1, 0, 1, 2.
	TargetStepFrame TargetKind = 3

	// TargetExit terminates the feeder.
	TargetExit TargetKind = 4
)

// String returns the human-readable name of a target kind.
func (kind TargetKind) String() string {
	switch kind {
	case TargetDisplayHint:
		return "displayhint"
	case TargetSeekTime:
		return "seektime"
	case TargetStepFrame:
		return "stepframe"
	case TargetExit:
		return "exit"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(kind))
	}
}

// Event is a single message from the consumer. It travels as CBOR over
// the channel transport.
type Event struct {
	Category  Category   `cbor:"category"`
	Kind      TargetKind `cbor:"kind,omitempty"`
	Arguments []int64    `cbor:"arguments,omitempty"`
	Label     string     `cbor:"label,omitempty"`
}

// Argument returns Arguments[index], or false if the event does not
// carry that many arguments.
func (event Event) Argument(index int) (int64, bool) {
	if index < 0 || index >= len(event.Arguments) {
		return 0, false
	}
	return event.Arguments[index], true
}

// Command is a decoded target event. The concrete types are [Resize],
// [Seek], [Step] and [Exit].
type Command interface {
	command()
}

// Resize asks for an Edge x Edge consumer surface.
type Resize struct{ Edge int64 }

// Seek moves the cursor to an absolute position.
type Seek struct{ Position int64 }

// Step moves the cursor relative to its current position. Magnitude -1
// and 1 are unit steps, -2 and 2 are large steps, 0 repaints in place.
type Step struct{ Magnitude int64 }

// Exit terminates the feeder loop.
type Exit struct{}

func (Resize) command() {}
func (Seek) command()   {}
func (Step) command()   {}
func (Exit) command()   {}

// ParseCommand decodes a target event. Returns false for events that are
// not target events, unknown kinds, and events missing the argument
// their kind reads. Each kind decodes to exactly one command: a seek is
// never also a step.
func ParseCommand(event Event) (Command, bool) {
	if event.Category != CategoryTarget {
		return nil, false
	}
	switch event.Kind {
	case TargetDisplayHint:
		edge, ok := event.Argument(0)
		if !ok {
			return nil, false
		}
		return Resize{Edge: edge}, true
	case TargetSeekTime:
		position, ok := event.Argument(1)
		if !ok {
			return nil, false
		}
		return Seek{Position: position}, true
	case TargetStepFrame:
		magnitude, ok := event.Argument(0)
		if !ok {
			return nil, false
		}
		return Step{Magnitude: magnitude}, true
	case TargetExit:
		return Exit{}, true
	default:
		return nil, false
	}
}

// NewTargetEvent builds a target event. Used by consumers and tests.
func NewTargetEvent(kind TargetKind, arguments ...int64) Event {
	return Event{Category: CategoryTarget, Kind: kind, Arguments: arguments}
}

// NewGeometryEvent builds a geometry announcement.
func NewGeometryEvent(geometry Geometry) Event {
	return Event{
		Category:  CategoryGeometry,
		Arguments: []int64{int64(geometry.RowSize), int64(geometry.Rows)},
	}
}

// GeometryFromEvent extracts the geometry carried by a geometry event.
func GeometryFromEvent(event Event) (Geometry, error) {
	if event.Category != CategoryGeometry {
		return Geometry{}, fmt.Errorf("event category %s is not geometry", event.Category)
	}
	if len(event.Arguments) != 2 {
		return Geometry{}, fmt.Errorf("geometry event needs 2 arguments, got %d", len(event.Arguments))
	}
	rowSize, rows := event.Arguments[0], event.Arguments[1]
	if rowSize <= 0 || rows <= 0 {
		return Geometry{}, fmt.Errorf("geometry %dx%d must be positive", rowSize, rows)
	}
	return Geometry{RowSize: int(rowSize), Rows: int(rows)}, nil
}
