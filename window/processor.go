// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package window

import (
	"fmt"
	"log/slog"
)

// Processor applies decoded commands to a cursor. It holds no state of
// its own between calls.
type Processor struct {
	port      ChannelPort
	refresher *Refresher
	logger    *slog.Logger
}

// NewProcessor creates a Processor that refreshes through refresher and
// resizes through port.
func NewProcessor(port ChannelPort, refresher *Refresher, logger *slog.Logger) *Processor {
	return &Processor{port: port, refresher: refresher, logger: logger}
}

// Apply executes one command against cursor. keepRunning is false only
// for [Exit]. err carries soft refresh failures; the cursor has already
// been updated when it is returned.
//
// Seek and Step commit the new offset before refreshing. Resize never
// refreshes and leaves the cursor, including SmallStep, untouched.
// Unknown step magnitudes are ignored without a refresh.
func (processor *Processor) Apply(cursor *Cursor, command Command) (keepRunning bool, err error) {
	switch command := command.(type) {
	case Resize:
		processor.resize(command.Edge)
		return true, nil

	case Seek:
		cursor.Seek(command.Position)
		return true, processor.refresh(cursor)

	case Step:
		switch command.Magnitude {
		case -1, 1:
			cursor.Step(cursor.SmallStep * command.Magnitude)
		case 0:
		case -2, 2:
			delta := LargeDelta(processor.port.Geometry(), cursor.LargeStep)
			cursor.Step(delta * (command.Magnitude / 2))
		default:
			processor.logger.Debug("ignoring step with unsupported magnitude",
				"magnitude", command.Magnitude)
			return true, nil
		}
		return true, processor.refresh(cursor)

	case Exit:
		return false, nil

	default:
		processor.logger.Debug("ignoring unrecognized command", "command", fmt.Sprintf("%T", command))
		return true, nil
	}
}

func (processor *Processor) refresh(cursor *Cursor) error {
	return processor.refresher.Refresh(cursor.Offset, cursor.Wrap)
}

// resize accepts positive powers of two that the transport agrees to.
// Step sizes are not recomputed against the new geometry.
func (processor *Processor) resize(edge int64) {
	if edge <= 0 || edge&(edge-1) != 0 {
		processor.logger.Debug("rejecting resize: edge is not a positive power of two", "edge", edge)
		return
	}
	if err := processor.port.Resize(int(edge)); err != nil {
		processor.logger.Debug("rejecting resize: transport refused", "edge", edge, "error", err)
		return
	}
	processor.logger.Info("channel resized", "edge", edge)
}
