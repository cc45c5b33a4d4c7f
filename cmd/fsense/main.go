// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// fsense exposes a window into a file to a consumer process. The file
// is mapped read-only; the consumer listens on a unix socket and
// receives the bytes under its viewport, and sends back seek, step,
// resize and exit commands.
//
// A parent process may additionally drive the window through an
// inherited control pipe (absolute positions as native-endian 64-bit
// words) and follow it through an observer pipe that receives every
// position the feeder refreshes.
//
// Configuration comes from the file named by --config or FSENSE_CONFIG
// when either is set, then from flags. The feeder exits cleanly when
// the consumer sends exit, and with an error when either input closes.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/fsense/channel"
	"github.com/bureau-foundation/fsense/lib/config"
	"github.com/bureau-foundation/fsense/lib/logging"
	"github.com/bureau-foundation/fsense/lib/mapping"
	"github.com/bureau-foundation/fsense/lib/process"
	"github.com/bureau-foundation/fsense/lib/version"
	"github.com/bureau-foundation/fsense/window"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal("fsense", err)
	}
}

// flags holds command-line values. Only flags the user actually set
// override the configuration file.
type flags struct {
	configPath  string
	file        string
	socket      string
	compression string
	logLevel    string
	wrap        bool
	largeStep   uint
	startOffset int64
	alignment   int64
	controlFD   int
	observerFD  int
	showVersion bool
}

func newFlagSet(values *flags) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("fsense", pflag.ContinueOnError)
	flagSet.StringVar(&values.configPath, "config", "", "configuration file (default: $FSENSE_CONFIG)")
	flagSet.StringVarP(&values.file, "file", "f", "", "file to expose")
	flagSet.StringVar(&values.socket, "socket", "", "consumer unix socket")
	flagSet.StringVar(&values.compression, "compression", "", "window compression: none, lz4, or zstd")
	flagSet.StringVar(&values.logLevel, "log-level", "", "log level: debug, info, warn, or error")
	flagSet.BoolVar(&values.wrap, "wrap", false, "wrap positions past the end to the start")
	flagSet.UintVar(&values.largeStep, "large-step", 1, "large step is one viewport >> this shift")
	flagSet.Int64Var(&values.startOffset, "start-offset", 0, "initial window position")
	flagSet.Int64Var(&values.alignment, "alignment", 0, "round the initial position down to this multiple")
	flagSet.IntVar(&values.controlFD, "control-fd", -1, "inherited descriptor delivering absolute positions")
	flagSet.IntVar(&values.observerFD, "observer-fd", -1, "inherited descriptor receiving refreshed positions")
	flagSet.BoolVar(&values.showVersion, "version", false, "print version information and exit")
	flagSet.BoolP("help", "h", false, "show help")
	return flagSet
}

func run(args []string) error {
	var values flags
	flagSet := newFlagSet(&values)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if values.showVersion {
		fmt.Printf("fsense %s\n", version.Full())
		return nil
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	cfg, err := loadConfig(flagSet, &values)
	if err != nil {
		return err
	}

	logger, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	backing, err := mapping.Open(cfg.Backing.Path)
	if err != nil {
		return err
	}
	defer backing.Close()

	compression, err := channel.ParseCompressionTag(cfg.Channel.Compression)
	if err != nil {
		return err
	}
	port, err := channel.Dial(cfg.Channel.Socket, channel.Options{
		Compression: compression,
		MaxEdge:     cfg.Channel.MaxEdge,
		Geometry:    window.Geometry{RowSize: cfg.Channel.RowSize, Rows: cfg.Channel.Rows},
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer port.Close()

	control, err := inheritedFile(cfg.Pipes.ControlFD, "control")
	if err != nil {
		return err
	}
	observer, err := inheritedFile(cfg.Pipes.ObserverFD, "observer")
	if err != nil {
		return err
	}
	var observerWriter io.Writer
	if observer != nil {
		defer observer.Close()
		observerWriter = observer
	}
	if control != nil {
		defer control.Close()
	}

	identity := window.Identity{
		Name:        cfg.Window.Name,
		Instance:    uuid.NewString(),
		Size:        backing.Size(),
		Fingerprint: mapping.Fingerprint(backing.Bytes()),
	}
	logger.Info("backing buffer mapped",
		"path", backing.Path(),
		"size", identity.Size,
		"instance", identity.Instance,
		"fingerprint", identity.Fingerprint,
		"version", version.Info(),
	)

	feeder, err := window.New(window.Config{
		Buffer:      backing.Bytes(),
		Port:        port,
		Control:     control,
		Observer:    observerWriter,
		Wrap:        cfg.Backing.Wrap,
		LargeStep:   cfg.Window.LargeStep,
		StartOffset: cfg.Backing.StartOffset,
		Alignment:   cfg.Backing.Alignment,
		Identity:    identity,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	return feeder.Run()
}

// loadConfig builds the effective configuration: defaults, then the
// configuration file if one is named, then explicitly set flags.
func loadConfig(flagSet *pflag.FlagSet, values *flags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case values.configPath != "":
		cfg, err = config.LoadFile(values.configPath)
	case os.Getenv("FSENSE_CONFIG") != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	if flagSet.Changed("file") {
		cfg.Backing.Path = values.file
	}
	if flagSet.Changed("socket") {
		cfg.Channel.Socket = values.socket
	}
	if flagSet.Changed("compression") {
		cfg.Channel.Compression = values.compression
	}
	if flagSet.Changed("log-level") {
		cfg.Log.Level = values.logLevel
	}
	if flagSet.Changed("wrap") {
		cfg.Backing.Wrap = values.wrap
	}
	if flagSet.Changed("large-step") {
		cfg.Window.LargeStep = values.largeStep
	}
	if flagSet.Changed("start-offset") {
		cfg.Backing.StartOffset = values.startOffset
	}
	if flagSet.Changed("alignment") {
		cfg.Backing.Alignment = values.alignment
	}
	if flagSet.Changed("control-fd") {
		cfg.Pipes.ControlFD = values.controlFD
	}
	if flagSet.Changed("observer-fd") {
		cfg.Pipes.ObserverFD = values.observerFD
	}

	cfg.ExpandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// inheritedFile wraps an inherited descriptor. A negative descriptor
// means the pipe is not in use and yields nil.
func inheritedFile(descriptor int, name string) (*os.File, error) {
	if descriptor < 0 {
		return nil, nil
	}
	file := os.NewFile(uintptr(descriptor), name)
	if file == nil {
		return nil, fmt.Errorf("%s descriptor %d is not valid", name, descriptor)
	}
	if _, err := file.Stat(); err != nil {
		return nil, fmt.Errorf("%s descriptor %d: %w", name, descriptor, err)
	}
	return file, nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `fsense: expose a window into a file to a consumer.

Usage:
  fsense [flags]

Examples:
  # Serve a capture to the consumer listening on the default socket
  fsense --file capture.bin

  # Wrap at the end and let the parent drive the window on fd 3
  fsense --file capture.bin --wrap --control-fd 3 --observer-fd 4

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
