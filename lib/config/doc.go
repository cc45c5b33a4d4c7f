// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the fsense feeder.
//
// Configuration is loaded from a single file specified by either the
// FSENSE_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search. Command-line
// flags are applied by the binary after loading; environment variables
// never override config values.
//
// Files ending in .jsonc or .json are parsed as JSON with comments and
// trailing commas stripped; everything else is parsed as YAML.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${XDG_RUNTIME_DIR} and ${VAR:-default} patterns are expanded.
//
// Key exports:
//
//   - [Config]: master struct with Backing, Window, Channel, Pipes, Log
//   - [Default]: a Config with every field set to its default
//   - [Load] and [LoadFile]: the two entry points for loading
//   - [Config.Validate]: reports every invalid field at once
//
// This package depends on no other fsense packages.
package config
