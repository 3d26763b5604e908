// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and validation for nexus.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and fail-fast validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.nexus/config.toml
//   - ~/.nexus/config.json
//   - Built-in defaults
package config
