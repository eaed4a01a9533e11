// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for bankbot.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, command-line flags, and validation.
//
// # Configuration Precedence
//
// Configuration is resolved from (highest first):
//   - Command-line flags (see BindFlags)
//   - Environment variables (BANKBOT_*)
//   - ~/.bankbot/config.toml
//   - ~/.bankbot/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := storage.NewHistoryStore(cfg.HistoryPath())
package config
