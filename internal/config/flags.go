// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"github.com/spf13/pflag"
)

// =============================================================================
// COMMAND-LINE OVERRIDES
// =============================================================================

// Flag names registered by BindFlags.
const (
	FlagConfig    = "config"
	FlagDataDir   = "data-dir"
	FlagProvider  = "provider"
	FlagModel     = "model"
	FlagOllamaURL = "ollama-url"
	FlagTimeout   = "timeout"
	FlagLogLevel  = "log-level"
	FlagLogFormat = "log-format"
)

// Flags holds command-line values. Only flags the user actually set override
// the file and environment.
type Flags struct {
	ConfigFile  string
	DataDir     string
	Provider    string
	Model       string
	OllamaURL   string
	TimeoutSecs int
	LogLevel    string
	LogFormat   string

	fs *pflag.FlagSet
}

// BindFlags registers the global flags on fs.
func (f *Flags) BindFlags(fs *pflag.FlagSet) {
	f.fs = fs
	fs.StringVar(&f.ConfigFile, FlagConfig, "", "config file (default ~/.bankbot/config.toml)")
	fs.StringVar(&f.DataDir, FlagDataDir, "", "directory for history, FAQ and log files")
	fs.StringVar(&f.Provider, FlagProvider, "", "reply provider: ollama, openai or gemini")
	fs.StringVar(&f.Model, FlagModel, "", "model name for the reply provider")
	fs.StringVar(&f.OllamaURL, FlagOllamaURL, "", "Ollama server URL")
	fs.IntVar(&f.TimeoutSecs, FlagTimeout, 0, "reply timeout in seconds")
	fs.StringVar(&f.LogLevel, FlagLogLevel, "", "log level: trace, debug, info, warn, error")
	fs.StringVar(&f.LogFormat, FlagLogFormat, "", "log format: text or json")
}

// Load reads the config file named by --config (or the default locations)
// and applies the flags on top.
func (f *Flags) Load() (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if f.ConfigFile != "" {
		cfg, err = LoadFromPath(f.ConfigFile)
	} else {
		cfg, err = Load()
	}
	if err != nil {
		return nil, err
	}

	f.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Apply copies every flag the user set into cfg.
func (f *Flags) Apply(cfg *Config) {
	if f.changed(FlagDataDir) {
		cfg.DataDir = f.DataDir
	}
	if f.changed(FlagProvider) {
		cfg.Generation.Provider = f.Provider
	}
	if f.changed(FlagModel) {
		cfg.Generation.Model = f.Model
	}
	if f.changed(FlagOllamaURL) {
		cfg.Ollama.URL = f.OllamaURL
	}
	if f.changed(FlagTimeout) {
		cfg.Generation.TimeoutSecs = f.TimeoutSecs
	}
	if f.changed(FlagLogLevel) {
		cfg.Log.Level = f.LogLevel
	}
	if f.changed(FlagLogFormat) {
		cfg.Log.Format = f.LogFormat
	}
}

func (f *Flags) changed(name string) bool {
	return f.fs != nil && f.fs.Changed(name)
}
