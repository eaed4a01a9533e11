// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/jeranaias/bankbot/internal/config"
)

// setupLogging configures the global logrus logger from cfg. With toFile set
// (the TUI owns the screen) output goes to cfg.LogPath(); the returned closer
// must be closed on exit.
func setupLogging(cfg *config.Config, toFile bool) (io.Closer, error) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, errors.Wrap(err, "cannot parse log level")
	}
	log.SetLevel(level)

	if cfg.Log.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		formatter := new(log.TextFormatter)
		formatter.TimestampFormat = "2006-01-02T15:04:05.999Z07:00"
		formatter.FullTimestamp = true
		formatter.DisableColors = toFile
		log.SetFormatter(formatter)
	}

	if !toFile {
		log.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}

	path := cfg.LogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrap(err, "create log directory")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, errors.Wrap(err, "open log file")
	}
	log.SetOutput(f)
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
