// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jeranaias/bankbot/internal/metrics"
	"github.com/jeranaias/bankbot/internal/server"
	"github.com/jeranaias/bankbot/internal/storage"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat over a local JSON API",
		Long: `Serve the conversation store and chat over HTTP. The API is meant for
local tools; bind it to a loopback address. Prometheus metrics are exposed at
/metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m := metrics.New()
			ctrl, err := a.openController(ctx, m)
			if err != nil {
				return err
			}

			watcher, err := storage.NewWatcher(a.store(), storage.DefaultWatchDebounce, func(change storage.ExternalChange) {
				log.WithFields(log.Fields{
					"path":    change.Path,
					"removed": change.Removed,
				}).Warn("history file changed outside the server; the next save overwrites it")
			})
			if err != nil {
				log.WithError(err).Warn("history watcher unavailable")
			} else {
				defer watcher.Close()
				if err := watcher.Watch(); err != nil {
					log.WithError(err).Warn("history watcher unavailable")
				}
			}

			srv := server.New(ctrl, m, server.Config{
				Addr:            a.cfg.Server.Addr,
				RateLimitPerMin: a.cfg.Server.RateLimitPerMin,
				MaxBodyBytes:    a.cfg.Server.MaxBodyBytes,
				WriteTimeout:    a.cfg.Timeout() + server.WriteTimeoutSlack,
				Version:         Version,
			})
			if err := srv.ListenAndServe(ctx); err != nil {
				return errors.Wrap(err, "serve")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:8080)")
	return cmd
}
