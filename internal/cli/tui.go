// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jeranaias/bankbot/internal/storage"
	"github.com/jeranaias/bankbot/internal/ui/chat"
	"github.com/jeranaias/bankbot/internal/ui/styles"
)

func newTUICommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "tui",
		Short:       "Start the full-screen chat (default)",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationLogToFile: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd)
		},
	}
}

// runTUI runs the Bubble Tea chat screen until the user quits.
func (a *app) runTUI(cmd *cobra.Command) error {
	if !IsTTY() {
		return errors.New("the TUI needs a terminal; use 'bankbot chat' or 'bankbot ask' instead")
	}

	ctrl, err := a.openController(cmd.Context(), nil)
	if err != nil {
		return err
	}

	model := chat.New(ctrl, styles.NewTheme(a.cfg.UI.Theme), chat.Options{ShowHelp: a.cfg.UI.ShowHelp})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())

	watcher, err := storage.NewWatcher(a.store(), storage.DefaultWatchDebounce, func(change storage.ExternalChange) {
		p.Send(chat.ExternalChangeMsg(change))
	})
	if err != nil {
		log.WithError(err).Warn("history watcher unavailable")
	} else {
		defer watcher.Close()
		if err := watcher.Watch(); err != nil {
			log.WithError(err).Warn("history watcher unavailable")
		}
	}

	log.WithField("history", ctrl.HistoryPath()).Info("starting TUI")
	if _, err := p.Run(); err != nil {
		return errors.Wrap(err, "run TUI")
	}
	return nil
}
