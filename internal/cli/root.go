// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jeranaias/bankbot/internal/config"
	"github.com/jeranaias/bankbot/internal/storage"
)

// Version information (overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command annotations read by the root pre-run.
const (
	// annotationLogToFile sends logs to the log file instead of stderr.
	annotationLogToFile = "bankbot/log-to-file"
	// annotationLenientConfig falls back to defaults when the config is invalid.
	annotationLenientConfig = "bankbot/lenient-config"
	// annotationNoConfig skips loading the config entirely.
	annotationNoConfig = "bankbot/no-config"
)

// app is the state shared by every command of one invocation.
type app struct {
	flags     config.Flags
	cfg       *config.Config
	logCloser io.Closer
	history   *storage.HistoryStore
}

// NewRootCommand builds the bankbot command tree. Without a subcommand it
// starts the TUI.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "bankbot",
		Short: "A banking assistant chat for the terminal",
		Long: `BankBot answers banking questions. Questions outside banking get a
polite refusal, common questions are answered from a local FAQ and everything
else goes to a language model (Ollama, OpenAI-compatible or Gemini).

Conversations are kept in ~/.bankbot/chat_history.json.`,
		Annotations:       map[string]string{annotationLogToFile: "true"},
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd)
		},
	}
	a.flags.BindFlags(root.PersistentFlags())

	root.AddCommand(
		newTUICommand(a),
		newChatCommand(a),
		newAskCommand(a),
		newChatsCommand(a),
		newFAQCommand(a),
		newServeCommand(a),
		newConfigCommand(a),
		newVersionCommand(),
	)
	return root
}

// Execute runs the root command with os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

// setup loads the configuration and configures logging.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[annotationNoConfig] != "" {
		return nil
	}

	cfg, err := a.flags.Load()
	if err != nil {
		if cmd.Annotations[annotationLenientConfig] == "" {
			return err
		}
		log.WithError(err).Warn("configuration invalid, using defaults")
		cfg = config.Default()
	}
	a.cfg = cfg

	closer, err := setupLogging(cfg, cmd.Annotations[annotationLogToFile] != "")
	if err != nil {
		return err
	}
	a.logCloser = closer
	ColorsEnabled()
	log.WithFields(log.Fields{
		"command":  cmd.CommandPath(),
		"provider": cfg.Generation.Provider,
		"data_dir": cfg.ResolvedDataDir(),
	}).Debug("configuration loaded")
	return nil
}

func (a *app) teardown() {
	if a.logCloser != nil {
		if err := a.logCloser.Close(); err != nil {
			log.WithError(err).Debug("closing log file")
		}
		a.logCloser = nil
	}
}
