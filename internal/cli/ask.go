// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question.
//
// Command: ask QUESTION...
// Short:   Answer one question without touching the chat history
//
// Examples:
//   bankbot ask "What is APR?"
//   bankbot ask --json how do I open a savings account
//   echo "loan rates?" | bankbot ask -

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/bankbot/internal/session"
)

// AskResult is the --json output of ask.
type AskResult struct {
	Question  string `json:"question"`
	Route     string `json:"route"`
	Reply     string `json:"reply"`
	Keyword   string `json:"keyword,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

func newAskCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask QUESTION...",
		Short: "Answer one question without touching the chat history",
		Long: `Answer a single question and exit. The question goes through the same
banking filter and FAQ as the chat, but nothing is saved. Use "-" to read the
question from stdin.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question, err := readQuestion(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			responder, err := a.responder(cmd.Context())
			if err != nil {
				return err
			}
			return runAsk(cmd.Context(), responder, question, cmd.OutOrStdout(), asJSON, a.cfg.UI.Theme)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

// readQuestion joins args, or reads stdin when the only argument is "-".
func readQuestion(args []string, stdin io.Reader) (string, error) {
	question := strings.Join(args, " ")
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", errors.Wrap(err, "read question from stdin")
		}
		question = string(data)
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return "", session.ErrEmptyMessage
	}
	return question, nil
}

func runAsk(ctx context.Context, responder session.Responder, question string, w io.Writer, asJSON bool, theme string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	// Stream only to a terminal; pipes get the finished reply.
	var onDelta func(string)
	streamed := false
	if !asJSON && isTerminalWriter(w) {
		onDelta = func(delta string) {
			streamed = true
			fmt.Fprint(w, delta)
		}
	}

	out := responder.Respond(ctx, question, onDelta)

	if asJSON {
		result := AskResult{
			Question:  question,
			Route:     string(out.Route),
			Reply:     out.Reply,
			Keyword:   out.Keyword,
			ElapsedMs: out.Elapsed.Milliseconds(),
		}
		if out.Route == session.RouteError {
			result.ErrorKind = out.ErrorKind.String()
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	switch {
	case streamed && out.Route == session.RouteModel:
		fmt.Fprintln(w)
	case out.Route == session.RouteError:
		if streamed {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, errorStyle.Render(out.Reply))
	case out.Route == session.RouteRefused:
		fmt.Fprintln(w, warningStyle.Render(out.Reply))
	default:
		fmt.Fprint(w, renderMarkdown(w, out.Reply, theme))
	}

	if out.Route == session.RouteError {
		return errors.Errorf("reply generation failed (%s)", out.ErrorKind)
	}
	return nil
}
