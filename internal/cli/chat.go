// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-oriented chat REPL.
//
// Command: chat
// Short:   Chat in the terminal without the full-screen UI
//
// Interactive Commands (during chat):
//   /new                  Start a new conversation
//   /list                 List conversations
//   /switch N|ID          Switch to a conversation
//   /rename TITLE         Rename the active conversation
//   /delete [N|ID]        Delete a conversation (default: active)
//   /export [FORMAT] [DIR] Export the active conversation
//   /help                 Show commands
//   /quit                 Exit
//   Ctrl+C                Cancel the current reply
//   Ctrl+D                Exit

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jeranaias/bankbot/internal/config"
	"github.com/jeranaias/bankbot/internal/export"
	"github.com/jeranaias/bankbot/internal/session"
	"github.com/jeranaias/bankbot/internal/storage"
	"github.com/jeranaias/bankbot/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// inputHistoryFile holds REPL line history, separate from chat history.
const inputHistoryFile = "input_history"

// ChatCLI provides input history and line editing for the REPL.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a line editor with history loaded from dataDir.
func NewChatCLI(dataDir string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(dataDir, inputHistoryFile),
	}
	if f, err := os.Open(c.historyFile); err == nil {
		if _, err := c.line.ReadHistory(f); err != nil {
			log.WithError(err).Debug("reading input history")
		}
		f.Close()
	}
	return c
}

// ReadInput reads one line. Non-empty lines are added to history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with owner-only permissions and restores the terminal.
func (c *ChatCLI) Close() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			if _, err := c.line.WriteHistory(f); err != nil {
				log.WithError(err).Debug("writing input history")
			}
			f.Close()
		}
	}
	c.line.Close()
}

// =============================================================================
// COMMAND
// =============================================================================

func newChatCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat in the terminal without the full-screen UI",
		Long: `Start a line-oriented chat on the active conversation.

Type a question and press enter. Lines starting with / are commands; /help
lists them. Ctrl+C cancels a reply in progress, Ctrl+D exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := a.openController(cmd.Context(), nil)
			if err != nil {
				return err
			}
			return runREPL(cmd.Context(), newREPL(ctrl, cmd.OutOrStdout(), a.cfg), NewChatCLI(a.cfg.ResolvedDataDir()))
		},
	}
}

func runREPL(ctx context.Context, r *repl, input *ChatCLI) error {
	defer input.Close()

	r.printWelcome()
	for {
		line, err := input.ReadInput(promptStyle.Render("you> "))
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D or a closed stdin all end the session.
			if err != liner.ErrPromptAborted && err != io.EOF {
				log.WithError(err).Debug("reading input")
			}
			fmt.Fprintln(r.out)
			return nil
		}
		if r.handle(ctx, line) {
			return nil
		}
	}
}

// =============================================================================
// REPL
// =============================================================================

// repl executes chat lines against a controller and writes to out.
type repl struct {
	ctrl  *session.Controller
	out   io.Writer
	theme string
}

func newREPL(ctrl *session.Controller, out io.Writer, cfg *config.Config) *repl {
	return &repl{ctrl: ctrl, out: out, theme: cfg.UI.Theme}
}

func (r *repl) printWelcome() {
	conv, err := r.ctrl.Transcript("")
	if err != nil {
		return
	}
	fmt.Fprintln(r.out, botStyle.Render("BankBot")+infoStyle.Render(" - "+conv.Title+" (/help for commands)"))
	if last, ok := conv.LastMessage(); ok && last.Role == storage.RoleAssistant {
		fmt.Fprint(r.out, renderMarkdown(r.out, last.Text, r.theme))
	}
}

// handle runs one input line and reports whether the session should end.
func (r *repl) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
		return true
	}
	if strings.HasPrefix(line, "/") {
		quit, err := r.command(line)
		if err != nil {
			fmt.Fprintf(r.out, "%s %v\n", errorStyle.Render("[Error]"), err)
		}
		return quit
	}
	if err := r.ask(ctx, line); err != nil {
		fmt.Fprintf(r.out, "%s %v\n", errorStyle.Render("[Error]"), err)
	}
	return false
}

// ask submits text; Ctrl+C cancels the reply but not the session.
func (r *repl) ask(ctx context.Context, text string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	streamed := false
	fmt.Fprint(r.out, botStyle.Render("bankbot> "))
	out, err := r.ctrl.Submit(ctx, text, func(delta string) {
		streamed = true
		fmt.Fprint(r.out, delta)
	})
	if err != nil {
		fmt.Fprintln(r.out)
		return err
	}

	switch {
	case streamed && out.Route == session.RouteModel:
		fmt.Fprintln(r.out)
	case out.Route == session.RouteError:
		if streamed {
			fmt.Fprintln(r.out)
		}
		fmt.Fprintln(r.out, errorStyle.Render(out.Reply))
	case out.Route == session.RouteRefused:
		fmt.Fprintln(r.out, warningStyle.Render(out.Reply))
	default:
		fmt.Fprint(r.out, "\n"+renderMarkdown(r.out, out.Reply, r.theme))
	}
	if out.TitleChanged {
		fmt.Fprintln(r.out, infoStyle.Render("Conversation titled: "+util.PrefixRunes(text, storage.TitleMaxRunes)))
	}
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

const replHelp = `Commands:
  /new                    start a new conversation
  /list                   list conversations
  /switch N|ID            switch to a conversation
  /rename TITLE           rename the active conversation
  /delete [N|ID]          delete a conversation (default: active)
  /export [FORMAT] [DIR]  export the active conversation (markdown, json, html)
  /help                   show this help
  /quit                   exit`

func (r *repl) command(line string) (bool, error) {
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case "/quit", "/q", "/exit":
		return true, nil

	case "/help", "/h", "/?":
		fmt.Fprintln(r.out, replHelp)

	case "/new":
		id, err := r.ctrl.NewChat()
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, infoStyle.Render("Started conversation "+shortID(id)))

	case "/list", "/ls":
		printSummaries(r.out, r.ctrl.Conversations())

	case "/switch":
		id, err := resolveConversation(r.ctrl, rest)
		if err != nil {
			return false, err
		}
		if err := r.ctrl.SelectChat(id); err != nil {
			return false, err
		}
		r.printWelcome()

	case "/rename":
		if rest == "" {
			return false, errors.New("usage: /rename TITLE")
		}
		if err := r.ctrl.RenameChat(r.ctrl.ActiveID(), rest); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, infoStyle.Render("Renamed to "+rest))

	case "/delete":
		id := r.ctrl.ActiveID()
		if rest != "" {
			var err error
			if id, err = resolveConversation(r.ctrl, rest); err != nil {
				return false, err
			}
		}
		active, err := r.ctrl.DeleteChat(id)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, infoStyle.Render("Deleted "+shortID(id)+"; active is now "+shortID(active)))

	case "/export":
		format, dir := "markdown", "."
		if fields := strings.Fields(rest); len(fields) > 0 {
			format = fields[0]
			if len(fields) > 1 {
				dir = fields[1]
			}
		}
		path, err := exportConversation(r.ctrl, r.ctrl.ActiveID(), format, dir, r.theme)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, infoStyle.Render("Exported to "+path))

	default:
		return false, errors.Errorf("unknown command %s (try /help)", name)
	}
	return false, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// resolveConversation accepts a 1-based list index, a full id or a unique id
// prefix.
func resolveConversation(ctrl *session.Controller, ref string) (string, error) {
	if ref == "" {
		return "", errors.New("missing conversation number or id")
	}
	chats := ctrl.Conversations()
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(chats) {
			return "", errors.Errorf("no conversation number %d (1-%d)", n, len(chats))
		}
		return chats[n-1].ID, nil
	}

	var match string
	for _, c := range chats {
		if c.ID == ref {
			return c.ID, nil
		}
		if strings.HasPrefix(c.ID, ref) {
			if match != "" {
				return "", errors.Errorf("id prefix %q is ambiguous", ref)
			}
			match = c.ID
		}
	}
	if match == "" {
		return "", errors.Wrapf(storage.ErrConversationNotFound, "%s", ref)
	}
	return match, nil
}

func printSummaries(w io.Writer, chats []storage.Summary) {
	for i, c := range chats {
		marker := " "
		if c.Active {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %2d  %s  %s  (%d messages)\n",
			marker, i+1, shortID(c.ID), util.PadWidth(util.TruncateWidth(c.Title, 40), 40), c.MessageCount)
	}
}

func shortID(id string) string {
	return util.PrefixRunes(id, 8)
}

// exportConversation writes one conversation to dir and returns the path.
func exportConversation(ctrl *session.Controller, id, format, dir, theme string) (string, error) {
	conv, err := ctrl.Transcript(id)
	if err != nil {
		return "", err
	}
	opts := export.DefaultOptions()
	opts.OutputDir = dir
	if theme == "light" {
		opts.Theme = theme
	}
	exporter, err := export.Lookup(format, opts)
	if err != nil {
		return "", err
	}
	return export.ExportToFile(export.FromConversation(id, conv), exporter, opts)
}
