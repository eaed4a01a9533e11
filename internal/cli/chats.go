// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/bankbot/internal/export"
	"github.com/jeranaias/bankbot/internal/storage"
)

// newChatsCommand manages stored conversations. Conversation arguments take a
// list number, a full id or a unique id prefix.
func newChatsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "chats",
		Aliases: []string{"conversations"},
		Short:   "Manage saved conversations",
	}
	cmd.AddCommand(
		newChatsListCommand(a),
		newChatsShowCommand(a),
		newChatsNewCommand(a),
		newChatsRenameCommand(a),
		newChatsDeleteCommand(a),
		newChatsSelectCommand(a),
		newChatsExportCommand(a),
	)
	return cmd
}

func newChatsListCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List conversations; * marks the active one",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := a.openManager()
			if err != nil {
				return err
			}
			chats := ctrl.Conversations()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), chats)
			}
			printSummaries(cmd.OutOrStdout(), chats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newChatsShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [N|ID]",
		Short: "Print a conversation (default: active)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := a.openManager()
			if err != nil {
				return err
			}
			id := ctrl.ActiveID()
			if len(args) == 1 {
				if id, err = resolveConversation(ctrl, args[0]); err != nil {
					return err
				}
			}
			conv, err := ctrl.Transcript(id)
			if err != nil {
				return err
			}
			printTranscript(cmd.OutOrStdout(), conv, a.cfg.UI.Theme)
			return nil
		},
	}
}

func newChatsNewCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "new [TITLE]",
		Short: "Start a new conversation and make it active",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := a.openManager()
			if err != nil {
				return err
			}
			id, err := ctrl.NewChat()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				if err := ctrl.RenameChat(id, args[0]); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func newChatsRenameCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename N|ID TITLE",
		Short: "Rename a conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := a.openManager()
			if err != nil {
				return err
			}
			id, err := resolveConversation(ctrl, args[0])
			if err != nil {
				return err
			}
			return ctrl.RenameChat(id, args[1])
		},
	}
}

func newChatsDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete N|ID",
		Aliases: []string{"rm"},
		Short:   "Delete a conversation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := a.openManager()
			if err != nil {
				return err
			}
			id, err := resolveConversation(ctrl, args[0])
			if err != nil {
				return err
			}
			active, err := ctrl.DeleteChat(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s, active %s\n", id, active)
			return nil
		},
	}
}

func newChatsSelectCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "select N|ID",
		Short: "Make a conversation active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := a.openManager()
			if err != nil {
				return err
			}
			id, err := resolveConversation(ctrl, args[0])
			if err != nil {
				return err
			}
			return ctrl.SelectChat(id)
		},
	}
}

func newChatsExportCommand(a *app) *cobra.Command {
	var (
		format string
		output string
		stdout bool
	)
	cmd := &cobra.Command{
		Use:   "export [N|ID]",
		Short: "Export a conversation to markdown, JSON or HTML (default: active)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := a.openManager()
			if err != nil {
				return err
			}
			id := ctrl.ActiveID()
			if len(args) == 1 {
				if id, err = resolveConversation(ctrl, args[0]); err != nil {
					return err
				}
			}
			if stdout {
				conv, err := ctrl.Transcript(id)
				if err != nil {
					return err
				}
				return export.Write(cmd.OutOrStdout(), export.FromConversation(id, conv), format, export.DefaultOptions())
			}
			path, err := exportConversation(ctrl, id, format, output, a.cfg.UI.Theme)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "export format: "+strings.Join(export.Formats, ", "))
	cmd.Flags().StringVarP(&output, "output", "o", ".", "output directory")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "write to stdout instead of a file")
	return cmd
}

// =============================================================================
// HELPERS
// =============================================================================

func printTranscript(w io.Writer, conv storage.Conversation, theme string) {
	fmt.Fprintln(w, botStyle.Render(conv.Title))
	fmt.Fprintln(w)
	for _, msg := range conv.Messages {
		if msg.Role == storage.RoleUser {
			fmt.Fprintln(w, promptStyle.Render("you> ")+msg.Text)
			continue
		}
		fmt.Fprint(w, botStyle.Render("bankbot> ")+renderMarkdown(w, msg.Text, theme))
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
