// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newFAQCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "faq",
		Short: "Inspect the FAQ and the banking filter",
	}
	cmd.AddCommand(newFAQListCommand(a), newFAQLookupCommand(a))
	return cmd
}

func newFAQListCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List FAQ entries in file order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := a.faq().Entries()
			w := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(w, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(w, infoStyle.Render("No FAQ entries in "+a.cfg.FAQPath()))
				return nil
			}
			for i, e := range entries {
				fmt.Fprintf(w, "%2d. %s\n    %s\n", i+1, promptStyle.Render(e.Question), e.Answer)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

// newFAQLookupCommand shows how a question would be routed without calling
// a model.
func newFAQLookupCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup QUESTION...",
		Short: "Show whether a question is in domain and its FAQ answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			w := cmd.OutOrStdout()

			keyword, ok := a.classifier().Match(question)
			if !ok {
				fmt.Fprintln(w, warningStyle.Render("out of domain: no banking keyword"))
				return nil
			}
			fmt.Fprintf(w, "in domain (keyword %q)\n", keyword)

			answer, ok := a.faq().Resolve(question)
			if !ok {
				fmt.Fprintln(w, infoStyle.Render("no FAQ entry; the model would answer"))
				return nil
			}
			fmt.Fprint(w, renderMarkdown(w, answer, a.cfg.UI.Theme))
			return nil
		},
	}
}
