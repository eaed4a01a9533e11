// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders bankbot conversations as Markdown, JSON or HTML.
//
// # Usage
//
//	doc := export.FromConversation(id, conv)
//	path, err := export.ExportToFile(doc, export.NewMarkdownExporter(nil), nil)
//
// Or write straight to a stream:
//
//	err := export.Write(os.Stdout, doc, "json", nil)
package export
