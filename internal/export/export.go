// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/jeranaias/bankbot/internal/storage"
)

// =============================================================================
// DOCUMENT
// =============================================================================

// Document is one conversation prepared for export.
type Document struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Messages   []storage.Message `json:"messages"`
	ExportedAt time.Time         `json:"exported_at"`
}

// FromConversation builds a Document stamped with the current time.
func FromConversation(id string, conv storage.Conversation) *Document {
	msgs := make([]storage.Message, len(conv.Messages))
	copy(msgs, conv.Messages)
	return &Document{
		ID:         id,
		Title:      conv.Title,
		Messages:   msgs,
		ExportedAt: time.Now(),
	}
}

func (d *Document) validate() error {
	if d == nil {
		return errors.New("conversation is nil")
	}
	if len(d.Messages) == 0 {
		return errors.New("conversation has no messages")
	}
	return nil
}

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter defines the interface for conversation exporters.
type Exporter interface {
	// Export converts a conversation to the target format and returns the content.
	Export(doc *Document) ([]byte, error)

	// FileExtension returns the appropriate file extension (e.g., ".md", ".html").
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// Options configures export behavior.
type Options struct {
	// OutputDir is where ExportToFile writes. Default: current directory.
	OutputDir string

	// IncludeMetadata adds a metadata header (id, message count, export time).
	IncludeMetadata bool

	// Theme for HTML export ("light" or "dark").
	Theme string
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:       ".",
		IncludeMetadata: true,
		Theme:           "dark",
	}
}

// Formats lists the names accepted by Lookup.
var Formats = []string{"markdown", "json", "html"}

// Lookup returns the exporter for a format name ("markdown"/"md", "json",
// "html"/"htm").
func Lookup(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(format) {
	case "markdown", "md":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	case "html", "htm":
		return NewHTMLExporter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s (supported: %s)", format, strings.Join(Formats, ", "))
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// Write renders doc in the named format to w.
func Write(w io.Writer, doc *Document, format string, opts *Options) error {
	exporter, err := Lookup(format, opts)
	if err != nil {
		return err
	}
	content, err := exporter.Export(doc)
	if err != nil {
		return errors.Wrap(err, "export failed")
	}
	_, err = w.Write(content)
	return err
}

// ExportToFile writes doc to OutputDir under a name derived from its title and
// export time, and returns the path.
func ExportToFile(doc *Document, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	content, err := exporter.Export(doc)
	if err != nil {
		return "", errors.Wrap(err, "export failed")
	}

	filename := fmt.Sprintf("conversation_%s_%s%s",
		sanitizeFilename(doc.Title),
		doc.ExportedAt.Format("20060102_150405"),
		exporter.FileExtension(),
	)

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, "create output directory")
	}

	outputPath := filepath.Join(dir, filename)
	if err := os.WriteFile(outputPath, content, 0644); err != nil {
		return "", errors.Wrap(err, "write file")
	}
	return outputPath, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	const maxLen = 50
	if runes := []rune(s); len(runes) > maxLen {
		s = string(runes[:maxLen])
	}

	// Windows and Unix
	replacer := map[rune]rune{
		'/': '-', '\\': '-', ':': '-', '*': '-', '?': '-',
		'"': '-', '<': '-', '>': '-', '|': '-',
		' ': '_', '\t': '_', '\n': '_', '\r': '_',
	}

	result := make([]rune, 0, len(s))
	for _, r := range s {
		if replacement, found := replacer[r]; found {
			result = append(result, replacement)
		} else if r < 32 || r == 127 {
			result = append(result, '-')
		} else {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "conversation"
	}
	return string(result)
}

// roleLabel returns the display label for a message role.
func roleLabel(role storage.Role) string {
	switch role {
	case storage.RoleUser:
		return "[User]"
	case storage.RoleAssistant:
		return "[BankBot]"
	case "":
		return "Unknown"
	default:
		runes := []rune(string(role))
		return strings.ToUpper(string(runes[0])) + string(runes[1:])
	}
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
