// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/jeranaias/bankbot/internal/storage"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

var (
	codeBlockRegex  = regexp.MustCompile("```([a-zA-Z0-9_+-]*)\n([\\s\\S]*?)```")
	inlineCodeRegex = regexp.MustCompile("`([^`]+)`")
)

// HTMLExporter exports conversations to a standalone HTML page.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

// Export converts a conversation to HTML format.
func (e *HTMLExporter) Export(doc *Document) ([]byte, error) {
	if err := doc.validate(); err != nil {
		return nil, err
	}

	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString(fmt.Sprintf("    <title>%s</title>\n", html.EscapeString(doc.Title)))
	sb.WriteString("    <meta name=\"generator\" content=\"bankbot\">\n")
	sb.WriteString(css)
	sb.WriteString("</head>\n")
	sb.WriteString(fmt.Sprintf("<body class=\"%s-theme\">\n", theme))
	sb.WriteString("    <div class=\"container\">\n")

	sb.WriteString("        <header class=\"header\">\n")
	sb.WriteString(fmt.Sprintf("            <h1>%s</h1>\n", html.EscapeString(doc.Title)))
	if e.options.IncludeMetadata {
		sb.WriteString("            <div class=\"metadata\">\n")
		sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>ID:</strong> %s</span>\n", html.EscapeString(doc.ID)))
		sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Messages:</strong> %d</span>\n", len(doc.Messages)))
		sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Exported:</strong> %s</span>\n", formatTimestamp(doc.ExportedAt)))
		sb.WriteString("            </div>\n")
	}
	sb.WriteString("        </header>\n")

	sb.WriteString("        <main class=\"conversation\">\n")
	for _, msg := range doc.Messages {
		sb.WriteString(e.renderMessage(msg))
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	sb.WriteString(fmt.Sprintf("            <p>Exported from <strong>BankBot</strong> on %s</p>\n",
		doc.ExportedAt.Format("January 2, 2006 at 3:04 PM")))
	sb.WriteString("        </footer>\n")
	sb.WriteString("    </div>\n")
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// RENDERING
// =============================================================================

func (e *HTMLExporter) renderMessage(msg storage.Message) string {
	var sb strings.Builder

	roleClass := strings.ToLower(string(msg.Role))
	sb.WriteString(fmt.Sprintf("            <div class=\"message %s-message\">\n", html.EscapeString(roleClass)))
	sb.WriteString(fmt.Sprintf("                <div class=\"role-label\">%s</div>\n", html.EscapeString(roleLabel(msg.Role))))
	sb.WriteString("                <div class=\"message-content\">\n")
	sb.WriteString(formatContent(msg.Text))
	sb.WriteString("\n                </div>\n")
	sb.WriteString("            </div>\n")
	return sb.String()
}

// formatContent escapes content, then turns fenced and inline code into
// markup and wraps the remaining lines in paragraphs.
func formatContent(content string) string {
	content = html.EscapeString(content)

	content = codeBlockRegex.ReplaceAllStringFunc(content, func(match string) string {
		parts := codeBlockRegex.FindStringSubmatch(match)
		if len(parts) != 3 {
			return match
		}
		lang, code := parts[1], parts[2]

		langLabel := ""
		if lang != "" {
			// SECURITY: the language name is user text.
			langLabel = fmt.Sprintf("<div class=\"code-lang\">%s</div>", html.EscapeString(lang))
		}
		return fmt.Sprintf("<div class=\"code-block\">%s<pre><code class=\"language-%s\">%s</code></pre></div>",
			langLabel, html.EscapeString(lang), strings.TrimSpace(code))
	})

	content = inlineCodeRegex.ReplaceAllString(content, "<code class=\"inline-code\">$1</code>")

	var formatted []string
	inParagraph := false
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)

		if strings.Contains(line, "<div class=\"code-block\">") ||
			strings.Contains(line, "</div>") ||
			strings.Contains(line, "<pre>") ||
			strings.Contains(line, "</pre>") {
			formatted = append(formatted, raw)
			inParagraph = false
			continue
		}

		switch {
		case line == "":
			if inParagraph {
				formatted = append(formatted, "</p>")
				inParagraph = false
			}
		case !inParagraph && !strings.HasPrefix(line, "<"):
			formatted = append(formatted, "<p>"+line)
			inParagraph = true
		default:
			formatted = append(formatted, line)
		}
	}
	if inParagraph {
		formatted = append(formatted, "</p>")
	}

	return strings.Join(formatted, "\n")
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

const css = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        .dark-theme {
            --bg-primary: #1a1b26; --bg-secondary: #24283b; --bg-tertiary: #414868;
            --text-primary: #c0caf5; --text-muted: #565f89;
            --user-bg: #1f2335; --assistant-bg: #24283b; --accent: #7aa2f7;
        }
        .light-theme {
            --bg-primary: #ffffff; --bg-secondary: #f7f8fa; --bg-tertiary: #e1e4e8;
            --text-primary: #24292e; --text-muted: #6a737d;
            --user-bg: #f6f8fa; --assistant-bg: #ffffff; --accent: #0366d6;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
            line-height: 1.6; color: var(--text-primary); background: var(--bg-primary); padding: 20px;
        }
        .container { max-width: 900px; margin: 0 auto; background: var(--bg-secondary); border-radius: 12px; overflow: hidden; }
        .header { padding: 32px; background: var(--bg-tertiary); }
        .header h1 { font-size: 28px; margin-bottom: 12px; }
        .metadata { display: flex; flex-wrap: wrap; gap: 16px; font-size: 14px; color: var(--text-muted); }
        .conversation { padding: 24px; }
        .message { padding: 16px 20px; margin-bottom: 16px; border-radius: 8px; }
        .user-message { background: var(--user-bg); border-left: 4px solid var(--accent); }
        .assistant-message { background: var(--assistant-bg); }
        .role-label { font-weight: 600; font-size: 13px; color: var(--text-muted); margin-bottom: 8px; }
        .message-content p { margin-bottom: 8px; }
        .code-block { margin: 12px 0; background: var(--bg-primary); border-radius: 6px; overflow-x: auto; }
        .code-lang { font-size: 12px; padding: 4px 12px; color: var(--text-muted); }
        pre { padding: 12px; font-family: "SF Mono", Monaco, monospace; font-size: 14px; }
        .inline-code { font-family: "SF Mono", Monaco, monospace; padding: 1px 4px; background: var(--bg-primary); border-radius: 3px; }
        .footer { padding: 16px; text-align: center; font-size: 13px; color: var(--text-muted); }
    </style>
`

