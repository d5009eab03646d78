// Package format renders reply text for HTTP clients.
package format

import (
	"strings"

	"github.com/gomarkdown/markdown"
)

// PreprocessReplyText normalizes LLM output for display.
func PreprocessReplyText(text string) string {
	if text == "" {
		return text
	}

	// Replace curly quotes (helps readability)
	text = strings.NewReplacer(
		"“", "\"",
		"”", "\"",
		"‘", "'",
		"’", "'",
	).Replace(text)

	return text
}

// ToHTML renders a markdown reply as HTML.
func ToHTML(text string) string {
	text = PreprocessReplyText(text)
	return string(markdown.ToHTML([]byte(text), nil, nil))
}
