package chat

import (
	"bytes"
	"html"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	markdown = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
	)
	sanitizer = bluemonday.UGCPolicy()
)

// RenderHTML renders a message for display. Assistant messages go through
// markdown and are sanitized so embedded scripts or raw HTML in a model reply
// can never execute; user-authored text is shown literally.
func RenderHTML(m Message) string {
	if m.Role == RoleUser {
		return "<p>" + html.EscapeString(m.Text) + "</p>"
	}

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(m.Text), &buf); err != nil {
		return "<p>" + html.EscapeString(m.Text) + "</p>"
	}
	return sanitizer.Sanitize(buf.String())
}
