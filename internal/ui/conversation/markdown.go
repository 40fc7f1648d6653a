package conversation

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// markdown renders assistant replies, rebuilding its glamour renderer
// when the wrap width changes.
type markdown struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
}

func newMarkdown(style string, width int) *markdown {
	md := &markdown{style: style}
	md.SetWidth(width)
	return md
}

// SetWidth rebuilds the renderer for a new wrap width.
func (md *markdown) SetWidth(width int) {
	if width < 20 {
		width = 20
	}
	if width == md.width && md.renderer != nil {
		return
	}
	md.width = width

	styleOpt := glamour.WithStandardStyle(md.style)
	if md.style == "auto" {
		styleOpt = glamour.WithAutoStyle()
	}

	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		md.renderer = nil
		return
	}
	md.renderer = r
}

// Render returns text as styled terminal output, or text unchanged when
// rendering fails.
func (md *markdown) Render(text string) string {
	if md.renderer == nil {
		return text
	}
	out, err := md.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}
