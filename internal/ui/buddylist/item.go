package buddylist

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mistral-chat/internal/model"
	"github.com/nhle/mistral-chat/internal/theme"
)

// BuddyItem wraps a model.Buddy so it can be used in a bubbles/list.
type BuddyItem struct {
	Buddy model.Buddy

	// Pending is the number of replies still expected from this buddy.
	Pending int
}

// FilterValue returns the string used for filtering.
func (i BuddyItem) FilterValue() string { return i.Buddy.DisplayName() + " " + i.Buddy.Name }

func (i BuddyItem) Title() string { return i.Buddy.DisplayName() }

func (i BuddyItem) Description() string {
	return i.Buddy.StatusID + " | " + relativeTime(i.Buddy.UpdatedAt)
}

// ItemDelegate implements list.ItemDelegate for rendering buddy rows.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single buddy row: presence glyph, name, status and icon.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	bi, ok := item.(BuddyItem)
	if !ok {
		return
	}
	b := bi.Buddy

	presence := theme.PresenceStyle(b.StatusID)
	glyph := presence.Render(theme.PresenceGlyph(b.StatusID))
	status := presence.Render(b.StatusID)

	icon := ""
	if b.Icon != "" {
		icon = lipgloss.NewStyle().Foreground(theme.ColorGray).Render(" [" + b.Icon + "]")
	}

	pending := ""
	if bi.Pending > 0 {
		pending = theme.NoticeStyle.Render(fmt.Sprintf(" typing (%d)", bi.Pending))
	}

	line := fmt.Sprintf("%s %s  %s%s%s", glyph, b.DisplayName(), status, icon, pending)

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
