package preview

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// TextLimit is the number of runes of resolved text shown per line.
const TextLimit = 30

// Markers used at the start of each tree line.
const (
	markerBranch  = "▼"
	markerLeaf    = "·"
	markerMissing = "✗"
)

type palette struct {
	typ     lipgloss.Style
	id      lipgloss.Style
	text    lipgloss.Style
	missing lipgloss.Style
	plain   bool
}

func (p palette) render(s lipgloss.Style, text string) string {
	if p.plain {
		return text
	}
	return s.Render(text)
}

// newPalette styles output only when w is a terminal, so files and golden
// tests receive plain text.
func newPalette(w io.Writer) palette {
	f, ok := w.(*os.File)
	if !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return palette{plain: true}
	}
	r := lipgloss.NewRenderer(w)
	return palette{
		typ:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("#4f46e5")),
		id:      r.NewStyle().Foreground(lipgloss.Color("#94a3b8")),
		text:    r.NewStyle().Foreground(lipgloss.Color("#334155")),
		missing: r.NewStyle().Foreground(lipgloss.Color("#dc2626")),
	}
}

// WriteTree prints n as an indented outline, two spaces per level. A nil
// node prints "(no root component)".
func WriteTree(w io.Writer, n *Node) error {
	p := newPalette(w)
	if n == nil {
		_, err := fmt.Fprintln(w, "(no root component)")
		return err
	}
	var sb strings.Builder
	writeNode(&sb, p, n, 0)
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeNode(sb *strings.Builder, p palette, n *Node, depth int) {
	indent := strings.Repeat("  ", depth)
	marker := markerLeaf
	if len(n.Children) > 0 || len(n.Missing) > 0 {
		marker = markerBranch
	}

	sb.WriteString(indent)
	sb.WriteString(marker)
	sb.WriteString(" ")
	sb.WriteString(p.render(p.typ, n.Type))
	sb.WriteString(" ")
	sb.WriteString(p.render(p.id, "#"+n.ID))
	if n.Text != nil && *n.Text != "" {
		sb.WriteString(" ")
		sb.WriteString(p.render(p.text, fmt.Sprintf("%q", Truncate(*n.Text, TextLimit))))
	}
	if n.Label != nil && *n.Label != "" {
		sb.WriteString(" ")
		sb.WriteString(p.render(p.text, fmt.Sprintf("label=%q", *n.Label)))
	}
	if n.Event != "" {
		sb.WriteString(" ")
		sb.WriteString(p.render(p.id, "→ "+n.Event))
	}
	switch {
	case n.Cycle:
		sb.WriteString(" (cycle)")
	case n.Truncated:
		sb.WriteString(" (...)")
	}
	sb.WriteString("\n")

	for _, c := range n.Children {
		writeNode(sb, p, c, depth+1)
	}
	for _, id := range n.Missing {
		sb.WriteString(indent)
		sb.WriteString("  ")
		sb.WriteString(p.render(p.missing, markerMissing+" #"+id+" (missing)"))
		sb.WriteString("\n")
	}
}

// Truncate shortens s to limit runes, appending "..." when it cut.
func Truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
