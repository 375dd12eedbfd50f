package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/render"
)

// writeHumanSuccess prints message with a checkmark. Multi-line content
// (tables, rendered markdown) is printed as-is.
func writeHumanSuccess(w io.Writer, message string) {
	if message == "" {
		return
	}
	if strings.Contains(message, "\n") {
		fmt.Fprintln(w, message)
		return
	}
	if render.ColorsEnabled() {
		icon := lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Render("✔")
		fmt.Fprintf(w, "%s %s\n", icon, message)
	} else {
		fmt.Fprintln(w, message)
	}
}

func writeHumanError(w io.Writer, err error) {
	if render.ColorsEnabled() {
		icon := lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true).Render("✘")
		label := lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true).Render("Error:")
		fmt.Fprintf(w, "%s %s %s\n", icon, label, err)
	} else {
		fmt.Fprintf(w, "Error: %s\n", err)
	}
}

// writeHumanStep prints a step title such as "Cloning MIGR8/hugo-pages".
func writeHumanStep(w io.Writer, title string) {
	if render.ColorsEnabled() {
		arrow := lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true).Render("→")
		text := lipgloss.NewStyle().Bold(true).Render(title)
		fmt.Fprintf(w, "%s %s\n", arrow, text)
	} else {
		fmt.Fprintf(w, "-> %s\n", title)
	}
}

// formatFields renders key/value pairs one per line, keys sorted and
// padded to the longest key.
func formatFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	width := 0
	for k := range fields {
		keys = append(keys, k)
		width = max(width, len(k))
	}
	sort.Strings(keys)

	keyStyle := lipgloss.NewStyle()
	if render.ColorsEnabled() {
		keyStyle = keyStyle.Foreground(lipgloss.Color("8"))
	}
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s  %v", keyStyle.Render(fmt.Sprintf("%-*s", width, k)), fields[k])
	}
	return b.String()
}
