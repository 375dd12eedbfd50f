package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	humanize "github.com/dustin/go-humanize"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/lipgloss/tree"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/archive"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/model"
)

const maxNameWidth = 60

// StyledText applies a lipgloss style to text when colors are enabled.
func StyledText(text string, style lipgloss.Style) string {
	if ColorsEnabled() {
		return style.Render(text)
	}
	return text
}

// modelColor gives each record type a stable color in tables.
func modelColor(t model.ModelType) lipgloss.Color {
	switch t {
	case model.ModelUser:
		return lipgloss.Color("12")
	case model.ModelRepository:
		return lipgloss.Color("13")
	case model.ModelPullRequest:
		return lipgloss.Color("10")
	case model.ModelPullRequestReview, model.ModelPullRequestReviewComment:
		return lipgloss.Color("11")
	case model.ModelIssueComment, model.ModelIssueEvent:
		return lipgloss.Color("9")
	default:
		return lipgloss.Color("15")
	}
}

// truncate shortens a string to maxLen runes, appending an ellipsis if
// truncated.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// EmptyState renders a dim message with an optional hint. quiet suppresses
// the hint.
func EmptyState(message, hint string, quiet bool) string {
	if !ColorsEnabled() {
		if quiet || hint == "" {
			return message
		}
		return message + "\n" + hint
	}

	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	hintStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)

	result := dimStyle.Render(message)
	if !quiet && hint != "" {
		result += "\n" + hintStyle.Render(hint)
	}
	return result
}

// RenderEntries renders the files of an archive as a table with sizes and
// page record counts. Directories are left out.
func RenderEntries(entries []archive.Entry) string {
	files := make([]archive.Entry, 0, len(entries))
	for _, e := range entries {
		if !e.Dir {
			files = append(files, e)
		}
	}
	if len(files) == 0 {
		return EmptyState("The archive is empty.", "Run an export with: bbs-exporter export", false)
	}

	if !ColorsEnabled() {
		return renderPlainEntries(files)
	}

	rows := make([][]string, 0, len(files))
	for _, e := range files {
		rows = append(rows, entryToRow(e))
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("Name", "Type", "Records", "Size").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
			if row == table.HeaderRow {
				return s.Bold(true).Foreground(lipgloss.Color("15"))
			}
			if row < 0 || row >= len(files) {
				return s
			}
			switch col {
			case 1:
				return s.Foreground(modelColor(files[row].ModelType))
			case 2, 3:
				return s.Align(lipgloss.Right)
			default:
				return s
			}
		})

	return t.Render()
}

func entryToRow(e archive.Entry) []string {
	kind, records := "file", ""
	if e.ModelType != "" {
		kind = string(e.ModelType)
		records = strconv.Itoa(e.Records)
	}
	return []string{truncate(e.Name, maxNameWidth), kind, records, humanize.Bytes(uint64(e.Size))}
}

func renderPlainEntries(files []archive.Entry) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%-60s %-28s %8s %10s\n", "Name", "Type", "Records", "Size")
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 109))
	for _, e := range files {
		row := entryToRow(e)
		fmt.Fprintf(&b, "%-60s %-28s %8s %10s\n", row[0], row[1], row[2], row[3])
	}
	return b.String()
}

// RenderCounts summarizes record counts per type, sorted by type.
func RenderCounts(counts map[model.ModelType]int) string {
	types := make([]model.ModelType, 0, len(counts))
	total := 0
	for t, n := range counts {
		types = append(types, t)
		total += n
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	var b strings.Builder
	for _, t := range types {
		label := StyledText(fmt.Sprintf("%-28s", t), lipgloss.NewStyle().Foreground(modelColor(t)))
		fmt.Fprintf(&b, "%s %s\n", label, humanize.Comma(int64(counts[t])))
	}
	fmt.Fprintf(&b, "%-28s %s", "total", humanize.Comma(int64(total)))
	return b.String()
}

// RenderRepositoryTree lists the repository mirrors of an archive grouped
// by project key.
func RenderRepositoryTree(entries []archive.Entry) string {
	byProject := make(map[string][]string)
	for _, e := range entries {
		parts := strings.Split(e.Name, "/")
		if !e.Dir || len(parts) != 3 || parts[0] != "repositories" || !strings.HasSuffix(parts[2], ".git") {
			continue
		}
		byProject[parts[1]] = append(byProject[parts[1]], strings.TrimSuffix(parts[2], ".git"))
	}
	if len(byProject) == 0 {
		return EmptyState("No repositories in the archive.", "", true)
	}

	keys := make([]string, 0, len(byProject))
	for k := range byProject {
		keys = append(keys, k)
		sort.Strings(byProject[k])
	}
	sort.Strings(keys)

	if !ColorsEnabled() {
		var b strings.Builder
		for _, k := range keys {
			fmt.Fprintln(&b, k)
			for _, slug := range byProject[k] {
				fmt.Fprintf(&b, "  %s\n", slug)
			}
		}
		return b.String()
	}

	t := tree.New().Root("Repositories")
	keyStyle := lipgloss.NewStyle().Bold(true).Foreground(modelColor(model.ModelRepository))
	for _, k := range keys {
		node := tree.Root(keyStyle.Render(k))
		for _, slug := range byProject[k] {
			node.Child(slug)
		}
		t.Child(node)
	}
	return t.String()
}
