package render

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/archive"
)

// ColorsEnabled returns whether terminal colors should be used. It returns
// false if NO_COLOR is set (any value) or TERM is "dumb".
func ColorsEnabled() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return true
}

// RenderMarkdown renders markdown text for terminal display.
// When colors are disabled, it returns the content unmodified.
func RenderMarkdown(content string) (string, error) {
	if content == "" {
		return "", nil
	}

	if !ColorsEnabled() {
		return content, nil
	}

	rendered, err := glamour.RenderWithEnvironmentConfig(content)
	if err != nil {
		return content, err
	}

	return strings.TrimSpace(rendered), nil
}

// RenderPullRequests renders each pull request's title, URL and markdown
// body, separated by blank lines.
func RenderPullRequests(prs []archive.PullRequestSummary) (string, error) {
	if len(prs) == 0 {
		return EmptyState("No pull requests in the archive.", "", true), nil
	}
	titleStyle := lipgloss.NewStyle().Bold(true)
	urlStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	var b strings.Builder
	for i, pr := range prs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s\n%s", StyledText(pr.Title, titleStyle), StyledText(pr.URL, urlStyle))
		body, err := RenderMarkdown(pr.Body)
		if err != nil {
			return "", fmt.Errorf("rendering body of %s: %w", pr.URL, err)
		}
		if body != "" {
			b.WriteString("\n\n" + body)
		}
	}
	return b.String(), nil
}
