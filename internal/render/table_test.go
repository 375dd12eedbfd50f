package render

import (
	"strings"
	"testing"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/archive"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/model"
)

var testEntries = []archive.Entry{
	{Name: "attachments", Dir: true},
	{Name: "attachments/0a1b.png", Size: 2048},
	{Name: "repositories", Dir: true},
	{Name: "repositories/MIGR8", Dir: true},
	{Name: "repositories/MIGR8/hugo-pages.git", Dir: true},
	{Name: "repositories/MIGR8/hugo-pages.git/HEAD", Size: 23},
	{Name: "repositories/MIGR8/docs.git", Dir: true},
	{Name: "repositories/OPS", Dir: true},
	{Name: "repositories/OPS/infra.git", Dir: true},
	{Name: "schema.json", Size: 23},
	{Name: "users_000001.json", Size: 512, ModelType: model.ModelUser, Records: 3},
}

func TestRenderEntriesPlain(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	got := RenderEntries(testEntries)
	for _, want := range []string{"attachments/0a1b.png", "2.0 kB", "users_000001.json", "user", "schema.json"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in output, got:\n%s", want, got)
		}
	}
	if strings.Contains(got, "repositories/OPS\n") {
		t.Errorf("directories should be omitted, got:\n%s", got)
	}
}

func TestRenderEntriesEmpty(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	got := RenderEntries([]archive.Entry{{Name: "attachments", Dir: true}})
	if !strings.HasPrefix(got, "The archive is empty.") {
		t.Fatalf("got %q", got)
	}
}

func TestEntryToRow(t *testing.T) {
	row := entryToRow(archive.Entry{Name: "pull_requests_000001.json", Size: 1000, ModelType: model.ModelPullRequest, Records: 7})
	want := []string{"pull_requests_000001.json", "pull_request", "7", "1.0 kB"}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("row[%d] = %q, want %q", i, row[i], want[i])
		}
	}

	row = entryToRow(archive.Entry{Name: "schema.json", Size: 23})
	if row[1] != "file" || row[2] != "" {
		t.Errorf("row = %v, want plain file with no record count", row)
	}
}

func TestRenderCounts(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	got := RenderCounts(map[model.ModelType]int{model.ModelUser: 1200, model.ModelPullRequest: 5})
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), got)
	}
	if !strings.HasPrefix(lines[0], "pull_request ") || !strings.HasSuffix(lines[0], " 5") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], " 1,200") {
		t.Errorf("line 1 = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "total") || !strings.HasSuffix(lines[2], " 1,205") {
		t.Errorf("line 2 = %q", lines[2])
	}
}

func TestRenderRepositoryTreePlain(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	got := RenderRepositoryTree(testEntries)
	want := "MIGR8\n  docs\n  hugo-pages\nOPS\n  infra\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"a-very-long-file-name.json", 10, "a-very-..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestRenderPullRequestsPlain(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	got, err := RenderPullRequests([]archive.PullRequestSummary{
		{URL: "https://bbs/pr/1", Title: "Fix header", Body: "**bold**"},
		{URL: "https://bbs/pr/2", Title: "No body"},
	})
	if err != nil {
		t.Fatalf("RenderPullRequests: %v", err)
	}
	want := "Fix header\nhttps://bbs/pr/1\n\n**bold**\n\nNo body\nhttps://bbs/pr/2"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderMarkdownPlainPassthrough(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	got, err := RenderMarkdown("# Title")
	if err != nil || got != "# Title" {
		t.Fatalf("RenderMarkdown = %q, %v", got, err)
	}
}
