package modelurl

import (
	"testing"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/model"
)

func TestNewValidates(t *testing.T) {
	for _, bad := range []string{"", "bbs.example.com", "://nope"} {
		if _, err := New(bad); err == nil {
			t.Errorf("New(%q) succeeded, want error", bad)
		}
	}
	s, err := New(" https://bbs.example.com/context/ ")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got, want := s.Base(), "https://bbs.example.com/context"; got != want {
		t.Fatalf("Base() = %q, want %q", got, want)
	}
}

func TestURLs(t *testing.T) {
	s, err := New("https://bbs.example.com")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	repo := model.Repository{Slug: "hugo-pages", Project: model.Project{Key: "MIGR8"}}
	repoURL := "https://bbs.example.com/projects/MIGR8/repos/hugo-pages"
	prURL := repoURL + "/pull-requests/7"

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"user", s.User(model.User{Slug: "unit-test"}), "https://bbs.example.com/users/unit-test"},
		{"project", s.Project(repo.Project), "https://bbs.example.com/projects/MIGR8"},
		{"repository", s.Repository(repo), repoURL},
		{"pull request", s.PullRequest(repo, 7), prURL},
		{"comment", s.Comment(repo, 7, 12), prURL + "/overview?commentId=12"},
		{"review", s.Review(repo, 7, 40), prURL + "/overview?reviewId=40"},
		{"event", s.Event(repo, 7, 41, "closed"), prURL + "/overview?eventId=41#closed"},
		{"commit", s.Commit(repo, "abc123"), repoURL + "/commits/abc123"},
		{"attachment", s.Attachment(repo, []string{"89", "1113"}), repoURL + "/attachments/89/1113"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}
