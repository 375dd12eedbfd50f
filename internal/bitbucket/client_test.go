package bitbucket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/attachment"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/model"
)

var testRepo = model.Repository{Slug: "hugo-pages", Project: model.Project{Key: "MIGR8"}}

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, "admin", "secret", opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encoding response: %v", err)
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://bbs", "bbs.example.com"} {
		if _, err := New(raw, "", ""); err == nil {
			t.Errorf("New(%q) succeeded", raw)
		}
	}
}

func TestPagingFollowsNextPageStart(t *testing.T) {
	var starts []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/1.0/projects/MIGR8/repos/hugo-pages/pull-requests/1/commits" {
			t.Errorf("path = %s", r.URL.Path)
		}
		start := r.URL.Query().Get("start")
		starts = append(starts, start)
		if r.URL.Query().Get("limit") != "2" {
			t.Errorf("limit = %s, want 2", r.URL.Query().Get("limit"))
		}
		n, _ := strconv.Atoi(start)
		values := []model.Commit{{ID: "c" + strconv.Itoa(n)}, {ID: "c" + strconv.Itoa(n+1)}}
		if n >= 2 {
			writeJSON(t, w, map[string]any{"values": values[:1], "isLastPage": true})
			return
		}
		writeJSON(t, w, map[string]any{"values": values, "isLastPage": false, "nextPageStart": n + 2})
	}), WithPageLimit(2))

	commits, err := c.PullRequestCommits(context.Background(), testRepo, 1)
	if err != nil {
		t.Fatalf("PullRequestCommits: %v", err)
	}
	if len(commits) != 3 || commits[2].ID != "c2" {
		t.Fatalf("commits = %+v", commits)
	}
	if len(starts) != 2 || starts[0] != "0" || starts[1] != "2" {
		t.Fatalf("starts = %v", starts)
	}
}

func TestListPullRequestsQuery(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != "ALL" || q.Get("order") != "OLDEST" {
			t.Errorf("query = %v", q)
		}
		writeJSON(t, w, map[string]any{
			"values":     []map[string]any{{"id": 7, "title": "Fix", "state": "OPEN"}},
			"isLastPage": true,
		})
	}))
	prs, err := c.ListPullRequests(testRepo).Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(prs) != 1 || prs[0].ID != 7 || prs[0].State != model.PullRequestOpen {
		t.Fatalf("prs = %+v", prs)
	}
}

func TestEachPullRequestStopsOnError(t *testing.T) {
	calls := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(t, w, map[string]any{
			"values":        []map[string]any{{"id": 1}, {"id": 2}},
			"isLastPage":    false,
			"nextPageStart": 2 * calls,
		})
	}))

	stop := errors.New("stop")
	var seen []int
	err := c.EachPullRequest(context.Background(), testRepo, func(pr model.PullRequest) error {
		seen = append(seen, pr.ID)
		if len(seen) == 3 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Fatalf("err = %v, want stop", err)
	}
	if len(seen) != 3 || calls != 2 {
		t.Fatalf("seen = %v after %d pages", seen, calls)
	}
}

func TestAuthHeaders(t *testing.T) {
	var basicUser, basicPass, bearer string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		basicUser, basicPass, _ = r.BasicAuth()
		bearer = r.Header.Get("Authorization")
		writeJSON(t, w, map[string]any{"slug": "x", "project": map[string]any{"key": "MIGR8"}})
	})

	c := newTestClient(t, handler)
	if _, err := c.Repository(context.Background(), "MIGR8", "x"); err != nil {
		t.Fatalf("Repository: %v", err)
	}
	if basicUser != "admin" || basicPass != "secret" {
		t.Fatalf("basic auth = %q:%q", basicUser, basicPass)
	}

	srv := httptest.NewServer(handler)
	defer srv.Close()
	tokenOnly, err := New(srv.URL, "", "tok")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := tokenOnly.Repository(context.Background(), "MIGR8", "x"); err != nil {
		t.Fatalf("Repository: %v", err)
	}
	if bearer != "Bearer tok" {
		t.Fatalf("Authorization = %q", bearer)
	}
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(t, w, map[string]any{"errors": []map[string]any{{"message": "Repository hugo-pages does not exist."}}})
	}))
	_, err := c.Repository(context.Background(), "MIGR8", "hugo-pages")
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
	if got := err.Error(); !strings.Contains(got, "HTTP 404") || !strings.Contains(got, "does not exist") {
		t.Fatalf("err = %q", got)
	}
}

func TestDefaultBranchMissing(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	branch, err := c.DefaultBranch(context.Background(), testRepo)
	if err != nil || branch != "" {
		t.Fatalf("DefaultBranch = %q, %v, want empty", branch, err)
	}
}

func TestAttachmentEndpoints(t *testing.T) {
	p := attachment.Parse("attachment:6/328eabcebf%2Focto+cat.png", "").Path()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/projects/MIGR8/repos/hugo-pages/attachments/328eabcebf/octo%20cat.png" {
			t.Errorf("path = %s", r.URL.EscapedPath())
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png; charset=binary")
		if r.Method == http.MethodGet {
			w.Write([]byte("PNG"))
		}
	}))

	ct, err := c.AttachmentContentType(context.Background(), testRepo, p)
	if err != nil || ct != "image/png" {
		t.Fatalf("AttachmentContentType = %q, %v", ct, err)
	}
	data, err := c.Attachment(context.Background(), testRepo, p)
	if err != nil || string(data) != "PNG" {
		t.Fatalf("Attachment = %q, %v", data, err)
	}
}
