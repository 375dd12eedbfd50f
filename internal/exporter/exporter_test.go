package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/archive"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/attachment"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/logging"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/model"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/modelurl"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/record"
)

const base = "https://bbs.example.com"

var (
	octo  = model.User{Slug: "octo", DisplayName: "Octo Cat"}
	hubot = model.User{Slug: "hubot", DisplayName: "Hubot"}

	testRepo = func() model.Repository {
		r := model.Repository{ID: 1, Slug: "hugo-pages", Project: model.Project{Key: "MIGR8"}}
		r.Links.Clone = []model.Link{{Name: "http", Href: base + "/scm/migr8/hugo-pages.git"}}
		return r
	}()
)

type fakeSource struct {
	mu           sync.Mutex
	repos        []model.Repository
	prs          map[string][]model.PullRequest
	commits      map[int][]model.Commit
	activities   map[int][]model.Activity
	commitErr    map[int]error
	contentTypes map[string]string
}

func (f *fakeSource) AttachmentContentType(_ context.Context, _ model.Repository, p attachment.Path) (string, error) {
	if ct, ok := f.contentTypes[p.String()]; ok {
		return ct, nil
	}
	return "", errors.New("not found")
}

func (f *fakeSource) Attachment(_ context.Context, _ model.Repository, p attachment.Path) ([]byte, error) {
	return []byte("bytes of " + p.String()), nil
}

func (f *fakeSource) Repository(_ context.Context, key, slug string) (model.Repository, error) {
	for _, r := range f.repos {
		if r.Project.Key == key && r.Slug == slug {
			return r, nil
		}
	}
	return model.Repository{}, fmt.Errorf("repository %s/%s not found", key, slug)
}

func (f *fakeSource) Repositories(_ context.Context, key string) ([]model.Repository, error) {
	var out []model.Repository
	for _, r := range f.repos {
		if r.Project.Key == key {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSource) DefaultBranch(context.Context, model.Repository) (string, error) {
	return "main", nil
}

func (f *fakeSource) EachPullRequest(_ context.Context, repo model.Repository, fn func(model.PullRequest) error) error {
	for _, pr := range f.prs[repo.FullName()] {
		if err := fn(pr); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeSource) PullRequestCommits(_ context.Context, _ model.Repository, id int) ([]model.Commit, error) {
	if err := f.commitErr[id]; err != nil {
		return nil, err
	}
	return f.commits[id], nil
}

func (f *fakeSource) PullRequestActivities(_ context.Context, _ model.Repository, id int) ([]model.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Activity, len(f.activities[id]))
	copy(out, f.activities[id])
	return out, nil
}

type branch struct{ name, target string }

type fakeArchive struct {
	mu           sync.Mutex
	records      map[model.ModelType][]map[string]any
	urls         map[string]bool
	mappings     []model.URLMapping
	attachments  map[string][]byte
	clones       []string
	branches     []branch
	branchErr    error
	serializeErr error
	finalizeErr  error
	finalized    string
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{
		records:     make(map[model.ModelType][]map[string]any),
		urls:        make(map[string]bool),
		attachments: make(map[string][]byte),
	}
}

func (a *fakeArchive) Serialize(_ context.Context, r record.Record) (bool, error) {
	if a.serializeErr != nil {
		return false, a.serializeErr
	}
	rec, err := record.ToArchive(r)
	if err != nil {
		return false, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	key := string(rec.ModelType) + " " + rec.ModelURL
	if a.urls[key] {
		return false, nil
	}
	a.urls[key] = true
	var data map[string]any
	if err := json.Unmarshal(rec.Data, &data); err != nil {
		return false, err
	}
	a.records[rec.ModelType] = append(a.records[rec.ModelType], data)
	return true, nil
}

func (a *fakeArchive) AddURLMapping(m model.URLMapping) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mappings = append(a.mappings, m)
	return nil
}

func (a *fakeArchive) SaveAttachment(filename string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attachments[filename] = data
	return nil
}

func (a *fakeArchive) CloneRepo(_ context.Context, repo model.Repository, url string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clones = append(a.clones, url)
	return nil
}

func (a *fakeArchive) CreateBranch(_ context.Context, _ model.Repository, name, target string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.branchErr != nil {
		return false, a.branchErr
	}
	a.branches = append(a.branches, branch{name, target})
	return true, nil
}

func (a *fakeArchive) Finalize(_ context.Context, path string) (archive.Result, error) {
	if a.finalizeErr != nil {
		return archive.Result{}, a.finalizeErr
	}
	a.finalized = path
	return archive.Result{Path: path, Size: 42, Checksum: "abc"}, nil
}

func (a *fakeArchive) total() int {
	n := 0
	for _, rs := range a.records {
		n += len(rs)
	}
	return n
}

func (a *fakeArchive) byURL(t model.ModelType, url string) map[string]any {
	for _, r := range a.records[t] {
		if r["url"] == url {
			return r
		}
	}
	return nil
}

type exception struct {
	err     error
	message string
	meta    map[string]string
}

type fakeLogger struct {
	mu         sync.Mutex
	entries    []logging.Entry
	exceptions []exception
}

func (l *fakeLogger) Log(e logging.Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

func (l *fakeLogger) LogException(err error, message string, meta map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exceptions = append(l.exceptions, exception{err, message, meta})
}

type fakeProgress struct {
	mu    sync.Mutex
	steps []string
}

func (p *fakeProgress) Step(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, fmt.Sprintf(format, args...))
}

func (p *fakeProgress) Info(string, ...any) {}

func mustURLs(t *testing.T) *modelurl.Service {
	t.Helper()
	urls, err := modelurl.New(base)
	if err != nil {
		t.Fatalf("modelurl.New: %v", err)
	}
	return urls
}

func newPRExporter(t *testing.T, src *fakeSource, arc *fakeArchive, log *fakeLogger, pr model.PullRequest) *PullRequestExporter {
	t.Helper()
	urls := mustURLs(t)
	atts := attachment.NewExporter(testRepo, src, arc, urls, attachment.NewCache(), log)
	return NewPullRequestExporter(testRepo, pr, src, arc, urls, atts, log)
}

func basePR(id int) model.PullRequest {
	return model.PullRequest{
		ID:          id,
		Title:       "Fix header",
		Description: "Looks like ![shot](attachment:1/2 \"tip\")",
		State:       model.PullRequestOpen,
		CreatedDate: 1000,
		FromRef:     model.Ref{DisplayID: "feature", LatestCommit: "bbb", Repository: model.Repository{ID: 1}},
		ToRef:       model.Ref{DisplayID: "main", LatestCommit: "aaa", Repository: model.Repository{ID: 1}},
		Author:      model.Participant{User: octo},
	}
}

func commits() []model.Commit {
	return []model.Commit{
		{ID: "c3", AuthorTimestamp: 3000, CommitterTimestamp: 9000},
		{ID: "c2", AuthorTimestamp: 2000, CommitterTimestamp: 9000},
		{ID: "c1", AuthorTimestamp: 1000, CommitterTimestamp: 9000},
	}
}

func comment(id int, author *model.User, text string, created int64, replies ...model.Comment) *model.Comment {
	return &model.Comment{ID: id, Text: text, Author: author, CreatedDate: created, Comments: replies}
}
