package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/model"
)

func TestInspect(t *testing.T) {
	b, _ := mustBuilder(t, WithPageSize(2))
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		if _, err := b.Append(ctx, userRecord(i)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	pr := model.ArchiveRecord{
		ModelType: model.ModelPullRequest,
		ModelURL:  "https://bbs/projects/MIGR8/repos/hugo-pages/pull-requests/1",
		Data:      json.RawMessage(`{"url":"https://bbs/projects/MIGR8/repos/hugo-pages/pull-requests/1","title":"Fix header","body":"**bold**"}`),
	}
	if _, err := b.Append(ctx, pr); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := b.SaveAttachment("0a1b.png", []byte("PNG")); err != nil {
		t.Fatalf("SaveAttachment: %v", err)
	}
	if err := b.WriteFiles(ctx); err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}

	var buf bytes.Buffer
	if err := b.CreateTar(ctx, &buf); err != nil {
		t.Fatalf("CreateTar: %v", err)
	}
	c, err := Inspect(&buf)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}

	if c.SchemaVer != SchemaVersion {
		t.Fatalf("SchemaVer = %q, want %q", c.SchemaVer, SchemaVersion)
	}
	wantCounts := map[model.ModelType]int{model.ModelUser: 3, model.ModelPullRequest: 1}
	if diff := cmp.Diff(wantCounts, c.Counts); diff != "" {
		t.Fatalf("Counts mismatch (-want +got):\n%s", diff)
	}
	wantPRs := []PullRequestSummary{{URL: pr.ModelURL, Title: "Fix header", Body: "**bold**"}}
	if diff := cmp.Diff(wantPRs, c.PullRequests); diff != "" {
		t.Fatalf("PullRequests mismatch (-want +got):\n%s", diff)
	}

	byName := make(map[string]Entry)
	for _, e := range c.Entries {
		byName[e.Name] = e
	}
	if e := byName["users_000002.json"]; e.Records != 1 || e.ModelType != model.ModelUser {
		t.Fatalf("users_000002.json = %+v", e)
	}
	if e := byName["attachments"]; !e.Dir {
		t.Fatalf("attachments = %+v, want directory", e)
	}
	if e := byName["attachments/0a1b.png"]; e.Size != 3 {
		t.Fatalf("attachment size = %d, want 3", e.Size)
	}
}

func TestInspectRejectsPlainTar(t *testing.T) {
	if _, err := Inspect(bytes.NewReader([]byte("not gzip"))); err == nil {
		t.Fatal("Inspect accepted non-gzip input")
	}
}
