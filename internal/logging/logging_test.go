package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type fakeConsole struct {
	infos []string
	warns []string
}

func (c *fakeConsole) Info(format string, args ...any) {
	c.infos = append(c.infos, fmt.Sprintf(format, args...))
}

func (c *fakeConsole) Warn(format string, args ...any) {
	c.warns = append(c.warns, fmt.Sprintf(format, args...))
}

func TestEntryLine(t *testing.T) {
	e := Entry{ModelName: "user", ModelURL: "https://example.com/users/unit-test", Message: "message"}
	want := "user: https://example.com/users/unit-test message"
	if got := e.Line(); got != want {
		t.Fatalf("Line() = %q, want %q", got, want)
	}

	e.ParentModelName = "pull_request"
	e.ParentModelURL = "https://example.com/projects/P/repos/r/pull-requests/1"
	want += " (Tied to pull_request: https://example.com/projects/P/repos/r/pull-requests/1)"
	if got := e.Line(); got != want {
		t.Fatalf("Line() = %q, want %q", got, want)
	}
}

func TestLogWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, nil)
	l.Log(Entry{
		Severity:        SeverityWarn,
		ModelName:       "attachment",
		ModelURL:        "attachment:1/2",
		Message:         "was skipped",
		ParentModelName: "issue_comment",
		ParentModelURL:  "https://example.com/c/1",
	})

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal log line: %v (%q)", err, buf.String())
	}
	if got["level"] != "warn" {
		t.Fatalf("level = %v, want warn", got["level"])
	}
	if got["model_name"] != "attachment" {
		t.Fatalf("model_name = %v, want attachment", got["model_name"])
	}
	if got["parent_model_url"] != "https://example.com/c/1" {
		t.Fatalf("parent_model_url = %v", got["parent_model_url"])
	}
	if !strings.HasSuffix(got["message"].(string), "(Tied to issue_comment: https://example.com/c/1)") {
		t.Fatalf("message = %v", got["message"])
	}
}

func TestLogConsoleEcho(t *testing.T) {
	var buf bytes.Buffer
	c := &fakeConsole{}
	l := New(&buf, c)

	l.Log(Entry{Severity: SeverityInfo, ModelName: "user", ModelURL: "u", Message: "quiet"})
	if len(c.infos)+len(c.warns) != 0 {
		t.Fatalf("console got output for entry without Console")
	}

	l.Log(Entry{Severity: SeverityWarn, ModelName: "user", ModelURL: "u", Message: "loud", Console: true})
	if len(c.warns) != 1 || c.warns[0] != "user: u loud" {
		t.Fatalf("warns = %v, want [user: u loud]", c.warns)
	}

	l.Log(Entry{Severity: SeverityInfo, ModelName: "user", ModelURL: "u", Message: "info", Console: true})
	if len(c.infos) != 1 {
		t.Fatalf("infos = %v, want one entry", c.infos)
	}
}

func TestLogException(t *testing.T) {
	var buf bytes.Buffer
	c := &fakeConsole{}
	l := New(&buf, c)

	l.LogException(errors.New("boom"), "exporting pull request", map[string]string{
		"pull_request": "https://example.com/pr/1",
		"repository":   "https://example.com/repo",
	})

	if len(c.warns) != 1 || c.warns[0] != "exporting pull request: boom" {
		t.Fatalf("warns = %v", c.warns)
	}

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if got["error"] != "boom" {
		t.Fatalf("error = %v, want boom", got["error"])
	}
	if _, ok := got["stack"]; !ok {
		t.Fatalf("log line has no stack: %s", buf.String())
	}
	wantMeta := "pull_request:\nhttps://example.com/pr/1\n\nrepository:\nhttps://example.com/repo"
	if got["meta"] != wantMeta {
		t.Fatalf("meta = %q, want %q", got["meta"], wantMeta)
	}
}

func TestLogExceptionNil(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, nil)
	l.LogException(nil, "nothing", nil)
	if buf.Len() != 0 {
		t.Fatalf("wrote %q for nil error", buf.String())
	}
}
