// Package exporter walks Bitbucket Server repositories and pull requests and
// feeds their records into an archive.
package exporter

import (
	"context"
	"errors"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/archive"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/attachment"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/logging"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/model"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/record"
)

// Source is the Bitbucket Server data an export reads.
// *bitbucket.Client satisfies it.
type Source interface {
	attachment.Source
	Repository(ctx context.Context, projectKey, slug string) (model.Repository, error)
	Repositories(ctx context.Context, projectKey string) ([]model.Repository, error)
	DefaultBranch(ctx context.Context, repo model.Repository) (string, error)
	EachPullRequest(ctx context.Context, repo model.Repository, fn func(model.PullRequest) error) error
	PullRequestCommits(ctx context.Context, repo model.Repository, id int) ([]model.Commit, error)
	PullRequestActivities(ctx context.Context, repo model.Repository, id int) ([]model.Activity, error)
}

// Archive receives records, attachments and repository mirrors.
// *archive.Builder satisfies it.
type Archive interface {
	attachment.Store
	Serialize(ctx context.Context, r record.Record) (bool, error)
	AddURLMapping(m model.URLMapping) error
	CloneRepo(ctx context.Context, repo model.Repository, url string) error
	CreateBranch(ctx context.Context, repo model.Repository, name, target string) (bool, error)
	Finalize(ctx context.Context, path string) (archive.Result, error)
}

// Logger records per-model outcomes. *logging.Logger satisfies it.
type Logger interface {
	Log(e logging.Entry)
	LogException(err error, message string, meta map[string]string)
}

// Progress titles long-running steps. *output.Writer satisfies it.
type Progress interface {
	Step(format string, args ...any)
	Info(format string, args ...any)
}

// Outcome is the terminal state of one pull request export.
type Outcome int

const (
	Exported Outcome = iota
	Skipped
)

func (o Outcome) String() string {
	if o == Skipped {
		return "skipped"
	}
	return "exported"
}

// fatalError marks a failure that must abort the whole run: the archive
// could not be written or a branch could not be recreated for a reason
// other than a missing commit.
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

func fatal(err error) error {
	if err == nil || IsFatal(err) {
		return err
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err aborts the run rather than a single pull
// request or repository.
func IsFatal(err error) bool {
	var f *fatalError
	return errors.As(err, &f)
}
