// Package archive assembles exported records, attachments and repository
// mirrors into a migration archive.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/db"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/git"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/model"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/record"
)

// SchemaVersion is written to schema.json.
const SchemaVersion = "1.2.0"

// DefaultPageSize is the number of records per page file.
const DefaultPageSize = 1000

// Git is the version control service the builder mirrors repositories with.
type Git interface {
	Clone(ctx context.Context, url, target string) error
	UpdateRef(ctx context.Context, repoPath, name, sha string) error
}

// Builder accumulates an archive in a staging directory. Records are kept in
// the store until WriteFiles lays them out as pages. It is safe for
// concurrent use.
type Builder struct {
	// mu serializes page assignment; rollover depends on append order.
	mu       sync.Mutex
	db       *sql.DB
	dir      string
	pageSize int
	git      Git
}

// Option configures a Builder.
type Option func(*Builder)

// WithPageSize sets the page capacity. Values below 1 are ignored.
func WithPageSize(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.pageSize = n
		}
	}
}

// New returns a Builder staging into dir and storing records in conn.
func New(conn *sql.DB, dir string, g Git, opts ...Option) (*Builder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	b := &Builder{db: conn, dir: dir, pageSize: DefaultPageSize, git: g}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// PageSize returns the page capacity.
func (b *Builder) PageSize() int {
	return b.pageSize
}

// Append stores rec unless a record with the same model type and URL was
// appended before. It reports whether rec was new.
func (b *Builder) Append(ctx context.Context, rec model.ArchiveRecord) (bool, error) {
	if err := rec.Validate(); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	_, added, err := db.InsertRecord(b.db, rec, b.pageSize)
	if err != nil {
		return false, fmt.Errorf("appending %s %s: %w", rec.ModelType, rec.ModelURL, err)
	}
	return added, nil
}

// Serialize converts r and appends it.
func (b *Builder) Serialize(ctx context.Context, r record.Record) (bool, error) {
	rec, err := record.ToArchive(r)
	if err != nil {
		return false, err
	}
	return b.Append(ctx, rec)
}

// AddURLMapping records a source to target URL mapping for urls.json.
func (b *Builder) AddURLMapping(m model.URLMapping) error {
	if m.ModelName == "" || m.SourceURL == "" || m.TargetURL == "" {
		return fmt.Errorf("incomplete url mapping %+v", m)
	}
	if m.Action == "" {
		m.Action = model.ActionMap
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := db.InsertURLMapping(b.db, m); err != nil {
		return err
	}
	return nil
}

// SaveAttachment writes data to attachments/<filename>. Writing the same
// filename twice is harmless: stored names are content addresses of the
// reference, so the bytes are the same.
func (b *Builder) SaveAttachment(filename string, data []byte) error {
	if filename == "" || filename != filepath.Base(filename) {
		return fmt.Errorf("invalid attachment filename %q", filename)
	}
	dir := filepath.Join(b.dir, "attachments")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating attachments directory: %w", err)
	}
	return writeFileAtomic(filepath.Join(dir, filename), data)
}

// RepoPath is the staging path of a repository's mirror.
func (b *Builder) RepoPath(repo model.Repository) string {
	return filepath.Join(b.dir, "repositories", repo.Project.Key, repo.Slug+".git")
}

// RepoGitURL is the archive-internal locator of a repository's mirror.
func RepoGitURL(repo model.Repository) string {
	return "tarball://root/repositories/" + repo.Project.Key + "/" + repo.Slug + ".git"
}

// CloneRepo mirrors url into the repository's staging path.
func (b *Builder) CloneRepo(ctx context.Context, repo model.Repository, url string) error {
	return b.git.Clone(ctx, url, b.RepoPath(repo))
}

// CreateBranch recreates branch name at target in the repository's mirror.
// A target missing from the mirror is not an error: the commit belonged to
// a fork that no longer exists. It reports whether the branch now exists.
func (b *Builder) CreateBranch(ctx context.Context, repo model.Repository, name, target string) (bool, error) {
	err := b.git.UpdateRef(ctx, b.RepoPath(repo), name, target)
	if errors.Is(err, git.ErrObjectNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("setting mode on %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming %s: %w", path, err)
	}
	return nil
}
