package exporter

import (
	"context"
	"fmt"
	"strings"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/archive"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/attachment"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/model"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/modelurl"
)

// DefaultConcurrency is the number of pull requests exported at once.
const DefaultConcurrency = 4

// Options tune a run.
type Options struct {
	Concurrency int
	// TargetURL is the destination organization URL. When set, repository
	// and pull request URL mappings are written.
	TargetURL string
	// Username is embedded in clone URLs.
	Username string
	// UserMappings are written to urls.json as they are.
	UserMappings []model.URLMapping
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	return o
}

// Target selects a repository ("KEY/slug") or a whole project ("KEY").
type Target struct {
	ProjectKey string
	Slug       string
}

func (t Target) String() string {
	if t.Slug == "" {
		return t.ProjectKey
	}
	return t.ProjectKey + "/" + t.Slug
}

// ParseTarget parses "KEY" or "KEY/slug".
func ParseTarget(s string) (Target, error) {
	key, slug, _ := strings.Cut(strings.TrimSpace(s), "/")
	if key == "" || strings.Contains(slug, "/") {
		return Target{}, fmt.Errorf("invalid target %q: want PROJECT or PROJECT/repo", s)
	}
	return Target{ProjectKey: key, Slug: slug}, nil
}

// Summary describes a finished run.
type Summary struct {
	Repositories int
	Stats
	Archive archive.Result
}

// Runner drives an export of several targets into one archive.
type Runner struct {
	source   Source
	archive  Archive
	urls     *modelurl.Service
	log      Logger
	progress Progress
	opts     Options
	cache    *attachment.Cache
}

// NewRunner returns a Runner. The attachment cache lives as long as the
// Runner.
func NewRunner(source Source, archive Archive, urls *modelurl.Service, log Logger, progress Progress, opts Options) *Runner {
	return &Runner{
		source:   source,
		archive:  archive,
		urls:     urls,
		log:      log,
		progress: progress,
		opts:     opts.withDefaults(),
		cache:    attachment.NewCache(),
	}
}

// Run exports every repository selected by targets and finalizes the
// archive at output. A repository that fails for a non-fatal reason is
// logged and the run continues with the next one.
func (r *Runner) Run(ctx context.Context, targets []Target, output string) (Summary, error) {
	var sum Summary
	repos, err := r.resolve(ctx, targets)
	if err != nil {
		return sum, err
	}

	for _, m := range r.opts.UserMappings {
		if err := r.archive.AddURLMapping(m); err != nil {
			return sum, fatal(fmt.Errorf("adding user mapping %s: %w", m.SourceURL, err))
		}
	}

	for _, repo := range repos {
		r.progress.Info("Exporting %s", repo.FullName())
		e := NewRepositoryExporter(repo, r.source, r.archive, r.urls, r.cache, r.log, r.progress, r.opts)
		stats, err := e.Export(ctx)
		sum.add(stats)
		if err != nil {
			if IsFatal(err) || ctx.Err() != nil {
				return sum, err
			}
			r.log.LogException(err, "repository export failed", map[string]string{"repository": repo.FullName()})
			continue
		}
		sum.Repositories++
	}

	res, err := r.archive.Finalize(ctx, output)
	if err != nil {
		return sum, fatal(fmt.Errorf("finalizing archive: %w", err))
	}
	sum.Archive = res
	return sum, nil
}

func (r *Runner) resolve(ctx context.Context, targets []Target) ([]model.Repository, error) {
	var repos []model.Repository
	seen := make(map[string]bool)
	for _, t := range targets {
		var found []model.Repository
		if t.Slug == "" {
			all, err := r.source.Repositories(ctx, t.ProjectKey)
			if err != nil {
				return nil, err
			}
			found = all
		} else {
			repo, err := r.source.Repository(ctx, t.ProjectKey, t.Slug)
			if err != nil {
				return nil, err
			}
			found = []model.Repository{repo}
		}
		for _, repo := range found {
			if !seen[repo.FullName()] {
				seen[repo.FullName()] = true
				repos = append(repos, repo)
			}
		}
	}
	return repos, nil
}
