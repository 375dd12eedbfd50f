package exporter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/archive"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/attachment"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/git"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/model"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/modelurl"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/record"
)

// Stats counts pull request outcomes.
type Stats struct {
	Exported int64
	Skipped  int64
	Failed   int64
}

func (s *Stats) add(o Stats) {
	atomic.AddInt64(&s.Exported, o.Exported)
	atomic.AddInt64(&s.Skipped, o.Skipped)
	atomic.AddInt64(&s.Failed, o.Failed)
}

// RepositoryExporter exports one repository: its record, its mirror and
// all of its pull requests.
type RepositoryExporter struct {
	repo        model.Repository
	source      Source
	archive     Archive
	urls        *modelurl.Service
	attachments *attachment.Exporter
	log         Logger
	progress    Progress
	opts        Options
}

// NewRepositoryExporter returns an exporter for repo. cache is shared by
// every repository of the run.
func NewRepositoryExporter(repo model.Repository, source Source, archive Archive, urls *modelurl.Service, cache *attachment.Cache, log Logger, progress Progress, opts Options) *RepositoryExporter {
	return &RepositoryExporter{
		repo:        repo,
		source:      source,
		archive:     archive,
		urls:        urls,
		attachments: attachment.NewExporter(repo, source, archive, urls, cache, log),
		log:         log,
		progress:    progress,
		opts:        opts.withDefaults(),
	}
}

// Export mirrors the repository, archives its record and exports its pull
// requests concurrently. The record is only written once the mirror is in
// place. A failed pull request is logged and does not stop its siblings; a
// fatal error stops them all.
func (e *RepositoryExporter) Export(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := e.cloneRepository(ctx); err != nil {
		return stats, err
	}
	if err := e.exportRepository(ctx); err != nil {
		return stats, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	listErr := e.source.EachPullRequest(gctx, e.repo, func(pr model.PullRequest) error {
		if err := gctx.Err(); err != nil {
			return err
		}
		g.Go(func() error {
			s, err := e.exportPullRequest(gctx, pr)
			stats.add(s)
			return err
		})
		return nil
	})
	waitErr := g.Wait()
	if waitErr != nil {
		return stats, waitErr
	}
	if listErr != nil {
		return stats, listErr
	}
	return stats, nil
}

func (e *RepositoryExporter) exportPullRequest(ctx context.Context, pr model.PullRequest) (Stats, error) {
	pe := NewPullRequestExporter(e.repo, pr, e.source, e.archive, e.urls, e.attachments, e.log)
	outcome, err := pe.Export(ctx)
	switch {
	case err != nil && (IsFatal(err) || ctx.Err() != nil):
		return Stats{Failed: 1}, err
	case err != nil:
		e.log.LogException(err, "pull request export failed", map[string]string{
			"repository":   e.repo.FullName(),
			"pull_request": pe.URL(),
		})
		return Stats{Failed: 1}, nil
	case outcome == Skipped:
		return Stats{Skipped: 1}, nil
	}
	if err := e.addMapping(model.ModelPullRequest, pe.URL(), "pull/"+strconv.Itoa(pr.ID)); err != nil {
		return Stats{Exported: 1}, err
	}
	return Stats{Exported: 1}, nil
}

func (e *RepositoryExporter) exportRepository(ctx context.Context) error {
	branch, err := e.source.DefaultBranch(ctx, e.repo)
	if err != nil {
		return err
	}
	url := e.urls.Repository(e.repo)
	rec, err := record.NewRepository(url, e.urls.Project(e.repo.Project), archive.RepoGitURL(e.repo), branch, e.repo)
	if err != nil {
		return fmt.Errorf("building repository record for %s: %w", e.repo.FullName(), err)
	}
	if _, err := e.archive.Serialize(ctx, rec); err != nil {
		return fatal(err)
	}
	return e.addMapping(model.ModelRepository, url, "")
}

// addMapping maps sourceURL to the matching URL under the target
// organization, when one is configured.
func (e *RepositoryExporter) addMapping(modelType model.ModelType, sourceURL, suffix string) error {
	if e.opts.TargetURL == "" {
		return nil
	}
	target := strings.TrimRight(e.opts.TargetURL, "/") + "/" + e.repo.Slug
	if suffix != "" {
		target += "/" + suffix
	}
	err := e.archive.AddURLMapping(model.URLMapping{
		ModelName: string(modelType),
		SourceURL: sourceURL,
		TargetURL: target,
		Action:    model.ActionMap,
	})
	return fatal(err)
}

func (e *RepositoryExporter) cloneRepository(ctx context.Context) error {
	link := e.repo.CloneLink("http")
	if link == "" {
		return fmt.Errorf("repository %s has no http clone link", e.repo.FullName())
	}
	url, err := git.CloneURL(link, e.opts.Username)
	if err != nil {
		return err
	}
	e.progress.Step("Cloning %s", e.repo.FullName())
	if err := e.archive.CloneRepo(ctx, e.repo, url); err != nil {
		return fmt.Errorf("cloning %s: %w", e.repo.FullName(), err)
	}
	return nil
}
