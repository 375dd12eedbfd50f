package exporter

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/attachment"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/logging"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/model"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/modelurl"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/record"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/timeline"
)

const skippedNoDiff = "was skipped because the PR has no diff"

// PullRequestExporter exports one pull request and everything attached to
// it. A fresh exporter is used per pull request.
type PullRequestExporter struct {
	repo        model.Repository
	pr          model.PullRequest
	source      Source
	archive     Archive
	urls        *modelurl.Service
	attachments *attachment.Exporter
	log         Logger

	url      string
	index    *timeline.Index
	mergeSHA string
}

// NewPullRequestExporter returns an exporter for pr of repo.
func NewPullRequestExporter(repo model.Repository, pr model.PullRequest, source Source, archive Archive, urls *modelurl.Service, attachments *attachment.Exporter, log Logger) *PullRequestExporter {
	return &PullRequestExporter{
		repo:        repo,
		pr:          pr,
		source:      source,
		archive:     archive,
		urls:        urls,
		attachments: attachments,
		log:         log,
		url:         urls.PullRequest(repo, pr.ID),
	}
}

// URL is the source URL of the pull request.
func (e *PullRequestExporter) URL() string {
	return e.url
}

// Export exports the pull request. A pull request without commits is
// skipped with a single warning and nothing else. Malformed comments,
// reviews and events are logged and left out; only archive failures, which
// IsFatal reports, and source failures are returned.
func (e *PullRequestExporter) Export(ctx context.Context) (Outcome, error) {
	if err := model.ValidatePullRequestState(e.pr.State); err != nil {
		return Exported, fmt.Errorf("pull request %s: %w", e.url, err)
	}
	commits, err := e.source.PullRequestCommits(ctx, e.repo, e.pr.ID)
	if err != nil {
		return Exported, err
	}
	if len(commits) == 0 {
		e.log.Log(logging.Entry{
			Severity:  logging.SeverityWarn,
			ModelName: string(model.ModelPullRequest),
			ModelURL:  e.url,
			Message:   skippedNoDiff,
			Console:   true,
		})
		return Skipped, nil
	}

	activities, err := e.source.PullRequestActivities(ctx, e.repo, e.pr.ID)
	if err != nil {
		return Exported, err
	}
	if !timeline.SortedForGrouping(activities) {
		timeline.SortForGrouping(activities)
	}
	e.index = timeline.New(commits)
	e.mergeSHA = mergeCommitSHA(activities)

	if err := e.exportPullRequest(ctx); err != nil {
		return Exported, err
	}
	if err := e.recoverForkBranch(ctx); err != nil {
		return Exported, err
	}

	steps := []func(context.Context, []model.Activity) error{
		e.exportComments,
		e.exportDiffComments,
		e.exportFileComments,
		e.exportReviews,
		e.exportEvents,
	}
	for _, step := range steps {
		if err := step(ctx, activities); err != nil {
			return Exported, err
		}
	}
	return Exported, nil
}

// mergeCommitSHA returns the commit of the MERGED activity, if any.
func mergeCommitSHA(activities []model.Activity) string {
	for _, a := range activities {
		if a.Action == model.ActionMerged && a.Commit != nil {
			return a.Commit.ID
		}
	}
	return ""
}

// recoverForkBranch recreates the source branch of an unmerged fork pull
// request in the mirror. Merged commits are reachable from the target.
func (e *PullRequestExporter) recoverForkBranch(ctx context.Context) error {
	if !e.pr.FromFork() || e.pr.Merged() {
		return nil
	}
	ref := e.pr.FromRef
	if ref.DisplayID == "" || ref.LatestCommit == "" {
		return nil
	}
	if _, err := e.archive.CreateBranch(ctx, e.repo, ref.DisplayID, ref.LatestCommit); err != nil {
		return fatal(fmt.Errorf("recreating branch %s of %s: %w", ref.DisplayID, e.url, err))
	}
	return nil
}

func (e *PullRequestExporter) exportPullRequest(ctx context.Context) error {
	author := e.pr.Author.User
	body, atts, err := e.attachments.Rewrite(ctx, e.pr.Description, attachment.Parent{
		ModelName:   string(model.ModelPullRequest),
		ModelURL:    e.url,
		User:        &author,
		CreatedDate: e.pr.CreatedDate,
	})
	if err != nil {
		return fatal(err)
	}

	userURL, err := e.exportUser(ctx, &author)
	if err != nil {
		return err
	}

	owner := e.urls.Project(e.repo.Project)
	repoURL := e.urls.Repository(e.repo)
	var mergedAt, closedAt string
	if e.pr.State != model.PullRequestOpen {
		closedAt = model.FormatTime(e.pr.ClosedDate)
	}
	if e.pr.Merged() {
		mergedAt = closedAt
	}

	pr, err := record.NewPullRequest(record.PullRequest{
		URL:            e.url,
		User:           userURL,
		Repository:     repoURL,
		Title:          e.pr.Title,
		Body:           body,
		Base:           record.Ref{Ref: e.pr.ToRef.DisplayID, SHA: e.pr.ToRef.LatestCommit, User: owner, Repo: repoURL},
		Head:           record.Ref{Ref: e.pr.FromRef.DisplayID, SHA: e.pr.FromRef.LatestCommit, User: owner, Repo: repoURL},
		MergedAt:       record.Optional(mergedAt),
		ClosedAt:       record.Optional(closedAt),
		CreatedAt:      model.FormatTime(e.pr.CreatedDate),
		MergeCommitSHA: record.Optional(e.mergeSHA),
	})
	if err != nil {
		// Children would point at a pull request that is not in the archive.
		return fmt.Errorf("pull request %s: %w", e.url, err)
	}
	if _, err := e.archive.Serialize(ctx, pr); err != nil {
		return fatal(err)
	}
	return e.exportAttachments(ctx, atts, model.ModelPullRequest)
}

// save archives r unless building it failed validation, in which case the
// failure is logged and the export goes on.
func (e *PullRequestExporter) save(ctx context.Context, r record.Record, buildErr error, meta map[string]string) error {
	if buildErr != nil {
		if !errors.Is(buildErr, record.ErrInvalid) {
			return buildErr
		}
		m := map[string]string{"pull_request": e.url}
		for k, v := range meta {
			m[k] = v
		}
		e.log.LogException(buildErr, "skipped invalid record", m)
		return nil
	}
	if _, err := e.archive.Serialize(ctx, r); err != nil {
		return fatal(err)
	}
	return nil
}

// exportUser archives u and returns its URL, or "" when u is missing so the
// dependent record fails validation on its own.
func (e *PullRequestExporter) exportUser(ctx context.Context, u *model.User) (string, error) {
	if u == nil || u.Slug == "" {
		return "", nil
	}
	url := e.urls.User(*u)
	rec, err := record.NewUser(url, *u)
	if err := e.save(ctx, rec, err, map[string]string{"user": u.Slug}); err != nil {
		return "", err
	}
	return url, nil
}

func (e *PullRequestExporter) exportAttachments(ctx context.Context, atts []attachment.Attachment, parentType model.ModelType) error {
	for _, a := range atts {
		var userURL string
		if a.Parent.User != nil && a.Parent.User.Slug != "" {
			userURL = e.urls.User(*a.Parent.User)
		}
		rec, err := record.NewAttachment(record.Attachment{
			URL:              a.URL,
			User:             userURL,
			AssetName:        a.Path.Leaf,
			AssetContentType: a.ContentType,
			AssetURL:         a.AssetURL,
			CreatedAt:        model.FormatTime(a.Parent.CreatedDate),
		}, parentType, a.Parent.ModelURL)
		if err := e.save(ctx, rec, err, map[string]string{"attachment": a.Reference.Link}); err != nil {
			return err
		}
	}
	return nil
}

// rewrite rewrites the attachment links of a comment body and archives the
// attachments it references.
func (e *PullRequestExporter) rewrite(ctx context.Context, c model.Comment, parentType model.ModelType, parentURL string) (string, error) {
	body, atts, err := e.attachments.Rewrite(ctx, c.Text, attachment.Parent{
		ModelName:   string(parentType),
		ModelURL:    parentURL,
		User:        c.Author,
		CreatedDate: c.CreatedDate,
	})
	if err != nil {
		return "", fatal(err)
	}
	if err := e.exportAttachments(ctx, atts, parentType); err != nil {
		return "", err
	}
	return body, nil
}

// skipActivity logs a malformed activity that cannot become a record.
func (e *PullRequestExporter) skipActivity(a model.Activity, reason string) {
	e.log.LogException(fmt.Errorf("activity %d: %s: %w", a.ID, reason, record.ErrInvalid), "skipped invalid record", map[string]string{
		"pull_request": e.url,
		"activity":     strconv.Itoa(a.ID),
	})
}

func commentMeta(a model.Activity, c model.Comment) map[string]string {
	return map[string]string{
		"activity": strconv.Itoa(a.ID),
		"comment":  strconv.Itoa(c.ID),
	}
}

// exportComments exports general comments and their replies as issue
// comments.
func (e *PullRequestExporter) exportComments(ctx context.Context, activities []model.Activity) error {
	for _, a := range model.FilterActivities(activities, model.KindComment) {
		if a.Comment == nil {
			e.skipActivity(a, "comment activity has no comment")
			continue
		}
		comments := []model.Comment{*a.Comment}
		for _, r := range a.Comment.Replies() {
			comments = append(comments, r.Comment)
		}
		for _, c := range comments {
			if err := e.exportIssueComment(ctx, a, c); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *PullRequestExporter) exportIssueComment(ctx context.Context, a model.Activity, c model.Comment) error {
	url := e.urls.Comment(e.repo, e.pr.ID, c.ID)
	body, err := e.rewrite(ctx, c, model.ModelIssueComment, url)
	if err != nil {
		return err
	}
	userURL, err := e.exportUser(ctx, c.Author)
	if err != nil {
		return err
	}
	rec, err := record.NewIssueComment(record.IssueComment{
		URL:         url,
		PullRequest: e.url,
		User:        userURL,
		Body:        body,
		CreatedAt:   model.FormatTime(c.CreatedDate),
	})
	return e.save(ctx, rec, err, commentMeta(a, c))
}

// exportDiffComments exports line comments. Runs of consecutive comments
// made against the same commit become one review holding them.
func (e *PullRequestExporter) exportDiffComments(ctx context.Context, activities []model.Activity) error {
	return e.exportReviewGroups(ctx, model.FilterActivities(activities, model.KindDiffComment))
}

// exportFileComments exports comments on a whole file. They are grouped
// like line comments but carry no position.
func (e *PullRequestExporter) exportFileComments(ctx context.Context, activities []model.Activity) error {
	return e.exportReviewGroups(ctx, model.FilterActivities(activities, model.KindFileComment))
}

func (e *PullRequestExporter) exportReviewGroups(ctx context.Context, activities []model.Activity) error {
	for _, g := range timeline.GroupByCommit(e.index, activities) {
		reviewURL, err := e.exportCommentReview(ctx, g)
		if err != nil {
			return err
		}
		if reviewURL == "" {
			continue
		}
		for _, a := range activities[g.Start:g.End] {
			if err := e.exportReviewThread(ctx, a, g.CommitID, reviewURL); err != nil {
				return err
			}
		}
	}
	return nil
}

// exportCommentReview archives the review that holds a group of comments.
// It returns "" when the review itself was invalid.
func (e *PullRequestExporter) exportCommentReview(ctx context.Context, g timeline.Group) (string, error) {
	rep := g.Representative
	user := rep.User
	if user == nil && rep.Comment != nil {
		user = rep.Comment.Author
	}
	userURL, err := e.exportUser(ctx, user)
	if err != nil {
		return "", err
	}
	url := e.urls.Review(e.repo, e.pr.ID, rep.ID)
	rec, buildErr := record.NewPullRequestReview(record.PullRequestReview{
		URL:         url,
		PullRequest: e.url,
		User:        userURL,
		HeadSHA:     g.CommitID,
		State:       record.ReviewCommented,
		CreatedAt:   model.FormatTime(rep.CreatedDate),
	})
	if err := e.save(ctx, rec, buildErr, map[string]string{"activity": strconv.Itoa(rep.ID)}); err != nil {
		return "", err
	}
	if buildErr != nil {
		return "", nil
	}
	return url, nil
}

// exportReviewThread exports a diff or file comment and its replies.
func (e *PullRequestExporter) exportReviewThread(ctx context.Context, a model.Activity, commitID, reviewURL string) error {
	if a.Comment == nil || a.CommentAnchor == nil {
		e.skipActivity(a, "review comment activity has no comment or anchor")
		return nil
	}
	root := e.urls.Comment(e.repo, e.pr.ID, a.Comment.ID)
	if err := e.exportReviewComment(ctx, a, *a.Comment, "", commitID, reviewURL); err != nil {
		return err
	}
	for _, r := range a.Comment.Replies() {
		parent := e.urls.Comment(e.repo, e.pr.ID, r.ParentID)
		if r.ParentID == a.Comment.ID {
			parent = root
		}
		if err := e.exportReviewComment(ctx, a, r.Comment, parent, commitID, reviewURL); err != nil {
			return err
		}
	}
	return nil
}

func (e *PullRequestExporter) exportReviewComment(ctx context.Context, a model.Activity, c model.Comment, inReplyTo, commitID, reviewURL string) error {
	anchor := a.CommentAnchor
	url := e.urls.Comment(e.repo, e.pr.ID, c.ID)
	body, err := e.rewrite(ctx, c, model.ModelPullRequestReviewComment, url)
	if err != nil {
		return err
	}
	userURL, err := e.exportUser(ctx, c.Author)
	if err != nil {
		return err
	}

	var position *int
	side := ""
	if anchor.Line > 0 {
		line := anchor.Line
		position = &line
		side = anchor.Side()
	} else if inReplyTo == "" {
		body = fileCommentBody(anchor.Path, body)
	}

	rec, err := record.NewPullRequestReviewComment(record.PullRequestReviewComment{
		URL:               url,
		PullRequest:       e.url,
		PullRequestReview: reviewURL,
		InReplyTo:         record.Optional(inReplyTo),
		User:              userURL,
		Body:              body,
		Path:              anchor.Path,
		Position:          position,
		Side:              side,
		CommitID:          commitID,
		CreatedAt:         model.FormatTime(c.CreatedDate),
	})
	return e.save(ctx, rec, err, commentMeta(a, c))
}

// fileCommentBody prefixes a whole-file comment so the importer shows which
// file it was about; the original text ends the body.
func fileCommentBody(path, text string) string {
	return fmt.Sprintf("> Comment on file `%s`\n\n%s", path, text)
}

// exportReviews exports approvals and needs-work reviews.
func (e *PullRequestExporter) exportReviews(ctx context.Context, activities []model.Activity) error {
	for _, a := range model.FilterActivities(activities, model.KindReview) {
		state := record.ReviewApproved
		if a.Action == model.ActionReviewed {
			state = record.ReviewChangesRequested
		}
		userURL, err := e.exportUser(ctx, a.User)
		if err != nil {
			return err
		}
		rec, err := record.NewPullRequestReview(record.PullRequestReview{
			URL:         e.urls.Review(e.repo, e.pr.ID, a.ID),
			PullRequest: e.url,
			User:        userURL,
			HeadSHA:     e.index.NearestAtOrBefore(a.CreatedDate),
			State:       state,
			CreatedAt:   model.FormatTime(a.CreatedDate),
		})
		if err := e.save(ctx, rec, err, map[string]string{"activity": strconv.Itoa(a.ID)}); err != nil {
			return err
		}
	}
	return nil
}

// issueEvents maps an event activity to the issue events it produces.
func issueEvents(a model.Activity) []string {
	switch a.Action {
	case model.ActionMerged:
		return []string{record.EventMerged, record.EventClosed}
	case model.ActionDeclined:
		return []string{record.EventClosed}
	case model.ActionReopened:
		return []string{record.EventReopened}
	}
	return nil
}

// exportEvents exports merges, declines and reopens.
func (e *PullRequestExporter) exportEvents(ctx context.Context, activities []model.Activity) error {
	for _, a := range model.FilterActivities(activities, model.KindEvent) {
		actorURL, err := e.exportUser(ctx, a.User)
		if err != nil {
			return err
		}
		for _, event := range issueEvents(a) {
			var commitID *string
			if event == record.EventMerged && a.Commit != nil {
				commitID = record.Optional(a.Commit.ID)
			}
			rec, err := record.NewIssueEvent(record.IssueEvent{
				URL:         e.urls.Event(e.repo, e.pr.ID, a.ID, event),
				PullRequest: e.url,
				Actor:       actorURL,
				Event:       event,
				CommitID:    commitID,
				CreatedAt:   model.FormatTime(a.CreatedDate),
			})
			if err := e.save(ctx, rec, err, map[string]string{"activity": strconv.Itoa(a.ID), "event": event}); err != nil {
				return err
			}
		}
	}
	return nil
}
