package bitbucket

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/attachment"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/model"
)

func repoPath(repo model.Repository) string {
	return "/projects/" + url.PathEscape(repo.Project.Key) + "/repos/" + url.PathEscape(repo.Slug)
}

func pullRequestPath(repo model.Repository, id int) string {
	return repoPath(repo) + "/pull-requests/" + strconv.Itoa(id)
}

// Repository returns one repository.
func (c *Client) Repository(ctx context.Context, projectKey, slug string) (model.Repository, error) {
	var r model.Repository
	path := "/projects/" + url.PathEscape(projectKey) + "/repos/" + url.PathEscape(slug)
	if err := c.getJSON(ctx, path, &r); err != nil {
		return model.Repository{}, fmt.Errorf("getting repository %s/%s: %w", projectKey, slug, err)
	}
	return r, nil
}

// ListRepositories pages through every repository of a project.
func (c *Client) ListRepositories(projectKey string) *PageIterator[model.Repository] {
	return list[model.Repository](c, "/projects/"+url.PathEscape(projectKey)+"/repos", nil)
}

// Repositories returns every repository of a project.
func (c *Client) Repositories(ctx context.Context, projectKey string) ([]model.Repository, error) {
	repos, err := c.ListRepositories(projectKey).Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing repositories of %s: %w", projectKey, err)
	}
	return repos, nil
}

// DefaultBranch returns the display name of the repository's default branch,
// or "" for an empty repository.
func (c *Client) DefaultBranch(ctx context.Context, repo model.Repository) (string, error) {
	var branch struct {
		DisplayID string `json:"displayId"`
	}
	err := c.getJSON(ctx, repoPath(repo)+"/branches/default", &branch)
	if IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting default branch of %s: %w", repo.FullName(), err)
	}
	return branch.DisplayID, nil
}

// ListPullRequests pages through every pull request of a repository in any
// state, oldest first.
func (c *Client) ListPullRequests(repo model.Repository) *PageIterator[model.PullRequest] {
	return list[model.PullRequest](c, repoPath(repo)+"/pull-requests", url.Values{
		"state": {"ALL"},
		"order": {"OLDEST"},
	})
}

// EachPullRequest calls fn for every pull request of repo, one page at a
// time. It stops at the first error fn returns.
func (c *Client) EachPullRequest(ctx context.Context, repo model.Repository, fn func(model.PullRequest) error) error {
	it := c.ListPullRequests(repo)
	for {
		prs, err := it.Next(ctx)
		if err != nil {
			return fmt.Errorf("listing pull requests of %s: %w", repo.FullName(), err)
		}
		if prs == nil {
			return nil
		}
		for _, pr := range prs {
			if err := fn(pr); err != nil {
				return err
			}
		}
	}
}

// PullRequestCommits returns the commits of a pull request, newest first.
func (c *Client) PullRequestCommits(ctx context.Context, repo model.Repository, id int) ([]model.Commit, error) {
	commits, err := list[model.Commit](c, pullRequestPath(repo, id)+"/commits", nil).Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing commits of pull request %d: %w", id, err)
	}
	return commits, nil
}

// PullRequestActivities returns the activity feed of a pull request, newest
// first.
func (c *Client) PullRequestActivities(ctx context.Context, repo model.Repository, id int) ([]model.Activity, error) {
	activities, err := list[model.Activity](c, pullRequestPath(repo, id)+"/activities", nil).Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing activities of pull request %d: %w", id, err)
	}
	return activities, nil
}

func (c *Client) attachmentURL(repo model.Repository, p attachment.Path) string {
	return c.baseURL + repoPath(repo) + "/attachments/" + p.String()
}

// AttachmentContentType asks the server for the media type of an attachment
// without downloading it. Parameters such as charset are dropped.
func (c *Client) AttachmentContentType(ctx context.Context, repo model.Repository, p attachment.Path) (string, error) {
	resp, err := c.do(ctx, http.MethodHead, c.attachmentURL(repo, p))
	if err != nil {
		return "", err
	}
	resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		return attachment.UnknownContentType, nil
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return attachment.UnknownContentType, nil
	}
	return mediaType, nil
}

// maxAttachmentSize caps a single download.
const maxAttachmentSize = 100 << 20

// Attachment downloads an attachment.
func (c *Client) Attachment(ctx context.Context, repo model.Repository, p attachment.Path) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, c.attachmentURL(repo, p))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachmentSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading attachment %s: %w", p, err)
	}
	if len(data) > maxAttachmentSize {
		return nil, fmt.Errorf("attachment %s exceeds %d bytes", p, maxAttachmentSize)
	}
	return data, nil
}
