// Package modelurl builds the canonical Bitbucket Server URL of every
// exported model. The URLs identify records in the archive and in logs.
package modelurl

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/model"
)

// Service builds model URLs relative to one Bitbucket Server base URL.
type Service struct {
	base string
}

// New validates baseURL and returns a Service for it.
func New(baseURL string) (*Service, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", baseURL)
	}
	return &Service{base: strings.TrimRight(u.String(), "/")}, nil
}

// Base returns the normalized base URL without a trailing slash.
func (s *Service) Base() string {
	return s.base
}

func (s *Service) User(u model.User) string {
	return s.base + "/users/" + u.Slug
}

func (s *Service) Project(p model.Project) string {
	return s.base + "/projects/" + p.Key
}

func (s *Service) Repository(r model.Repository) string {
	return s.Project(r.Project) + "/repos/" + r.Slug
}

func (s *Service) PullRequest(r model.Repository, id int) string {
	return s.Repository(r) + "/pull-requests/" + strconv.Itoa(id)
}

// Comment addresses a comment (or reply) on a pull request.
func (s *Service) Comment(r model.Repository, prID, commentID int) string {
	return s.PullRequest(r, prID) + "/overview?commentId=" + strconv.Itoa(commentID)
}

// Review addresses a review built from an activity: an approval, a
// needs-work review or a group of diff comments on one commit.
func (s *Service) Review(r model.Repository, prID, activityID int) string {
	return s.PullRequest(r, prID) + "/overview?reviewId=" + strconv.Itoa(activityID)
}

// Event addresses one issue event derived from an activity. A merge
// activity yields both a "merged" and a "closed" event.
func (s *Service) Event(r model.Repository, prID, activityID int, event string) string {
	return s.PullRequest(r, prID) + "/overview?eventId=" + strconv.Itoa(activityID) + "#" + event
}

func (s *Service) Commit(r model.Repository, sha string) string {
	return s.Repository(r) + "/commits/" + sha
}

// Attachment is the absolute URL of an attachment given its already
// percent-encoded path segments.
func (s *Service) Attachment(r model.Repository, encodedPath []string) string {
	return s.Repository(r) + "/attachments/" + strings.Join(encodedPath, "/")
}
