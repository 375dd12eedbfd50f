package record

import (
	"fmt"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/model"
)

// Formatter of every exported body.
const Formatter = "markdown"

// ReviewState is the importer's numeric review state.
type ReviewState int

const (
	ReviewCommented        ReviewState = 1
	ReviewChangesRequested ReviewState = 30
	ReviewApproved         ReviewState = 40
)

func (s ReviewState) valid() bool {
	switch s {
	case ReviewCommented, ReviewChangesRequested, ReviewApproved:
		return true
	}
	return false
}

// Event names of issue events.
const (
	EventClosed   = "closed"
	EventMerged   = "merged"
	EventReopened = "reopened"
)

// Ref is one side of a pull request.
type Ref struct {
	Ref  string `json:"ref"`
	SHA  string `json:"sha"`
	User string `json:"user"`
	Repo string `json:"repo"`
}

// PullRequest is a pull request with both refs and its merge state.
type PullRequest struct {
	Type           string  `json:"type"`
	URL            string  `json:"url"`
	User           string  `json:"user"`
	Repository     string  `json:"repository"`
	Title          string  `json:"title"`
	Body           string  `json:"body"`
	Base           Ref     `json:"base"`
	Head           Ref     `json:"head"`
	Labels         []any   `json:"labels"`
	MergedAt       *string `json:"merged_at"`
	ClosedAt       *string `json:"closed_at"`
	CreatedAt      string  `json:"created_at"`
	MergeCommitSHA *string `json:"merge_commit_sha"`
}

// NewPullRequest validates p. Leave Type empty; it is set here.
func NewPullRequest(p PullRequest) (*PullRequest, error) {
	p.Type = string(model.ModelPullRequest)
	if p.Labels == nil {
		p.Labels = []any{}
	}
	return build(&p)
}

func (r *PullRequest) ModelType() model.ModelType { return model.ModelPullRequest }
func (r *PullRequest) ModelURL() string           { return r.URL }

func (r *PullRequest) validate() error {
	return require(model.ModelPullRequest, r.URL,
		field{"url", r.URL}, field{"user", r.User}, field{"repository", r.Repository},
		field{"base.ref", r.Base.Ref}, field{"base.sha", r.Base.SHA},
		field{"head.ref", r.Head.Ref}, field{"head.sha", r.Head.SHA},
		field{"created_at", r.CreatedAt})
}

// IssueComment is a top-level pull request comment or a reply to one.
type IssueComment struct {
	Type        string `json:"type"`
	URL         string `json:"url"`
	PullRequest string `json:"pull_request"`
	User        string `json:"user"`
	Body        string `json:"body"`
	Formatter   string `json:"formatter"`
	CreatedAt   string `json:"created_at"`
}

func NewIssueComment(c IssueComment) (*IssueComment, error) {
	c.Type = string(model.ModelIssueComment)
	c.Formatter = Formatter
	return build(&c)
}

func (r *IssueComment) ModelType() model.ModelType { return model.ModelIssueComment }
func (r *IssueComment) ModelURL() string           { return r.URL }

func (r *IssueComment) validate() error {
	return require(model.ModelIssueComment, r.URL,
		field{"url", r.URL}, field{"pull_request", r.PullRequest}, field{"user", r.User},
		field{"created_at", r.CreatedAt})
}

// PullRequestReview is an approval, a change request, or the container of a
// run of diff comments on one commit.
type PullRequestReview struct {
	Type        string      `json:"type"`
	URL         string      `json:"url"`
	PullRequest string      `json:"pull_request"`
	User        string      `json:"user"`
	Body        string      `json:"body"`
	HeadSHA     string      `json:"head_sha"`
	Formatter   string      `json:"formatter"`
	State       ReviewState `json:"state"`
	CreatedAt   string      `json:"created_at"`
	SubmittedAt string      `json:"submitted_at"`
}

func NewPullRequestReview(r PullRequestReview) (*PullRequestReview, error) {
	r.Type = string(model.ModelPullRequestReview)
	r.Formatter = Formatter
	if r.SubmittedAt == "" {
		r.SubmittedAt = r.CreatedAt
	}
	return build(&r)
}

func (r *PullRequestReview) ModelType() model.ModelType { return model.ModelPullRequestReview }
func (r *PullRequestReview) ModelURL() string           { return r.URL }

func (r *PullRequestReview) validate() error {
	if err := require(model.ModelPullRequestReview, r.URL,
		field{"url", r.URL}, field{"pull_request", r.PullRequest}, field{"user", r.User},
		field{"head_sha", r.HeadSHA}, field{"created_at", r.CreatedAt}); err != nil {
		return err
	}
	if !r.State.valid() {
		return fmt.Errorf("%w: %s %s: unknown state %d", ErrInvalid, model.ModelPullRequestReview, r.URL, r.State)
	}
	return nil
}

// PullRequestReviewComment is a comment on a file or line of the diff.
type PullRequestReviewComment struct {
	Type              string  `json:"type"`
	URL               string  `json:"url"`
	PullRequest       string  `json:"pull_request"`
	PullRequestReview string  `json:"pull_request_review"`
	InReplyTo         *string `json:"in_reply_to"`
	User              string  `json:"user"`
	Body              string  `json:"body"`
	Formatter         string  `json:"formatter"`
	Path              string  `json:"path"`
	Position          *int    `json:"position"`
	Side              string  `json:"side,omitempty"`
	CommitID          string  `json:"commit_id"`
	OriginalCommitID  string  `json:"original_commit_id"`
	CreatedAt         string  `json:"created_at"`
}

func NewPullRequestReviewComment(c PullRequestReviewComment) (*PullRequestReviewComment, error) {
	c.Type = string(model.ModelPullRequestReviewComment)
	c.Formatter = Formatter
	if c.OriginalCommitID == "" {
		c.OriginalCommitID = c.CommitID
	}
	return build(&c)
}

func (r *PullRequestReviewComment) ModelType() model.ModelType {
	return model.ModelPullRequestReviewComment
}
func (r *PullRequestReviewComment) ModelURL() string { return r.URL }

func (r *PullRequestReviewComment) validate() error {
	return require(model.ModelPullRequestReviewComment, r.URL,
		field{"url", r.URL}, field{"pull_request", r.PullRequest},
		field{"pull_request_review", r.PullRequestReview}, field{"user", r.User},
		field{"path", r.Path}, field{"commit_id", r.CommitID}, field{"created_at", r.CreatedAt})
}

// IssueEvent is a merge, close or reopen of a pull request.
type IssueEvent struct {
	Type        string  `json:"type"`
	URL         string  `json:"url"`
	PullRequest string  `json:"pull_request"`
	Actor       string  `json:"actor"`
	Event       string  `json:"event"`
	CommitID    *string `json:"commit_id"`
	CreatedAt   string  `json:"created_at"`
}

func NewIssueEvent(e IssueEvent) (*IssueEvent, error) {
	e.Type = string(model.ModelIssueEvent)
	return build(&e)
}

func (r *IssueEvent) ModelType() model.ModelType { return model.ModelIssueEvent }
func (r *IssueEvent) ModelURL() string           { return r.URL }

func (r *IssueEvent) validate() error {
	if err := require(model.ModelIssueEvent, r.URL,
		field{"url", r.URL}, field{"pull_request", r.PullRequest}, field{"actor", r.Actor},
		field{"created_at", r.CreatedAt}); err != nil {
		return err
	}
	switch r.Event {
	case EventClosed, EventMerged, EventReopened:
		return nil
	}
	return fmt.Errorf("%w: %s %s: unknown event %q", ErrInvalid, model.ModelIssueEvent, r.URL, r.Event)
}

// Optional returns a pointer to s, or nil when s is empty.
func Optional(s string) *string {
	return optional(s)
}
