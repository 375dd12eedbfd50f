package model

import (
	"fmt"
	"time"
)

// PullRequestState represents the lifecycle state of a Bitbucket Server
// pull request.
type PullRequestState string

const (
	PullRequestOpen     PullRequestState = "OPEN"
	PullRequestMerged   PullRequestState = "MERGED"
	PullRequestDeclined PullRequestState = "DECLINED"
)

var validPullRequestStates = []PullRequestState{
	PullRequestOpen,
	PullRequestMerged,
	PullRequestDeclined,
}

// ValidatePullRequestState returns an error if s is not a recognized state.
func ValidatePullRequestState(s PullRequestState) error {
	for _, v := range validPullRequestStates {
		if s == v {
			return nil
		}
	}
	return fmt.Errorf("invalid pull request state %q: must be one of %v", s, validPullRequestStates)
}

// Participant is a user attached to a pull request in some role.
type Participant struct {
	User     User   `json:"user"`
	Role     string `json:"role"`
	Approved bool   `json:"approved"`
	Status   string `json:"status"`
}

// Ref is one side of a pull request: the source (fromRef) or the
// target (toRef) branch.
type Ref struct {
	ID           string     `json:"id"`
	DisplayID    string     `json:"displayId"`
	LatestCommit string     `json:"latestCommit"`
	Repository   Repository `json:"repository"`
}

// PullRequest is a pull request as returned by the Bitbucket Server REST
// API. Timestamps are milliseconds since the epoch.
type PullRequest struct {
	ID          int              `json:"id"`
	Version     int              `json:"version"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	State       PullRequestState `json:"state"`
	Open        bool             `json:"open"`
	Closed      bool             `json:"closed"`
	CreatedDate int64            `json:"createdDate"`
	UpdatedDate int64            `json:"updatedDate"`
	ClosedDate  int64            `json:"closedDate,omitempty"`
	FromRef     Ref              `json:"fromRef"`
	ToRef       Ref              `json:"toRef"`
	Author      Participant      `json:"author"`
	Reviewers   []Participant    `json:"reviewers"`
}

// Merged reports whether the pull request was merged.
func (pr PullRequest) Merged() bool {
	return pr.State == PullRequestMerged
}

// FromFork reports whether the source branch lives in a different
// repository than the target branch. Such branches are not part of the
// mirrored repository and may have to be recreated.
func (pr PullRequest) FromFork() bool {
	return pr.FromRef.Repository.ID != 0 && pr.FromRef.Repository.ID != pr.ToRef.Repository.ID
}

// Commit is a commit listed for a pull request. Only AuthorTimestamp is
// used to place activity on the commit history; CommitterTimestamp changes
// on rebase and amend.
type Commit struct {
	ID                 string `json:"id"`
	DisplayID          string `json:"displayId"`
	Message            string `json:"message"`
	Author             User   `json:"author"`
	AuthorTimestamp    int64  `json:"authorTimestamp"`
	Committer          User   `json:"committer"`
	CommitterTimestamp int64  `json:"committerTimestamp"`
}

// Time converts a Bitbucket Server millisecond timestamp to a UTC time.
func Time(millis int64) time.Time {
	return time.UnixMilli(millis).UTC()
}

// FormatTime renders a millisecond timestamp in RFC 3339, or "" for zero.
func FormatTime(millis int64) string {
	if millis == 0 {
		return ""
	}
	return Time(millis).Format(time.RFC3339)
}
