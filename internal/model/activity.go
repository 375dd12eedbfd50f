package model

import "fmt"

// ActivityAction is the "action" field of a pull request activity.
type ActivityAction string

const (
	ActionCommented  ActivityAction = "COMMENTED"
	ActionApproved   ActivityAction = "APPROVED"
	ActionUnapproved ActivityAction = "UNAPPROVED"
	ActionReviewed   ActivityAction = "REVIEWED"
	ActionMerged     ActivityAction = "MERGED"
	ActionDeclined   ActivityAction = "DECLINED"
	ActionReopened   ActivityAction = "REOPENED"
	ActionOpened     ActivityAction = "OPENED"
	ActionRescoped   ActivityAction = "RESCOPED"
	ActionUpdated    ActivityAction = "UPDATED"
)

// ActivityKind classifies an activity by how it is exported.
type ActivityKind string

const (
	KindComment     ActivityKind = "comment"
	KindDiffComment ActivityKind = "diff_comment"
	KindFileComment ActivityKind = "file_comment"
	KindReview      ActivityKind = "review"
	KindEvent       ActivityKind = "event"
	KindOther       ActivityKind = "other"
)

// CommentAnchor places a comment on a file, and optionally a line, of the
// pull request diff.
type CommentAnchor struct {
	FromHash string `json:"fromHash"`
	ToHash   string `json:"toHash"`
	Line     int    `json:"line"`
	LineType string `json:"lineType"`
	FileType string `json:"fileType"`
	Path     string `json:"path"`
	SrcPath  string `json:"srcPath"`
	DiffType string `json:"diffType"`
	Orphaned bool   `json:"orphaned"`
}

// Side returns the diff side a line comment belongs to.
func (a CommentAnchor) Side() string {
	if a.LineType == "REMOVED" || a.FileType == "FROM" {
		return "LEFT"
	}
	return "RIGHT"
}

// Activity is one entry of a pull request's activity feed. The feed is
// returned newest first (descending id).
type Activity struct {
	ID            int            `json:"id"`
	CreatedDate   int64          `json:"createdDate"`
	User          *User          `json:"user"`
	Action        ActivityAction `json:"action"`
	CommentAction string         `json:"commentAction,omitempty"`
	Comment       *Comment       `json:"comment,omitempty"`
	CommentAnchor *CommentAnchor `json:"commentAnchor,omitempty"`
	Commit        *Commit        `json:"commit,omitempty"`
}

// Kind classifies the activity.
func (a Activity) Kind() ActivityKind {
	switch a.Action {
	case ActionCommented:
		switch {
		case a.CommentAnchor == nil:
			return KindComment
		case a.CommentAnchor.Line > 0:
			return KindDiffComment
		default:
			return KindFileComment
		}
	case ActionApproved, ActionReviewed:
		return KindReview
	case ActionMerged, ActionDeclined, ActionReopened:
		return KindEvent
	default:
		return KindOther
	}
}

// String implements fmt.Stringer for log output.
func (a Activity) String() string {
	return fmt.Sprintf("activity %d (%s)", a.ID, a.Action)
}

// FilterActivities returns the activities of the given kind, preserving order.
func FilterActivities(activities []Activity, kind ActivityKind) []Activity {
	var out []Activity
	for _, a := range activities {
		if a.Kind() == kind {
			out = append(out, a)
		}
	}
	return out
}
