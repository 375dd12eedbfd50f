package model

import (
	"encoding/json"
	"fmt"
)

// ModelType names a kind of archive record. Page files are named after it:
// "<model type>s_000001.json".
type ModelType string

const (
	ModelUser                     ModelType = "user"
	ModelRepository               ModelType = "repository"
	ModelPullRequest              ModelType = "pull_request"
	ModelIssueComment             ModelType = "issue_comment"
	ModelPullRequestReview        ModelType = "pull_request_review"
	ModelPullRequestReviewComment ModelType = "pull_request_review_comment"
	ModelIssueEvent               ModelType = "issue_event"
	ModelAttachment               ModelType = "attachment"
)

var validModelTypes = []ModelType{
	ModelUser,
	ModelRepository,
	ModelPullRequest,
	ModelIssueComment,
	ModelPullRequestReview,
	ModelPullRequestReviewComment,
	ModelIssueEvent,
	ModelAttachment,
}

// ValidateModelType returns an error if t is not a recognized model type.
func ValidateModelType(t ModelType) error {
	for _, v := range validModelTypes {
		if t == v {
			return nil
		}
	}
	return fmt.Errorf("invalid model type %q: must be one of %v", t, validModelTypes)
}

// ArchiveRecord is one serialized record destined for the archive.
type ArchiveRecord struct {
	ModelType ModelType       `json:"model_type"`
	ModelURL  string          `json:"model_url"`
	Data      json.RawMessage `json:"data"`
}

// Validate checks the record is complete enough to be archived.
func (r ArchiveRecord) Validate() error {
	if err := ValidateModelType(r.ModelType); err != nil {
		return err
	}
	if r.ModelURL == "" {
		return fmt.Errorf("%s record has no model url", r.ModelType)
	}
	if !json.Valid(r.Data) {
		return fmt.Errorf("%s record %s has invalid json data", r.ModelType, r.ModelURL)
	}
	return nil
}

// MappingAction is the importer action for a URL mapping.
type MappingAction string

const (
	ActionMap    MappingAction = "MAP"
	ActionRename MappingAction = "RENAME"
	ActionMerge  MappingAction = "MERGE"
)

// URLMapping tells the importer which target URL a source URL becomes.
type URLMapping struct {
	ModelName string        `json:"modelName"`
	SourceURL string        `json:"sourceUrl"`
	TargetURL string        `json:"targetUrl"`
	Action    MappingAction `json:"action"`
}
