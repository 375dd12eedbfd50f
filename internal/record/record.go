// Package record defines the closed set of archive record variants. Every
// variant is validated when it is built, so an invalid record never reaches
// the archive.
package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/model"
)

// ErrInvalid is wrapped by every construction error.
var ErrInvalid = errors.New("invalid record")

// Record is an archive record variant.
type Record interface {
	ModelType() model.ModelType
	ModelURL() string
	validate() error
}

// ToArchive serializes r into an archive record.
func ToArchive(r Record) (model.ArchiveRecord, error) {
	if err := r.validate(); err != nil {
		return model.ArchiveRecord{}, err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return model.ArchiveRecord{}, fmt.Errorf("encoding %s %s: %w", r.ModelType(), r.ModelURL(), err)
	}
	return model.ArchiveRecord{ModelType: r.ModelType(), ModelURL: r.ModelURL(), Data: data}, nil
}

type field struct {
	name  string
	value string
}

func require(t model.ModelType, url string, fields ...field) error {
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if url == "" {
		url = "(no url)"
	}
	return fmt.Errorf("%w: %s %s: missing %s", ErrInvalid, t, url, strings.Join(missing, ", "))
}

func build[T Record](r T) (T, error) {
	if err := r.validate(); err != nil {
		var zero T
		return zero, err
	}
	return r, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Email is a user email address.
type Email struct {
	Address string `json:"address"`
	Primary bool   `json:"primary"`
}

// User is an account referenced by any other record.
type User struct {
	Type      string  `json:"type"`
	URL       string  `json:"url"`
	Login     string  `json:"login"`
	Name      string  `json:"name"`
	Company   *string `json:"company"`
	Website   *string `json:"website"`
	Location  *string `json:"location"`
	Emails    []Email `json:"emails"`
	CreatedAt string  `json:"created_at"`
}

// NewUser builds a user record for u at url.
func NewUser(url string, u model.User) (*User, error) {
	emails := []Email{}
	if u.EmailAddress != "" {
		emails = append(emails, Email{Address: u.EmailAddress, Primary: true})
	}
	return build(&User{
		Type:   string(model.ModelUser),
		URL:    url,
		Login:  u.Slug,
		Name:   u.DisplayName,
		Emails: emails,
	})
}

func (r *User) ModelType() model.ModelType { return model.ModelUser }
func (r *User) ModelURL() string           { return r.URL }

func (r *User) validate() error {
	return require(model.ModelUser, r.URL, field{"url", r.URL}, field{"login", r.Login})
}

// Repository is an exported repository with its mirrored git data.
type Repository struct {
	Type          string  `json:"type"`
	URL           string  `json:"url"`
	Owner         string  `json:"owner"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Website       *string `json:"website"`
	Private       bool    `json:"private"`
	HasIssues     bool    `json:"has_issues"`
	HasWiki       bool    `json:"has_wiki"`
	HasDownloads  bool    `json:"has_downloads"`
	Labels        []any   `json:"labels"`
	Collaborators []any   `json:"collaborators"`
	CreatedAt     string  `json:"created_at"`
	GitURL        string  `json:"git_url"`
	DefaultBranch string  `json:"default_branch"`
	PublicKeys    []any   `json:"public_keys"`
	Webhooks      []any   `json:"webhooks"`
}

// NewRepository builds a repository record. ownerURL is the project URL and
// gitURL the archive-internal location of the mirror.
func NewRepository(url, ownerURL, gitURL, defaultBranch string, r model.Repository) (*Repository, error) {
	return build(&Repository{
		Type:          string(model.ModelRepository),
		URL:           url,
		Owner:         ownerURL,
		Name:          r.Slug,
		Description:   r.Description,
		Private:       !r.Public,
		Labels:        []any{},
		Collaborators: []any{},
		GitURL:        gitURL,
		DefaultBranch: defaultBranch,
		PublicKeys:    []any{},
		Webhooks:      []any{},
	})
}

func (r *Repository) ModelType() model.ModelType { return model.ModelRepository }
func (r *Repository) ModelURL() string           { return r.URL }

func (r *Repository) validate() error {
	return require(model.ModelRepository, r.URL,
		field{"url", r.URL}, field{"owner", r.Owner}, field{"name", r.Name}, field{"git_url", r.GitURL})
}

// Attachment is a file referenced from the body of a pull request or
// comment. Exactly one parent field is set.
type Attachment struct {
	Type                     string  `json:"type"`
	URL                      string  `json:"url"`
	PullRequest              *string `json:"pull_request,omitempty"`
	IssueComment             *string `json:"issue_comment,omitempty"`
	PullRequestReviewComment *string `json:"pull_request_review_comment,omitempty"`
	User                     string  `json:"user"`
	AssetName                string  `json:"asset_name"`
	AssetContentType         string  `json:"asset_content_type"`
	AssetURL                 string  `json:"asset_url"`
	CreatedAt                string  `json:"created_at"`
}

// NewAttachment builds an attachment record whose parent is a model of type
// parentType at parentURL.
func NewAttachment(a Attachment, parentType model.ModelType, parentURL string) (*Attachment, error) {
	a.Type = string(model.ModelAttachment)
	a.PullRequest, a.IssueComment, a.PullRequestReviewComment = nil, nil, nil
	switch parentType {
	case model.ModelPullRequest:
		a.PullRequest = optional(parentURL)
	case model.ModelIssueComment:
		a.IssueComment = optional(parentURL)
	case model.ModelPullRequestReviewComment:
		a.PullRequestReviewComment = optional(parentURL)
	default:
		return nil, fmt.Errorf("%w: attachment %s: unsupported parent type %q", ErrInvalid, a.URL, parentType)
	}
	return build(&a)
}

func (r *Attachment) ModelType() model.ModelType { return model.ModelAttachment }
func (r *Attachment) ModelURL() string           { return r.URL }

func (r *Attachment) parent() string {
	for _, p := range []*string{r.PullRequest, r.IssueComment, r.PullRequestReviewComment} {
		if p != nil {
			return *p
		}
	}
	return ""
}

func (r *Attachment) validate() error {
	return require(model.ModelAttachment, r.URL,
		field{"url", r.URL}, field{"parent", r.parent()}, field{"user", r.User},
		field{"asset_name", r.AssetName}, field{"asset_content_type", r.AssetContentType},
		field{"asset_url", r.AssetURL}, field{"created_at", r.CreatedAt})
}
