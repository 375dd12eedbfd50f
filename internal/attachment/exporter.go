package attachment

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/logging"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/model"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/modelurl"
)

// linkPattern matches a markdown link target pointing at an attachment,
// capturing the raw link and the (possibly empty) tooltip that follows it.
var linkPattern = regexp.MustCompile(`\((attachment:[^\s)]+)([^)]*)\)`)

// UnknownContentType is reported when the classifier fails.
const UnknownContentType = "unknown"

var supportedTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
}

// Supported reports whether attachments of contentType are exported.
func Supported(contentType string) bool {
	return supportedTypes[strings.ToLower(strings.TrimSpace(contentType))]
}

// Classifier reports the content type of an attachment on the server.
type Classifier interface {
	AttachmentContentType(ctx context.Context, repo model.Repository, p Path) (string, error)
}

// Fetcher downloads the bytes of an attachment.
type Fetcher interface {
	Attachment(ctx context.Context, repo model.Repository, p Path) ([]byte, error)
}

// Source is the server side of attachment export.
type Source interface {
	Classifier
	Fetcher
}

// Store persists fetched attachments under their stored filename.
type Store interface {
	SaveAttachment(filename string, data []byte) error
}

// Logger receives skip warnings.
type Logger interface {
	Log(e logging.Entry)
}

// Parent is the model whose body contains the attachment links.
type Parent struct {
	ModelName   string
	ModelURL    string
	User        *model.User
	CreatedDate int64
}

// Attachment is one exported attachment occurrence.
type Attachment struct {
	Reference   Reference
	Path        Path
	Filename    string
	URL         string
	AssetURL    string
	ContentType string
	Parent      Parent
}

// Exporter rewrites attachment links in bodies of text from one repository
// and exports the referenced files.
type Exporter struct {
	repo   model.Repository
	source Source
	store  Store
	urls   *modelurl.Service
	cache  *Cache
	log    Logger
}

// NewExporter returns an Exporter. cache is shared by every exporter of the
// same run; a nil cache gets a private one.
func NewExporter(repo model.Repository, source Source, store Store, urls *modelurl.Service, cache *Cache, log Logger) *Exporter {
	if cache == nil {
		cache = NewCache()
	}
	return &Exporter{
		repo:   repo,
		source: source,
		store:  store,
		urls:   urls,
		cache:  cache,
		log:    log,
	}
}

// Rewrite replaces every exportable attachment link in body with its
// absolute server URL and returns one Attachment per replaced occurrence.
// Unsupported or unreachable attachments are logged and left untouched. The
// only error returned is a failure to store a fetched file.
func (e *Exporter) Rewrite(ctx context.Context, body string, parent Parent) (string, []Attachment, error) {
	matches := linkPattern.FindAllStringSubmatchIndex(body, -1)
	if len(matches) == 0 {
		return body, nil, nil
	}

	var (
		b           strings.Builder
		attachments []Attachment
		last        int
	)
	for _, m := range matches {
		ref := Parse(body[m[2]:m[3]], body[m[4]:m[5]])
		b.WriteString(body[last:m[0]])
		last = m[1]

		a, ok, err := e.export(ctx, ref, parent)
		if err != nil {
			return "", nil, err
		}
		if !ok {
			b.WriteString(ref.MarkdownLink(ref.Link))
			continue
		}
		b.WriteString(ref.MarkdownLink(a.URL))
		attachments = append(attachments, a)
	}
	b.WriteString(body[last:])
	return b.String(), attachments, nil
}

func (e *Exporter) export(ctx context.Context, ref Reference, parent Parent) (Attachment, bool, error) {
	p := ref.Path()
	filename := ref.Filename()
	url := e.urls.Attachment(e.repo, p.Encode())

	entry := e.cache.entry(filename)
	entry.once.Do(func() {
		ct, err := e.source.AttachmentContentType(ctx, e.repo, p)
		if err != nil {
			ct = UnknownContentType
		}
		entry.contentType = ct
		if !Supported(ct) {
			return
		}
		data, err := e.source.Attachment(ctx, e.repo, p)
		if err != nil {
			entry.fetchErr = err
			return
		}
		if err := e.store.SaveAttachment(filename, data); err != nil {
			entry.saveErr = fmt.Errorf("saving attachment %s: %w", filename, err)
		}
	})

	if entry.saveErr != nil {
		return Attachment{}, false, entry.saveErr
	}
	if !Supported(entry.contentType) || entry.fetchErr != nil {
		e.log.Log(logging.Entry{
			Severity:        logging.SeverityWarn,
			ModelName:       string(model.ModelAttachment),
			ModelURL:        url,
			Message:         fmt.Sprintf("was skipped because the content type `%s` is not supported or unable to fetch attachment.", entry.contentType),
			ParentModelName: parent.ModelName,
			ParentModelURL:  parent.ModelURL,
			Console:         true,
		})
		return Attachment{}, false, nil
	}

	return Attachment{
		Reference:   ref,
		Path:        p,
		Filename:    filename,
		URL:         url,
		AssetURL:    ref.AssetURL(),
		ContentType: entry.contentType,
		Parent:      parent,
	}, true, nil
}
