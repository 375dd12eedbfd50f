package archive

import (
	"archive/tar"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/model"
)

var pageName = regexp.MustCompile(`^([a-z_]+)s_(\d{6})\.json$`)

// Entry is one file or directory inside an archive.
type Entry struct {
	Name      string
	Size      int64
	Dir       bool
	ModelType model.ModelType // set for page files
	Records   int             // records in a page file
}

// PullRequestSummary is the part of a pull_request record shown by inspect.
type PullRequestSummary struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Contents describes an archive read back from disk.
type Contents struct {
	Entries      []Entry
	Counts       map[model.ModelType]int
	SchemaVer    string
	PullRequests []PullRequestSummary
}

// Inspect reads a gzip'd archive tarball. Page files are decoded to count
// their records; pull request titles and bodies are kept.
func Inspect(r io.Reader) (*Contents, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer zr.Close()

	c := &Contents{Counts: make(map[model.ModelType]int)}
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar entry: %w", err)
		}

		e := Entry{
			Name: strings.TrimSuffix(hdr.Name, "/"),
			Size: hdr.Size,
			Dir:  hdr.Typeflag == tar.TypeDir,
		}
		switch {
		case e.Name == "schema.json":
			var s schema
			if err := json.NewDecoder(tr).Decode(&s); err != nil {
				return nil, fmt.Errorf("decoding schema.json: %w", err)
			}
			c.SchemaVer = s.Version
		case pageName.MatchString(e.Name):
			e.ModelType = model.ModelType(pageName.FindStringSubmatch(e.Name)[1])
			n, err := c.readPage(tr, e.ModelType)
			if err != nil {
				return nil, fmt.Errorf("decoding %s: %w", e.Name, err)
			}
			e.Records = n
			c.Counts[e.ModelType] += n
		}
		c.Entries = append(c.Entries, e)
	}
	return c, nil
}

func (c *Contents) readPage(r io.Reader, t model.ModelType) (int, error) {
	if t == model.ModelPullRequest {
		var prs []PullRequestSummary
		if err := json.NewDecoder(r).Decode(&prs); err != nil {
			return 0, err
		}
		c.PullRequests = append(c.PullRequests, prs...)
		return len(prs), nil
	}
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return 0, err
	}
	return len(raw), nil
}
