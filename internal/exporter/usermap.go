package exporter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/model"
)

const defaultTargetHost = "https://github.com/"

// ParseUserMappings reads "source,target" lines. A source that is not a URL
// is a user slug under <baseURL>/users/; a target that is not a URL is a
// login on github.com. Blank lines are ignored.
func ParseUserMappings(r io.Reader, baseURL string) ([]model.URLMapping, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var mappings []model.URLMapping
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return mappings, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading user mappings: %w", err)
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		if len(row) != 2 {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("user mappings line %d: want source,target", line)
		}
		source, target := strings.TrimSpace(row[0]), strings.TrimSpace(row[1])
		if source == "" || target == "" {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("user mappings line %d: empty source or target", line)
		}

		if !isHTTP(source) {
			u := *base
			u.Path = path.Join(u.Path, "users", source)
			source = u.String()
		}
		if !isHTTP(target) {
			target = defaultTargetHost + target
		}
		mappings = append(mappings, model.URLMapping{
			ModelName: string(model.ModelUser),
			SourceURL: source,
			TargetURL: target,
			Action:    model.ActionMap,
		})
	}
}

// LoadUserMappings reads the mappings file at path.
func LoadUserMappings(path, baseURL string) ([]model.URLMapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening user mappings: %w", err)
	}
	defer f.Close()
	return ParseUserMappings(f, baseURL)
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
