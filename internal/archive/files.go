package archive

import (
	"archive/tar"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/zeebo/blake3"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/db"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/model"
)

// PageFilename names page n (from 1) of modelType, e.g. "users_000001.json".
func PageFilename(modelType model.ModelType, n int) string {
	return fmt.Sprintf("%ss_%06d.json", modelType, n)
}

type schema struct {
	Version string `json:"version"`
}

// WriteFiles lays out every stored record as page files and writes
// schema.json and urls.json.
func (b *Builder) WriteFiles(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.removePages(); err != nil {
		return err
	}

	types, err := db.ListModelTypes(b.db)
	if err != nil {
		return err
	}
	for _, t := range types {
		pages, err := db.PageCount(b.db, t)
		if err != nil {
			return err
		}
		for n := 1; n <= pages; n++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			records, err := db.ListPage(b.db, t, n)
			if err != nil {
				return err
			}
			if err := b.writeJSON(PageFilename(t, n), records); err != nil {
				return err
			}
		}
	}

	if err := b.writeJSON("schema.json", schema{Version: SchemaVersion}); err != nil {
		return err
	}

	mappings, err := db.ListURLMappings(b.db)
	if err != nil {
		return err
	}
	sort.SliceStable(mappings, func(i, j int) bool {
		if mappings[i].ModelName != mappings[j].ModelName {
			return mappings[i].ModelName < mappings[j].ModelName
		}
		return mappings[i].SourceURL < mappings[j].SourceURL
	})
	return b.writeJSON("urls.json", mappings)
}

// removePages deletes page files left by an earlier WriteFiles.
func (b *Builder) removePages() error {
	matches, err := filepath.Glob(filepath.Join(b.dir, "*s_[0-9][0-9][0-9][0-9][0-9][0-9].json"))
	if err != nil {
		return fmt.Errorf("listing pages: %w", err)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			return fmt.Errorf("removing stale page: %w", err)
		}
	}
	return nil
}

func (b *Builder) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	return writeFileAtomic(filepath.Join(b.dir, name), append(data, '\n'))
}

// CreateTar streams the staging directory to w as a gzip'd tarball. Entries
// are sorted and headers carry no times or owners, so the same staging tree
// always produces the same bytes.
func (b *Builder) CreateTar(ctx context.Context, w io.Writer) error {
	zw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("creating gzip writer: %w", err)
	}
	tw := tar.NewWriter(zw)

	err = filepath.WalkDir(b.dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(b.dir, path)
		if err != nil {
			return err
		}
		if rel == "." || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		return addEntry(tw, path, filepath.ToSlash(rel), d)
	})
	if err != nil {
		return fmt.Errorf("writing tarball: %w", err)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing tar writer: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing gzip writer: %w", err)
	}
	return nil
}

func addEntry(tw *tar.Writer, path, name string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	var link string
	if info.Mode()&fs.ModeSymlink != 0 {
		if link, err = os.Readlink(path); err != nil {
			return err
		}
	}
	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.ModTime = time.Unix(0, 0)
	hdr.AccessTime = time.Time{}
	hdr.ChangeTime = time.Time{}
	hdr.Uid, hdr.Gid = 0, 0
	hdr.Uname, hdr.Gname = "", ""
	hdr.Format = tar.FormatPAX
	switch {
	case info.IsDir():
		hdr.Name += "/"
		hdr.Mode = 0o755
	case info.Mode().IsRegular():
		hdr.Mode = 0o644
	}

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(tw, f)
	return err
}

// Result describes a finished archive.
type Result struct {
	Path     string
	Size     int64
	Checksum string // BLAKE3, hex
}

// Finalize writes the archive files and packages the staging directory into
// a tarball at path.
func (b *Builder) Finalize(ctx context.Context, path string) (Result, error) {
	if err := b.WriteFiles(ctx); err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Result{}, fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return Result{}, fmt.Errorf("creating archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	hasher := blake3.New()
	counter := &countingWriter{}
	if err := b.CreateTar(ctx, io.MultiWriter(tmp, hasher, counter)); err != nil {
		tmp.Close()
		return Result{}, err
	}
	if err := tmp.Close(); err != nil {
		return Result{}, fmt.Errorf("closing archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return Result{}, fmt.Errorf("moving archive into place: %w", err)
	}

	return Result{
		Path:     path,
		Size:     counter.n,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
