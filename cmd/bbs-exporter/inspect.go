package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/archive"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/output"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/render"
)

type inspectResult struct {
	Path          string                       `json:"path"`
	SchemaVersion string                       `json:"schema_version"`
	Counts        map[string]int               `json:"counts"`
	Files         []inspectFile                `json:"files"`
	PullRequests  []archive.PullRequestSummary `json:"pull_requests,omitempty"`
}

type inspectFile struct {
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	Model   string `json:"model,omitempty"`
	Records int    `json:"records,omitempty"`
}

var inspectCmd = &cobra.Command{
	Use:         "inspect ARCHIVE",
	Short:       "Summarize the contents of a migration archive",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{"skipConfig": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		bodies, _ := cmd.Flags().GetBool("bodies")

		f, err := os.Open(args[0])
		if err != nil {
			if os.IsNotExist(err) {
				return cmdErr(fmt.Errorf("archive %s not found", args[0]), output.ErrNotFound)
			}
			return cmdErr(err, output.ErrGeneral)
		}
		defer f.Close()

		contents, err := archive.Inspect(f)
		if err != nil {
			return cmdErr(fmt.Errorf("reading %s: %w", args[0], err), output.ErrValidation)
		}

		res := inspectResult{
			Path:          args[0],
			SchemaVersion: contents.SchemaVer,
			Counts:        make(map[string]int, len(contents.Counts)),
		}
		var total int64
		for t, n := range contents.Counts {
			res.Counts[string(t)] = n
		}
		for _, e := range contents.Entries {
			if e.Dir {
				continue
			}
			total += e.Size
			res.Files = append(res.Files, inspectFile{Name: e.Name, Size: e.Size, Model: string(e.ModelType), Records: e.Records})
		}
		if bodies {
			res.PullRequests = contents.PullRequests
		}

		if w.JSONMode {
			w.Success(res, "")
			return nil
		}

		msg := fmt.Sprintf("%s: schema %s, %d files, %s uncompressed\n\n%s\n\n%s\n\n%s",
			res.Path, res.SchemaVersion, len(res.Files), humanize.Bytes(uint64(total)),
			render.RenderRepositoryTree(contents.Entries),
			render.RenderCounts(contents.Counts),
			render.RenderEntries(contents.Entries))
		if bodies && len(contents.PullRequests) > 0 {
			prs, err := render.RenderPullRequests(contents.PullRequests)
			if err != nil {
				return cmdErr(err, output.ErrGeneral)
			}
			msg += "\n\n" + prs
		}
		w.Success(res, msg)
		return nil
	},
}

func init() {
	inspectCmd.Flags().Bool("bodies", false, "Render pull request titles and descriptions")
	rootCmd.AddCommand(inspectCmd)
}
