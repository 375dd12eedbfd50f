package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/archive"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/bitbucket"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/config"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/db"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/exporter"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/git"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/logging"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/model"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/modelurl"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/output"
)

type exportResult struct {
	RunID        string `json:"run_id"`
	Output       string `json:"output"`
	SizeBytes    int64  `json:"size_bytes"`
	Checksum     string `json:"checksum"`
	Repositories int    `json:"repositories"`
	Exported     int64  `json:"exported"`
	Skipped      int64  `json:"skipped"`
	Failed       int64  `json:"failed"`
	LogPath      string `json:"log_path"`
}

var exportCmd = &cobra.Command{
	Use:   "export PROJECT[/repo]...",
	Short: "Export projects or repositories into a migration archive",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)

		if err := cfg.Validate(); err != nil {
			return cmdErr(err, output.ErrValidation)
		}
		targets := make([]exporter.Target, 0, len(args))
		for _, a := range args {
			t, err := exporter.ParseTarget(a)
			if err != nil {
				return cmdErr(err, output.ErrValidation)
			}
			targets = append(targets, t)
		}

		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return cmdErr(fmt.Errorf("creating work directory: %w", err), output.ErrGeneral)
		}
		conn, err := db.OpenStore(cfg.DBPath)
		if err != nil {
			return cmdErr(fmt.Errorf("opening record store: %w", err), output.ErrGeneral)
		}
		defer conn.Close()

		// Each run starts from an empty store and staging directory.
		if err := db.ClearAllData(conn); err != nil {
			return cmdErr(fmt.Errorf("clearing record store: %w", err), output.ErrGeneral)
		}
		if err := os.RemoveAll(cfg.StagingDir); err != nil {
			return cmdErr(fmt.Errorf("clearing staging directory: %w", err), output.ErrGeneral)
		}

		runID := uuid.NewString()
		if err := db.SetMeta(conn, "run_id", runID); err != nil {
			return cmdErr(err, output.ErrGeneral)
		}

		fileLog, err := logging.Open(cfg.LogPath, w)
		if err != nil {
			return cmdErr(err, output.ErrGeneral)
		}
		defer fileLog.Close()
		log := fileLog.With("run_id", runID)

		client, err := newClient(cfg)
		if err != nil {
			return cmdErr(err, output.ErrValidation)
		}
		urls, err := modelurl.New(client.BaseURL())
		if err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		var users []model.URLMapping
		if cfg.Export.UserMappings != "" {
			users, err = exporter.LoadUserMappings(cfg.Export.UserMappings, client.BaseURL())
			if err != nil {
				return cmdErr(err, output.ErrValidation)
			}
		}

		g := git.New(git.NewExecRunner(), cfg.Bitbucket.SSLVerify, git.WithPassword(cfg.Bitbucket.Token))
		builder, err := archive.New(conn, cfg.StagingDir, g, archive.WithPageSize(cfg.Export.PageSize))
		if err != nil {
			return cmdErr(err, output.ErrGeneral)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		runner := exporter.NewRunner(client, builder, urls, log, w, exporter.Options{
			Concurrency:  cfg.Export.Concurrency,
			TargetURL:    cfg.Export.TargetURL,
			Username:     cfg.Bitbucket.Username,
			UserMappings: users,
		})
		sum, err := runner.Run(ctx, targets, cfg.Export.Output)
		if err != nil {
			log.LogException(err, "export aborted", map[string]string{"output": cfg.Export.Output})
			if errors.Is(err, context.Canceled) {
				return cmdErr(fmt.Errorf("export interrupted"), output.ErrGeneral)
			}
			return cmdErr(err, errorCode(err))
		}

		res := exportResult{
			RunID:        runID,
			Output:       sum.Archive.Path,
			SizeBytes:    sum.Archive.Size,
			Checksum:     sum.Archive.Checksum,
			Repositories: sum.Repositories,
			Exported:     sum.Exported,
			Skipped:      sum.Skipped,
			Failed:       sum.Failed,
			LogPath:      cfg.LogPath,
		}
		w.Success(res, fmt.Sprintf("Exported %d %s to %s (%s)",
			res.Repositories, plural(res.Repositories, "repository", "repositories"),
			res.Output, humanize.Bytes(uint64(res.SizeBytes))))
		if !w.JSONMode && !w.QuietMode {
			w.Fields(map[string]any{
				"pull requests exported": humanize.Comma(res.Exported),
				"pull requests skipped":  humanize.Comma(res.Skipped),
				"pull requests failed":   humanize.Comma(res.Failed),
				"blake3":                 res.Checksum,
				"log":                    res.LogPath,
			})
		}
		if res.Failed > 0 {
			w.Warn("%d pull %s failed, see %s", res.Failed, plural(int(res.Failed), "request", "requests"), res.LogPath)
		}
		return nil
	},
}

func newClient(cfg *config.Config) (*bitbucket.Client, error) {
	opts := []bitbucket.Option{bitbucket.WithPageLimit(cfg.Export.PageSize)}
	if !cfg.Bitbucket.SSLVerify {
		opts = append(opts, bitbucket.WithInsecureSkipVerify())
	}
	return bitbucket.New(cfg.Bitbucket.URL, cfg.Bitbucket.Username, cfg.Bitbucket.Token, opts...)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
