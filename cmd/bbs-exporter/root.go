package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/bitbucket"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/config"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/exporter"
	"github.com/ALT-F4-LLC/bbs-exporter/internal/output"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

type contextKey string

const cfgKey contextKey = "cfg"

// CmdError wraps an error with a machine-readable error code for structured output.
type CmdError struct {
	Err  error
	Code output.ErrorCode
}

func (e *CmdError) Error() string { return e.Err.Error() }
func (e *CmdError) Unwrap() error { return e.Err }

func cmdErr(err error, code output.ErrorCode) *CmdError {
	return &CmdError{Err: err, Code: code}
}

// flagKeys maps persistent flags onto configuration keys. Only flags the
// user set override lower layers.
var flagKeys = map[string]string{
	"url":           "bitbucket.url",
	"username":      "bitbucket.username",
	"token":         "bitbucket.token",
	"output":        "export.output",
	"page-size":     "export.page_size",
	"concurrency":   "export.concurrency",
	"target-url":    "export.target_url",
	"user-mappings": "export.user_mappings",
}

var rootCmd = &cobra.Command{
	Use:     "bbs-exporter",
	Short:   "Export Bitbucket Server projects into a migration archive",
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, ok := cmd.Annotations["skipConfig"]; ok {
			return nil
		}
		file, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(config.Options{File: file, Overrides: overrides(cmd.Flags())})
		if err != nil {
			return cmdErr(err, output.ErrValidation)
		}
		cmd.SetContext(context.WithValue(cmd.Context(), cfgKey, cfg))
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.Bool("json", false, "Output in JSON format")
	pf.BoolP("quiet", "q", false, "Suppress non-essential output")
	pf.StringP("config", "c", "", "Path to a TOML config file")
	pf.String("url", "", "Bitbucket Server base URL")
	pf.StringP("username", "u", "", "Bitbucket Server username")
	pf.StringP("token", "t", "", "Bitbucket Server access token")
	pf.Bool("no-ssl-verify", false, "Skip TLS certificate verification")
	pf.StringP("output", "o", "", "Path of the archive to write")
	pf.Int("page-size", 0, "Records per archive page file")
	pf.Int("concurrency", 0, "Pull requests exported at once")
	pf.String("target-url", "", "Destination organization URL for URL mappings")
	pf.String("user-mappings", "", "CSV file of source,target user mappings")
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

func overrides(flags *pflag.FlagSet) map[string]any {
	out := make(map[string]any)
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		switch f.Value.Type() {
		case "int":
			n, _ := flags.GetInt(name)
			out[key] = n
		default:
			out[key] = f.Value.String()
		}
	}
	if noVerify, _ := flags.GetBool("no-ssl-verify"); noVerify {
		out["bitbucket.ssl_verify"] = false
	}
	return out
}

func getWriter(cmd *cobra.Command) *output.Writer {
	jsonMode, _ := cmd.Flags().GetBool("json")
	quietMode, _ := cmd.Flags().GetBool("quiet")
	return output.New(jsonMode, quietMode)
}

func getCfg(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(cfgKey).(*config.Config)
	return cfg
}

// errorCode classifies errors that reach Execute without a CmdError.
func errorCode(err error) output.ErrorCode {
	var apiErr *bitbucket.APIError
	switch {
	case exporter.IsFatal(err):
		return output.ErrArchive
	case bitbucket.IsNotFound(err):
		return output.ErrNotFound
	case errors.As(err, &apiErr):
		return output.ErrUpstream
	default:
		return output.ErrGeneral
	}
}

// Execute runs the root command and returns an exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		jsonMode, _ := rootCmd.PersistentFlags().GetBool("json")
		quietMode, _ := rootCmd.PersistentFlags().GetBool("quiet")
		w := output.New(jsonMode, quietMode)

		var ce *CmdError
		if errors.As(err, &ce) {
			return w.Error(ce.Err, ce.Code)
		}
		return w.Error(err, errorCode(err))
	}
	return 0
}
