package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)

		fields, err := configFields(cfg)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			w.Warn("configuration is incomplete: %v", err)
		}
		w.Fields(fields)
		return nil
	},
}

func configFields(cfg *config.Config) (map[string]any, error) {
	fields := cfg.Redacted()
	fields["work_dir"] = cfg.Dir
	fields["config_file"] = formatEnvValue(cfg.File)
	fields["log_file"] = cfg.LogPath
	fields["BBS_EXPORTER_PATH"] = formatEnvValue(os.Getenv("BBS_EXPORTER_PATH"))

	exists, err := cfg.Exists()
	if err != nil {
		return nil, err
	}
	fields["store"] = "(not created)"
	if exists {
		fields["store"] = cfg.DBPath
	}
	return fields, nil
}

func formatEnvValue(val string) string {
	if val == "" {
		return "(not set)"
	}
	return val
}

func init() {
	rootCmd.AddCommand(configCmd)
}
