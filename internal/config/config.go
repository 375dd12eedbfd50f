package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix    = "BBS_EXPORTER_"
	envPath      = envPrefix + "PATH"
	dirName      = ".bbs-exporter"
	dbFileName   = "export.db"
	configFile   = "config.toml"
	logFileName  = "bbs-exporter.log"
	stagingDir   = "staging"
	redactedMask = "********"
)

// Bitbucket holds the connection settings for the source instance.
type Bitbucket struct {
	URL       string `koanf:"url"`
	Username  string `koanf:"username"`
	Token     string `koanf:"token"`
	SSLVerify bool   `koanf:"ssl_verify"`
}

// Export holds the settings of one export run.
type Export struct {
	PageSize     int    `koanf:"page_size"`
	Concurrency  int    `koanf:"concurrency"`
	Output       string `koanf:"output"`
	TargetURL    string `koanf:"target_url"`
	UserMappings string `koanf:"user_mappings"`
}

// Config holds resolved configuration for the work directory and an export.
type Config struct {
	Bitbucket Bitbucket `koanf:"bitbucket"`
	Export    Export    `koanf:"export"`

	Dir        string `koanf:"-"` // resolved .bbs-exporter directory
	DBPath     string `koanf:"-"`
	LogPath    string `koanf:"-"`
	StagingDir string `koanf:"-"`
	File       string `koanf:"-"` // config file that was loaded, if any
	EnvVarSet  bool   `koanf:"-"` // whether BBS_EXPORTER_PATH was used
}

// Defaults returns the built-in values every other source overrides.
func Defaults() map[string]any {
	return map[string]any{
		"bitbucket.ssl_verify": true,
		"export.page_size":     1000,
		"export.concurrency":   4,
		"export.output":        "migration_archive.tar.gz",
	}
}

// ResolveDir returns the work directory: BBS_EXPORTER_PATH when set,
// otherwise $PWD/.bbs-exporter. The bool reports whether the env var was
// used.
func ResolveDir() (string, bool, error) {
	if p := os.Getenv(envPath); p != "" {
		return p, true, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, err
	}
	return filepath.Join(cwd, dirName), false, nil
}

// Options controls Load.
type Options struct {
	// File is an explicit TOML file. It must exist. When empty,
	// <dir>/config.toml is read if present.
	File string
	// Overrides are applied last, typically from command-line flags.
	Overrides map[string]any
}

// Load resolves configuration from, in increasing precedence: defaults, the
// TOML file, BBS_EXPORTER_* environment variables, and overrides.
func Load(opts Options) (*Config, error) {
	dir, envVarSet, err := ResolveDir()
	if err != nil {
		return nil, fmt.Errorf("resolving work directory: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	path := opts.File
	if path == "" {
		candidate := filepath.Join(dir, configFile)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if len(opts.Overrides) > 0 {
		if err := k.Load(confmap.Provider(opts.Overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("loading overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Dir = dir
	cfg.DBPath = filepath.Join(dir, dbFileName)
	cfg.LogPath = filepath.Join(dir, "log", logFileName)
	cfg.StagingDir = filepath.Join(dir, stagingDir)
	cfg.File = path
	cfg.EnvVarSet = envVarSet
	cfg.Bitbucket.URL = strings.TrimRight(strings.TrimSpace(cfg.Bitbucket.URL), "/")
	return &cfg, nil
}

// envKey maps BBS_EXPORTER_EXPORT_PAGE_SIZE to export.page_size: the first
// underscore separates the section from the key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// Validate reports settings an export cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.Bitbucket.URL == "" {
		errs = append(errs, errors.New("bitbucket.url is required"))
	}
	if c.Export.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("export.page_size must be positive, got %d", c.Export.PageSize))
	}
	if c.Export.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("export.concurrency must be positive, got %d", c.Export.Concurrency))
	}
	if c.Export.Output == "" {
		errs = append(errs, errors.New("export.output is required"))
	}
	return errors.Join(errs...)
}

// Redacted returns the settings as flat key/value pairs with the token
// masked.
func (c *Config) Redacted() map[string]any {
	token := ""
	if c.Bitbucket.Token != "" {
		token = redactedMask
	}
	return map[string]any{
		"bitbucket.url":        c.Bitbucket.URL,
		"bitbucket.username":   c.Bitbucket.Username,
		"bitbucket.token":      token,
		"bitbucket.ssl_verify": c.Bitbucket.SSLVerify,
		"export.page_size":     c.Export.PageSize,
		"export.concurrency":   c.Export.Concurrency,
		"export.output":        c.Export.Output,
		"export.target_url":    c.Export.TargetURL,
		"export.user_mappings": c.Export.UserMappings,
	}
}

// Exists checks if the work directory and DB file both exist.
// It returns an error for non-existence failures (e.g. permission errors).
func (c *Config) Exists() (bool, error) {
	for _, p := range []string{c.Dir, c.DBPath} {
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, err
		}
	}
	return true, nil
}
