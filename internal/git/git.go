// Package git mirrors repositories and recreates branches inside the
// mirrors by shelling out to git.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// ErrObjectNotFound is returned by UpdateRef when the target commit is not in
// the repository's object store, typically because it lived in a fork that
// has since been deleted. Callers may treat it as recoverable.
var ErrObjectNotFound = errors.New("object not found")

// missingObject matches git's wording for an absent object. It is only
// consulted when update-ref fails after the explicit object probe passed.
var missingObject = regexp.MustCompile(`(?i)nonexistent object|not a valid (object|sha1)|bad object`)

// passwordEnv carries the clone password to the credential helper so it
// never appears in argv or in the clone URL.
const passwordEnv = "BBS_EXPORTER_GIT_PASSWORD"

// credentialHelper answers git's "get" request with the password from
// passwordEnv.
const credentialHelper = `!f() { test "$1" = get && echo "password=$` + passwordEnv + `"; }; f`

// Git runs git commands through a CommandRunner.
type Git struct {
	runner    CommandRunner
	binary    string
	sslVerify bool
	password  string
}

// Option configures a Git.
type Option func(*Git)

// WithPassword answers HTTP authentication prompts with password, which is
// typically a Bitbucket Server access token.
func WithPassword(password string) Option {
	return func(g *Git) { g.password = password }
}

// New returns a Git using runner. When sslVerify is false, clones skip TLS
// certificate verification.
func New(runner CommandRunner, sslVerify bool, opts ...Option) *Git {
	g := &Git{runner: runner, binary: "git", sslVerify: sslVerify}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Git) env() []string {
	env := []string{"GIT_TERMINAL_PROMPT=0"}
	if !g.sslVerify {
		env = append(env, "GIT_SSL_NO_VERIFY=true")
	}
	if g.password != "" {
		// The empty helper resets any helpers from the user's git config.
		env = append(env,
			passwordEnv+"="+g.password,
			"GIT_CONFIG_COUNT=2",
			"GIT_CONFIG_KEY_0=credential.helper",
			"GIT_CONFIG_VALUE_0=",
			"GIT_CONFIG_KEY_1=credential.helper",
			"GIT_CONFIG_VALUE_1="+credentialHelper,
		)
	}
	return env
}

func (g *Git) run(ctx context.Context, workDir string, args ...string) (string, error) {
	return g.runner.Run(ctx, workDir, g.env(), g.binary, args...)
}

// Clone mirrors url into target. Anything already at target is removed
// first, so a re-run starts from a clean mirror.
func (g *Git) Clone(ctx context.Context, url, target string) error {
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("removing %s: %w", target, err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
	}
	if _, err := g.run(ctx, "", "clone", "--mirror", url, target); err != nil {
		return fmt.Errorf("cloning into %s: %w", target, err)
	}
	return nil
}

// BranchExists reports whether refs/heads/<name> exists in repoPath.
func (g *Git) BranchExists(ctx context.Context, repoPath, name string) (bool, error) {
	_, err := g.run(ctx, repoPath, "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	if err == nil {
		return true, nil
	}
	if exitCode(err) == 1 {
		return false, nil
	}
	return false, fmt.Errorf("checking branch %s: %w", name, err)
}

// ObjectExists reports whether the commit sha is present in repoPath.
func (g *Git) ObjectExists(ctx context.Context, repoPath, sha string) (bool, error) {
	_, err := g.run(ctx, repoPath, "cat-file", "-e", sha+"^{commit}")
	if err == nil {
		return true, nil
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && (cmdErr.ExitCode == 1 || missingObject.MatchString(cmdErr.Output)) {
		return false, nil
	}
	return false, fmt.Errorf("checking object %s: %w", sha, err)
}

// UpdateRef creates branch name at sha in the bare repository at repoPath.
// It is a no-op when the branch already exists. A missing sha yields an
// error wrapping ErrObjectNotFound; any other failure is returned as is.
func (g *Git) UpdateRef(ctx context.Context, repoPath, name, sha string) error {
	exists, err := g.BranchExists(ctx, repoPath, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	found, err := g.ObjectExists(ctx, repoPath, sha)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("creating branch %s at %s: %w", name, sha, ErrObjectNotFound)
	}

	if _, err := g.run(ctx, repoPath, "update-ref", "refs/heads/"+name, sha); err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && missingObject.MatchString(cmdErr.Output) {
			return fmt.Errorf("creating branch %s at %s: %w", name, sha, ErrObjectNotFound)
		}
		return fmt.Errorf("creating branch %s at %s: %w", name, sha, err)
	}
	return nil
}
