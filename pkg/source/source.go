// Package source materializes source trees for pipeline runs by
// cloning the configured git remote and checking out trigger commits.
package source

import (
	"context"
	"fmt"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rs/zerolog"

	"github.com/slipway-sh/slipway/pkg/log"
)

// Workspace is a checked-out source tree for one pipeline run.
type Workspace struct {
	Dir      string
	CommitID string
}

// Remove deletes the checked-out tree.
func (w Workspace) Remove() error {
	if w.Dir == "" {
		return nil
	}
	return os.RemoveAll(w.Dir)
}

// Fetcher materializes the source tree for a trigger commit.
type Fetcher interface {
	Fetch(ctx context.Context, commit string) (Workspace, error)
}

// GitFetcher clones a git remote and checks out trigger commits into
// fresh working directories.
type GitFetcher struct {
	remote  string
	baseDir string
	logger  zerolog.Logger
}

// NewGitFetcher creates a fetcher cloning from remote into directories
// under baseDir. An empty baseDir uses the system temp directory.
func NewGitFetcher(remote, baseDir string) *GitFetcher {
	return &GitFetcher{
		remote:  remote,
		baseDir: baseDir,
		logger:  log.WithComponent("source"),
	}
}

// Fetch clones the remote and checks out the given commit. The commit
// may be a full or abbreviated hash; the returned workspace carries the
// resolved full hash.
func (f *GitFetcher) Fetch(ctx context.Context, commit string) (Workspace, error) {
	dir, err := os.MkdirTemp(f.baseDir, "slipway-src-")
	if err != nil {
		return Workspace{}, fmt.Errorf("failed to create workdir: %w", err)
	}

	f.logger.Debug().
		Str("remote", f.remote).
		Str("commit", commit).
		Str("dir", dir).
		Msg("Cloning source")

	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL: f.remote,
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return Workspace{}, fmt.Errorf("failed to clone %s: %w", f.remote, err)
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(commit))
	if err != nil {
		_ = os.RemoveAll(dir)
		return Workspace{}, fmt.Errorf("commit %s not found in %s: %w", commit, f.remote, err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		_ = os.RemoveAll(dir)
		return Workspace{}, fmt.Errorf("failed to open worktree: %w", err)
	}

	if err := worktree.Checkout(&git.CheckoutOptions{Hash: *hash}); err != nil {
		_ = os.RemoveAll(dir)
		return Workspace{}, fmt.Errorf("failed to checkout %s: %w", commit, err)
	}

	f.logger.Info().
		Str("commit", hash.String()).
		Str("dir", dir).
		Msg("Source checked out")

	return Workspace{Dir: dir, CommitID: hash.String()}, nil
}
