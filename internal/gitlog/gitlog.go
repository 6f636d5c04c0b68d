// Package gitlog reads commit history with the git command line client. It
// serves pre-receive hooks, where pushed objects are only visible to git
// processes started from the hook environment.
package gitlog

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"buildgate/internal/gate"
	"buildgate/internal/security"
)

const (
	fieldSep  = "\x1f"
	logFormat = "--format=%H%x1f%B"

	// DefaultTimeout bounds a single git invocation.
	DefaultTimeout = 30 * time.Second
)

// Repository implements gate.HistorySource and gate.RepositoryMetadata on
// top of a local git repository.
type Repository struct {
	executor *security.SandboxedExecutor
	command  []string
}

// New returns a Repository running command (for example ["git"]) in dir.
// The process environment is inherited so hook quarantine variables reach git.
func New(dir string, command []string) *Repository {
	executor := security.NewSandboxedExecutor(dir)
	executor.Timeout = DefaultTimeout

	if len(command) == 0 {
		command = []string{"git"}
	}
	return &Repository{
		executor: executor,
		command:  command,
	}
}

// RecentCommits returns up to limit commits reachable from start, newest
// first. start is a commit hash or a full branch ref.
func (r *Repository) RecentCommits(ctx context.Context, start string, limit int) ([]gate.Commit, error) {
	if limit <= 0 {
		return nil, nil
	}
	if err := validateRevision(start); err != nil {
		return nil, err
	}

	output, err := r.git(ctx, "log", "-z", "--max-count="+strconv.Itoa(limit), logFormat, start, "--")
	if err != nil {
		return nil, fmt.Errorf("failed to read history from %s: %w", start, err)
	}

	return parseLog(output)
}

// CommitByID returns a single commit.
func (r *Repository) CommitByID(ctx context.Context, id string) (gate.Commit, error) {
	if err := security.ValidateCommitHash(id); err != nil {
		return gate.Commit{}, err
	}

	commits, err := r.RecentCommits(ctx, id, 1)
	if err != nil {
		return gate.Commit{}, err
	}
	if len(commits) == 0 {
		return gate.Commit{}, fmt.Errorf("commit %s not found", id)
	}
	return commits[0], nil
}

// DefaultBranchID returns the branch HEAD points to, which is the default
// branch of a bare repository.
func (r *Repository) DefaultBranchID(ctx context.Context) (string, error) {
	output, err := r.git(ctx, "symbolic-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	ref := strings.TrimSpace(string(output))
	if !strings.HasPrefix(ref, "refs/heads/") {
		return "", fmt.Errorf("HEAD points to %q, not a branch", ref)
	}
	return ref, nil
}

func (r *Repository) git(ctx context.Context, args ...string) ([]byte, error) {
	cmdParts := make([]string, 0, len(r.command)+len(args))
	cmdParts = append(cmdParts, r.command...)
	cmdParts = append(cmdParts, args...)
	return r.executor.Execute(ctx, cmdParts)
}

func validateRevision(rev string) error {
	if strings.HasPrefix(rev, "refs/heads/") {
		return security.ValidateBranchName(gate.BranchName(rev))
	}
	return security.ValidateCommitHash(rev)
}

// parseLog splits `git log -z --format=%H%x1f%B` output into commits.
func parseLog(output []byte) ([]gate.Commit, error) {
	var commits []gate.Commit
	for _, record := range bytes.Split(output, []byte{0}) {
		entry := strings.TrimLeft(string(record), "\n")
		if entry == "" {
			continue
		}

		hash, message, ok := strings.Cut(entry, fieldSep)
		if !ok {
			return nil, fmt.Errorf("malformed git log record %q", entry)
		}
		commits = append(commits, gate.Commit{
			ID:        hash,
			DisplayID: gate.ShortID(hash),
			Message:   strings.TrimRight(message, "\n"),
		})
	}
	return commits, nil
}
