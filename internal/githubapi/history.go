package githubapi

import (
	"context"
	"fmt"

	"buildgate/internal/gate"

	"github.com/google/go-github/v57/github"
)

// RecentCommits lists up to limit commits reachable from start, newest
// first. start may be a commit hash or a branch ref.
func (r *Repository) RecentCommits(ctx context.Context, start string, limit int) ([]gate.Commit, error) {
	if limit <= 0 {
		return nil, nil
	}

	opts := &github.CommitsListOptions{
		SHA:         gate.BranchName(start),
		ListOptions: github.ListOptions{PerPage: limit},
	}
	listed, _, err := r.client.Repositories.ListCommits(ctx, r.owner, r.repo, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list commits from %s: %w", start, err)
	}

	if len(listed) > limit {
		listed = listed[:limit]
	}
	commits := make([]gate.Commit, 0, len(listed))
	for _, c := range listed {
		commits = append(commits, toCommit(c))
	}
	return commits, nil
}

// CommitByID fetches a single commit.
func (r *Repository) CommitByID(ctx context.Context, id string) (gate.Commit, error) {
	c, _, err := r.client.Repositories.GetCommit(ctx, r.owner, r.repo, id, nil)
	if err != nil {
		return gate.Commit{}, fmt.Errorf("failed to get commit %s: %w", id, err)
	}
	return toCommit(c), nil
}

// DefaultBranchID returns the repository's default branch as a full ref.
func (r *Repository) DefaultBranchID(ctx context.Context) (string, error) {
	repo, _, err := r.client.Repositories.Get(ctx, r.owner, r.repo)
	if err != nil {
		return "", fmt.Errorf("failed to get repository %s: %w", r.FullName(), err)
	}
	if repo.GetDefaultBranch() == "" {
		return "", fmt.Errorf("repository %s has no default branch", r.FullName())
	}
	return gate.BranchRef(repo.GetDefaultBranch()), nil
}

func toCommit(c *github.RepositoryCommit) gate.Commit {
	return gate.Commit{
		ID:        c.GetSHA(),
		DisplayID: gate.ShortID(c.GetSHA()),
		Message:   c.GetCommit().GetMessage(),
	}
}
