package gate

import "context"

// BuildReportSource returns the build reports recorded for a commit.
// A commit without reports yields an empty slice, not an error.
type BuildReportSource interface {
	ReportsFor(ctx context.Context, commitID string) ([]BuildReport, error)
}

// HistorySource reads commit history of one repository.
type HistorySource interface {
	// RecentCommits returns up to limit commits reachable from start,
	// most recent first. The start commit itself is included.
	RecentCommits(ctx context.Context, start string, limit int) ([]Commit, error)

	// CommitByID returns a single commit.
	CommitByID(ctx context.Context, id string) (Commit, error)
}

// RepositoryMetadata exposes repository-level settings.
type RepositoryMetadata interface {
	// DefaultBranchID returns the fully qualified default branch ref,
	// for example refs/heads/main.
	DefaultBranchID(ctx context.Context) (string, error)
}

// Sources bundles the collaborators a gate consults.
type Sources struct {
	Reports  BuildReportSource
	History  HistorySource
	Metadata RepositoryMetadata
}

// StaticBranch is a RepositoryMetadata with a fixed default branch.
type StaticBranch string

// DefaultBranchID implements RepositoryMetadata.
func (b StaticBranch) DefaultBranchID(ctx context.Context) (string, error) {
	return BranchRef(string(b)), nil
}
