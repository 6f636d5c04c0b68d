package gate

import (
	"context"
	"fmt"
)

// MergeGate decides whether a merge request into the default branch may be
// merged. Only the health of the destination branch is considered; unlike
// PushGate there is no fix claim override.
type MergeGate struct {
	scanner  *Scanner
	history  HistorySource
	metadata RepositoryMetadata
}

// NewMergeGate creates a merge gate over the given collaborators.
func NewMergeGate(src Sources, cfg Config) *MergeGate {
	return &MergeGate{
		scanner:  NewScanner(src.Reports, cfg),
		history:  src.History,
		metadata: src.Metadata,
	}
}

// Evaluate scans the destination branch starting at its current tip.
func (g *MergeGate) Evaluate(ctx context.Context, req MergeRequest) (Decision, error) {
	defaultBranch, err := g.metadata.DefaultBranchID(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to resolve default branch: %w", err)
	}

	branch := BranchName(defaultBranch)
	if req.TargetRef != "" && BranchRef(req.TargetRef) != defaultBranch {
		return allow(ReasonNotGated, BranchName(req.TargetRef)), nil
	}

	commits, err := g.history.RecentCommits(ctx, defaultBranch, g.scanner.Window())
	if err != nil {
		return Decision{}, fmt.Errorf("failed to list commits on %s: %w", branch, err)
	}
	verdict, err := g.scanner.Scan(ctx, commits)
	if err != nil {
		return Decision{}, err
	}

	switch verdict.State {
	case InProgress:
		return rejectPending(branch), nil
	case Failed:
		return vetoMergeBranchFailed(branch, verdict.Commit.DisplayID), nil
	default:
		return allow(ReasonBranchHealthy, branch), nil
	}
}
