package gate

import (
	"context"
	"fmt"
)

// PushGate decides whether a push that updates the default branch may be
// accepted. It is safe for concurrent use.
type PushGate struct {
	scanner  *Scanner
	history  HistorySource
	metadata RepositoryMetadata
}

// NewPushGate creates a push gate over the given collaborators.
func NewPushGate(src Sources, cfg Config) *PushGate {
	return &PushGate{
		scanner:  NewScanner(src.Reports, cfg),
		history:  src.History,
		metadata: src.Metadata,
	}
}

// EvaluateAll evaluates a push made of several ref changes. Only the change
// to the default branch is gated; a push that does not touch it is allowed.
func (g *PushGate) EvaluateAll(ctx context.Context, changes []RefChange) (Decision, error) {
	defaultBranch, err := g.metadata.DefaultBranchID(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to resolve default branch: %w", err)
	}

	for _, change := range changes {
		if change.RefID == defaultBranch {
			return g.evaluate(ctx, change, defaultBranch)
		}
	}
	return allow(ReasonNotGated, ""), nil
}

// Evaluate evaluates a single ref change.
func (g *PushGate) Evaluate(ctx context.Context, change RefChange) (Decision, error) {
	defaultBranch, err := g.metadata.DefaultBranchID(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to resolve default branch: %w", err)
	}
	return g.evaluate(ctx, change, defaultBranch)
}

func (g *PushGate) evaluate(ctx context.Context, change RefChange, defaultBranch string) (Decision, error) {
	branch := BranchName(change.RefID)
	// Deleting the default branch publishes no commit, so there is nothing to gate
	if change.RefID != defaultBranch || change.IsDelete() {
		return allow(ReasonNotGated, branch), nil
	}

	// The pushed tip may already carry reports, e.g. when it was built on
	// another branch first.
	tipState, err := g.scanner.CommitState(ctx, change.ToHash)
	if err != nil {
		return Decision{}, err
	}
	switch tipState {
	case Successful:
		return allow(ReasonTipSuccessful, branch), nil
	case Failed:
		return rejectTipFailed(branch, change.ToHash), nil
	}

	if change.IsCreate() {
		return allow(ReasonBranchHealthy, branch), nil
	}

	commits, err := g.history.RecentCommits(ctx, change.FromHash, g.scanner.Window())
	if err != nil {
		return Decision{}, fmt.Errorf("failed to list commits from %s: %w", change.FromHash, err)
	}
	verdict, err := g.scanner.Scan(ctx, commits)
	if err != nil {
		return Decision{}, err
	}

	switch verdict.State {
	case InProgress:
		return rejectPending(branch), nil
	case Failed:
		failing := verdict.Commit.DisplayID
		tip, err := g.history.CommitByID(ctx, change.ToHash)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to read commit %s: %w", change.ToHash, err)
		}
		if ClaimsFix(tip.Message, failing) {
			return allowFixClaimed(branch, failing), nil
		}
		return rejectPushBranchFailed(branch, failing), nil
	default:
		return allow(ReasonBranchHealthy, branch), nil
	}
}
