package gate

import (
	"context"
	"fmt"
	"log/slog"
)

// Config holds the tunables shared by both gates.
type Config struct {
	// Window is the number of commits inspected per decision.
	// Zero or negative selects DefaultWindow.
	Window int

	// Logger receives debug records for every inspected commit. Optional.
	Logger *slog.Logger
}

func (c Config) window() int {
	if c.Window <= 0 {
		return DefaultWindow
	}
	return c.Window
}

// Scanner reduces a window of commits to a BranchVerdict.
type Scanner struct {
	reports BuildReportSource
	window  int
	logger  *slog.Logger
}

// NewScanner creates a scanner reading reports from the given source.
func NewScanner(reports BuildReportSource, cfg Config) *Scanner {
	return &Scanner{
		reports: reports,
		window:  cfg.window(),
		logger:  cfg.Logger,
	}
}

// Window returns the maximum number of commits Scan inspects.
func (s *Scanner) Window() int {
	return s.window
}

// CommitState aggregates the reports of a single commit.
func (s *Scanner) CommitState(ctx context.Context, commitID string) (BuildState, error) {
	reports, err := s.reports.ReportsFor(ctx, commitID)
	if err != nil {
		return Undefined, fmt.Errorf("failed to fetch build reports for %s: %w", commitID, err)
	}
	return Aggregate(reports), nil
}

// Scan walks commits most recent first and returns the first decisive
// verdict. Commits past the window, and commits after a decisive one, are
// never looked up.
func (s *Scanner) Scan(ctx context.Context, commits []Commit) (BranchVerdict, error) {
	if len(commits) > s.window {
		commits = commits[:s.window]
	}

	hasPending := false
	for _, commit := range commits {
		state, err := s.CommitState(ctx, commit.ID)
		if err != nil {
			return BranchVerdict{}, err
		}
		if s.logger != nil {
			s.logger.Debug("scanned commit", "commit", commit.DisplayID, "state", state.String())
		}

		switch state {
		case Undefined:
			continue
		case Successful:
			return BranchVerdict{State: Successful}, nil
		case Failed:
			return BranchVerdict{State: Failed, Commit: commit}, nil
		case InProgress:
			hasPending = true
		}
	}

	if hasPending {
		return BranchVerdict{State: InProgress}, nil
	}
	return BranchVerdict{State: Undefined}, nil
}
