package githubapi

import (
	"context"
	"fmt"

	"buildgate/internal/gate"

	"github.com/google/go-github/v57/github"
)

// maxDescription is GitHub's limit for commit status descriptions.
const maxDescription = 140

// PublishDecision records a decision as a commit status on sha under the
// given context. Rejections become failure statuses, which is what blocks a
// pull request when the context is a required check.
func (r *Repository) PublishDecision(ctx context.Context, sha, statusContext string, d gate.Decision) error {
	status := &github.RepoStatus{
		State:       github.String(decisionState(d)),
		Context:     github.String(statusContext),
		Description: github.String(truncate(decisionDescription(d), maxDescription)),
	}

	if _, _, err := r.client.Repositories.CreateStatus(ctx, r.owner, r.repo, sha, status); err != nil {
		return fmt.Errorf("failed to publish status %s on %s: %w", statusContext, sha, err)
	}
	return nil
}

func decisionState(d gate.Decision) string {
	switch {
	case d.Allowed():
		return "success"
	case d.Reason == gate.ReasonUnavailable:
		return "error"
	default:
		return "failure"
	}
}

func decisionDescription(d gate.Decision) string {
	if !d.Allowed() {
		if d.Commit != "" {
			return fmt.Sprintf("%s (%s)", d.Summary, gate.ShortID(d.Commit))
		}
		return d.Summary
	}
	if d.Notice != "" {
		return d.Notice
	}
	if d.Reason == gate.ReasonNotGated {
		return "Branch is not gated"
	}
	return "Build status allows this change"
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
