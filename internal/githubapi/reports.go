package githubapi

import (
	"context"
	"fmt"

	"buildgate/internal/gate"

	"github.com/google/go-github/v57/github"
)

const perPage = 100

// ReportsFor returns the commit statuses and check runs of a commit as
// build reports. Statuses and runs without a gating meaning are omitted.
func (r *Repository) ReportsFor(ctx context.Context, commitID string) ([]gate.BuildReport, error) {
	var reports []gate.BuildReport

	statuses, err := r.listStatuses(ctx, commitID)
	if err != nil {
		return nil, err
	}
	for _, status := range statuses {
		if r.IgnoreContext != nil && r.IgnoreContext(status.GetContext()) {
			continue
		}
		state := statusState(status.GetState())
		if state == gate.Undefined {
			continue
		}
		reports = append(reports, gate.BuildReport{
			State:       state,
			Commit:      commitID,
			Key:         "status/" + status.GetContext(),
			Name:        status.GetContext(),
			URL:         status.GetTargetURL(),
			Description: status.GetDescription(),
		})
	}

	runs, err := r.listCheckRuns(ctx, commitID)
	if err != nil {
		return nil, err
	}
	for _, run := range runs {
		state := checkRunState(run.GetStatus(), run.GetConclusion())
		if state == gate.Undefined {
			continue
		}
		reports = append(reports, gate.BuildReport{
			State:       state,
			Commit:      commitID,
			Key:         fmt.Sprintf("check/%d", run.GetID()),
			Name:        run.GetName(),
			URL:         run.GetHTMLURL(),
			Description: run.GetOutput().GetTitle(),
		})
	}

	return reports, nil
}

func (r *Repository) listStatuses(ctx context.Context, ref string) ([]*github.RepoStatus, error) {
	var statuses []*github.RepoStatus
	opts := &github.ListOptions{PerPage: perPage}
	for {
		combined, resp, err := r.client.Repositories.GetCombinedStatus(ctx, r.owner, r.repo, ref, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to get commit statuses for %s: %w", ref, err)
		}
		statuses = append(statuses, combined.Statuses...)
		if resp.NextPage == 0 {
			return statuses, nil
		}
		opts.Page = resp.NextPage
	}
}

func (r *Repository) listCheckRuns(ctx context.Context, ref string) ([]*github.CheckRun, error) {
	var runs []*github.CheckRun
	opts := &github.ListCheckRunsOptions{
		Filter:      github.String("latest"),
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	for {
		result, resp, err := r.client.Checks.ListCheckRunsForRef(ctx, r.owner, r.repo, ref, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list check runs for %s: %w", ref, err)
		}
		runs = append(runs, result.CheckRuns...)
		if resp.NextPage == 0 {
			return runs, nil
		}
		opts.Page = resp.NextPage
	}
}

// statusState maps a commit status state to a build state.
func statusState(state string) gate.BuildState {
	switch state {
	case "success":
		return gate.Successful
	case "failure", "error":
		return gate.Failed
	case "pending":
		return gate.InProgress
	default:
		return gate.Undefined
	}
}

// checkRunState maps a check run status and conclusion to a build state.
// Neutral, skipped and stale runs carry no verdict.
func checkRunState(status, conclusion string) gate.BuildState {
	if status != "completed" {
		return gate.InProgress
	}
	switch conclusion {
	case "success":
		return gate.Successful
	case "failure", "timed_out", "cancelled", "action_required":
		return gate.Failed
	default:
		return gate.Undefined
	}
}

// ReportFromStatus converts a status webhook payload into a build report.
// ok is false when the status has no gating meaning.
func ReportFromStatus(event *github.StatusEvent) (report gate.BuildReport, ok bool) {
	state := statusState(event.GetState())
	if state == gate.Undefined {
		return gate.BuildReport{}, false
	}
	return gate.BuildReport{
		State:       state,
		Commit:      event.GetSHA(),
		Key:         "status/" + event.GetContext(),
		Name:        event.GetContext(),
		URL:         event.GetTargetURL(),
		Description: event.GetDescription(),
	}, true
}

// ReportFromCheckRun converts a check_run webhook payload into a build
// report. ok is false when the run has no gating meaning.
func ReportFromCheckRun(event *github.CheckRunEvent) (report gate.BuildReport, ok bool) {
	run := event.GetCheckRun()
	state := checkRunState(run.GetStatus(), run.GetConclusion())
	if state == gate.Undefined {
		return gate.BuildReport{}, false
	}
	return gate.BuildReport{
		State:       state,
		Commit:      run.GetHeadSHA(),
		Key:         fmt.Sprintf("check/%d", run.GetID()),
		Name:        run.GetName(),
		URL:         run.GetHTMLURL(),
		Description: run.GetOutput().GetTitle(),
	}, true
}
