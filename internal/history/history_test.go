package history

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"buildgate/internal/gate"
)

func newTestHistory(t *testing.T) *History {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	hist, err := NewHistory(dbPath)
	if err != nil {
		t.Fatalf("Failed to create history: %v", err)
	}
	t.Cleanup(func() { hist.Close() })

	return hist
}

func TestHistory_RecordDecision(t *testing.T) {
	hist := newTestHistory(t)

	change := gate.NewRefChange("refs/heads/main", "abc123def456", "def456abc123")
	decision := gate.Decision{
		Outcome: gate.Reject,
		Reason:  gate.ReasonBranchFailed,
		Commit:  "abc123d",
		Summary: "Branch has a failed build",
		Message: "REJECTED: Branch main has at least 1 failed build for commit abc123d",
	}

	record := NewDecisionRecord("test-project", "push", change, decision)
	id, err := hist.RecordDecision(context.Background(), record)
	if err != nil {
		t.Fatalf("Failed to record decision: %v", err)
	}

	if id == 0 {
		t.Error("Expected non-zero decision ID")
	}
	if record.DecisionID == "" {
		t.Error("Expected a generated decision UUID")
	}

	latest, err := hist.GetLatestDecision(context.Background(), "test-project")
	if err != nil {
		t.Fatalf("Failed to get latest decision: %v", err)
	}
	if latest == nil {
		t.Fatal("Expected latest decision to be non-nil")
	}
	if latest.DecisionID != record.DecisionID {
		t.Errorf("Expected decision ID %q, got %q", record.DecisionID, latest.DecisionID)
	}
	if latest.Outcome != "reject" || latest.Reason != "branch_failed" {
		t.Errorf("Unexpected outcome/reason: %s/%s", latest.Outcome, latest.Reason)
	}
	if latest.Commit == nil || *latest.Commit != "abc123d" {
		t.Errorf("Expected attributed commit abc123d, got %v", latest.Commit)
	}
	if latest.FromHash == nil || *latest.FromHash != "abc123def456" {
		t.Errorf("Expected from hash to round-trip, got %v", latest.FromHash)
	}
}

func TestHistory_RecordDecision_NullableFields(t *testing.T) {
	hist := newTestHistory(t)

	change := gate.NewRefChange("refs/heads/main", "0000000000000000000000000000000000000000", "def456")
	record := NewDecisionRecord("test-project", "push", change, gate.Decision{Outcome: gate.Allow, Reason: gate.ReasonBranchHealthy})
	if _, err := hist.RecordDecision(context.Background(), record); err != nil {
		t.Fatalf("Failed to record decision: %v", err)
	}

	latest, err := hist.GetLatestDecision(context.Background(), "test-project")
	if err != nil {
		t.Fatalf("Failed to get latest decision: %v", err)
	}
	if latest.FromHash != nil {
		t.Errorf("Expected nil from hash for branch creation, got %q", *latest.FromHash)
	}
	if latest.Commit != nil || latest.Summary != nil || latest.Message != nil {
		t.Errorf("Expected nil commit/summary/message for allowed decision, got %+v", latest)
	}
}

func TestHistory_GetLatestDecision_NoRecords(t *testing.T) {
	hist := newTestHistory(t)

	latest, err := hist.GetLatestDecision(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Expected no error for nonexistent project, got: %v", err)
	}

	if latest != nil {
		t.Errorf("Expected nil for nonexistent project, got: %v", latest)
	}
}

func TestHistory_GetDecisionHistory(t *testing.T) {
	hist := newTestHistory(t)
	ctx := context.Background()

	refs := []string{"refs/heads/a", "refs/heads/b", "refs/heads/c", "refs/heads/d", "refs/heads/e"}
	for _, ref := range refs {
		record := &DecisionRecord{Project: "test-project", Gate: "push", Ref: ref, Outcome: "allow", Reason: "not_gated"}
		if _, err := hist.RecordDecision(ctx, record); err != nil {
			t.Fatalf("Failed to record decision for %s: %v", ref, err)
		}
	}

	history, err := hist.GetDecisionHistory(ctx, "test-project", 3)
	if err != nil {
		t.Fatalf("Failed to get decision history: %v", err)
	}

	if len(history) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(history))
	}

	// Should be in descending order (most recent first)
	if history[0].Ref != "refs/heads/e" {
		t.Errorf("Expected first record ref refs/heads/e, got %s", history[0].Ref)
	}

	empty, err := hist.GetDecisionHistory(ctx, "other", 3)
	if err != nil {
		t.Fatalf("Failed to get decision history: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("Expected empty non-nil slice, got %v", empty)
	}
}

func TestHistory_GetAllProjectsStatus(t *testing.T) {
	hist := newTestHistory(t)
	ctx := context.Background()

	records := []*DecisionRecord{
		{Project: "project1", Gate: "push", Ref: "refs/heads/main", Outcome: "reject", Reason: "branch_failed"},
		{Project: "project1", Gate: "merge", Ref: "refs/heads/main", Outcome: "allow", Reason: "branch_healthy"},
		{Project: "project2", Gate: "push", Ref: "refs/heads/main", Outcome: "reject", Reason: "branch_pending"},
	}
	for _, record := range records {
		if _, err := hist.RecordDecision(ctx, record); err != nil {
			t.Fatalf("Failed to record decision: %v", err)
		}
	}

	status, err := hist.GetAllProjectsStatus(ctx)
	if err != nil {
		t.Fatalf("Failed to get all projects status: %v", err)
	}

	if len(status) != 2 {
		t.Fatalf("Expected 2 projects, got %d", len(status))
	}

	if status["project1"].Gate != "merge" {
		t.Errorf("Expected project1 latest gate 'merge', got %q", status["project1"].Gate)
	}

	if status["project2"].Reason != "branch_pending" {
		t.Errorf("Expected project2 reason 'branch_pending', got %q", status["project2"].Reason)
	}
}

func TestHistory_RecordReport_Upsert(t *testing.T) {
	hist := newTestHistory(t)
	ctx := context.Background()

	report := &ReportRecord{Project: "test-project", CommitHash: "abc123", Key: "ci/build", State: "pending"}
	if err := hist.RecordReport(ctx, report); err != nil {
		t.Fatalf("Failed to record report: %v", err)
	}

	report = &ReportRecord{Project: "test-project", CommitHash: "abc123", Key: "ci/build", State: "success", URL: "https://ci.example.com/1"}
	if err := hist.RecordReport(ctx, report); err != nil {
		t.Fatalf("Failed to update report: %v", err)
	}

	if err := hist.RecordReport(ctx, &ReportRecord{Project: "test-project", CommitHash: "abc123", Key: "ci/lint", State: "inprogress"}); err != nil {
		t.Fatalf("Failed to record second report: %v", err)
	}

	reports, err := hist.GetReports(ctx, "test-project", "abc123")
	if err != nil {
		t.Fatalf("Failed to get reports: %v", err)
	}

	if len(reports) != 2 {
		t.Fatalf("Expected 2 reports after upsert, got %d", len(reports))
	}
	if reports[0].Key != "ci/build" || reports[0].State != "successful" {
		t.Errorf("Expected ci/build to be updated to successful, got %+v", reports[0])
	}
	if reports[0].URL != "https://ci.example.com/1" {
		t.Errorf("Expected URL to be stored, got %q", reports[0].URL)
	}
}

func TestHistory_RecordReport_Validation(t *testing.T) {
	hist := newTestHistory(t)

	testCases := []struct {
		name   string
		record ReportRecord
	}{
		{"missing project", ReportRecord{CommitHash: "abc", Key: "ci", State: "success"}},
		{"missing commit", ReportRecord{Project: "p", Key: "ci", State: "success"}},
		{"missing key", ReportRecord{Project: "p", CommitHash: "abc", State: "success"}},
		{"missing state", ReportRecord{Project: "p", CommitHash: "abc", Key: "ci"}},
		{"unknown state", ReportRecord{Project: "p", CommitHash: "abc", Key: "ci", State: "exploded"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := hist.RecordReport(context.Background(), &tc.record); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestHistory_RecordReport_MixedCaseCommit(t *testing.T) {
	hist := newTestHistory(t)
	ctx := context.Background()

	hash := "3f1c2a9be07d44c5a1b8e6f0d2c3b4a596877a1e"
	report := &ReportRecord{Project: "p", CommitHash: strings.ToUpper(hash), Key: "ci/build", State: "failed"}
	if err := hist.RecordReport(ctx, report); err != nil {
		t.Fatalf("Failed to record report: %v", err)
	}
	if report.CommitHash != hash {
		t.Errorf("Expected stored hash %q, got %q", hash, report.CommitHash)
	}

	reports, err := hist.Reports("p").ReportsFor(ctx, hash)
	if err != nil {
		t.Fatalf("ReportsFor failed: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("Expected the uppercase report to be found, got %d reports", len(reports))
	}
	if got := gate.Aggregate(reports); got != gate.Failed {
		t.Errorf("Expected verdict failed, got %s", got)
	}

	records, err := hist.GetReports(ctx, "p", strings.ToUpper(hash))
	if err != nil {
		t.Fatalf("GetReports failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Expected lookup by uppercase hash to match, got %d reports", len(records))
	}
}

func TestHistory_ReportsSource(t *testing.T) {
	hist := newTestHistory(t)
	ctx := context.Background()

	for _, r := range []ReportRecord{
		{Project: "p1", CommitHash: "abc", Key: "ci/a", State: "success"},
		{Project: "p1", CommitHash: "abc", Key: "ci/b", State: "failure"},
		{Project: "p2", CommitHash: "abc", Key: "ci/a", State: "pending"},
	} {
		if err := hist.RecordReport(ctx, &r); err != nil {
			t.Fatalf("Failed to record report: %v", err)
		}
	}

	reports, err := hist.Reports("p1").ReportsFor(ctx, "abc")
	if err != nil {
		t.Fatalf("ReportsFor failed: %v", err)
	}
	if got := gate.Aggregate(reports); got != gate.Failed {
		t.Errorf("Expected p1 verdict failed, got %s", got)
	}

	reports, err = hist.Reports("p2").ReportsFor(ctx, "abc")
	if err != nil {
		t.Fatalf("ReportsFor failed: %v", err)
	}
	if got := gate.Aggregate(reports); got != gate.InProgress {
		t.Errorf("Expected p2 verdict inprogress, got %s", got)
	}

	reports, err = hist.Reports("p1").ReportsFor(ctx, "unknown")
	if err != nil {
		t.Fatalf("ReportsFor failed: %v", err)
	}
	if len(reports) != 0 {
		t.Errorf("Expected no reports for unknown commit, got %d", len(reports))
	}
}

func TestHistory_ClosedDatabase(t *testing.T) {
	hist := newTestHistory(t)
	hist.Close()

	_, err := hist.Reports("p1").ReportsFor(context.Background(), "abc")
	if err == nil {
		t.Fatal("Expected error from closed database")
	}
	if errors.Unwrap(err) == nil {
		t.Errorf("Expected wrapped error, got %v", err)
	}
}
