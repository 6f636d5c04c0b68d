package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"buildgate/internal/gate"
)

// RecordReport stores a build report. A report with the same project,
// commit and key replaces the previous one, so a job moving from pending to
// success leaves a single row behind. Commit hashes are stored lowercase.
func (h *History) RecordReport(ctx context.Context, record *ReportRecord) error {
	if record.Project == "" || record.CommitHash == "" || record.Key == "" {
		return fmt.Errorf("report requires project, commit and key")
	}
	state, err := gate.ParseBuildState(record.State)
	if err != nil {
		return err
	}
	if state == gate.Undefined {
		return fmt.Errorf("report state is required")
	}
	record.State = state.String()
	record.CommitHash = strings.ToLower(record.CommitHash)
	record.UpdatedAt = time.Now().UTC()

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO build_reports
		(project, commit_hash, report_key, state, name, url, description, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (project, commit_hash, report_key) DO UPDATE SET
			state = excluded.state,
			name = excluded.name,
			url = excluded.url,
			description = excluded.description,
			updated_at = excluded.updated_at
	`,
		record.Project,
		record.CommitHash,
		record.Key,
		record.State,
		record.Name,
		record.URL,
		record.Description,
		record.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert build report: %w", err)
	}

	return nil
}

// GetReports returns all reports recorded for a commit, ordered by key
func (h *History) GetReports(ctx context.Context, project, commitHash string) ([]ReportRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT project, commit_hash, report_key, state, name, url, description, updated_at
		FROM build_reports
		WHERE project = ? AND commit_hash = ?
		ORDER BY report_key
	`, project, strings.ToLower(commitHash))
	if err != nil {
		return nil, fmt.Errorf("failed to query build reports: %w", err)
	}
	defer rows.Close()

	records := []ReportRecord{}
	for rows.Next() {
		var record ReportRecord
		var name, url, description *string
		var updatedAtStr string

		if err := rows.Scan(
			&record.Project,
			&record.CommitHash,
			&record.Key,
			&record.State,
			&name,
			&url,
			&description,
			&updatedAtStr,
		); err != nil {
			return nil, fmt.Errorf("failed to scan build report: %w", err)
		}

		record.Name = deref(name)
		record.URL = deref(url)
		record.Description = deref(description)

		updatedAt, err := time.Parse(time.RFC3339Nano, updatedAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse updated_at timestamp: %w", err)
		}
		record.UpdatedAt = updatedAt

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// Reports returns a gate.BuildReportSource reading the reports of one project
func (h *History) Reports(project string) gate.BuildReportSource {
	return &projectReports{history: h, project: project}
}

type projectReports struct {
	history *History
	project string
}

func (p *projectReports) ReportsFor(ctx context.Context, commitID string) ([]gate.BuildReport, error) {
	records, err := p.history.GetReports(ctx, p.project, commitID)
	if err != nil {
		return nil, err
	}

	reports := make([]gate.BuildReport, 0, len(records))
	for _, record := range records {
		reports = append(reports, record.BuildReport())
	}
	return reports, nil
}

// BuildReport converts the record into the gate's report type. States that
// no longer parse are reported as Undefined and ignored by aggregation.
func (r ReportRecord) BuildReport() gate.BuildReport {
	state, _ := gate.ParseBuildState(r.State)
	return gate.BuildReport{
		State:       state,
		Commit:      r.CommitHash,
		Key:         r.Key,
		Name:        r.Name,
		URL:         r.URL,
		Description: r.Description,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
