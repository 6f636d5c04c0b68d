package main

import (
	"fmt"

	"buildgate/internal/gate"
	"buildgate/internal/history"
	"buildgate/internal/project"
	"buildgate/internal/security"

	"github.com/spf13/cobra"
)

// FullHashLength is the length of a SHA-1 object name
const FullHashLength = 40

var (
	reportKey         string
	reportName        string
	reportURL         string
	reportDescription string
)

var reportCmd = &cobra.Command{
	Use:   "report PROJECT_NAME COMMIT STATE",
	Short: "Record a build report for a commit",
	Long: `Record a build report for a commit in the report store.

For CI systems that do not publish GitHub statuses. COMMIT is the full
commit hash. STATE is one of
successful, failed or inprogress (GitHub spellings such as success, failure
and pending are accepted too). A later report with the same --key replaces
the earlier one.

Example:
  buildgate report myapp "$GIT_COMMIT" failed --key jenkins/build --url https://ci.example.com/job/42`,
	Args: cobra.ExactArgs(3),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportKey, "key", "k", "", "Identifies the build job; reports with the same key replace each other (required)")
	reportCmd.Flags().StringVar(&reportName, "name", "", "Display name of the build")
	reportCmd.Flags().StringVar(&reportURL, "url", "", "Link to the build")
	reportCmd.Flags().StringVar(&reportDescription, "description", "", "Short description of the result")
	_ = reportCmd.MarkFlagRequired("key")
}

func runReport(cmd *cobra.Command, args []string) error {
	projectName, commit, state := args[0], args[1], args[2]

	proj, err := loadProject(projectName)
	if err != nil {
		return err
	}
	if proj.Reports != project.BackendStore {
		return fmt.Errorf("project '%s' reads build reports from %s, not from the report store", proj.Name, proj.Reports)
	}

	if err := security.ValidateCommitHash(commit); err != nil {
		return err
	}
	if len(commit) < FullHashLength {
		return fmt.Errorf("commit must be a full %d character hash, got '%s'", FullHashLength, commit)
	}

	hist, err := openStore(proj)
	if err != nil {
		return err
	}
	defer hist.Close()

	record := &history.ReportRecord{
		Project:     proj.Name,
		CommitHash:  commit,
		Key:         reportKey,
		State:       state,
		Name:        reportName,
		URL:         reportURL,
		Description: reportDescription,
	}
	if err := hist.RecordReport(cmd.Context(), record); err != nil {
		return fmt.Errorf("failed to record report: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s for %s (%s)\n", record.State, gate.ShortID(commit), reportKey)
	return nil
}
