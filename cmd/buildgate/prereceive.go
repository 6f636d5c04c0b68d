package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"buildgate/internal/gate"
	"buildgate/internal/history"
	"buildgate/internal/project"
	"buildgate/internal/sources"

	"github.com/spf13/cobra"
)

var preReceiveGitDir string

var preReceiveCmd = &cobra.Command{
	Use:   "pre-receive PROJECT_NAME",
	Short: "Gate a push as a git pre-receive hook",
	Long: `Gate a push as a git pre-receive hook.

Reads "<old> <new> <ref>" lines from standard input as git passes them to
pre-receive hooks, and evaluates the update of the default branch. Commit
history is read with the git binary from the receiving repository, so
commits still in quarantine are visible. A rejection is printed to standard
error and the command exits with status 1.

Example hooks/pre-receive:
  #!/bin/sh
  exec buildgate pre-receive myapp --config /etc/buildgate/projects.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runPreReceive,
}

func init() {
	preReceiveCmd.Flags().StringVar(&preReceiveGitDir, "git-dir", "", "Repository to read history from (default: current directory)")
}

func runPreReceive(cmd *cobra.Command, args []string) error {
	proj, err := loadProject(args[0])
	if err != nil {
		return err
	}

	changes, err := readRefChanges(cmd.InOrStdin())
	if err != nil {
		return err
	}

	// History always comes from the receiving repository; statuses are left
	// to the webhook receiver.
	hookProject := *proj
	hookProject.History = project.BackendGit
	hookProject.GitDir = preReceiveGitDir
	hookProject.PublishStatus = false

	hist, err := openStore(&hookProject)
	if err != nil {
		return err
	}
	if hist != nil {
		defer hist.Close()
	}

	logger := cliLogger(cmd.ErrOrStderr()).With("project", proj.Name)

	binding, err := sources.NewConnector(hist).Connect(&hookProject)
	if err != nil {
		return err
	}

	d := evaluatePush(cmd.Context(), binding.Sources, &hookProject, changes, logger)
	if hist != nil && d.Reason != gate.ReasonNotGated {
		recordPushDecision(cmd.Context(), hist, proj.Name, changes, d, logger)
	}

	return reportDecision(cmd, d)
}

// evaluatePush runs the push gate over all ref changes and fails closed
func evaluatePush(ctx context.Context, src gate.Sources, proj *project.Project, changes []gate.RefChange, logger *slog.Logger) gate.Decision {
	cfg := proj.GateConfig()
	cfg.Logger = logger

	d, err := gate.NewPushGate(src, cfg).EvaluateAll(ctx, changes)
	if err != nil {
		logger.Error("Push gate could not determine build status", "error", err)
		return gate.Unavailable(gatedBranch(proj, ""), err)
	}
	return d
}

func recordPushDecision(ctx context.Context, hist *history.History, projectName string, changes []gate.RefChange, d gate.Decision, logger *slog.Logger) {
	change := gate.RefChange{RefID: gate.BranchRef(d.Branch)}
	for _, c := range changes {
		if c.RefID == change.RefID {
			change = c
			break
		}
	}

	if _, err := hist.RecordDecision(ctx, history.NewDecisionRecord(projectName, "push", change, d)); err != nil {
		logger.Warn("Failed to record decision", "error", err)
	}
}

// reportDecision prints the decision the way git relays hook output: the
// rejection on stderr, notices on stdout
func reportDecision(cmd *cobra.Command, d gate.Decision) error {
	if !d.Allowed() {
		fmt.Fprintln(cmd.ErrOrStderr(), d.Message)
		return &exitError{code: 1}
	}
	if d.Notice != "" {
		fmt.Fprintln(cmd.OutOrStdout(), d.Notice)
	}
	return nil
}

// readRefChanges parses the "<old> <new> <ref>" lines git feeds to
// pre-receive hooks
func readRefChanges(r io.Reader) ([]gate.RefChange, error) {
	var changes []gate.RefChange

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed ref update line: %q", line)
		}
		changes = append(changes, gate.NewRefChange(fields[2], fields[0], fields[1]))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ref updates: %w", err)
	}
	return changes, nil
}
