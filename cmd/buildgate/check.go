package main

import (
	"fmt"

	"buildgate/internal/gate"
	"buildgate/internal/sources"

	"github.com/spf13/cobra"
)

var checkTarget string

var checkCmd = &cobra.Command{
	Use:   "check PROJECT_NAME",
	Short: "Check whether a merge into a branch would be vetoed",
	Long: `Check whether a merge into a branch would be vetoed.

Runs the merge gate against the project's configured sources. Without
--target the default branch is checked. Exits with status 1 on a veto.

Example:
  buildgate check myapp --target main`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkTarget, "target", "t", "", "Destination branch of the merge (default: the default branch)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	proj, err := loadProject(args[0])
	if err != nil {
		return err
	}

	// A check is read-only
	checkProject := *proj
	checkProject.PublishStatus = false

	hist, err := openStore(&checkProject)
	if err != nil {
		return err
	}
	if hist != nil {
		defer hist.Close()
	}

	binding, err := sources.NewConnector(hist).Connect(&checkProject)
	if err != nil {
		return err
	}

	logger := cliLogger(cmd.ErrOrStderr()).With("project", proj.Name)
	cfg := checkProject.GateConfig()
	cfg.Logger = logger

	d, err := gate.NewMergeGate(binding.Sources, cfg).Evaluate(cmd.Context(), gate.MergeRequest{TargetRef: checkTarget})
	if err != nil {
		logger.Error("Merge gate could not determine build status", "error", err)
		d = gate.Unavailable(gatedBranch(proj, checkTarget), err)
	}

	if d.Allowed() {
		fmt.Fprintf(cmd.OutOrStdout(), "ALLOWED: %s\n", d.Reason)
	}
	return reportDecision(cmd, d)
}
