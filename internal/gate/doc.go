// Package gate implements the build-status gating policy.
//
// A gate decides whether a change to a protected branch may proceed by
// looking at the build reports of the commits involved:
//   - Aggregate reduces the reports of one commit to a single BuildState
//   - Scanner walks a bounded window of recent commits into a BranchVerdict
//   - ClaimsFix detects a "fixes <commit>" declaration in a commit message
//   - PushGate and MergeGate combine the above for the two admission points
//
// The package performs no I/O of its own. Build reports, commit history and
// repository metadata are reached through the BuildReportSource,
// HistorySource and RepositoryMetadata interfaces, implemented by
// internal/history, internal/githubapi and internal/gitlog.
package gate
