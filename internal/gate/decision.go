package gate

import (
	"fmt"
	"strings"
)

// Outcome is the result of a gate evaluation.
type Outcome int

const (
	Allow Outcome = iota
	Reject
)

func (o Outcome) String() string {
	if o == Reject {
		return "reject"
	}
	return "allow"
}

// Reason identifies which rule produced a decision.
type Reason string

const (
	ReasonNotGated      Reason = "not_gated"
	ReasonTipSuccessful Reason = "tip_successful"
	ReasonTipFailed     Reason = "tip_failed"
	ReasonBranchHealthy Reason = "branch_healthy"
	ReasonBranchPending Reason = "branch_pending"
	ReasonBranchFailed  Reason = "branch_failed"
	ReasonFixClaimed    Reason = "fix_claimed"
	ReasonUnavailable   Reason = "status_unavailable"
)

// Decision is the structured result of a gate. Summary is a short veto
// string, Message is multi-line text for the person whose change was
// rejected, and Notice carries informational text for allowed changes.
type Decision struct {
	Outcome Outcome
	Reason  Reason
	Branch  string
	Commit  string
	Summary string
	Message string
	Notice  string
}

// Allowed reports whether the change may proceed.
func (d Decision) Allowed() bool {
	return d.Outcome == Allow
}

func allow(reason Reason, branch string) Decision {
	return Decision{Outcome: Allow, Reason: reason, Branch: branch}
}

// Unavailable is the fail-closed decision used when build status could not
// be determined because a collaborator failed.
func Unavailable(branch string, err error) Decision {
	return Decision{
		Outcome: Reject,
		Reason:  ReasonUnavailable,
		Branch:  branch,
		Summary: "Could not determine build status",
		Message: fmt.Sprintf("REJECTED: Could not determine build status for branch %s: %v", branch, err),
	}
}

func rejectTipFailed(branch, toHash string) Decision {
	return Decision{
		Outcome: Reject,
		Reason:  ReasonTipFailed,
		Branch:  branch,
		Commit:  toHash,
		Summary: "Pushing a commit with a failed build",
		Message: fmt.Sprintf("REJECTED: You are pushing a commit <%s> that has at least 1 failed build.", toHash),
	}
}

func rejectPending(branch string) Decision {
	return Decision{
		Outcome: Reject,
		Reason:  ReasonBranchPending,
		Branch:  branch,
		Summary: "Too many pending builds",
		Message: fmt.Sprintf("REJECTED: Too many pending builds on branch %s, wait a couple of minutes and try again.", branch),
	}
}

func rejectPushBranchFailed(branch, displayID string) Decision {
	var b strings.Builder
	fmt.Fprintf(&b, "REJECTED: Branch %s has at least 1 failed build for commit %s\n", branch, displayID)
	b.WriteString("\n")
	b.WriteString("If you are fixing the build, amend your commit to contain the following message:\n")
	b.WriteString("\n")
	fmt.Fprintf(&b, "'%s%s'", FixToken, displayID)

	return Decision{
		Outcome: Reject,
		Reason:  ReasonBranchFailed,
		Branch:  branch,
		Commit:  displayID,
		Summary: "Branch has a failed build",
		Message: b.String(),
	}
}

func allowFixClaimed(branch, displayID string) Decision {
	d := allow(ReasonFixClaimed, branch)
	d.Commit = displayID
	d.Notice = fmt.Sprintf("Build is broken at commit %s, but your push claims to fix it.", displayID)
	return d
}

func vetoMergeBranchFailed(branch, displayID string) Decision {
	return Decision{
		Outcome: Reject,
		Reason:  ReasonBranchFailed,
		Branch:  branch,
		Commit:  displayID,
		Summary: "Destination branch is failed",
		Message: fmt.Sprintf("REJECTED: Branch %s has at least 1 failed build for commit %s", branch, displayID),
	}
}
