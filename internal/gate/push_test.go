package gate

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultRef = "refs/heads/master"

type pushFixture struct {
	reports *fakeReports
	history *fakeHistory
	gate    *PushGate
}

// newPushFixture builds a gate over a history where from is the current
// tip of the default branch followed by older commits.
func newPushFixture(history ...string) *pushFixture {
	f := &pushFixture{
		reports: newFakeReports(),
		history: newFakeHistory(history...),
	}
	f.gate = NewPushGate(Sources{
		Reports:  f.reports,
		History:  f.history,
		Metadata: StaticBranch("master"),
	}, Config{})
	return f
}

func TestPushGate_NonDefaultBranch(t *testing.T) {
	f := newPushFixture()

	d, err := f.gate.Evaluate(context.Background(), NewRefChange("refs/heads/feature", sha("aaaaaa1"), sha("bbbbbb2")))
	require.NoError(t, err)

	assert.True(t, d.Allowed())
	assert.Equal(t, ReasonNotGated, d.Reason)
	assert.Empty(t, f.reports.queried())
	assert.Empty(t, f.history.recentCalls)
	assert.Empty(t, f.history.lookupCalls)
}

func TestPushGate_TipSuccessful(t *testing.T) {
	from, to := sha("aaaaaa1"), sha("bbbbbb2")
	f := newPushFixture(from)
	f.reports.set(to, Successful)
	f.reports.set(from, Failed)

	d, err := f.gate.Evaluate(context.Background(), NewRefChange(defaultRef, from, to))
	require.NoError(t, err)

	assert.True(t, d.Allowed())
	assert.Equal(t, ReasonTipSuccessful, d.Reason)
	assert.Equal(t, []string{to}, f.reports.queried())
	assert.Empty(t, f.history.recentCalls)
}

func TestPushGate_TipFailed(t *testing.T) {
	from, to := sha("aaaaaa1"), sha("bbbbbb2")
	f := newPushFixture(from)
	f.reports.set(to, Successful, Failed)

	d, err := f.gate.Evaluate(context.Background(), NewRefChange(defaultRef, from, to))
	require.NoError(t, err)

	assert.False(t, d.Allowed())
	assert.Equal(t, ReasonTipFailed, d.Reason)
	assert.Equal(t, to, d.Commit)
	assert.Contains(t, d.Message, to)
	assert.Empty(t, f.history.recentCalls)
}

func TestPushGate_BranchSuccessful(t *testing.T) {
	from, older, to := sha("aaaaaa1"), sha("ccccccc"), sha("bbbbbb2")
	f := newPushFixture(from, older)
	f.reports.set(from, Successful)
	f.reports.set(older, Failed)

	d, err := f.gate.Evaluate(context.Background(), NewRefChange(defaultRef, from, to))
	require.NoError(t, err)

	assert.True(t, d.Allowed())
	assert.Equal(t, ReasonBranchHealthy, d.Reason)
	assert.Equal(t, []string{from}, f.history.recentCalls)
	assert.Equal(t, []string{to, from}, f.reports.queried())
}

func TestPushGate_BranchUndefined(t *testing.T) {
	from, to := sha("aaaaaa1"), sha("bbbbbb2")
	f := newPushFixture(from, sha("ccccccc"))

	d, err := f.gate.Evaluate(context.Background(), NewRefChange(defaultRef, from, to))
	require.NoError(t, err)

	assert.True(t, d.Allowed())
	assert.Equal(t, ReasonBranchHealthy, d.Reason)
}

func TestPushGate_BranchPending(t *testing.T) {
	from, to := sha("aaaaaa1"), sha("bbbbbb2")
	f := newPushFixture(from, sha("ccccccc"))
	f.reports.set(from, InProgress)
	f.reports.set(to, InProgress)

	d, err := f.gate.Evaluate(context.Background(), NewRefChange(defaultRef, from, to))
	require.NoError(t, err)

	assert.False(t, d.Allowed())
	assert.Equal(t, ReasonBranchPending, d.Reason)
	assert.Equal(t, "Too many pending builds", d.Summary)
	assert.Contains(t, d.Message, "branch master")
}

func TestPushGate_BranchFailedAfterPending(t *testing.T) {
	p1, p2, broken, to := sha("aaaaaa1"), sha("aaaaaa2"), sha("ccccccc"), sha("bbbbbb2")
	f := newPushFixture(p1, p2, broken, sha("ddddddd"))
	f.reports.set(p1, InProgress)
	f.reports.set(p2, InProgress)
	f.reports.set(broken, Failed)
	f.history.setMessage(to, "Add feature")

	d, err := f.gate.Evaluate(context.Background(), NewRefChange(defaultRef, p1, to))
	require.NoError(t, err)

	assert.False(t, d.Allowed())
	assert.Equal(t, ReasonBranchFailed, d.Reason)
	assert.Equal(t, "ccccccc", d.Commit)
	assert.Contains(t, d.Message, "Branch master has at least 1 failed build for commit ccccccc")
	assert.True(t, strings.HasSuffix(d.Message, "'fixes ccccccc'"))
	assert.Equal(t, []string{to, p1, p2, broken}, f.reports.queried())
}

func TestPushGate_FixClaimHonored(t *testing.T) {
	pending, broken, to := sha("aaaaaa1"), sha("ccccccc"), sha("bbbbbb2")
	f := newPushFixture(pending, broken)
	f.reports.set(pending, InProgress)
	f.reports.set(broken, Failed)
	f.history.setMessage(to, "Repair the parser\n\nfixes ccccccc")

	d, err := f.gate.Evaluate(context.Background(), NewRefChange(defaultRef, pending, to))
	require.NoError(t, err)

	assert.True(t, d.Allowed())
	assert.Equal(t, ReasonFixClaimed, d.Reason)
	assert.Equal(t, "ccccccc", d.Commit)
	assert.Contains(t, d.Notice, "claims to fix it")
	assert.Equal(t, []string{to}, f.history.lookupCalls)
}

func TestPushGate_FixClaimForOtherCommit(t *testing.T) {
	broken, to := sha("ccccccc"), sha("bbbbbb2")
	f := newPushFixture(broken)
	f.reports.set(broken, Failed)
	f.history.setMessage(to, "fixes ddddddd")

	d, err := f.gate.Evaluate(context.Background(), NewRefChange(defaultRef, broken, to))
	require.NoError(t, err)

	assert.False(t, d.Allowed())
	assert.Equal(t, ReasonBranchFailed, d.Reason)
}

func TestPushGate_BranchCreation(t *testing.T) {
	to := sha("bbbbbb2")
	f := newPushFixture()

	d, err := f.gate.Evaluate(context.Background(), NewRefChange(defaultRef, strings.Repeat("0", 40), to))
	require.NoError(t, err)

	assert.True(t, d.Allowed())
	assert.Empty(t, f.history.recentCalls)
	assert.Equal(t, []string{to}, f.reports.queried())
}

func TestPushGate_BranchCreationWithFailedTip(t *testing.T) {
	to := sha("bbbbbb2")
	f := newPushFixture()
	f.reports.set(to, Failed)

	d, err := f.gate.Evaluate(context.Background(), NewRefChange(defaultRef, "", to))
	require.NoError(t, err)

	assert.False(t, d.Allowed())
	assert.Equal(t, ReasonTipFailed, d.Reason)
}

func TestPushGate_BranchDeletion(t *testing.T) {
	f := newPushFixture()

	d, err := f.gate.Evaluate(context.Background(), NewRefChange(defaultRef, sha("aaaaaa1"), strings.Repeat("0", 40)))
	require.NoError(t, err)

	assert.True(t, d.Allowed())
	assert.Equal(t, ReasonNotGated, d.Reason)
	assert.Empty(t, f.reports.queried())
}

func TestPushGate_EvaluateAll(t *testing.T) {
	from, broken, to := sha("aaaaaa1"), sha("ccccccc"), sha("bbbbbb2")
	f := newPushFixture(from, broken)
	f.reports.set(broken, Failed)
	f.history.setMessage(to, "")

	changes := []RefChange{
		NewRefChange("refs/heads/feature", sha("eeeeee1"), sha("eeeeee2")),
		NewRefChange("refs/tags/v1.0.0", "", sha("eeeeee3")),
		NewRefChange(defaultRef, from, to),
	}

	d, err := f.gate.EvaluateAll(context.Background(), changes)
	require.NoError(t, err)
	assert.False(t, d.Allowed())
	assert.Equal(t, "ccccccc", d.Commit)

	d, err = f.gate.EvaluateAll(context.Background(), changes[:2])
	require.NoError(t, err)
	assert.True(t, d.Allowed())
	assert.Equal(t, ReasonNotGated, d.Reason)
}

func TestPushGate_CollaboratorFailures(t *testing.T) {
	from, to := sha("aaaaaa1"), sha("bbbbbb2")
	change := NewRefChange(defaultRef, from, to)

	t.Run("metadata", func(t *testing.T) {
		g := NewPushGate(Sources{Reports: newFakeReports(), History: newFakeHistory(), Metadata: failingMetadata{}}, Config{})
		_, err := g.Evaluate(context.Background(), change)
		assert.ErrorIs(t, err, errBackendDown)
	})

	t.Run("reports", func(t *testing.T) {
		f := newPushFixture(from)
		f.reports.err = errBackendDown
		_, err := f.gate.Evaluate(context.Background(), change)
		assert.ErrorIs(t, err, errBackendDown)
	})

	t.Run("history", func(t *testing.T) {
		f := newPushFixture(from)
		f.history.recentErr = errBackendDown
		_, err := f.gate.Evaluate(context.Background(), change)
		assert.ErrorIs(t, err, errBackendDown)
	})

	t.Run("tip lookup", func(t *testing.T) {
		f := newPushFixture(from)
		f.reports.set(from, Failed)
		f.history.lookupErr = errBackendDown
		_, err := f.gate.Evaluate(context.Background(), change)
		assert.ErrorIs(t, err, errBackendDown)
	})
}

func TestUnavailable(t *testing.T) {
	d := Unavailable("master", errBackendDown)

	assert.False(t, d.Allowed())
	assert.Equal(t, ReasonUnavailable, d.Reason)
	assert.Contains(t, d.Message, "Could not determine build status for branch master")
	assert.Contains(t, d.Message, "backend down")
}
