package gate

import (
	"context"
	"errors"
	"sync"
)

var errBackendDown = errors.New("backend down")

// fakeReports serves reports from a map and records every lookup.
type fakeReports struct {
	mu      sync.Mutex
	reports map[string][]BuildReport
	calls   []string
	err     error
}

func newFakeReports() *fakeReports {
	return &fakeReports{reports: make(map[string][]BuildReport)}
}

func (f *fakeReports) set(commit string, states ...BuildState) {
	for _, state := range states {
		f.reports[commit] = append(f.reports[commit], BuildReport{State: state, Commit: commit})
	}
}

func (f *fakeReports) ReportsFor(ctx context.Context, commitID string) ([]BuildReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, commitID)
	if f.err != nil {
		return nil, f.err
	}
	return f.reports[commitID], nil
}

func (f *fakeReports) queried() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeHistory serves a linear history, newest first.
type fakeHistory struct {
	commits     []Commit
	recentCalls []string
	lookupCalls []string
	recentErr   error
	lookupErr   error
}

func newFakeHistory(ids ...string) *fakeHistory {
	h := &fakeHistory{}
	for _, id := range ids {
		h.commits = append(h.commits, Commit{ID: id, DisplayID: ShortID(id)})
	}
	return h
}

func (h *fakeHistory) setMessage(id, message string) {
	for i := range h.commits {
		if h.commits[i].ID == id {
			h.commits[i].Message = message
			return
		}
	}
	h.commits = append([]Commit{{ID: id, DisplayID: ShortID(id), Message: message}}, h.commits...)
}

func (h *fakeHistory) RecentCommits(ctx context.Context, start string, limit int) ([]Commit, error) {
	h.recentCalls = append(h.recentCalls, start)
	if h.recentErr != nil {
		return nil, h.recentErr
	}
	from := 0
	for i, c := range h.commits {
		if c.ID == start {
			from = i
			break
		}
	}
	out := h.commits[from:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (h *fakeHistory) CommitByID(ctx context.Context, id string) (Commit, error) {
	h.lookupCalls = append(h.lookupCalls, id)
	if h.lookupErr != nil {
		return Commit{}, h.lookupErr
	}
	for _, c := range h.commits {
		if c.ID == id {
			return c, nil
		}
	}
	return Commit{}, errors.New("commit not found: " + id)
}

type failingMetadata struct{}

func (failingMetadata) DefaultBranchID(ctx context.Context) (string, error) {
	return "", errBackendDown
}
