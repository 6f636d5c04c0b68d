package gate

import "strings"

const (
	// DefaultWindow is the number of commits inspected when scanning a branch.
	DefaultWindow = 10

	// DisplayIDLength is the length of the short commit identifier used in
	// user-facing messages and fix claims.
	DisplayIDLength = 7

	refsHeadsPrefix = "refs/heads/"
)

// BuildReport is one observation of a build run against a commit.
// Key, Name, URL and Description are carried for display only.
type BuildReport struct {
	State       BuildState
	Commit      string
	Key         string
	Name        string
	URL         string
	Description string
}

// Commit is a commit as seen by the history collaborator.
type Commit struct {
	ID        string
	DisplayID string
	Message   string
}

// BranchVerdict is the aggregated result for a window of commits. Commit is
// only set when State is Failed.
type BranchVerdict struct {
	State  BuildState
	Commit Commit
}

// RefChange describes one branch update within a push. FromHash is empty
// when the ref is created and ToHash is empty when it is deleted.
type RefChange struct {
	RefID    string
	FromHash string
	ToHash   string
}

// NewRefChange builds a RefChange, treating git's all-zero object name as
// an absent hash.
func NewRefChange(refID, fromHash, toHash string) RefChange {
	return RefChange{
		RefID:    refID,
		FromHash: normalizeHash(fromHash),
		ToHash:   normalizeHash(toHash),
	}
}

// IsCreate reports whether the change creates the ref.
func (c RefChange) IsCreate() bool {
	return c.FromHash == "" && c.ToHash != ""
}

// IsDelete reports whether the change deletes the ref.
func (c RefChange) IsDelete() bool {
	return c.ToHash == ""
}

// MergeRequest identifies the destination of a merge request.
type MergeRequest struct {
	TargetRef string
}

// ShortID returns the display form of a commit hash.
func ShortID(hash string) string {
	if len(hash) <= DisplayIDLength {
		return hash
	}
	return hash[:DisplayIDLength]
}

// BranchRef qualifies a bare branch name with refs/heads/.
func BranchRef(branch string) string {
	if branch == "" || strings.HasPrefix(branch, "refs/") {
		return branch
	}
	return refsHeadsPrefix + branch
}

// BranchName strips refs/heads/ from a ref.
func BranchName(ref string) string {
	return strings.TrimPrefix(ref, refsHeadsPrefix)
}

func normalizeHash(hash string) string {
	if strings.Trim(hash, "0") == "" {
		return ""
	}
	return hash
}
