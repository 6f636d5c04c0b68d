package gate

import (
	"fmt"
	"strings"
)

// BuildState is the state of a single build report and also the aggregated
// verdict of a commit or a branch window.
type BuildState int

const (
	// Undefined means no usable build report was seen.
	Undefined BuildState = iota
	Successful
	Failed
	InProgress
)

func (s BuildState) String() string {
	switch s {
	case Successful:
		return "successful"
	case Failed:
		return "failed"
	case InProgress:
		return "inprogress"
	default:
		return "undefined"
	}
}

// MarshalText encodes the state using its String form.
func (s BuildState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes any spelling accepted by ParseBuildState.
func (s *BuildState) UnmarshalText(text []byte) error {
	parsed, err := ParseBuildState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseBuildState accepts the canonical names as well as the spellings used
// by common CI systems (GitHub statuses, check runs, Bitbucket build states).
func ParseBuildState(s string) (BuildState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "successful", "success", "passed":
		return Successful, nil
	case "failed", "failure", "error":
		return Failed, nil
	case "inprogress", "in_progress", "pending", "running", "queued":
		return InProgress, nil
	case "undefined", "":
		return Undefined, nil
	default:
		return Undefined, fmt.Errorf("unknown build state %q", s)
	}
}
