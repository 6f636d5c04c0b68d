package history

import "time"

// DecisionRecord represents a single gate decision in the database.
// Gate is "push" or "merge", Outcome is "allow" or "reject".
type DecisionRecord struct {
	ID         int64     `json:"id"`
	DecisionID string    `json:"decision_id"`
	Project    string    `json:"project"`
	Gate       string    `json:"gate"`
	Ref        string    `json:"ref"`
	FromHash   *string   `json:"from_hash,omitempty"`
	ToHash     *string   `json:"to_hash,omitempty"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason"`
	Commit     *string   `json:"commit,omitempty"`
	Summary    *string   `json:"summary,omitempty"`
	Message    *string   `json:"message,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReportRecord represents the latest build report of one CI job (Key) for a commit
type ReportRecord struct {
	Project     string    `json:"project"`
	CommitHash  string    `json:"commit"`
	Key         string    `json:"key"`
	State       string    `json:"state"`
	Name        string    `json:"name,omitempty"`
	URL         string    `json:"url,omitempty"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}
