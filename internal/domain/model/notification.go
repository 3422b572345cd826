package model

import "time"

const (
	NotificationContestStarted = "contestStarted"
	NotificationNewProblem     = "newProblem"
)

// Notification is transient: it lives in a pending queue or goes straight to
// a live connection, and is never persisted as a domain record.
type Notification struct {
	Type      string    `json:"type"`
	ContestID string    `json:"contestId,omitempty"`
	Slug      string    `json:"slug,omitempty"`
	Title     string    `json:"title,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// DedupKey identifies the entity a notification is about, so one user never
// has the same contest (or problem) queued twice.
func (n Notification) DedupKey() string {
	if n.ContestID != "" {
		return n.Type + ":" + n.ContestID
	}
	return n.Type + ":" + n.Slug
}
