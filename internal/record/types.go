package record

import "fmt"

// Status is the lifecycle state of a learning record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAnalyzed Status = "analyzed"
	StatusArchived Status = "archived"
)

// ParseStatus converts a blob status string. An empty string yields
// StatusPending, matching how legacy blobs without a status are read.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case "":
		return StatusPending, nil
	case StatusPending, StatusAnalyzed, StatusArchived:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// Label returns the capitalized display form used in listings.
func (s Status) Label() string {
	switch s {
	case StatusAnalyzed:
		return "Analyzed"
	case StatusArchived:
		return "Archived"
	default:
		return "Pending"
	}
}

// transitions lists the only status edges a record may take.
var transitions = map[Status][]Status{
	StatusPending:  {StatusAnalyzed, StatusArchived},
	StatusAnalyzed: {StatusArchived},
}

// CanTransition reports whether a record in status from may move to status to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// LearningRecord is a transient projection of one record blob. The ledger
// copy is authoritative; a LearningRecord is never cached across operations.
type LearningRecord struct {
	ID             string  `json:"id"`
	EncryptedScore string  `json:"encryptedScore"`
	Timestamp      int64   `json:"timestamp"`
	Owner          string  `json:"owner"`
	Subject        string  `json:"subject"`
	Status         Status  `json:"status"`
	StudyHours     float64 `json:"studyHours"`
	Description    string  `json:"description,omitempty"`
}
