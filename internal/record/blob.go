package record

import (
	"encoding/json"
	"fmt"
)

// SchemaVersion is written into every blob this module produces.
// Blobs without a schema field are legacy (version 0) and are still read.
const SchemaVersion = 1

// Blob is the JSON document stored under record_<id>.
// Optional fields are pointers so that absence can be told apart from zero.
type Blob struct {
	Schema      *int     `json:"schema,omitempty"`
	Score       string   `json:"score"`
	Timestamp   int64    `json:"timestamp"`
	Owner       string   `json:"owner"`
	Subject     string   `json:"subject"`
	Status      *string  `json:"status,omitempty"`
	StudyHours  *float64 `json:"studyHours,omitempty"`
	Description string   `json:"description,omitempty"`
}

// MarshalBlob encodes a record for the ledger. The id is not part of the
// blob; it lives in the key.
func MarshalBlob(r LearningRecord) ([]byte, error) {
	schema := SchemaVersion
	status := string(r.Status)
	if status == "" {
		status = string(StatusPending)
	}
	hours := r.StudyHours
	b := Blob{
		Schema:      &schema,
		Score:       r.EncryptedScore,
		Timestamp:   r.Timestamp,
		Owner:       r.Owner,
		Subject:     r.Subject,
		Status:      &status,
		StudyHours:  &hours,
		Description: r.Description,
	}
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal blob: %w", err)
	}
	return data, nil
}

// UnmarshalBlob decodes a ledger blob leniently: a missing status reads as
// pending and missing study hours read as 0. A blob with no score, an
// unknown status or a newer schema version is malformed.
func UnmarshalBlob(id string, data []byte) (LearningRecord, error) {
	var b Blob
	if err := json.Unmarshal(data, &b); err != nil {
		return LearningRecord{}, NewFormatError("invalid record JSON", err)
	}
	if b.Schema != nil && *b.Schema > SchemaVersion {
		return LearningRecord{}, NewFormatError(fmt.Sprintf("unsupported blob schema %d", *b.Schema), nil)
	}
	if b.Score == "" {
		return LearningRecord{}, NewFormatError("record has no score", nil)
	}

	status := StatusPending
	if b.Status != nil {
		s, err := ParseStatus(*b.Status)
		if err != nil {
			return LearningRecord{}, NewFormatError("invalid record status", err)
		}
		status = s
	}

	var hours float64
	if b.StudyHours != nil {
		hours = *b.StudyHours
	}

	return LearningRecord{
		ID:             id,
		EncryptedScore: b.Score,
		Timestamp:      b.Timestamp,
		Owner:          b.Owner,
		Subject:        b.Subject,
		Status:         status,
		StudyHours:     hours,
		Description:    b.Description,
	}, nil
}
