// Package appstate is the explicit application state of an interactive
// session: the loaded records, the selection, the three-phase transaction
// banner and the values revealed so far.
//
// State only changes through Reduce, which is pure: it never mutates its
// input and performs no I/O.
package appstate

import (
	"maps"
	"slices"

	"github.com/roach88/fhetutor/internal/record"
)

// Phase is the stage of the transaction banner.
type Phase string

const (
	PhaseIdle    Phase = ""
	PhasePending Phase = "pending"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
)

// Op names the user-facing operation a transaction belongs to.
type Op string

const (
	OpSubmit  Op = "submit"
	OpAnalyze Op = "analyze"
	OpArchive Op = "archive"
	OpReveal  Op = "reveal"
)

// RejectedMessage is shown when the signer declined.
const RejectedMessage = "Transaction rejected by user"

var pendingMessages = map[Op]string{
	OpSubmit:  "Encrypting learning data with FHE...",
	OpAnalyze: "Analyzing learning data with FHE...",
	OpArchive: "Archiving learning data...",
	OpReveal:  "Decrypting with wallet signature...",
}

var successMessages = map[Op]string{
	OpSubmit:  "Learning data submitted securely!",
	OpAnalyze: "FHE analysis completed successfully!",
	OpArchive: "Record archived successfully!",
	OpReveal:  "Value decrypted.",
}

var failurePrefixes = map[Op]string{
	OpSubmit:  "Submission",
	OpAnalyze: "Analysis",
	OpArchive: "Archive",
	OpReveal:  "Decryption",
}

// Tx is the transaction banner.
type Tx struct {
	Visible bool
	Phase   Phase
	Op      Op
	Message string
}

// State is the whole application state.
type State struct {
	Records    []record.LearningRecord
	SelectedID string
	Tx         Tx
	Revealed   map[string]float64
}

// Selected returns the selected record, if it is still loaded.
func (s State) Selected() (record.LearningRecord, bool) {
	if s.SelectedID == "" {
		return record.LearningRecord{}, false
	}
	for _, r := range s.Records {
		if r.ID == s.SelectedID {
			return r, true
		}
	}
	return record.LearningRecord{}, false
}

// RevealedValue returns the plaintext revealed for id, if any.
func (s State) RevealedValue(id string) (float64, bool) {
	v, ok := s.Revealed[id]
	return v, ok
}

// Action is a state transition request.
type Action interface {
	isAction()
}

// RecordsLoaded replaces the record list. A selection whose record is gone
// is cleared.
type RecordsLoaded struct{ Records []record.LearningRecord }

// TxStarted shows the pending banner for Op.
type TxStarted struct{ Op Op }

// TxSucceeded shows the success banner for Op.
type TxSucceeded struct{ Op Op }

// TxFailed shows the error banner for Op with Err's message.
type TxFailed struct {
	Op  Op
	Err error
}

// TxDismissed hides the banner.
type TxDismissed struct{}

// RecordSelected opens the detail view of a record.
type RecordSelected struct{ ID string }

// SelectionCleared closes the detail view and locks the value it showed.
type SelectionCleared struct{}

// ValueRevealed remembers a decrypted value.
type ValueRevealed struct {
	ID    string
	Value float64
}

// ValueLocked forgets the decrypted value of ID, or of every record when
// ID is empty.
type ValueLocked struct{ ID string }

func (RecordsLoaded) isAction()    {}
func (TxStarted) isAction()        {}
func (TxSucceeded) isAction()      {}
func (TxFailed) isAction()         {}
func (TxDismissed) isAction()      {}
func (RecordSelected) isAction()   {}
func (SelectionCleared) isAction() {}
func (ValueRevealed) isAction()    {}
func (ValueLocked) isAction()      {}

// Reduce returns the state that results from applying a to s.
// Unknown actions return s unchanged.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case RecordsLoaded:
		s.Records = slices.Clone(a.Records)
		if _, ok := s.Selected(); !ok {
			s.SelectedID = ""
		}
	case TxStarted:
		s.Tx = Tx{Visible: true, Phase: PhasePending, Op: a.Op, Message: pendingMessages[a.Op]}
	case TxSucceeded:
		s.Tx = Tx{Visible: true, Phase: PhaseSuccess, Op: a.Op, Message: successMessages[a.Op]}
	case TxFailed:
		s.Tx = Tx{Visible: true, Phase: PhaseError, Op: a.Op, Message: FailureMessage(a.Op, a.Err)}
	case TxDismissed:
		s.Tx = Tx{}
	case RecordSelected:
		s.SelectedID = a.ID
	case SelectionCleared:
		if s.SelectedID != "" {
			s.Revealed = without(s.Revealed, s.SelectedID)
		}
		s.SelectedID = ""
	case ValueRevealed:
		next := maps.Clone(s.Revealed)
		if next == nil {
			next = make(map[string]float64)
		}
		next[a.ID] = a.Value
		s.Revealed = next
	case ValueLocked:
		if a.ID == "" {
			s.Revealed = nil
		} else {
			s.Revealed = without(s.Revealed, a.ID)
		}
	}
	return s
}

// FailureMessage renders the error banner text: "<Op> failed: <reason>",
// or RejectedMessage when the signer declined.
func FailureMessage(op Op, err error) string {
	if record.IsSignatureRejected(err) {
		return RejectedMessage
	}
	reason := "Unknown error"
	if err != nil && err.Error() != "" {
		reason = err.Error()
	}
	prefix, ok := failurePrefixes[op]
	if !ok {
		prefix = "Operation"
	}
	return prefix + " failed: " + reason
}

func without(m map[string]float64, id string) map[string]float64 {
	if _, ok := m[id]; !ok {
		return m
	}
	next := maps.Clone(m)
	delete(next, id)
	return next
}
