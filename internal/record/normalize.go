package record

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultSubjects is the subject catalogue shipped with the default config.
var DefaultSubjects = []string{
	"Mathematics", "Physics", "Chemistry",
	"Biology", "History", "Literature",
	"Computer Science", "Economics", "Languages",
}

// Catalogue is the ordered, fixed set of subjects a record may use.
// It only changes when the config is redeployed.
type Catalogue struct {
	subjects []string
	index    map[string]struct{}
}

// NewCatalogue builds a catalogue. Entries are NFC-normalized and
// duplicates are dropped, keeping first-seen order.
func NewCatalogue(subjects []string) *Catalogue {
	c := &Catalogue{index: make(map[string]struct{}, len(subjects))}
	for _, s := range subjects {
		n := NormalizeSubject(s)
		if n == "" {
			continue
		}
		if _, dup := c.index[n]; dup {
			continue
		}
		c.index[n] = struct{}{}
		c.subjects = append(c.subjects, n)
	}
	return c
}

// Contains reports whether subject is part of the catalogue.
func (c *Catalogue) Contains(subject string) bool {
	_, ok := c.index[NormalizeSubject(subject)]
	return ok
}

// Subjects returns a copy of the catalogue in configured order.
func (c *Catalogue) Subjects() []string {
	out := make([]string, len(c.subjects))
	copy(out, c.subjects)
	return out
}

// Len returns the number of subjects.
func (c *Catalogue) Len() int {
	return len(c.subjects)
}

// NormalizeSubject trims and NFC-normalizes a subject name so that
// composed and decomposed spellings compare equal.
func NormalizeSubject(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// SameOwner compares two wallet identities case-insensitively.
// Wallet addresses are hex with mixed-case checksums, so "0xAb" and "0xab"
// name the same owner.
func SameOwner(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	fold := cases.Fold()
	return fold.String(a) == fold.String(b)
}
