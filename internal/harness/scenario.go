package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fhetutor/internal/record"
)

// Scenario defines a lifecycle test scenario.
// Scenarios run a list of steps against a fresh ledger and then assert on
// the records left behind.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Owner is the default caller for steps without "as".
	Owner string `yaml:"owner"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final records.
	// Supported types: record_status, record_count, score_range, index_consistent
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation invocation.
type Step struct {
	// Op is submit, analyze, archive or reveal.
	Op string `yaml:"op"`

	// As overrides the scenario owner as the caller.
	As string `yaml:"as,omitempty"`

	// Submit arguments.
	Subject     string   `yaml:"subject,omitempty"`
	Score       *float64 `yaml:"score,omitempty"`
	Hours       float64  `yaml:"hours,omitempty"`
	Description string   `yaml:"description,omitempty"`

	// Ref names a record. A submit binds the new id to Ref; other ops
	// resolve it. An unbound ref is used as a literal record id.
	Ref string `yaml:"ref,omitempty"`

	// Decline makes the signer refuse a reveal.
	Decline bool `yaml:"decline,omitempty"`

	// ExpectError is the error code the step must fail with.
	// Empty means the step must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "record_status": the record named by Ref has Status
	// - "record_count": Count records exist, optionally only those with Status
	// - "score_range": the decoded score of Ref lies in [Min, Max)
	// - "index_consistent": the key index has no duplicates and every id resolves
	Type string `yaml:"type"`

	Ref    string   `yaml:"ref,omitempty"`
	Status string   `yaml:"status,omitempty"`
	Count  *int     `yaml:"count,omitempty"`
	Min    *float64 `yaml:"min,omitempty"`
	Max    *float64 `yaml:"max,omitempty"`
}

// Step operations.
const (
	OpSubmit  = "submit"
	OpAnalyze = "analyze"
	OpArchive = "archive"
	OpReveal  = "reveal"
)

// Assertion type constants.
const (
	AssertRecordStatus    = "record_status"
	AssertRecordCount     = "record_count"
	AssertScoreRange      = "score_range"
	AssertIndexConsistent = "index_consistent"
)

var knownCodes = map[string]bool{
	string(record.ErrCodeValidation):        true,
	string(record.ErrCodeNotFound):          true,
	string(record.ErrCodeUnauthorized):      true,
	string(record.ErrCodeInvalidTransition): true,
	string(record.ErrCodeFormat):            true,
	string(record.ErrCodeStoreUnavailable):  true,
	string(record.ErrCodeSignatureRejected): true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step, s.Owner); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, st *Step, owner string) error {
	switch st.Op {
	case OpSubmit:
		if st.As == "" && owner == "" {
			return fmt.Errorf("steps[%d]: submit needs a caller (as or owner)", index)
		}
	case OpAnalyze, OpArchive, OpReveal:
		if st.Ref == "" {
			return fmt.Errorf("steps[%d]: ref is required for %s", index, st.Op)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}

	if st.ExpectError != "" && !knownCodes[st.ExpectError] {
		return fmt.Errorf("steps[%d]: unknown error code %q", index, st.ExpectError)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRecordStatus:
		if a.Ref == "" {
			return fmt.Errorf("assertions[%d]: ref is required for record_status", index)
		}
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status is required for record_status", index)
		}
		if _, err := record.ParseStatus(a.Status); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertRecordCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for record_count", index)
		}
		if a.Status != "" {
			if _, err := record.ParseStatus(a.Status); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertScoreRange:
		if a.Ref == "" {
			return fmt.Errorf("assertions[%d]: ref is required for score_range", index)
		}
		if a.Min == nil || a.Max == nil {
			return fmt.Errorf("assertions[%d]: min and max are required for score_range", index)
		}
		if *a.Min >= *a.Max {
			return fmt.Errorf("assertions[%d]: min must be below max", index)
		}
	case AssertIndexConsistent:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
