package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScenario = `
name: test_scenario
description: "Test scenario for validation"
owner: "0xowner"
steps:
  - op: submit
    subject: Physics
    score: 72
    hours: 2.5
    ref: r
  - op: analyze
    ref: r
    as: "0xother"
    expect_error: UNAUTHORIZED
assertions:
  - type: record_status
    ref: r
    status: pending
  - type: record_count
    count: 1
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validScenario), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "0xowner", scenario.Owner)
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, OpSubmit, scenario.Steps[0].Op)
	require.NotNil(t, scenario.Steps[0].Score)
	assert.Equal(t, 72.0, *scenario.Steps[0].Score)
	assert.Equal(t, 2.5, scenario.Steps[0].Hours)
	assert.Equal(t, "UNAUTHORIZED", scenario.Steps[1].ExpectError)
	require.Len(t, scenario.Assertions, 2)
	require.NotNil(t, scenario.Assertions[1].Count)
	assert.Equal(t, 1, *scenario.Assertions[1].Count)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(validScenario + "assertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nsteps: [{op: submit, as: a}]\nassertions: [{type: index_consistent}]",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nsteps: [{op: submit, as: a}]\nassertions: [{type: index_consistent}]",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			yaml:    "name: n\ndescription: d\nassertions: [{type: index_consistent}]",
			wantErr: "steps list is required",
		},
		{
			name:    "no assertions",
			yaml:    "name: n\ndescription: d\nsteps: [{op: submit, as: a}]",
			wantErr: "assertions list is required",
		},
		{
			name:    "unknown op",
			yaml:    "name: n\ndescription: d\nsteps: [{op: improve, ref: r}]\nassertions: [{type: index_consistent}]",
			wantErr: `unknown op "improve"`,
		},
		{
			name:    "missing op",
			yaml:    "name: n\ndescription: d\nsteps: [{ref: r}]\nassertions: [{type: index_consistent}]",
			wantErr: "op is required",
		},
		{
			name:    "submit without caller",
			yaml:    "name: n\ndescription: d\nsteps: [{op: submit}]\nassertions: [{type: index_consistent}]",
			wantErr: "submit needs a caller",
		},
		{
			name:    "analyze without ref",
			yaml:    "name: n\ndescription: d\nowner: o\nsteps: [{op: analyze}]\nassertions: [{type: index_consistent}]",
			wantErr: "ref is required for analyze",
		},
		{
			name:    "unknown error code",
			yaml:    "name: n\ndescription: d\nowner: o\nsteps: [{op: analyze, ref: r, expect_error: OOPS}]\nassertions: [{type: index_consistent}]",
			wantErr: `unknown error code "OOPS"`,
		},
		{
			name:    "record_status without status",
			yaml:    "name: n\ndescription: d\nowner: o\nsteps: [{op: analyze, ref: r}]\nassertions: [{type: record_status, ref: r}]",
			wantErr: "status is required",
		},
		{
			name:    "record_status with bad status",
			yaml:    "name: n\ndescription: d\nowner: o\nsteps: [{op: analyze, ref: r}]\nassertions: [{type: record_status, ref: r, status: done}]",
			wantErr: `unknown status "done"`,
		},
		{
			name:    "record_count without count",
			yaml:    "name: n\ndescription: d\nowner: o\nsteps: [{op: analyze, ref: r}]\nassertions: [{type: record_count}]",
			wantErr: "count must be non-negative",
		},
		{
			name:    "score_range without bounds",
			yaml:    "name: n\ndescription: d\nowner: o\nsteps: [{op: analyze, ref: r}]\nassertions: [{type: score_range, ref: r, min: 1}]",
			wantErr: "min and max are required",
		},
		{
			name:    "score_range inverted",
			yaml:    "name: n\ndescription: d\nowner: o\nsteps: [{op: analyze, ref: r}]\nassertions: [{type: score_range, ref: r, min: 5, max: 5}]",
			wantErr: "min must be below max",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: n\ndescription: d\nowner: o\nsteps: [{op: analyze, ref: r}]\nassertions: [{type: final_state}]",
			wantErr: `unknown assertion type "final_state"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt", "golden/a.yaml", "nested/c.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	}

	files, err := FindScenarios(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yml"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "nested", "c.yaml"),
	}, files)

	files, err = FindScenarios(dir, "b*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.yaml")}, files)

	_, err = FindScenarios(dir, "[")
	assert.Error(t, err)

	_, err = FindScenarios(filepath.Join(dir, "missing"), "")
	assert.Error(t, err)

	_, err = FindScenarios(filepath.Join(dir, "notes.txt"), "")
	assert.Error(t, err)
}

func TestGoldenPath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "flow.golden"),
		GoldenPath(filepath.Join("scenarios", "flow.yaml")))
}
