package record

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusAnalyzed, true},
		{StatusPending, StatusArchived, true},
		{StatusAnalyzed, StatusArchived, true},
		{StatusAnalyzed, StatusPending, false},
		{StatusArchived, StatusPending, false},
		{StatusArchived, StatusAnalyzed, false},
		{StatusArchived, StatusArchived, false},
		{StatusPending, StatusPending, false},
		{StatusAnalyzed, StatusAnalyzed, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusAnalyzed.Terminal())
	assert.True(t, StatusArchived.Terminal())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, s)

	s, err = ParseStatus("analyzed")
	require.NoError(t, err)
	assert.Equal(t, StatusAnalyzed, s)

	_, err = ParseStatus("deleted")
	require.Error(t, err)
}

func TestBlobRoundTrip(t *testing.T) {
	in := LearningRecord{
		ID:             "r1",
		EncryptedScore: "FHE-NzI=",
		Timestamp:      1700000000,
		Owner:          "0xA",
		Subject:        "Physics",
		Status:         StatusAnalyzed,
		StudyHours:     3,
		Description:    "mock exam",
	}

	data, err := MarshalBlob(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"schema":1`)
	assert.Contains(t, string(data), `"score":"FHE-NzI="`)
	assert.Contains(t, string(data), `"studyHours":3`)

	out, err := UnmarshalBlob("r1", data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestUnmarshalBlob_LegacyDefaults(t *testing.T) {
	// Blob as written by the original front-end, without status or hours.
	data := []byte(`{"score":"FHE-NTA=","timestamp":1690000000,"owner":"0xB","subject":"History"}`)

	r, err := UnmarshalBlob("legacy", data)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, r.Status)
	assert.Equal(t, 0.0, r.StudyHours)
	assert.Equal(t, "legacy", r.ID)
}

func TestUnmarshalBlob_NullOptionalFields(t *testing.T) {
	data := []byte(`{"score":"50","timestamp":1,"owner":"0xB","subject":"History","status":null,"studyHours":null}`)

	r, err := UnmarshalBlob("n", data)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, r.Status)
	assert.Equal(t, 0.0, r.StudyHours)
}

func TestUnmarshalBlob_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":       `{"score":`,
		"missing score":  `{"timestamp":1,"owner":"0xA","subject":"Physics"}`,
		"unknown status": `{"score":"FHE-MQ==","status":"deleted"}`,
		"future schema":  `{"schema":2,"score":"FHE-MQ=="}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := UnmarshalBlob("x", []byte(raw))
			require.Error(t, err)
			assert.True(t, IsFormat(err))
		})
	}
}

func TestCatalogue(t *testing.T) {
	c := NewCatalogue(DefaultSubjects)
	assert.Equal(t, 9, c.Len())
	assert.True(t, c.Contains("Physics"))
	assert.True(t, c.Contains("  Computer Science "))
	assert.False(t, c.Contains("Astrology"))
	assert.False(t, c.Contains(""))

	// Decomposed "é" matches the composed catalogue entry.
	c2 := NewCatalogue([]string{"Caf\u00e9 Studies", "Cafe\u0301 Studies", ""})
	assert.Equal(t, 1, c2.Len())
	assert.True(t, c2.Contains("Cafe\u0301 Studies"))
	assert.Equal(t, []string{"Caf\u00e9 Studies"}, c2.Subjects())
}

func TestCatalogue_SubjectsIsCopy(t *testing.T) {
	c := NewCatalogue([]string{"Physics", "History"})
	s := c.Subjects()
	s[0] = "Changed"
	assert.Equal(t, []string{"Physics", "History"}, c.Subjects())
}

func TestSameOwner(t *testing.T) {
	assert.True(t, SameOwner("0xAbCd", "0xabcd"))
	assert.True(t, SameOwner(" 0xA ", "0xa"))
	assert.False(t, SameOwner("0xA", "0xB"))
	assert.False(t, SameOwner("", ""))
}

func TestErrorPredicates(t *testing.T) {
	err := fmt.Errorf("analyze: %w", NewInvalidTransitionError("r1", StatusArchived, StatusAnalyzed))

	assert.True(t, IsInvalidTransition(err))
	assert.False(t, IsNotFound(err))
	assert.Equal(t, ErrCodeInvalidTransition, CodeOf(err))
	assert.Contains(t, err.Error(), "record=r1")
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
	assert.False(t, IsValidation(nil))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk gone")
	err := NewStoreUnavailableError("get record_keys", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsStoreUnavailable(err))
	assert.Contains(t, err.Error(), "disk gone")
}
