// Package insights computes the dashboard figures and study
// recommendations shown next to a learner's records.
package insights

import (
	"cmp"
	"math"
	"slices"

	"github.com/roach88/fhetutor/internal/codec"
	"github.com/roach88/fhetutor/internal/record"
)

// FocusAreas are the recommendation topics, in pick order.
var FocusAreas = []string{"key concepts", "practice problems", "theoretical foundations"}

// Summary is the dashboard header.
type Summary struct {
	Total      int     `json:"total"`
	Pending    int     `json:"pending"`
	Analyzed   int     `json:"analyzed"`
	Archived   int     `json:"archived"`
	StudyHours float64 `json:"study_hours"`
	// AverageScore is the mean decoded score. Records whose ciphertext does
	// not decode are left out of the mean. Zero when nothing decodes.
	AverageScore float64 `json:"average_score"`
	Subjects     int     `json:"subjects"`
	Unreadable   int     `json:"unreadable,omitempty"`
}

// SubjectCount is one bar of the subject distribution.
type SubjectCount struct {
	Subject string  `json:"subject"`
	Count   int     `json:"count"`
	Share   float64 `json:"share"`
}

// Point is one bar of the performance chart.
type Point struct {
	ID        string  `json:"id"`
	Subject   string  `json:"subject"`
	Timestamp int64   `json:"timestamp"`
	Score     float64 `json:"score"`
}

// Recommendation is the study advice for one revealed score.
type Recommendation struct {
	Subject        string  `json:"subject"`
	Score          float64 `json:"score"`
	FocusArea      string  `json:"focus_area"`
	SuggestedHours int     `json:"suggested_hours"`
}

// Summarize counts records per status and decodes every score for the
// average.
func Summarize(records []record.LearningRecord, c codec.Codec) Summary {
	var (
		sum      Summary
		scoreSum float64
		decoded  int
		subjects = make(map[string]struct{})
	)
	for _, r := range records {
		sum.Total++
		switch r.Status {
		case record.StatusPending:
			sum.Pending++
		case record.StatusAnalyzed:
			sum.Analyzed++
		case record.StatusArchived:
			sum.Archived++
		}
		sum.StudyHours += r.StudyHours
		subjects[r.Subject] = struct{}{}

		v, err := c.Decode(r.EncryptedScore)
		if err != nil {
			sum.Unreadable++
			continue
		}
		scoreSum += v
		decoded++
	}
	if decoded > 0 {
		sum.AverageScore = scoreSum / float64(decoded)
	}
	sum.Subjects = len(subjects)
	return sum
}

// TopSubjects returns the n most frequent subjects, most frequent first and
// alphabetical among ties. Share is the fraction of all records.
func TopSubjects(records []record.LearningRecord, n int) []SubjectCount {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Subject]++
	}

	out := make([]SubjectCount, 0, len(counts))
	for subject, count := range counts {
		out = append(out, SubjectCount{
			Subject: subject,
			Count:   count,
			Share:   float64(count) / float64(len(records)),
		})
	}
	slices.SortFunc(out, func(a, b SubjectCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Subject, b.Subject)
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// RecentPerformance takes the n newest records and returns their decoded
// scores oldest first. records must be ordered newest first, as the store
// lists them. Undecodable scores are skipped.
func RecentPerformance(records []record.LearningRecord, c codec.Codec, n int) []Point {
	if n < 0 || n > len(records) {
		n = len(records)
	}
	recent := records[:n]

	out := make([]Point, 0, n)
	for i := len(recent) - 1; i >= 0; i-- {
		r := recent[i]
		v, err := c.Decode(r.EncryptedScore)
		if err != nil {
			continue
		}
		out = append(out, Point{ID: r.ID, Subject: r.Subject, Timestamp: r.Timestamp, Score: v})
	}
	return out
}

// Recommend builds advice for a revealed score. pick returns an index in
// [0, n) and chooses the focus area; suggested hours are the recorded
// study hours plus 20%, rounded up.
func Recommend(score float64, r record.LearningRecord, pick func(n int) int) Recommendation {
	i := pick(len(FocusAreas))
	if i < 0 || i >= len(FocusAreas) {
		i = 0
	}
	return Recommendation{
		Subject:        r.Subject,
		Score:          score,
		FocusArea:      FocusAreas[i],
		SuggestedHours: int(math.Ceil(r.StudyHours * 1.2)),
	}
}
