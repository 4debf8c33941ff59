// Package lifecycle enforces the record state machine:
//
//	pending ──► analyzed ──► archived
//	   └────────────────────────▲
//
// archived is terminal. Every mutating operation is gated on record
// ownership, and the checks run inside the store mutator so they see the
// blob that is about to be overwritten.
package lifecycle

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/roach88/fhetutor/internal/codec"
	"github.com/roach88/fhetutor/internal/metrics"
	"github.com/roach88/fhetutor/internal/record"
	"github.com/roach88/fhetutor/internal/store"
)

// Operation names, as used in logs, metrics and status messages.
const (
	OpSubmit  = "submit"
	OpAnalyze = "analyze"
	OpArchive = "archive"
)

// RecordStore is the subset of the Record Store the lifecycle needs.
type RecordStore interface {
	CreateRecord(ctx context.Context, candidate record.LearningRecord) (string, error)
	UpdateRecord(ctx context.Context, id string, mutate store.Mutator) (record.LearningRecord, error)
	GetRecord(ctx context.Context, id string) (record.LearningRecord, error)
	ListRecords(ctx context.Context) ([]record.LearningRecord, error)
}

// Clock supplies record timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// SubmitRequest is the input of Submit. TestScore is a pointer so that an
// omitted score can be told apart from a score of 0.
type SubmitRequest struct {
	Owner       string
	Subject     string
	TestScore   *float64
	StudyHours  float64
	Description string
}

// Options configures a Service. Zero values select defaults.
type Options struct {
	Catalogue *record.Catalogue
	Clock     Clock
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// Service runs lifecycle operations against a record store.
type Service struct {
	store     RecordStore
	codec     codec.Codec
	catalogue *record.Catalogue
	clock     Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// New creates a Service.
func New(st RecordStore, c codec.Codec, opts Options) *Service {
	s := &Service{
		store:     st,
		codec:     c,
		catalogue: opts.Catalogue,
		clock:     opts.Clock,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
	if s.catalogue == nil {
		s.catalogue = record.NewCatalogue(record.DefaultSubjects)
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Catalogue returns the subjects Submit accepts.
func (s *Service) Catalogue() *record.Catalogue {
	return s.catalogue
}

// Submit validates req, encodes the score and creates a pending record.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (id string, err error) {
	defer func() { s.observe(OpSubmit, id, err) }()

	if err := s.validate(req); err != nil {
		return "", err
	}

	candidate := record.LearningRecord{
		EncryptedScore: s.codec.Encode(*req.TestScore),
		Timestamp:      s.clock.Now().Unix(),
		Owner:          req.Owner,
		Subject:        record.NormalizeSubject(req.Subject),
		Status:         record.StatusPending,
		StudyHours:     req.StudyHours,
		Description:    req.Description,
	}
	return s.store.CreateRecord(ctx, candidate)
}

func (s *Service) validate(req SubmitRequest) error {
	switch {
	case record.NormalizeSubject(req.Subject) == "":
		return record.NewValidationError("subject is required")
	case req.TestScore == nil:
		return record.NewValidationError("test score is required")
	case math.IsNaN(*req.TestScore) || math.IsInf(*req.TestScore, 0):
		return record.NewValidationError("test score must be a finite number")
	case strings.TrimSpace(req.Owner) == "":
		return record.NewValidationError("owner is required")
	case !s.catalogue.Contains(req.Subject):
		return record.NewValidationError("unknown subject %q", req.Subject)
	case math.IsNaN(req.StudyHours) || math.IsInf(req.StudyHours, 0) || req.StudyHours < 0:
		return record.NewValidationError("study hours must be a non-negative number")
	}
	return nil
}

// Analyze transforms the encrypted score of a pending record and marks it
// analyzed.
func (s *Service) Analyze(ctx context.Context, id, caller string) (r record.LearningRecord, err error) {
	defer func() { s.observe(OpAnalyze, id, err) }()

	return s.store.UpdateRecord(ctx, id, func(cur record.LearningRecord) (record.LearningRecord, error) {
		if err := checkTransition(cur, caller, record.StatusAnalyzed); err != nil {
			return cur, err
		}
		score, err := s.codec.Transform(cur.EncryptedScore, codec.OpAnalyze)
		if err != nil {
			return cur, err
		}
		cur.EncryptedScore = score
		cur.Status = record.StatusAnalyzed
		return cur, nil
	})
}

// Archive moves a record to the terminal archived state. The ciphertext is
// left unchanged.
func (s *Service) Archive(ctx context.Context, id, caller string) (r record.LearningRecord, err error) {
	defer func() { s.observe(OpArchive, id, err) }()

	return s.store.UpdateRecord(ctx, id, func(cur record.LearningRecord) (record.LearningRecord, error) {
		if err := checkTransition(cur, caller, record.StatusArchived); err != nil {
			return cur, err
		}
		cur.Status = record.StatusArchived
		return cur, nil
	})
}

// Records lists every record, newest first.
func (s *Service) Records(ctx context.Context) ([]record.LearningRecord, error) {
	return s.store.ListRecords(ctx)
}

// Record reads one record.
func (s *Service) Record(ctx context.Context, id string) (record.LearningRecord, error) {
	return s.store.GetRecord(ctx, id)
}

func checkTransition(cur record.LearningRecord, caller string, to record.Status) error {
	if !record.SameOwner(caller, cur.Owner) {
		return record.NewUnauthorizedError(cur.ID, caller)
	}
	if !record.CanTransition(cur.Status, to) {
		return record.NewInvalidTransitionError(cur.ID, cur.Status, to)
	}
	return nil
}

func (s *Service) observe(op, id string, err error) {
	if err == nil {
		s.metrics.Transition(op, metrics.ResultOK)
		s.logger.Info("lifecycle operation succeeded", "op", op, "id", id)
		return
	}

	result := string(record.CodeOf(err))
	if result == "" {
		result = metrics.ResultError
	}
	s.metrics.Transition(op, result)
	s.logger.Warn("lifecycle operation failed", "op", op, "id", id, "error", err)
}
