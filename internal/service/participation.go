// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dap-crew/dap-server/internal/model"
)

// Role errors. The messages are part of the public API contract.
var (
	// ErrOnlyMenteeParticipate rejects non-mentee enrollment attempts.
	ErrOnlyMenteeParticipate = errors.New("Only mentee can participate lesson.")

	// ErrOnlyMenteeCancel rejects non-mentee cancellation attempts.
	ErrOnlyMenteeCancel = errors.New("Only mentee can cancel lesson.")
)

var (
	participationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dap_participations_total",
		Help: "Number of successful lesson enrollments.",
	})
	cancellationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dap_cancellations_total",
		Help: "Number of successful lesson cancellations.",
	})
)

// ParticipationStore is the roster and capacity persistence the
// orchestrator depends on.
type ParticipationStore interface {
	Participate(ctx context.Context, lessonID, userID string, now time.Time) (*model.Lesson, error)
	Cancel(ctx context.Context, lessonID, userID string, now time.Time) error
	ListByUser(ctx context.Context, userID string) ([]model.Lesson, error)
}

// LessonDetailStore loads the full lesson view returned after enrollment.
type LessonDetailStore interface {
	GetDetail(ctx context.Context, id string) (*model.LessonDetail, error)
}

// UserStore looks up callers and their role profiles.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// ParticipationService orchestrates lesson enrollment and cancellation.
type ParticipationService struct {
	users          UserStore
	participations ParticipationStore
	lessons        LessonDetailStore
	clock          clockwork.Clock
}

// NewParticipationService constructs a ParticipationService.
func NewParticipationService(
	users UserStore,
	participations ParticipationStore,
	lessons LessonDetailStore,
	clock clockwork.Clock,
) *ParticipationService {
	return &ParticipationService{
		users:          users,
		participations: participations,
		lessons:        lessons,
		clock:          clock,
	}
}

// Participate enrolls the caller in a lesson and returns the updated lesson
// detail. The role gate runs before any lesson lookup; the remaining
// preconditions and the three-row mutation happen atomically in the store.
// now is captured once so every time comparison in the operation agrees.
func (s *ParticipationService) Participate(ctx context.Context, userID, lessonID string) (*model.LessonDetail, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load caller: %w", err)
	}
	if !user.IsMentee() {
		return nil, ErrOnlyMenteeParticipate
	}

	now := s.clock.Now()
	if _, err := s.participations.Participate(ctx, lessonID, userID, now); err != nil {
		return nil, err
	}
	participationsTotal.Inc()

	detail, err := s.lessons.GetDetail(ctx, lessonID)
	if err != nil {
		return nil, fmt.Errorf("load lesson detail: %w", err)
	}
	return detail, nil
}

// Cancel withdraws the caller's enrollment. The role gate runs before any
// lesson lookup; the deadline check and the three-row mutation happen
// atomically in the store.
func (s *ParticipationService) Cancel(ctx context.Context, userID, lessonID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load caller: %w", err)
	}
	if !user.IsMentee() {
		return ErrOnlyMenteeCancel
	}

	now := s.clock.Now()
	if err := s.participations.Cancel(ctx, lessonID, userID, now); err != nil {
		return err
	}
	cancellationsTotal.Inc()
	return nil
}

// MyClasses returns the lessons the caller is currently enrolled in.
func (s *ParticipationService) MyClasses(ctx context.Context, userID string) ([]model.LessonSummary, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load caller: %w", err)
	}
	if !user.IsMentee() {
		return nil, ErrOnlyMenteeParticipate
	}

	lessons, err := s.participations.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]model.LessonSummary, 0, len(lessons))
	for _, l := range lessons {
		summaries = append(summaries, model.LessonSummary{
			ID:            l.ID,
			Title:         l.Title,
			StartedAt:     l.StartedAt,
			FinishedAt:    l.FinishedAt,
			Price:         l.Price,
			RecruitNumber: l.RecruitNumber(),
		})
	}
	return summaries, nil
}
