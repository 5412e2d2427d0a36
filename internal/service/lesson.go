package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dap-crew/dap-server/internal/model"
)

// ErrNotAllowed rejects callers without the required role or ownership.
var ErrNotAllowed = errors.New("Not allowed.")

// ErrFilterEmpty rejects list requests missing the mandatory filters.
var ErrFilterEmpty = errors.New("genre or city is empty.")

// LessonStore is the lesson persistence the lesson service depends on.
type LessonStore interface {
	Create(ctx context.Context, req model.CreateLessonRequest) (string, error)
	GetByID(ctx context.Context, id string) (*model.Lesson, error)
	GetDetail(ctx context.Context, id string) (*model.LessonDetail, error)
	Update(ctx context.Context, id string, req model.UpdateLessonRequest) error
	Delete(ctx context.Context, id string) error
	IsOwner(ctx context.Context, lessonID, userID string) (bool, error)
	List(ctx context.Context, filter model.LessonFilter, now time.Time) ([]model.LessonSummary, error)
	Search(ctx context.Context, filter model.SearchFilter, now time.Time) ([]model.LessonSummary, error)
}

// LessonService orchestrates lesson CRUD, listing and search.
type LessonService struct {
	lessons LessonStore
	users   UserStore
	clock   clockwork.Clock
}

// NewLessonService constructs a LessonService.
func NewLessonService(lessons LessonStore, users UserStore, clock clockwork.Clock) *LessonService {
	return &LessonService{lessons: lessons, users: users, clock: clock}
}

// Create validates the request and stores the lesson. Only mentors may
// author lessons.
func (s *LessonService) Create(ctx context.Context, userID string, req model.CreateLessonRequest) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load caller: %w", err)
	}
	if !user.IsMentor() {
		return "", ErrNotAllowed
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return "", fmt.Errorf("title required.")
	}
	if req.Location == nil {
		return "", fmt.Errorf("location required.")
	}
	if len(req.Mentors) == 0 {
		return "", fmt.Errorf("mentors required.")
	}
	if len(req.Genres) == 0 {
		return "", fmt.Errorf("genres required.")
	}
	if !req.StartedAt.Before(req.FinishedAt) {
		return "", fmt.Errorf("finished_at should be later than started_at.")
	}
	if req.Price < 0 {
		return "", fmt.Errorf("price should be positive.")
	}
	if req.RecruitNumber < 0 {
		return "", fmt.Errorf("recruit_number should be positive.")
	}

	return s.lessons.Create(ctx, req)
}

// Get returns the full lesson view.
func (s *LessonService) Get(ctx context.Context, id string) (*model.LessonDetail, error) {
	return s.lessons.GetDetail(ctx, id)
}

// Update applies a partial update. Only one of the lesson's mentors may
// touch it.
func (s *LessonService) Update(ctx context.Context, userID, lessonID string, req model.UpdateLessonRequest) error {
	if err := s.requireOwner(ctx, userID, lessonID); err != nil {
		return err
	}
	if req.StartedAt != nil && req.FinishedAt != nil && !req.StartedAt.Before(*req.FinishedAt) {
		return fmt.Errorf("finished_at should be later than started_at.")
	}
	if req.Price != nil && *req.Price < 0 {
		return fmt.Errorf("price should be positive.")
	}
	if req.RecruitNumber != nil && *req.RecruitNumber < 0 {
		return fmt.Errorf("recruit_number should be positive.")
	}
	return s.lessons.Update(ctx, lessonID, req)
}

// Delete removes a lesson. Only one of the lesson's mentors may delete it.
func (s *LessonService) Delete(ctx context.Context, userID, lessonID string) error {
	if err := s.requireOwner(ctx, userID, lessonID); err != nil {
		return err
	}
	return s.lessons.Delete(ctx, lessonID)
}

// List returns upcoming lessons matching the filter. Genre and city are
// mandatory.
func (s *LessonService) List(ctx context.Context, filter model.LessonFilter) ([]model.LessonSummary, error) {
	if len(filter.Genres) == 0 || filter.City == "" {
		return nil, ErrFilterEmpty
	}
	if filter.RecruitNumber <= 0 {
		filter.RecruitNumber = 1
	}
	return s.lessons.List(ctx, filter, s.clock.Now())
}

// Search returns lessons matching the keyword. An empty keyword yields an
// empty result.
func (s *LessonService) Search(ctx context.Context, filter model.SearchFilter) ([]model.LessonSummary, error) {
	filter.Keyword = strings.TrimSpace(filter.Keyword)
	if filter.Keyword == "" {
		return []model.LessonSummary{}, nil
	}
	return s.lessons.Search(ctx, filter, s.clock.Now())
}

func (s *LessonService) requireOwner(ctx context.Context, userID, lessonID string) error {
	if _, err := s.lessons.GetByID(ctx, lessonID); err != nil {
		return err
	}
	owner, err := s.lessons.IsOwner(ctx, lessonID, userID)
	if err != nil {
		return err
	}
	if !owner {
		return ErrNotAllowed
	}
	return nil
}
