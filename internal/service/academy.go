package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/dap-crew/dap-server/internal/model"
)

// AcademyStore is the academy/genre persistence the academy service
// depends on.
type AcademyStore interface {
	Create(ctx context.Context, req model.CreateAcademyRequest) (*model.Academy, error)
	GetByID(ctx context.Context, id string) (*model.Academy, error)
	List(ctx context.Context) ([]model.Academy, error)
	ListGenres(ctx context.Context) ([]model.Genre, error)
}

// AcademyService handles academy registration and the genre catalogue.
type AcademyService struct {
	academies AcademyStore
}

// NewAcademyService constructs an AcademyService.
func NewAcademyService(academies AcademyStore) *AcademyService {
	return &AcademyService{academies: academies}
}

// Create validates and stores an academy.
func (s *AcademyService) Create(ctx context.Context, req model.CreateAcademyRequest) (*model.Academy, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("name required.")
	}
	return s.academies.Create(ctx, req)
}

// Get returns a single academy.
func (s *AcademyService) Get(ctx context.Context, id string) (*model.Academy, error) {
	return s.academies.GetByID(ctx, id)
}

// List returns all academies.
func (s *AcademyService) List(ctx context.Context) ([]model.Academy, error) {
	return s.academies.List(ctx)
}

// Genres returns the static genre catalogue.
func (s *AcademyService) Genres(ctx context.Context) ([]model.Genre, error) {
	return s.academies.ListGenres(ctx)
}
