package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dap-crew/dap-server/internal/database"
	"github.com/dap-crew/dap-server/internal/model"
)

// AcademyRepository handles persistence for academies and the static genre
// catalogue.
type AcademyRepository struct {
	db database.DB
}

// NewAcademyRepository constructs an AcademyRepository.
func NewAcademyRepository(db database.DB) *AcademyRepository {
	return &AcademyRepository{db: db}
}

// Create inserts an academy with its location in one transaction.
func (r *AcademyRepository) Create(ctx context.Context, req model.CreateAcademyRequest) (*model.Academy, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	academy := &model.Academy{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Email:       req.Email,
		Contact:     req.Contact,
		Description: req.Description,
		URL:         req.URL,
	}

	locationID, err := insertLocation(ctx, tx, model.LocationTypeAcademy, req.Location)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO academies (id, name, email, contact, description, url, location_id)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, NULLIF($7, '')::uuid)`,
		academy.ID, academy.Name, academy.Email, academy.Contact,
		academy.Description, academy.URL, locationID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert academy: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return academy, nil
}

// GetByID returns a single academy with its location or ErrNotFound.
func (r *AcademyRepository) GetByID(ctx context.Context, id string) (*model.Academy, error) {
	var (
		a     model.Academy
		locID *string
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, name, COALESCE(email, ''), COALESCE(contact, ''),
		        COALESCE(description, ''), COALESCE(url, ''), location_id::text
		 FROM academies WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.Name, &a.Email, &a.Contact, &a.Description, &a.URL, &locID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get academy: %w", err)
	}

	if locID != nil {
		var loc model.Location
		err = r.db.QueryRow(ctx,
			`SELECT id, type, detail, COALESCE(city, ''), COALESCE(district, ''), COALESCE(description, '')
			 FROM locations WHERE id = $1`,
			*locID,
		).Scan(&loc.ID, &loc.Type, &loc.Detail, &loc.City, &loc.District, &loc.Description)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get academy location: %w", err)
		}
		if err == nil {
			a.Location = &loc
		}
	}
	return &a, nil
}

// List returns all academies ordered by name.
func (r *AcademyRepository) List(ctx context.Context) ([]model.Academy, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, COALESCE(email, ''), COALESCE(contact, ''),
		        COALESCE(description, ''), COALESCE(url, '')
		 FROM academies
		 ORDER BY name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list academies: %w", err)
	}
	defer rows.Close()

	var academies []model.Academy
	for rows.Next() {
		var a model.Academy
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.Contact, &a.Description, &a.URL); err != nil {
			return nil, fmt.Errorf("scan academy: %w", err)
		}
		academies = append(academies, a)
	}
	return academies, rows.Err()
}

// ListGenres returns the static genre catalogue ordered by name.
func (r *AcademyRepository) ListGenres(ctx context.Context) ([]model.Genre, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, COALESCE(description, '') FROM genres ORDER BY name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	defer rows.Close()

	var genres []model.Genre
	for rows.Next() {
		var g model.Genre
		if err := rows.Scan(&g.ID, &g.Name, &g.Description); err != nil {
			return nil, fmt.Errorf("scan genre: %w", err)
		}
		genres = append(genres, g)
	}
	return genres, rows.Err()
}
