// Package repository implements all database queries for the lesson booking
// system. It uses pgx directly (no ORM); the dynamic list and search
// filters are assembled with squirrel.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dap-crew/dap-server/internal/database"
	"github.com/dap-crew/dap-server/internal/model"
)

// psql builds queries with PostgreSQL $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// listLimit bounds list and search results in place of real pagination.
const listLimit = 100

// LessonRepository handles persistence for lessons.
type LessonRepository struct {
	db database.DB
}

// NewLessonRepository constructs a LessonRepository.
func NewLessonRepository(db database.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// Create inserts a new lesson with its location, mentor set and genre set
// in one transaction and returns the generated id.
func (r *LessonRepository) Create(ctx context.Context, req model.CreateLessonRequest) (string, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	lessonID := uuid.New().String()

	locationID, err := insertLocation(ctx, tx, model.LocationTypeLesson, req.Location)
	if err != nil {
		return "", err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO lessons (id, title, description, started_at, finished_at,
		                      price, capacity, enrolled_count, academy_id, location_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 0, NULLIF($8, '')::uuid, NULLIF($9, '')::uuid, $10)`,
		lessonID, req.Title, req.Description, req.StartedAt, req.FinishedAt,
		req.Price, req.RecruitNumber, req.AcademyID, locationID, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert lesson: %w", err)
	}

	if err = setLessonMentors(ctx, tx, lessonID, req.Mentors); err != nil {
		return "", err
	}
	if err = setLessonGenres(ctx, tx, lessonID, req.Genres); err != nil {
		return "", err
	}

	if err = tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}
	return lessonID, nil
}

// GetByID returns a single lesson row or ErrLessonNotFound.
func (r *LessonRepository) GetByID(ctx context.Context, id string) (*model.Lesson, error) {
	var l model.Lesson
	err := r.db.QueryRow(ctx,
		`SELECT id, title, COALESCE(description, ''), started_at, finished_at,
		        price, capacity, enrolled_count,
		        COALESCE(academy_id::text, ''), COALESCE(location_id::text, ''), created_at
		 FROM lessons WHERE id = $1`,
		id,
	).Scan(
		&l.ID, &l.Title, &l.Description, &l.StartedAt, &l.FinishedAt,
		&l.Price, &l.Capacity, &l.EnrolledCount, &l.AcademyID, &l.LocationID, &l.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLessonNotFound
		}
		return nil, fmt.Errorf("get lesson: %w", err)
	}
	return &l, nil
}

// GetDetail returns the full lesson view: the lesson row joined with its
// mentors, academy, genres and location.
func (r *LessonRepository) GetDetail(ctx context.Context, id string) (*model.LessonDetail, error) {
	lesson, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &model.LessonDetail{
		ID:            lesson.ID,
		Title:         lesson.Title,
		Description:   lesson.Description,
		StartedAt:     lesson.StartedAt,
		FinishedAt:    lesson.FinishedAt,
		Price:         lesson.Price,
		RecruitNumber: lesson.RecruitNumber(),
	}

	if detail.Mentors, err = r.lessonMentors(ctx, id); err != nil {
		return nil, err
	}
	if detail.Genres, err = r.lessonGenres(ctx, id); err != nil {
		return nil, err
	}

	if lesson.AcademyID != "" {
		var a model.AcademyRef
		err = r.db.QueryRow(ctx,
			`SELECT id, name, COALESCE(contact, '') FROM academies WHERE id = $1`,
			lesson.AcademyID,
		).Scan(&a.ID, &a.Name, &a.Contact)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get lesson academy: %w", err)
		}
		if err == nil {
			detail.Academy = &a
		}
	}

	if lesson.LocationID != "" {
		var loc model.Location
		err = r.db.QueryRow(ctx,
			`SELECT id, type, detail, COALESCE(city, ''), COALESCE(district, ''), COALESCE(description, '')
			 FROM locations WHERE id = $1`,
			lesson.LocationID,
		).Scan(&loc.ID, &loc.Type, &loc.Detail, &loc.City, &loc.District, &loc.Description)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get lesson location: %w", err)
		}
		if err == nil {
			detail.Location = &loc
		}
	}

	return detail, nil
}

// Update applies a partial update to the lesson's scalar fields and, where
// provided, replaces its mentor set, genre set and location.
func (r *LessonRepository) Update(ctx context.Context, id string, req model.UpdateLessonRequest) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	update := psql.Update("lessons").Where(sq.Eq{"id": id})
	changed := false
	if req.Title != nil {
		update = update.Set("title", *req.Title)
		changed = true
	}
	if req.Description != nil {
		update = update.Set("description", *req.Description)
		changed = true
	}
	if req.StartedAt != nil {
		update = update.Set("started_at", *req.StartedAt)
		changed = true
	}
	if req.FinishedAt != nil {
		update = update.Set("finished_at", *req.FinishedAt)
		changed = true
	}
	if req.Price != nil {
		update = update.Set("price", *req.Price)
		changed = true
	}
	if req.RecruitNumber != nil {
		// Administrative capacity adjustment keeps the roster intact: the
		// new provisioned capacity must still cover current enrollment.
		update = update.Set("capacity", *req.RecruitNumber)
		changed = true
	}
	if req.AcademyID != nil {
		update = update.Set("academy_id", *req.AcademyID)
		changed = true
	}
	if req.Location != nil {
		var locationID string
		locationID, err = insertLocation(ctx, tx, model.LocationTypeLesson, req.Location)
		if err != nil {
			return err
		}
		update = update.Set("location_id", locationID)
		changed = true
	}

	if changed {
		var query string
		var args []any
		query, args, err = update.ToSql()
		if err != nil {
			return fmt.Errorf("build update: %w", err)
		}
		var tag pgconn.CommandTag
		tag, err = tx.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update lesson: %w", err)
		}
		if tag.RowsAffected() == 0 {
			err = ErrLessonNotFound
			return err
		}
	}

	if req.Mentors != nil {
		if _, err = tx.Exec(ctx, `DELETE FROM lesson_mentors WHERE lesson_id = $1`, id); err != nil {
			return fmt.Errorf("clear lesson mentors: %w", err)
		}
		if err = setLessonMentors(ctx, tx, id, req.Mentors); err != nil {
			return err
		}
	}
	if req.Genres != nil {
		if _, err = tx.Exec(ctx, `DELETE FROM lesson_genres WHERE lesson_id = $1`, id); err != nil {
			return fmt.Errorf("clear lesson genres: %w", err)
		}
		if err = setLessonGenres(ctx, tx, id, req.Genres); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Delete removes a lesson; roster and set memberships cascade.
func (r *LessonRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM lessons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lesson: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLessonNotFound
	}
	return nil
}

// IsOwner reports whether the user is one of the lesson's mentors.
func (r *LessonRepository) IsOwner(ctx context.Context, lessonID, userID string) (bool, error) {
	var owner bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM lesson_mentors WHERE lesson_id = $1 AND user_id = $2)`,
		lessonID, userID,
	).Scan(&owner)
	if err != nil {
		return false, fmt.Errorf("check lesson owner: %w", err)
	}
	return owner, nil
}

// List returns upcoming lessons matching the filter, soonest first.
func (r *LessonRepository) List(ctx context.Context, filter model.LessonFilter, now time.Time) ([]model.LessonSummary, error) {
	query := psql.Select(
		"DISTINCT l.id", "l.title", "l.started_at", "l.finished_at", "l.price",
		"l.capacity - l.enrolled_count AS recruit_number",
		"COALESCE(a.name, '')", "COALESCE(loc.city, '')",
	).
		From("lessons l").
		LeftJoin("academies a ON a.id = l.academy_id").
		LeftJoin("locations loc ON loc.id = l.location_id").
		Join("lesson_genres lg ON lg.lesson_id = l.id").
		Join("genres g ON g.id = lg.genre_id").
		Where(sq.GtOrEq{"l.started_at": now}).
		Where(sq.Eq{"g.name": filter.Genres}).
		Where(sq.Eq{"loc.city": filter.City}).
		Where(sq.GtOrEq{"l.capacity - l.enrolled_count": filter.RecruitNumber}).
		OrderBy("l.started_at ASC").
		Limit(listLimit)

	if filter.MinPrice != nil {
		query = query.Where(sq.GtOrEq{"l.price": *filter.MinPrice})
	}
	if filter.MaxPrice != nil {
		query = query.Where(sq.LtOrEq{"l.price": *filter.MaxPrice})
	}
	if len(filter.Academies) > 0 {
		query = query.Where(sq.Eq{"l.academy_id": filter.Academies})
	}
	if len(filter.Mentors) > 0 {
		query = query.Where(`l.id IN (SELECT lesson_id FROM lesson_mentors WHERE user_id = ANY(?))`, filter.Mentors)
	}
	if len(filter.Districts) > 0 {
		query = query.Where(sq.Eq{"loc.district": filter.Districts})
	}

	return r.querySummaries(ctx, query)
}

// Search returns lessons whose title, description, academy name or mentor
// username contains the keyword, latest start first. Finished lessons are
// excluded unless the caller asks for past ones.
func (r *LessonRepository) Search(ctx context.Context, filter model.SearchFilter, now time.Time) ([]model.LessonSummary, error) {
	pattern := "%" + filter.Keyword + "%"
	query := psql.Select(
		"DISTINCT l.id", "l.title", "l.started_at", "l.finished_at", "l.price",
		"l.capacity - l.enrolled_count AS recruit_number",
		"COALESCE(a.name, '')", "COALESCE(loc.city, '')",
	).
		From("lessons l").
		LeftJoin("academies a ON a.id = l.academy_id").
		LeftJoin("locations loc ON loc.id = l.location_id").
		LeftJoin("lesson_mentors lm ON lm.lesson_id = l.id").
		LeftJoin("users u ON u.id = lm.user_id").
		Where(sq.Or{
			sq.ILike{"l.title": pattern},
			sq.ILike{"l.description": pattern},
			sq.ILike{"a.name": pattern},
			sq.ILike{"u.username": pattern},
		}).
		OrderBy("l.started_at DESC").
		Limit(listLimit)

	if !filter.IncludePast {
		query = query.Where(sq.Gt{"l.finished_at": now})
	}

	return r.querySummaries(ctx, query)
}

func (r *LessonRepository) querySummaries(ctx context.Context, query sq.SelectBuilder) ([]model.LessonSummary, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lesson query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query lessons: %w", err)
	}
	defer rows.Close()

	var lessons []model.LessonSummary
	for rows.Next() {
		var s model.LessonSummary
		if err := rows.Scan(
			&s.ID, &s.Title, &s.StartedAt, &s.FinishedAt,
			&s.Price, &s.RecruitNumber, &s.Academy, &s.City,
		); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		lessons = append(lessons, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range lessons {
		if lessons[i].Mentors, err = r.lessonMentors(ctx, lessons[i].ID); err != nil {
			return nil, err
		}
		if lessons[i].Genres, err = r.lessonGenres(ctx, lessons[i].ID); err != nil {
			return nil, err
		}
	}
	return lessons, nil
}

func (r *LessonRepository) lessonMentors(ctx context.Context, lessonID string) ([]model.MentorRef, error) {
	rows, err := r.db.Query(ctx,
		`SELECT u.id, u.username
		 FROM lesson_mentors lm
		 JOIN users u ON u.id = lm.user_id
		 WHERE lm.lesson_id = $1
		 ORDER BY u.username ASC`,
		lessonID,
	)
	if err != nil {
		return nil, fmt.Errorf("list lesson mentors: %w", err)
	}
	defer rows.Close()

	mentors := []model.MentorRef{}
	for rows.Next() {
		var m model.MentorRef
		if err := rows.Scan(&m.ID, &m.Username); err != nil {
			return nil, fmt.Errorf("scan mentor: %w", err)
		}
		mentors = append(mentors, m)
	}
	return mentors, rows.Err()
}

func (r *LessonRepository) lessonGenres(ctx context.Context, lessonID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT g.name
		 FROM lesson_genres lg
		 JOIN genres g ON g.id = lg.genre_id
		 WHERE lg.lesson_id = $1
		 ORDER BY g.name ASC`,
		lessonID,
	)
	if err != nil {
		return nil, fmt.Errorf("list lesson genres: %w", err)
	}
	defer rows.Close()

	genres := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan genre: %w", err)
		}
		genres = append(genres, name)
	}
	return genres, rows.Err()
}

func setLessonMentors(ctx context.Context, tx pgx.Tx, lessonID string, mentorIDs []string) error {
	for _, mentorID := range mentorIDs {
		_, err := tx.Exec(ctx,
			`INSERT INTO lesson_mentors (lesson_id, user_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			lessonID, mentorID,
		)
		if err != nil {
			return fmt.Errorf("set lesson mentor: %w", err)
		}
	}
	return nil
}

func setLessonGenres(ctx context.Context, tx pgx.Tx, lessonID string, genreIDs []string) error {
	for _, genreID := range genreIDs {
		_, err := tx.Exec(ctx,
			`INSERT INTO lesson_genres (lesson_id, genre_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			lessonID, genreID,
		)
		if err != nil {
			return fmt.Errorf("set lesson genre: %w", err)
		}
	}
	return nil
}

// insertLocation stores a location block and returns the new id, or an
// empty id when no location was supplied.
func insertLocation(ctx context.Context, tx pgx.Tx, locType string, loc *model.LocationInput) (string, error) {
	if loc == nil {
		return "", nil
	}
	locationID := uuid.New().String()
	_, err := tx.Exec(ctx,
		`INSERT INTO locations (id, type, detail, city, district, description)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		locationID, locType, loc.Detail, loc.City, loc.District, loc.Description,
	)
	if err != nil {
		return "", fmt.Errorf("insert location: %w", err)
	}
	return locationID, nil
}
