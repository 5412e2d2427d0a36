package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dap-crew/dap-server/internal/database"
	"github.com/dap-crew/dap-server/internal/model"
)

// ParticipationRepository owns the lesson roster and the capacity counter.
// It is the only writer of both, always inside one transaction together
// with the mentee's courses_count.
type ParticipationRepository struct {
	db database.DB
}

// NewParticipationRepository constructs a ParticipationRepository.
func NewParticipationRepository(db database.DB) *ParticipationRepository {
	return &ParticipationRepository{db: db}
}

// Participate performs a concurrency-safe enrollment inside a single
// transaction. SELECT ... FOR UPDATE locks the lesson row, so concurrent
// enrollments racing for the last slot are admitted one at a time.
//
// Precondition order: lesson exists, not already enrolled, not overdue,
// capacity available. On success the roster row, the enrolled counter and
// the mentee's courses_count are committed as one atomic unit.
func (r *ParticipationRepository) Participate(ctx context.Context, lessonID, userID string, now time.Time) (*model.Lesson, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	lesson, err := lockLesson(ctx, tx, lessonID)
	if err != nil {
		return nil, err
	}

	var enrolled bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM participations WHERE lesson_id = $1 AND user_id = $2)`,
		lessonID, userID,
	).Scan(&enrolled)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if enrolled {
		err = ErrAlreadyParticipated
		return nil, err
	}

	if lesson.Overdue(now) {
		err = ErrLessonOverdue
		return nil, err
	}
	if lesson.IsFull() {
		err = ErrLessonOvercrowded
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE lessons SET enrolled_count = enrolled_count + 1 WHERE id = $1`,
		lessonID,
	)
	if err != nil {
		return nil, fmt.Errorf("increment enrolled_count: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO participations (id, lesson_id, user_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), lessonID, userID, now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert participation: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE mentees SET courses_count = courses_count + 1 WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("increment courses_count: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	lesson.EnrolledCount++
	return lesson, nil
}

// Cancel removes an enrollment inside a single transaction.
//
// Precondition order: lesson exists, currently enrolled, cancellation still
// open. On success the roster row, the enrolled counter and the mentee's
// courses_count are committed as one atomic unit.
func (r *ParticipationRepository) Cancel(ctx context.Context, lessonID, userID string, now time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	lesson, err := lockLesson(ctx, tx, lessonID)
	if err != nil {
		return err
	}

	var enrolled bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM participations WHERE lesson_id = $1 AND user_id = $2)`,
		lessonID, userID,
	).Scan(&enrolled)
	if err != nil {
		return fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		err = ErrNotParticipated
		return err
	}

	if lesson.CancelClosed(now) {
		err = ErrCancelOverdue
		return err
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM participations WHERE lesson_id = $1 AND user_id = $2`,
		lessonID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete participation: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE lessons SET enrolled_count = enrolled_count - 1 WHERE id = $1`,
		lessonID,
	)
	if err != nil {
		return fmt.Errorf("decrement enrolled_count: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE mentees SET courses_count = courses_count - 1 WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("decrement courses_count: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListByUser returns the lessons the user is currently enrolled in, most
// recent start first. This is the mentee-perspective roster view.
func (r *ParticipationRepository) ListByUser(ctx context.Context, userID string) ([]model.Lesson, error) {
	rows, err := r.db.Query(ctx,
		`SELECT l.id, l.title, COALESCE(l.description, ''), l.started_at, l.finished_at,
		        l.price, l.capacity, l.enrolled_count,
		        COALESCE(l.academy_id::text, ''), COALESCE(l.location_id::text, ''), l.created_at
		 FROM lessons l
		 JOIN participations p ON p.lesson_id = l.id
		 WHERE p.user_id = $1
		 ORDER BY l.started_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list enrolled lessons: %w", err)
	}
	defer rows.Close()

	var lessons []model.Lesson
	for rows.Next() {
		var l model.Lesson
		if err := rows.Scan(
			&l.ID, &l.Title, &l.Description, &l.StartedAt, &l.FinishedAt,
			&l.Price, &l.Capacity, &l.EnrolledCount, &l.AcademyID, &l.LocationID, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}

// lockLesson loads the lesson row under an exclusive row-level lock.
func lockLesson(ctx context.Context, tx pgx.Tx, lessonID string) (*model.Lesson, error) {
	var l model.Lesson
	err := tx.QueryRow(ctx,
		`SELECT id, title, COALESCE(description, ''), started_at, finished_at,
		        price, capacity, enrolled_count,
		        COALESCE(academy_id::text, ''), COALESCE(location_id::text, ''), created_at
		 FROM lessons
		 WHERE id = $1
		 FOR UPDATE`,
		lessonID,
	).Scan(
		&l.ID, &l.Title, &l.Description, &l.StartedAt, &l.FinishedAt,
		&l.Price, &l.Capacity, &l.EnrolledCount, &l.AcademyID, &l.LocationID, &l.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLessonNotFound
		}
		return nil, fmt.Errorf("lock lesson row: %w", err)
	}
	return &l, nil
}
