package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dap-crew/dap-server/internal/model"
)

var lessonColumns = []string{
	"id", "title", "description", "started_at", "finished_at",
	"price", "capacity", "enrolled_count", "academy_id", "location_id", "created_at",
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func expectLockLesson(mock pgxmock.PgxPoolIface, l *model.Lesson) {
	rows := pgxmock.NewRows(lessonColumns).AddRow(
		l.ID, l.Title, l.Description, l.StartedAt, l.FinishedAt,
		l.Price, l.Capacity, l.EnrolledCount, l.AcademyID, l.LocationID, l.CreatedAt,
	)
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(l.ID).WillReturnRows(rows)
}

func expectEnrolled(mock pgxmock.PgxPoolIface, lessonID, userID string, enrolled bool) {
	rows := pgxmock.NewRows([]string{"exists"}).AddRow(enrolled)
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs(lessonID, userID).WillReturnRows(rows)
}

func testLesson(now time.Time) *model.Lesson {
	return &model.Lesson{
		ID:            uuid.New().String(),
		Title:         "locking basics",
		StartedAt:     now.Add(time.Hour),
		FinishedAt:    now.Add(3 * time.Hour),
		Price:         30000,
		Capacity:      5,
		EnrolledCount: 0,
		CreatedAt:     now.Add(-24 * time.Hour),
	}
}

func TestParticipate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	userID := uuid.New().String()

	t.Run("success mutates all three rows atomically", func(t *testing.T) {
		mock := newMock(t)
		repo := NewParticipationRepository(mock)
		lesson := testLesson(now)

		mock.ExpectBegin()
		expectLockLesson(mock, lesson)
		expectEnrolled(mock, lesson.ID, userID, false)
		mock.ExpectExec(`UPDATE lessons SET enrolled_count = enrolled_count \+ 1`).
			WithArgs(lesson.ID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`INSERT INTO participations`).
			WithArgs(pgxmock.AnyArg(), lesson.ID, userID, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`UPDATE mentees SET courses_count = courses_count \+ 1`).
			WithArgs(userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		got, err := repo.Participate(ctx, lesson.ID, userID, now)
		require.NoError(t, err)
		assert.Equal(t, 1, got.EnrolledCount)
		assert.Equal(t, 4, got.RecruitNumber())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing lesson", func(t *testing.T) {
		mock := newMock(t)
		repo := NewParticipationRepository(mock)
		lessonID := uuid.New().String()

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).WithArgs(lessonID).WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		_, err := repo.Participate(ctx, lessonID, userID, now)
		assert.ErrorIs(t, err, ErrLessonNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate enrollment leaves capacity unchanged", func(t *testing.T) {
		mock := newMock(t)
		repo := NewParticipationRepository(mock)
		lesson := testLesson(now)

		mock.ExpectBegin()
		expectLockLesson(mock, lesson)
		expectEnrolled(mock, lesson.ID, userID, true)
		mock.ExpectRollback()

		_, err := repo.Participate(ctx, lesson.ID, userID, now)
		assert.ErrorIs(t, err, ErrAlreadyParticipated)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("overdue lesson rejected regardless of capacity", func(t *testing.T) {
		mock := newMock(t)
		repo := NewParticipationRepository(mock)
		lesson := testLesson(now)
		lesson.StartedAt = now.Add(-time.Hour)

		mock.ExpectBegin()
		expectLockLesson(mock, lesson)
		expectEnrolled(mock, lesson.ID, userID, false)
		mock.ExpectRollback()

		_, err := repo.Participate(ctx, lesson.ID, userID, now)
		assert.ErrorIs(t, err, ErrLessonOverdue)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lesson starting exactly now is overdue", func(t *testing.T) {
		mock := newMock(t)
		repo := NewParticipationRepository(mock)
		lesson := testLesson(now)
		lesson.StartedAt = now

		mock.ExpectBegin()
		expectLockLesson(mock, lesson)
		expectEnrolled(mock, lesson.ID, userID, false)
		mock.ExpectRollback()

		_, err := repo.Participate(ctx, lesson.ID, userID, now)
		assert.ErrorIs(t, err, ErrLessonOverdue)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("full lesson rejected", func(t *testing.T) {
		mock := newMock(t)
		repo := NewParticipationRepository(mock)
		lesson := testLesson(now)
		lesson.Capacity = 1
		lesson.EnrolledCount = 1

		mock.ExpectBegin()
		expectLockLesson(mock, lesson)
		expectEnrolled(mock, lesson.ID, userID, false)
		mock.ExpectRollback()

		_, err := repo.Participate(ctx, lesson.ID, userID, now)
		assert.ErrorIs(t, err, ErrLessonOvercrowded)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert failure rolls back the whole unit", func(t *testing.T) {
		mock := newMock(t)
		repo := NewParticipationRepository(mock)
		lesson := testLesson(now)

		mock.ExpectBegin()
		expectLockLesson(mock, lesson)
		expectEnrolled(mock, lesson.ID, userID, false)
		mock.ExpectExec(`UPDATE lessons SET enrolled_count = enrolled_count \+ 1`).
			WithArgs(lesson.ID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`INSERT INTO participations`).
			WithArgs(pgxmock.AnyArg(), lesson.ID, userID, pgxmock.AnyArg()).
			WillReturnError(assert.AnError)
		mock.ExpectRollback()

		_, err := repo.Participate(ctx, lesson.ID, userID, now)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	userID := uuid.New().String()

	expectCancelMutation := func(mock pgxmock.PgxPoolIface, lessonID string) {
		mock.ExpectExec(`DELETE FROM participations`).
			WithArgs(lessonID, userID).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectExec(`UPDATE lessons SET enrolled_count = enrolled_count - 1`).
			WithArgs(lessonID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`UPDATE mentees SET courses_count = courses_count - 1`).
			WithArgs(userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()
	}

	t.Run("success before the deadline", func(t *testing.T) {
		mock := newMock(t)
		repo := NewParticipationRepository(mock)
		lesson := testLesson(now)
		lesson.EnrolledCount = 1

		mock.ExpectBegin()
		expectLockLesson(mock, lesson)
		expectEnrolled(mock, lesson.ID, userID, true)
		expectCancelMutation(mock, lesson.ID)

		err := repo.Cancel(ctx, lesson.ID, userID, now)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lesson starting in 31 minutes can still be canceled", func(t *testing.T) {
		mock := newMock(t)
		repo := NewParticipationRepository(mock)
		lesson := testLesson(now)
		lesson.StartedAt = now.Add(31 * time.Minute)
		lesson.EnrolledCount = 1

		mock.ExpectBegin()
		expectLockLesson(mock, lesson)
		expectEnrolled(mock, lesson.ID, userID, true)
		expectCancelMutation(mock, lesson.ID)

		err := repo.Cancel(ctx, lesson.ID, userID, now)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lesson starting in 29 minutes is past the deadline", func(t *testing.T) {
		mock := newMock(t)
		repo := NewParticipationRepository(mock)
		lesson := testLesson(now)
		lesson.StartedAt = now.Add(29 * time.Minute)
		lesson.EnrolledCount = 1

		mock.ExpectBegin()
		expectLockLesson(mock, lesson)
		expectEnrolled(mock, lesson.ID, userID, true)
		mock.ExpectRollback()

		err := repo.Cancel(ctx, lesson.ID, userID, now)
		assert.ErrorIs(t, err, ErrCancelOverdue)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing lesson", func(t *testing.T) {
		mock := newMock(t)
		repo := NewParticipationRepository(mock)
		lessonID := uuid.New().String()

		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).WithArgs(lessonID).WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		err := repo.Cancel(ctx, lessonID, userID, now)
		assert.ErrorIs(t, err, ErrLessonNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cancel without enrollment", func(t *testing.T) {
		mock := newMock(t)
		repo := NewParticipationRepository(mock)
		lesson := testLesson(now)

		mock.ExpectBegin()
		expectLockLesson(mock, lesson)
		expectEnrolled(mock, lesson.ID, userID, false)
		mock.ExpectRollback()

		err := repo.Cancel(ctx, lesson.ID, userID, now)
		assert.ErrorIs(t, err, ErrNotParticipated)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// TestParticipationScenario walks the capacity-one lesson through the full
// enrollment story: A takes the last slot, B bounces off the full lesson,
// A bounces off the duplicate check, then the lesson slips into the past
// and B bounces off the overdue check.
func TestParticipationScenario(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	menteeA := uuid.New().String()
	menteeB := uuid.New().String()

	mock := newMock(t)
	repo := NewParticipationRepository(mock)

	lesson := testLesson(now)
	lesson.Capacity = 1
	lesson.EnrolledCount = 0

	// Mentee A takes the last slot.
	mock.ExpectBegin()
	expectLockLesson(mock, lesson)
	expectEnrolled(mock, lesson.ID, menteeA, false)
	mock.ExpectExec(`UPDATE lessons SET enrolled_count = enrolled_count \+ 1`).
		WithArgs(lesson.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO participations`).
		WithArgs(pgxmock.AnyArg(), lesson.ID, menteeA, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE mentees SET courses_count = courses_count \+ 1`).
		WithArgs(menteeA).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	got, err := repo.Participate(ctx, lesson.ID, menteeA, now)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RecruitNumber())

	// Mentee B finds the lesson full.
	lesson.EnrolledCount = 1
	mock.ExpectBegin()
	expectLockLesson(mock, lesson)
	expectEnrolled(mock, lesson.ID, menteeB, false)
	mock.ExpectRollback()

	_, err = repo.Participate(ctx, lesson.ID, menteeB, now)
	assert.ErrorIs(t, err, ErrLessonOvercrowded)

	// Mentee A tries again and hits the duplicate check.
	mock.ExpectBegin()
	expectLockLesson(mock, lesson)
	expectEnrolled(mock, lesson.ID, menteeA, true)
	mock.ExpectRollback()

	_, err = repo.Participate(ctx, lesson.ID, menteeA, now)
	assert.ErrorIs(t, err, ErrAlreadyParticipated)

	// The lesson start passes; B is rejected as overdue, not overcrowded.
	lesson.StartedAt = now.Add(-time.Hour)
	mock.ExpectBegin()
	expectLockLesson(mock, lesson)
	expectEnrolled(mock, lesson.ID, menteeB, false)
	mock.ExpectRollback()

	_, err = repo.Participate(ctx, lesson.ID, menteeB, now)
	assert.ErrorIs(t, err, ErrLessonOverdue)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCancelReenrollRoundTrip shows a cancel frees the slot it consumed:
// A fills the capacity-one lesson, cancels, and B takes the freed slot.
func TestCancelReenrollRoundTrip(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	menteeA := uuid.New().String()
	menteeB := uuid.New().String()

	mock := newMock(t)
	repo := NewParticipationRepository(mock)

	lesson := testLesson(now)
	lesson.Capacity = 1

	expectEnrollMutation := func(userID string) {
		mock.ExpectExec(`UPDATE lessons SET enrolled_count = enrolled_count \+ 1`).
			WithArgs(lesson.ID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`INSERT INTO participations`).
			WithArgs(pgxmock.AnyArg(), lesson.ID, userID, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`UPDATE mentees SET courses_count = courses_count \+ 1`).
			WithArgs(userID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()
	}

	// A takes the slot.
	mock.ExpectBegin()
	expectLockLesson(mock, lesson)
	expectEnrolled(mock, lesson.ID, menteeA, false)
	expectEnrollMutation(menteeA)

	got, err := repo.Participate(ctx, lesson.ID, menteeA, now)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RecruitNumber())

	// A cancels, freeing it.
	lesson.EnrolledCount = 1
	mock.ExpectBegin()
	expectLockLesson(mock, lesson)
	expectEnrolled(mock, lesson.ID, menteeA, true)
	mock.ExpectExec(`DELETE FROM participations`).
		WithArgs(lesson.ID, menteeA).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`UPDATE lessons SET enrolled_count = enrolled_count - 1`).
		WithArgs(lesson.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE mentees SET courses_count = courses_count - 1`).
		WithArgs(menteeA).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Cancel(ctx, lesson.ID, menteeA, now))

	// B takes the freed slot.
	lesson.EnrolledCount = 0
	mock.ExpectBegin()
	expectLockLesson(mock, lesson)
	expectEnrolled(mock, lesson.ID, menteeB, false)
	expectEnrollMutation(menteeB)

	got, err = repo.Participate(ctx, lesson.ID, menteeB, now)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RecruitNumber())

	assert.NoError(t, mock.ExpectationsWereMet())
}
