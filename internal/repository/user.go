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

// UserRepository handles persistence for users and their role profiles.
type UserRepository struct {
	db database.DB
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user together with its mentor/mentee profiles in one
// transaction and returns the stored user.
func (r *UserRepository) Create(ctx context.Context, user *model.User) (*model.User, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	user.ID = uuid.New().String()
	user.CreatedAt = time.Now().UTC()

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`,
		user.Email,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		err = ErrDuplicateEmail
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO users (id, email, username, password_hash, birth, gender, contact, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)`,
		user.ID, user.Email, user.Username, user.PasswordHash,
		user.Birth, user.Gender, user.Contact, user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	if user.Mentor != nil {
		user.Mentor.ID = uuid.New().String()
		user.Mentor.UserID = user.ID
		_, err = tx.Exec(ctx,
			`INSERT INTO mentors (id, user_id, started_at, description)
			 VALUES ($1, $2, $3, $4)`,
			user.Mentor.ID, user.ID, user.Mentor.StartedAt, user.Mentor.Description,
		)
		if err != nil {
			return nil, fmt.Errorf("insert mentor profile: %w", err)
		}
	}

	if user.Mentee != nil {
		user.Mentee.ID = uuid.New().String()
		user.Mentee.UserID = user.ID
		user.Mentee.Tier = model.TierUnranked
		_, err = tx.Exec(ctx,
			`INSERT INTO mentees (id, user_id, started_at, description, courses_count, tier)
			 VALUES ($1, $2, $3, $4, 0, $5)`,
			user.Mentee.ID, user.ID, user.Mentee.StartedAt, user.Mentee.Description, user.Mentee.Tier,
		)
		if err != nil {
			return nil, fmt.Errorf("insert mentee profile: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return user, nil
}

// GetByID returns a user with its role profiles or ErrNotFound.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.get(ctx, `WHERE u.id = $1`, id)
}

// GetByEmail returns a user with its role profiles or ErrNotFound.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.get(ctx, `WHERE u.email = $1`, email)
}

func (r *UserRepository) get(ctx context.Context, where string, arg any) (*model.User, error) {
	var (
		u model.User

		mentorID, mentorDesc         *string
		mentorStartedAt              *time.Time
		menteeID, menteeDesc, tier   *string
		menteeStartedAt              *time.Time
		coursesCount                 *int
	)
	err := r.db.QueryRow(ctx,
		`SELECT u.id, u.email, u.username, u.password_hash, u.birth, u.gender,
		        COALESCE(u.contact, ''), u.created_at,
		        mt.id, mt.started_at, mt.description,
		        me.id, me.started_at, me.description, me.courses_count, me.tier
		 FROM users u
		 LEFT JOIN mentors mt ON mt.user_id = u.id
		 LEFT JOIN mentees me ON me.user_id = u.id `+where,
		arg,
	).Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Birth, &u.Gender,
		&u.Contact, &u.CreatedAt,
		&mentorID, &mentorStartedAt, &mentorDesc,
		&menteeID, &menteeStartedAt, &menteeDesc, &coursesCount, &tier,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if mentorID != nil {
		u.Mentor = &model.MentorProfile{ID: *mentorID, UserID: u.ID, StartedAt: *mentorStartedAt}
		if mentorDesc != nil {
			u.Mentor.Description = *mentorDesc
		}
	}
	if menteeID != nil {
		u.Mentee = &model.MenteeProfile{
			ID:           *menteeID,
			UserID:       u.ID,
			StartedAt:    *menteeStartedAt,
			CoursesCount: *coursesCount,
			Tier:         *tier,
		}
		if menteeDesc != nil {
			u.Mentee.Description = *menteeDesc
		}
	}
	return &u, nil
}
