package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/dap-crew/dap-server/internal/auth"
	"github.com/dap-crew/dap-server/internal/config"
	"github.com/dap-crew/dap-server/internal/model"
	"github.com/dap-crew/dap-server/internal/repository"
)

// ErrInvalidCredentials is returned on login with a wrong email or password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// UserWriter is the user persistence the user service depends on.
type UserWriter interface {
	Create(ctx context.Context, user *model.User) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// UserService handles registration, login and profile lookup.
type UserService struct {
	users UserWriter
	auth  config.AuthConfig
	clock clockwork.Clock
}

// NewUserService constructs a UserService.
func NewUserService(users UserWriter, authCfg config.AuthConfig, clock clockwork.Clock) *UserService {
	return &UserService{users: users, auth: authCfg, clock: clock}
}

// Register validates the payload, hashes the password and stores the user
// with its role profiles.
func (s *UserService) Register(ctx context.Context, req model.RegisterUserRequest) (*model.User, error) {
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || !isValidEmail(req.Email) {
		return nil, fmt.Errorf("email is not valid.")
	}
	if req.Username == "" {
		return nil, fmt.Errorf("username required.")
	}
	if len(req.Password) < 8 {
		return nil, fmt.Errorf("password should be at least 8 characters.")
	}
	if req.Birth.IsZero() {
		return nil, fmt.Errorf("birth required.")
	}
	if req.Mentor == nil && req.Mentee == nil {
		return nil, fmt.Errorf("mentor or mentee profile required.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: string(hash),
		Birth:        req.Birth,
		Gender:       req.Gender,
		Contact:      req.Contact,
	}
	if req.Mentor != nil {
		user.Mentor = &model.MentorProfile{
			StartedAt:   req.Mentor.StartedAt,
			Description: req.Mentor.Description,
		}
	}
	if req.Mentee != nil {
		user.Mentee = &model.MenteeProfile{
			StartedAt:   req.Mentee.StartedAt,
			Description: req.Mentee.Description,
		}
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("register user: %w", err)
	}
	return created, nil
}

// Login verifies the credentials and issues a bearer token.
func (s *UserService) Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := auth.IssueToken(s.auth.JWTSecret, s.auth.JWTIssuer, user.ID, s.auth.TokenTTL, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &model.LoginResponse{Token: token, User: user}, nil
}

// Get returns a user profile by id.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// isValidEmail does a basic structural check.
func isValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".")
}
