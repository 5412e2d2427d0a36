package model

import "time"

// Mentee tiers, assigned by accumulated courses_count.
const (
	TierUnranked = "unranked"
	TierBronze   = "bronze"
	TierSilver   = "silver"
	TierGold     = "gold"
)

// User is the base account shared by mentors and mentees. Role flags are
// derived from the presence of the sub-profiles: a user with a Mentee
// profile may enroll in lessons, a user with a Mentor profile may author
// them. The data model does not force the roles to be exclusive.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Username     string         `json:"username"`
	PasswordHash string         `json:"-"`
	Birth        time.Time      `json:"birth"`
	Gender       string         `json:"gender"`
	Contact      string         `json:"contact,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	Mentor       *MentorProfile `json:"mentor,omitempty"`
	Mentee       *MenteeProfile `json:"mentee,omitempty"`
}

// IsMentor returns true when the user carries a mentor profile.
func (u *User) IsMentor() bool { return u.Mentor != nil }

// IsMentee returns true when the user carries a mentee profile.
func (u *User) IsMentee() bool { return u.Mentee != nil }

// MentorProfile is the mentor sub-profile.
type MentorProfile struct {
	ID          string    `json:"id"`
	UserID      string    `json:"-"`
	StartedAt   time.Time `json:"started_at"`
	Description string    `json:"description,omitempty"`
}

// MenteeProfile is the mentee sub-profile. CoursesCount is the aggregate
// number of lessons the mentee is enrolled in, maintained together with the
// roster inside the participation transaction.
type MenteeProfile struct {
	ID           string    `json:"id"`
	UserID       string    `json:"-"`
	StartedAt    time.Time `json:"started_at"`
	Description  string    `json:"description,omitempty"`
	CoursesCount int       `json:"courses_count"`
	Tier         string    `json:"tier"`
}

// RegisterUserRequest is the payload for user registration.
type RegisterUserRequest struct {
	Email    string        `json:"email"`
	Username string        `json:"username"`
	Password string        `json:"password"`
	Birth    time.Time     `json:"birth"`
	Gender   string        `json:"gender"`
	Contact  string        `json:"contact"`
	Mentor   *ProfileInput `json:"mentor"`
	Mentee   *ProfileInput `json:"mentee"`
}

// ProfileInput is the mentor/mentee sub-profile block of a registration.
type ProfileInput struct {
	StartedAt   time.Time `json:"started_at"`
	Description string    `json:"description"`
}

// LoginRequest is the payload for password login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
