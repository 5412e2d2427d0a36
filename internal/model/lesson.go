// Package model defines the core domain types for the lesson booking system.
package model

import "time"

// CancelGrace is how long before a lesson's start cancellation closes.
const CancelGrace = 30 * time.Minute

// Lesson represents a bookable lesson offered by one or more mentors.
//
// Capacity is the number of slots provisioned at creation and never changes
// outside administrative update; EnrolledCount is the size of the current
// roster. The open slots exposed to clients as recruit_number are always
// derived from the pair, never stored.
type Lesson struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Price         int       `json:"price"`
	Capacity      int       `json:"capacity"`
	EnrolledCount int       `json:"enrolled_count"`
	AcademyID     string    `json:"academy_id,omitempty"`
	LocationID    string    `json:"location_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// RecruitNumber returns the number of open enrollment slots.
func (l *Lesson) RecruitNumber() int {
	return l.Capacity - l.EnrolledCount
}

// IsFull returns true when no slots remain.
func (l *Lesson) IsFull() bool {
	return l.EnrolledCount >= l.Capacity
}

// Overdue reports whether enrollment has closed: the lesson has already
// started (or starts exactly now).
func (l *Lesson) Overdue(now time.Time) bool {
	return !l.StartedAt.After(now)
}

// CancelClosed reports whether the cancellation deadline has passed. The
// deadline is CancelGrace before the lesson starts.
func (l *Lesson) CancelClosed(now time.Time) bool {
	return !l.StartedAt.After(now.Add(CancelGrace))
}

// Participation represents a mentee's enrollment in a lesson.
type Participation struct {
	ID        string    `json:"id"`
	LessonID  string    `json:"lesson_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// MentorRef is the compact mentor representation embedded in lesson views.
type MentorRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// AcademyRef is the compact academy representation embedded in lesson views.
type AcademyRef struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Contact string `json:"contact,omitempty"`
}

// LessonDetail is the full lesson view returned by retrieve and participate.
type LessonDetail struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Description   string      `json:"description,omitempty"`
	StartedAt     time.Time   `json:"started_at"`
	FinishedAt    time.Time   `json:"finished_at"`
	Price         int         `json:"price"`
	RecruitNumber int         `json:"recruit_number"`
	Mentors       []MentorRef `json:"mentors"`
	Academy       *AcademyRef `json:"academy,omitempty"`
	Genres        []string    `json:"genres"`
	Location      *Location   `json:"location,omitempty"`
}

// LessonSummary is the compact lesson view returned by list and search.
type LessonSummary struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	StartedAt     time.Time   `json:"started_at"`
	FinishedAt    time.Time   `json:"finished_at"`
	Price         int         `json:"price"`
	RecruitNumber int         `json:"recruit_number"`
	Academy       string      `json:"academy,omitempty"`
	City          string      `json:"city,omitempty"`
	Mentors       []MentorRef `json:"mentors,omitempty"`
	Genres        []string    `json:"genres,omitempty"`
}

// CreateLessonRequest is the payload for creating a new lesson.
type CreateLessonRequest struct {
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	Price         int             `json:"price"`
	RecruitNumber int             `json:"recruit_number"`
	AcademyID     string          `json:"academy"`
	Location      *LocationInput  `json:"location"`
	Mentors       []string        `json:"mentors"`
	Genres        []string        `json:"genres"`
}

// UpdateLessonRequest is the payload for a partial lesson update. Nil
// pointers leave the corresponding field untouched; nil slices leave the
// corresponding set untouched.
type UpdateLessonRequest struct {
	Title         *string        `json:"title"`
	Description   *string        `json:"description"`
	StartedAt     *time.Time     `json:"started_at"`
	FinishedAt    *time.Time     `json:"finished_at"`
	Price         *int           `json:"price"`
	RecruitNumber *int           `json:"recruit_number"`
	AcademyID     *string        `json:"academy"`
	Location      *LocationInput `json:"location"`
	Mentors       []string       `json:"mentors"`
	Genres        []string       `json:"genres"`
}

// LessonFilter carries the list endpoint's filters. Genres and City are
// mandatory; the rest narrow the result set when present.
type LessonFilter struct {
	Genres        []string
	City          string
	RecruitNumber int
	MinPrice      *int
	MaxPrice      *int
	Academies     []string
	Mentors       []string
	Districts     []string
}

// SearchFilter carries the keyword search parameters.
type SearchFilter struct {
	Keyword     string
	IncludePast bool
}
