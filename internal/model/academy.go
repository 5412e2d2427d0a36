package model

import "time"

// Location types.
const (
	LocationTypeAcademy = "academy"
	LocationTypeLesson  = "lesson"
)

// Location is a physical address attached to an academy or a lesson.
type Location struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Detail      string `json:"detail"`
	City        string `json:"city"`
	District    string `json:"district"`
	Description string `json:"description,omitempty"`
}

// LocationInput is the location block of a lesson or academy payload.
type LocationInput struct {
	Detail      string `json:"detail"`
	City        string `json:"city"`
	District    string `json:"district"`
	Description string `json:"description"`
}

// Academy is a dance academy hosting lessons.
type Academy struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email,omitempty"`
	Contact     string     `json:"contact,omitempty"`
	Description string     `json:"description,omitempty"`
	URL         string     `json:"url,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Location    *Location  `json:"location,omitempty"`
}

// CreateAcademyRequest is the payload for registering an academy.
type CreateAcademyRequest struct {
	Name        string         `json:"name"`
	Email       string         `json:"email"`
	Contact     string         `json:"contact"`
	Description string         `json:"description"`
	URL         string         `json:"url"`
	Location    *LocationInput `json:"location"`
}

// Genre is a static dance genre from the seeded catalogue.
type Genre struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
