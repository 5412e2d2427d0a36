package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dap-crew/dap-server/internal/model"
	"github.com/dap-crew/dap-server/internal/repository"
	"github.com/dap-crew/dap-server/internal/service"
)

// UserAPI is the user surface the handler depends on.
type UserAPI interface {
	Register(ctx context.Context, req model.RegisterUserRequest) (*model.User, error)
	Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error)
	Get(ctx context.Context, id string) (*model.User, error)
}

// ClassesAPI lists the caller's enrolled lessons.
type ClassesAPI interface {
	MyClasses(ctx context.Context, userID string) ([]model.LessonSummary, error)
}

// UserHandler holds all HTTP handlers for the user API.
type UserHandler struct {
	users   UserAPI
	classes ClassesAPI
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(users UserAPI, classes ClassesAPI) *UserHandler {
	return &UserHandler{users: users, classes: classes}
}

// Register handles POST /user
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	user, err := h.users.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Login handles POST /user/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.users.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to login")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /user/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User does not exist.")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// MyClasses handles GET /user/classes
// Returns the authenticated mentee's enrolled lessons.
func (h *UserHandler) MyClasses(w http.ResponseWriter, r *http.Request) {
	lessons, err := h.classes.MyClasses(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, service.ErrOnlyMenteeParticipate) {
			writeError(w, http.StatusMethodNotAllowed, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list classes")
		return
	}
	if lessons == nil {
		lessons = []model.LessonSummary{}
	}
	writeJSON(w, http.StatusOK, lessons)
}
