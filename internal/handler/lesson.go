package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dap-crew/dap-server/internal/model"
	"github.com/dap-crew/dap-server/internal/repository"
	"github.com/dap-crew/dap-server/internal/service"
)

// LessonAPI is the lesson surface the handler depends on.
type LessonAPI interface {
	Create(ctx context.Context, userID string, req model.CreateLessonRequest) (string, error)
	Get(ctx context.Context, id string) (*model.LessonDetail, error)
	Update(ctx context.Context, userID, lessonID string, req model.UpdateLessonRequest) error
	Delete(ctx context.Context, userID, lessonID string) error
	List(ctx context.Context, filter model.LessonFilter) ([]model.LessonSummary, error)
	Search(ctx context.Context, filter model.SearchFilter) ([]model.LessonSummary, error)
}

// ParticipationAPI is the enrollment surface the handler depends on.
type ParticipationAPI interface {
	Participate(ctx context.Context, userID, lessonID string) (*model.LessonDetail, error)
	Cancel(ctx context.Context, userID, lessonID string) error
}

// LessonHandler holds all HTTP handlers for the lesson API.
type LessonHandler struct {
	lessons        LessonAPI
	participations ParticipationAPI
}

// NewLessonHandler constructs a LessonHandler.
func NewLessonHandler(lessons LessonAPI, participations ParticipationAPI) *LessonHandler {
	return &LessonHandler{lessons: lessons, participations: participations}
}

// Create handles POST /lesson
func (h *LessonHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateLessonRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	id, err := h.lessons.Create(r.Context(), userIDFromContext(r.Context()), req)
	if err != nil {
		if errors.Is(err, service.ErrNotAllowed) {
			writeError(w, http.StatusForbidden, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "status": "success"})
}

// Get handles GET /lesson/{id}
func (h *LessonHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.lessons.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrLessonNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get lesson")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Update handles PUT /lesson/{id}
func (h *LessonHandler) Update(w http.ResponseWriter, r *http.Request) {
	lessonID := chi.URLParam(r, "id")

	var req model.UpdateLessonRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	err := h.lessons.Update(r.Context(), userIDFromContext(r.Context()), lessonID, req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrLessonNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrNotAllowed):
			writeError(w, http.StatusForbidden, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"id": lessonID, "status": "success"})
}

// Delete handles DELETE /lesson/{id}
func (h *LessonHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.lessons.Delete(r.Context(), userIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrLessonNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrNotAllowed):
			writeError(w, http.StatusForbidden, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to delete lesson")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /lesson
func (h *LessonHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.LessonFilter{
		Genres:    q["genre"],
		City:      q.Get("city"),
		Academies: q["academy"],
		Mentors:   q["mentor"],
		Districts: q["district"],
	}
	if v := q.Get("recruit_number"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.RecruitNumber = n
		}
	}
	if v := q.Get("min_price"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.MinPrice = &n
		}
	}
	if v := q.Get("max_price"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.MaxPrice = &n
		}
	}

	lessons, err := h.lessons.List(r.Context(), filter)
	if err != nil {
		if errors.Is(err, service.ErrFilterEmpty) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list lessons")
		return
	}
	if lessons == nil {
		lessons = []model.LessonSummary{}
	}
	writeJSON(w, http.StatusOK, lessons)
}

// Search handles GET /lesson/search
func (h *LessonHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.SearchFilter{
		Keyword:     q.Get("keyword"),
		IncludePast: q.Get("past") == "true",
	}

	lessons, err := h.lessons.Search(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to search lessons")
		return
	}
	if lessons == nil {
		lessons = []model.LessonSummary{}
	}
	writeJSON(w, http.StatusOK, lessons)
}

// Participate handles GET /lesson/{id}/participate
// Performs a concurrency-safe enrollment and returns the lesson detail.
func (h *LessonHandler) Participate(w http.ResponseWriter, r *http.Request) {
	detail, err := h.participations.Participate(r.Context(), userIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeParticipationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Cancel handles PUT /lesson/{id}/cancel
func (h *LessonHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	err := h.participations.Cancel(r.Context(), userIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeParticipationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Successfully Canceled.")
}

// writeParticipationError maps the participation taxonomy onto HTTP status
// codes: 404 not-found/not-participated, 400 time-window and capacity
// rejections, 409 duplicate enrollment, 405 role violations.
func writeParticipationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrLessonNotFound),
		errors.Is(err, repository.ErrNotParticipated):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrLessonOverdue),
		errors.Is(err, repository.ErrLessonOvercrowded),
		errors.Is(err, repository.ErrCancelOverdue):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrAlreadyParticipated):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrOnlyMenteeParticipate),
		errors.Is(err, service.ErrOnlyMenteeCancel):
		writeError(w, http.StatusMethodNotAllowed, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
