package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dap-crew/dap-server/internal/model"
	"github.com/dap-crew/dap-server/internal/repository"
)

// AcademyAPI is the academy/genre surface the handler depends on.
type AcademyAPI interface {
	Create(ctx context.Context, req model.CreateAcademyRequest) (*model.Academy, error)
	Get(ctx context.Context, id string) (*model.Academy, error)
	List(ctx context.Context) ([]model.Academy, error)
	Genres(ctx context.Context) ([]model.Genre, error)
}

// AcademyHandler holds HTTP handlers for academies and genres.
type AcademyHandler struct {
	academies AcademyAPI
}

// NewAcademyHandler constructs an AcademyHandler.
func NewAcademyHandler(academies AcademyAPI) *AcademyHandler {
	return &AcademyHandler{academies: academies}
}

// Create handles POST /academy
func (h *AcademyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateAcademyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	academy, err := h.academies.Create(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, academy)
}

// Get handles GET /academy/{id}
func (h *AcademyHandler) Get(w http.ResponseWriter, r *http.Request) {
	academy, err := h.academies.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Academy does not exist.")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get academy")
		return
	}
	writeJSON(w, http.StatusOK, academy)
}

// List handles GET /academy
func (h *AcademyHandler) List(w http.ResponseWriter, r *http.Request) {
	academies, err := h.academies.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list academies")
		return
	}
	if academies == nil {
		academies = []model.Academy{}
	}
	writeJSON(w, http.StatusOK, academies)
}

// Genres handles GET /genre
func (h *AcademyHandler) Genres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.academies.Genres(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list genres")
		return
	}
	if genres == nil {
		genres = []model.Genre{}
	}
	writeJSON(w, http.StatusOK, genres)
}
