package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dap-crew/dap-server/internal/auth"
	"github.com/dap-crew/dap-server/internal/model"
	"github.com/dap-crew/dap-server/internal/repository"
	"github.com/dap-crew/dap-server/internal/service"
)

type fakeParticipationAPI struct {
	detail *model.LessonDetail
	err    error

	gotUserID   string
	gotLessonID string
}

func (f *fakeParticipationAPI) Participate(_ context.Context, userID, lessonID string) (*model.LessonDetail, error) {
	f.gotUserID, f.gotLessonID = userID, lessonID
	return f.detail, f.err
}

func (f *fakeParticipationAPI) Cancel(_ context.Context, userID, lessonID string) error {
	f.gotUserID, f.gotLessonID = userID, lessonID
	return f.err
}

// asUser injects an authenticated caller the way the Auth middleware does.
func asUser(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), userIDKey{}, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newLessonRouter(participations ParticipationAPI) http.Handler {
	h := NewLessonHandler(nil, participations)
	r := chi.NewRouter()
	r.Use(asUser("user-1"))
	r.Get("/lesson/{id}/participate", h.Participate)
	r.Put("/lesson/{id}/cancel", h.Cancel)
	return r
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestParticipateEndpoint(t *testing.T) {
	t.Run("success returns the lesson detail", func(t *testing.T) {
		api := &fakeParticipationAPI{detail: &model.LessonDetail{
			ID:            "l1",
			Title:         "Beginner Waacking",
			RecruitNumber: 4,
		}}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/lesson/l1/participate", nil)
		newLessonRouter(api).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-1", api.gotUserID)
		assert.Equal(t, "l1", api.gotLessonID)
		body := decodeDetail(t, rec)
		assert.Equal(t, "Beginner Waacking", body["title"])
		assert.Equal(t, float64(4), body["recruit_number"])
	})

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{"missing lesson", repository.ErrLessonNotFound, http.StatusNotFound, "Lesson does not exist."},
		{"already enrolled", repository.ErrAlreadyParticipated, http.StatusConflict, "Already participated."},
		{"lesson started", repository.ErrLessonOverdue, http.StatusBadRequest, "Lesson overdue."},
		{"lesson full", repository.ErrLessonOvercrowded, http.StatusBadRequest, "Lesson overcrowded."},
		{"caller is not a mentee", service.ErrOnlyMenteeParticipate, http.StatusMethodNotAllowed, "Only mentee can participate lesson."},
		{"storage failure", assert.AnError, http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeParticipationAPI{err: tt.err}
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/lesson/l1/participate", nil)
			newLessonRouter(api).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, `{"detail": "`+tt.wantDetail+`"}`, rec.Body.String())
		})
	}
}

func TestCancelEndpoint(t *testing.T) {
	t.Run("success returns the acknowledgment", func(t *testing.T) {
		api := &fakeParticipationAPI{}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/lesson/l1/cancel", nil)
		newLessonRouter(api).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `"Successfully Canceled."`, rec.Body.String())
	})

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{"missing lesson", repository.ErrLessonNotFound, http.StatusNotFound, "Lesson does not exist."},
		{"not enrolled", repository.ErrNotParticipated, http.StatusNotFound, "Not participated."},
		{"too close to start", repository.ErrCancelOverdue, http.StatusBadRequest, "Cancel overdue."},
		{"caller is not a mentee", service.ErrOnlyMenteeCancel, http.StatusMethodNotAllowed, "Only mentee can cancel lesson."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeParticipationAPI{err: tt.err}
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPut, "/lesson/l1/cancel", nil)
			newLessonRouter(api).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, `{"detail": "`+tt.wantDetail+`"}`, rec.Body.String())
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	const secret, issuer = "secret", "dap"

	var seenUserID string
	protected := Auth(secret, issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUserID = userIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		protected.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"detail": "Authentication required."}`, rec.Body.String())
	})

	t.Run("bad token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")
		protected.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"detail": "Invalid token."}`, rec.Body.String())
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := auth.IssueToken(secret, issuer, "user-42", time.Hour, time.Now())
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		protected.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-42", seenUserID)
	})
}
