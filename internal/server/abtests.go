package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/stecom/seopulse/internal/abtest"
	"github.com/stecom/seopulse/internal/store"
)

func (s *Server) handleCreateTest(w http.ResponseWriter, r *http.Request) {
	// Tests start switched on unless the body says otherwise.
	t := store.ABTest{Active: true}
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	err := s.ctrl.CreateABTest(r.Context(), &t)
	switch {
	case errors.Is(err, abtest.ErrInvalidTest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.logger.Error("create ab test failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to create test")
	default:
		writeJSON(w, http.StatusCreated, successResponse{Success: true, Data: map[string]any{"test": t}})
	}
}

func (s *Server) handleListTests(w http.ResponseWriter, r *http.Request) {
	var (
		tests []*store.ABTest
		err   error
	)
	if r.URL.Query().Get("active") != "" {
		tests, err = s.ctrl.Tests.ActiveTests(r.Context())
	} else {
		tests, err = s.ctrl.Tests.ListTests(r.Context())
	}
	if err != nil {
		s.logger.Error("list ab tests failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch tests")
		return
	}
	if tests == nil {
		tests = []*store.ABTest{}
	}
	writeSuccess(w, map[string]any{"tests": tests})
}

func (s *Server) handleGetTest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := s.ctrl.Tests.GetTest(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, abtest.NotFoundReport)
		return
	}
	if err != nil {
		s.logger.Error("get ab test failed", zap.String("test_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch test")
		return
	}

	data := map[string]any{
		"test":   t,
		"report": abtest.RenderReport(t),
	}
	if winner := abtest.Winner(t.Variants); winner != nil {
		data["winner"] = winner.ID
	}
	writeSuccess(w, data)
}

func (s *Server) handleStopTest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.ctrl.StopABTest(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, abtest.NotFoundReport)
		return
	}
	if err != nil {
		s.logger.Error("stop ab test failed", zap.String("test_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to stop test")
		return
	}
	writeSuccess(w, map[string]string{"id": id})
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user := r.URL.Query().Get("user")
	if user == "" {
		writeError(w, http.StatusBadRequest, "user parameter is required")
		return
	}

	v, err := s.ctrl.ABTestVariant(r.Context(), id, user)
	if err != nil {
		s.logger.Error("assign variant failed", zap.String("test_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to assign variant")
		return
	}
	if v == nil {
		writeError(w, http.StatusNotFound, "No variant available")
		return
	}
	writeSuccess(w, map[string]any{"testId": id, "variant": v})
}

// EventRequest is a browser beacon for one variant.
type EventRequest struct {
	Variant string `json:"variant"`
	Event   string `json:"event"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	counter, ok := store.ParseCounter(req.Event)
	if !ok || req.Variant == "" {
		writeError(w, http.StatusBadRequest, "Invalid event")
		return
	}

	if err := s.ctrl.TrackABEvent(r.Context(), id, req.Variant, counter); err != nil {
		s.logger.Error("track ab event failed", zap.String("test_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to record event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
