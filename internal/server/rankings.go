package server

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/stecom/seopulse/internal/store"
)

func (s *Server) handleTopPerformers(w http.ResponseWriter, r *http.Request) {
	rows, err := s.ctrl.Ranks.TopPerformers(r.Context(), intParam(r, "limit", 0))
	s.writeRankings(w, rows, err)
}

func (s *Server) handleBiggestMovers(w http.ResponseWriter, r *http.Request) {
	rows, err := s.ctrl.Ranks.BiggestMovers(r.Context(), intParam(r, "days", 0))
	s.writeRankings(w, rows, err)
}

func (s *Server) handleRankHistory(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("keyword")
	if keyword == "" {
		writeError(w, http.StatusBadRequest, "keyword parameter is required")
		return
	}
	rows, err := s.ctrl.Ranks.History(r.Context(), keyword, intParam(r, "days", 0))
	s.writeRankings(w, rows, err)
}

func (s *Server) writeRankings(w http.ResponseWriter, rows []store.RankTrackingData, err error) {
	if err != nil {
		s.logger.Error("ranking query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error loading rankings")
		return
	}
	if rows == nil {
		rows = []store.RankTrackingData{}
	}
	writeSuccess(w, map[string]any{"rankings": rows})
}
