package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/stecom/seopulse/internal/perf"
	"github.com/stecom/seopulse/internal/store"
)

const (
	msgMonitoringError = "Error in performance monitoring"
	msgReportError     = "Error generating performance report"
	msgInvalidAction   = "Invalid action specified"
)

type HealthResponse struct {
	Status        string `json:"status"`
	TestsCount    int    `json:"tests_count"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Store         string `json:"store"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.store.(store.Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			s.logger.Error("health check failed", zap.String("store", s.store.Name()), zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}

	tests, err := s.store.ListTests(r.Context())
	if err != nil {
		s.logger.Error("health check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		TestsCount:    len(tests),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Store:         s.store.Name(),
	})
}

// PerformanceRequest is the body of POST /api/seo/performance.
type PerformanceRequest struct {
	URL      string          `json:"url"`
	Keywords json.RawMessage `json:"keywords"`
	Action   string          `json:"action"`
}

func (s *Server) handlePerformancePost(w http.ResponseWriter, r *http.Request) {
	var req PerformanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Error(msgMonitoringError, zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgMonitoringError)
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}

	ctx := r.Context()
	switch req.Action {
	case "audit":
		report, err := s.ctrl.RunPerformanceAudit(ctx, req.URL)
		if err != nil {
			s.logger.Error(msgMonitoringError, zap.String("url", req.URL), zap.Error(err))
			writeError(w, http.StatusInternalServerError, msgMonitoringError)
			return
		}
		writeSuccess(w, map[string]string{"report": report})

	case "track_rankings":
		var keywords []string
		if len(req.Keywords) == 0 || json.Unmarshal(req.Keywords, &keywords) != nil || keywords == nil {
			writeError(w, http.StatusBadRequest, "Keywords array is required for tracking rankings")
			return
		}
		rankings, err := s.ctrl.TrackRankings(ctx, keywords)
		if err != nil {
			s.logger.Error(msgMonitoringError, zap.Strings("keywords", keywords), zap.Error(err))
			writeError(w, http.StatusInternalServerError, msgMonitoringError)
			return
		}
		writeSuccess(w, map[string]any{"rankings": rankings})

	default:
		writeError(w, http.StatusBadRequest, msgInvalidAction)
	}
}

func (s *Server) handlePerformanceGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	url := q.Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "URL parameter is required")
		return
	}
	if q.Get("action") != "comprehensive_report" {
		writeError(w, http.StatusBadRequest, msgInvalidAction)
		return
	}

	report, err := s.ctrl.ComprehensiveReport(r.Context(), url, splitList(q.Get("keywords")))
	if err != nil {
		s.logger.Error(msgReportError, zap.String("url", url), zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgReportError)
		return
	}
	writeSuccess(w, map[string]string{"report": report})
}

func (s *Server) handlePerformanceHistory(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "URL parameter is required")
		return
	}
	history, err := s.ctrl.Monitor.History(r.Context(), url, intParam(r, "days", 0))
	if err != nil {
		s.logger.Error(msgReportError, zap.String("url", url), zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgReportError)
		return
	}
	if history == nil {
		history = []store.PerformanceSample{}
	}
	writeSuccess(w, map[string]any{"history": history})
}

func (s *Server) handlePerformanceAverage(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "URL parameter is required")
		return
	}
	avg, err := s.ctrl.Monitor.Average(r.Context(), url)
	if err != nil {
		s.logger.Error(msgReportError, zap.String("url", url), zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgReportError)
		return
	}
	if avg == nil {
		writeError(w, http.StatusNotFound, perf.NoDataReport)
		return
	}
	writeSuccess(w, map[string]any{
		"average": avg,
		"band":    perf.Band(avg.Score),
	})
}
