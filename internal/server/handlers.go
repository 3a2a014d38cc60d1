package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dyike/CryptoViewer/internal/models"
)

const (
	portfolioFailure       = "Failed to fetch portfolio"
	recommendationsFailure = "Failed to generate recommendations"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.StatusResponse{
		Message: "Crypto Viewer API",
		Status:  "online",
		Version: Version,
	})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	defer s.recoverAs(w, r, portfolioFailure)
	writeJSON(w, http.StatusOK, s.exchange.FetchPortfolio(r.Context()))
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	pairID := chi.URLParam(r, "pairId")
	defer s.recoverAs(w, r, fmt.Sprintf("Failed to fetch price for %s", pairID))
	writeJSON(w, http.StatusOK, s.exchange.FetchPrice(r.Context(), pairID))
}

func (s *Server) handleHistorical(w http.ResponseWriter, r *http.Request) {
	pairID := chi.URLParam(r, "pairId")
	detail := fmt.Sprintf("Failed to fetch historical data for %s", pairID)
	defer s.recoverAs(w, r, detail)

	points, err := s.exchange.FetchHistorical(r.Context(), pairID)
	if err != nil {
		s.log.Error("historical data failed",
			zap.String("pair", pairID),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, detail)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	defer s.recoverAs(w, r, recommendationsFailure)
	writeJSON(w, http.StatusOK, models.RecommendationResponse{Recommendations: s.recs.Recommend(r.Context())})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	defer s.recoverAs(w, r, recommendationsFailure)
	writeJSON(w, http.StatusOK, models.RecommendationResponse{Recommendations: s.recs.Analyze(r.Context())})
}

// recoverAs turns a panic in a handler into a 500 carrying only detail.
func (s *Server) recoverAs(w http.ResponseWriter, r *http.Request, detail string) {
	rec := recover()
	if rec == nil {
		return
	}
	if rec == http.ErrAbortHandler {
		panic(rec)
	}
	s.log.Error("handler panic",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Any("panic", rec),
	)
	writeError(w, http.StatusInternalServerError, detail)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	body, _ := json.Marshal(models.ErrorResponse{Detail: detail})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
