package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kortex-hq/radar-cli/internal/engine"
	"github.com/kortex-hq/radar-cli/internal/model"
	"github.com/kortex-hq/radar-cli/internal/recalibrate"
	"github.com/kortex-hq/radar-cli/internal/store"
)

// recalibrator is the slice of the feedback service the API needs.
type recalibrator interface {
	Recalibrate(ctx context.Context, req recalibrate.Request) (*model.RippleResult, error)
}

func newRouter(svc recalibrator) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/recalibrate", handleRecalibrate(svc))
	r.Post("/api/score", handleScore)

	return r
}

func handleRecalibrate(svc recalibrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recalibrate.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.ProjectID == "" || req.CandidateID == "" || req.UserID == "" {
			writeError(w, http.StatusBadRequest, "projectId, companyId and userId are required")
			return
		}
		if !req.Action.Valid() {
			writeError(w, http.StatusBadRequest, "action must be \"exclude\" or \"validate\"")
			return
		}

		result, err := svc.Recalibrate(r.Context(), req)
		if err != nil {
			switch {
			case eris.Is(err, store.ErrNotFound):
				writeError(w, http.StatusNotFound, "company not found")
			case eris.Is(err, store.ErrConflict):
				writeError(w, http.StatusConflict, "concurrent update, retry")
			case eris.Is(err, recalibrate.ErrInvalidAction):
				writeError(w, http.StatusBadRequest, "invalid action")
			default:
				zap.L().Error("recalibrate request failed",
					zap.String("project_id", req.ProjectID),
					zap.String("company_id", req.CandidateID),
					zap.Error(err),
				)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func handleScore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Agency *model.AgencyVector `json:"agency"`
		Lead   *model.LeadVector   `json:"lead"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Agency == nil || req.Lead == nil {
		writeError(w, http.StatusBadRequest, "agency and lead are required")
		return
	}

	writeJSON(w, http.StatusOK, engine.CalculateMatchScore(req.Agency, req.Lead))
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
