// Copyright 2025 ZapStats Authors
// SPDX-License-Identifier: Apache-2.0

// Package api exposes pageview ingestion and the live visitor count over HTTP.
//
// Routes:
//
//	POST /api/track   record a pageview; 202 {"is_unique": bool, "page_count": n|null}
//	GET  /api/active  {"count": n|null}; null means the count is unknown, not zero
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	reqctx "github.com/LeeDigitalWorks/zapstats/pkg/context"
	"github.com/LeeDigitalWorks/zapstats/pkg/logger"
	"github.com/LeeDigitalWorks/zapstats/pkg/presence"
	"github.com/LeeDigitalWorks/zapstats/pkg/session"
	"github.com/LeeDigitalWorks/zapstats/pkg/tracking"
	"github.com/LeeDigitalWorks/zapstats/pkg/utils"
)

const maxTrackBody = 16 << 10

// Tracker is the ingestion side the handlers drive.
type Tracker interface {
	Track(ctx context.Context, pv tracking.Pageview) tracking.Outcome
	ActiveCount(ctx context.Context) presence.Count
}

// Config configures the HTTP surface.
type Config struct {
	// TrackRPS is the per-IP pageview rate limit (0 = unlimited).
	TrackRPS float64 `mapstructure:"track_rps"`

	// TrackBurst is the per-IP burst size (default: TrackRPS).
	TrackBurst int `mapstructure:"track_burst"`

	// AllowedOrigin is sent as Access-Control-Allow-Origin (default: "*").
	AllowedOrigin string `mapstructure:"allowed_origin"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		TrackRPS:      20,
		TrackBurst:    40,
		AllowedOrigin: "*",
	}
}

type Handler struct {
	tracker Tracker
	limiter *ipLimiter
	cfg     Config
}

func NewHandler(tracker Tracker, cfg Config) *Handler {
	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = "*"
	}
	return &Handler{
		tracker: tracker,
		limiter: newIPLimiter(cfg.TrackRPS, cfg.TrackBurst),
		cfg:     cfg,
	}
}

// Mux returns the API routes wrapped in request-id and metrics middleware.
func (h *Handler) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /api/track", h.instrument("track", h.handleTrack))
	mux.Handle("OPTIONS /api/track", h.instrument("track_preflight", h.handlePreflight))
	mux.Handle("GET /api/active", h.instrument("active", h.handleActive))
	return mux
}

type trackRequest struct {
	URL         string `json:"url"`
	Referrer    string `json:"referrer"`
	SessionID   string `json:"session_id"`
	UTMSource   string `json:"utm_source"`
	UTMMedium   string `json:"utm_medium"`
	UTMCampaign string `json:"utm_campaign"`
	UTMTerm     string `json:"utm_term"`
	UTMContent  string `json:"utm_content"`
}

type trackResponse struct {
	IsUnique  bool   `json:"is_unique"`
	PageCount *int64 `json:"page_count"`
}

type activeResponse struct {
	Count presence.Count `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleTrack(w http.ResponseWriter, r *http.Request) int {
	h.setCORS(w)

	ip := utils.ClientIP(r)
	if !h.limiter.Allow(ip) {
		return writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
	}

	var req trackRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTrackBody))
	if err := dec.Decode(&req); err != nil {
		return writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
	}
	if req.URL == "" {
		return writeJSON(w, http.StatusBadRequest, errorResponse{Error: "url is required"})
	}

	out := h.tracker.Track(r.Context(), tracking.Pageview{
		IP:        ip,
		UserAgent: r.UserAgent(),
		URL:       req.URL,
		Referrer:  req.Referrer,
		SessionID: req.SessionID,
		UTM: session.UTMParams{
			Source:   req.UTMSource,
			Medium:   req.UTMMedium,
			Campaign: req.UTMCampaign,
			Term:     req.UTMTerm,
			Content:  req.UTMContent,
		},
	})
	if out.Err != nil {
		logger.Ctx(r.Context()).Error().Err(out.Err).Msg("failed to record pageview")
		return writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to record pageview"})
	}

	resp := trackResponse{IsUnique: out.IsUnique}
	if out.Session != nil {
		n := out.Session.PageCount
		resp.PageCount = &n
	}
	return writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) handlePreflight(w http.ResponseWriter, r *http.Request) int {
	h.setCORS(w)
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
	return http.StatusNoContent
}

func (h *Handler) handleActive(w http.ResponseWriter, r *http.Request) int {
	w.Header().Set("Cache-Control", "no-store")
	return writeJSON(w, http.StatusOK, activeResponse{Count: h.tracker.ActiveCount(r.Context())})
}

func (h *Handler) setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", h.cfg.AllowedOrigin)
}

type routeFunc func(w http.ResponseWriter, r *http.Request) int

// instrument attaches a request id and a request-scoped logger, and records
// per-route metrics.
func (h *Handler) instrument(route string, fn routeFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx := r.Context()
		if id := r.Header.Get(reqctx.RequestHeader); id != "" {
			ctx = reqctx.FromUUID(ctx, id)
		}
		ctx, reqID := reqctx.WithUUID(ctx)
		l := logger.With().Str("request_id", reqID).Str("route", route).Logger()
		ctx = logger.WithLogger(ctx, &l)
		w.Header().Set(reqctx.RequestHeader, reqID)

		code := fn(w, r.WithContext(ctx))

		RequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
		RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		l.Debug().Int("code", code).Dur("took", time.Since(start)).Msg("request served")
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug().Err(err).Msg("failed to write response")
	}
	return code
}
