package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"stratopt-go/internal/metrics"
	"stratopt-go/internal/perf"
)

const (
	homeText         = "TradingView Webhook Receiver is running!"
	invalidFormat    = "Invalid webhook format"
	responseTSLayout = "20060102_150405"
)

type webhookPayload struct {
	StrategyName string         `json:"strategy_name"`
	Metrics      map[string]any `json:"metrics"`
	Parameters   map[string]any `json:"parameters"`
}

// WebhookResponse is the body returned by POST /webhook.
type WebhookResponse struct {
	Status      string              `json:"status"`
	Message     string              `json:"message"`
	Timestamp   string              `json:"timestamp,omitempty"`
	Strategy    string              `json:"strategy,omitempty"`
	EventID     string              `json:"event_id,omitempty"`
	Suggestions *perf.SuggestionSet `json:"suggestions"`
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, homeText)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		s.reject(w, http.StatusRequestEntityTooLarge, "Request body too large", err)
		return
	}
	if err := s.validator.ValidateBytes(raw); err != nil {
		s.reject(w, http.StatusBadRequest, invalidFormat, err)
		return
	}

	var payload webhookPayload
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		s.reject(w, http.StatusBadRequest, invalidFormat, err)
		return
	}
	strategy := strings.TrimSpace(payload.StrategyName)
	if strategy == "" {
		s.reject(w, http.StatusBadRequest, invalidFormat, errors.New("blank strategy_name"))
		return
	}

	ev := perf.Event{
		ID:         uuid.New().String(),
		ReceivedAt: time.Now(),
		Strategy:   strategy,
		Metrics:    payload.Metrics,
		Parameters: payload.Parameters,
	}
	s.log.Info().
		Str("strategy", strategy).
		Str("event_id", ev.ID).
		Interface("metrics", ev.Metrics).
		Interface("parameters", ev.Parameters).
		Msg("webhook received")

	set, err := s.opt.Apply(r.Context(), ev)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("error").Inc()
		s.log.Error().Err(err).Str("strategy", strategy).Msg("error processing webhook")
		writeJSON(w, http.StatusInternalServerError, WebhookResponse{Status: "error", Message: err.Error()})
		return
	}

	metrics.WebhookEvents.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, WebhookResponse{
		Status:      "success",
		Message:     "Webhook received and processed",
		Timestamp:   ev.ReceivedAt.Format(responseTSLayout),
		Strategy:    strategy,
		EventID:     ev.ID,
		Suggestions: set,
	})
}

func (s *Server) reject(w http.ResponseWriter, status int, msg string, err error) {
	metrics.WebhookEvents.WithLabelValues("rejected").Inc()
	s.log.Warn().Err(err).Int("status", status).Msg("webhook rejected")
	writeJSON(w, status, WebhookResponse{Status: "error", Message: msg})
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	names, err := s.opt.Strategies(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"strategies": names})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	rows, err := s.opt.History(r.Context(), name)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if rows == nil {
		rows = []perf.Observation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"strategy": name, "count": len(rows), "history": rows})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	set, err := s.opt.Suggest(r.Context(), name)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"strategy": name, "suggestions": set})
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error().Err(err).Msg("request failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": err.Error()})
}

// writeJSON encodes v before committing the status so an unencodable value becomes a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		buf.Reset()
		status = http.StatusInternalServerError
		_ = json.NewEncoder(&buf).Encode(map[string]string{
			"status":  "error",
			"message": "encode response: " + err.Error(),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
