package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// EventResponse echoes a frontend event. Events are not stored.
type EventResponse struct {
	ID         string          `json:"id"`
	ReceivedAt time.Time       `json:"received_at"`
	Event      json.RawMessage `json:"event"`
}

func (s *Server) EventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var event json.RawMessage
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&event); err != nil {
			writeJSONError(w, "invalid_request", "request body must be JSON", http.StatusBadRequest)
			return
		}
		if trimmed := bytes.TrimSpace(event); len(trimmed) == 0 || trimmed[0] != '{' {
			writeJSONError(w, "invalid_request", "event must be a JSON object", http.StatusBadRequest)
			return
		}

		writeJSON(w, http.StatusAccepted, EventResponse{
			ID:         uuid.New().String(),
			ReceivedAt: time.Now().UTC(),
			Event:      event,
		})
	}
}

// InfoResponse describes the running proxy. It never carries credentials.
type InfoResponse struct {
	AppName      string `json:"app_name"`
	Env          string `json:"env"`
	GrantType    string `json:"grant_type"`
	TokenHost    string `json:"token_host"`
	UpstreamHost string `json:"upstream_host"`
}

func (s *Server) InfoHandler() http.HandlerFunc {
	info := InfoResponse{
		AppName:      s.config.GetAppName(),
		Env:          s.env,
		GrantType:    s.tokens.GrantType().String(),
		TokenHost:    hostOf(s.config.GetTokenURL()),
		UpstreamHost: hostOf(s.config.GetAPIBaseURL()),
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, info)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// DebugTokenHandler reports the cache state. Only registered in DEV.
func (s *Server) DebugTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, s.tokens.Status())
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
