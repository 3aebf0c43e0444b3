package server

import (
	"encoding/json"
	"net/http"

	proxyerrors "github.com/jrsteele09/go-flight-proxy/internal/errors"
	"github.com/jrsteele09/go-flight-proxy/upstream"
	"github.com/rs/zerolog/log"
)

const contentTypeJSON = "application/json; charset=utf-8"

// maxRequestBodyBytes limits bodies accepted from the frontend.
const maxRequestBodyBytes = 1 << 20

var errorMappings = []struct {
	sentinel error
	code     string
	status   int
}{
	{proxyerrors.ErrNotAuthenticated, "not_authenticated", http.StatusUnauthorized},
	{proxyerrors.ErrInvalidState, "invalid_state", http.StatusBadRequest},
	{proxyerrors.ErrInvalidRequest, "invalid_request", http.StatusBadRequest},
	{proxyerrors.ErrUnsupportedGrant, "unsupported_grant_type", http.StatusBadRequest},
	{proxyerrors.ErrTokenUnavailable, "token_unavailable", http.StatusBadGateway},
	{proxyerrors.ErrUpstreamUnreachable, "upstream_unreachable", http.StatusBadGateway},
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeJSONError(w http.ResponseWriter, code, description string, status int) {
	writeJSON(w, status, errorResponse{Error: code, ErrorDescription: description})
}

// relay writes an upstream reply to the frontend unchanged.
func relay(w http.ResponseWriter, resp *upstream.Response) {
	for name, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

// writeError maps err onto the proxy's error responses. Upstream HTTP
// failures are relayed with their own status and body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if upstreamErr, ok := proxyerrors.UpstreamErrorFrom(err); ok {
		contentType := upstreamErr.ContentType
		if contentType == "" {
			contentType = contentTypeJSON
		}
		log.Warn().Err(err).Str("request_id", requestID(r.Context())).Int("status", upstreamErr.StatusCode).Msg("relaying upstream error")
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(upstreamErr.StatusCode)
		_, _ = w.Write(upstreamErr.Body)
		return
	}

	code, status := "internal_error", http.StatusInternalServerError
	var matched error
	for _, m := range errorMappings {
		if proxyerrors.Is(err, m.sentinel) {
			code, status, matched = m.code, m.status, m.sentinel
			break
		}
	}

	if status >= http.StatusInternalServerError {
		if s.env == "DEV" {
			logError(r.Method, r.URL.Path, err.Error())
		}
		log.Error().Err(err).Str("request_id", requestID(r.Context())).Int("status", status).Msg("request failed")
	}

	// Client errors carry the sentinel text; wrapped detail only when verbose.
	description := ""
	switch {
	case s.config.GetVerboseErrors():
		description = err.Error()
	case status < http.StatusInternalServerError && matched != nil:
		description = matched.Error()
	}
	writeJSONError(w, code, description, status)
}
