package server

import (
	"bytes"
	"io"
	"net/http"

	"github.com/jrsteele09/go-flight-proxy/upstream"
)

func (s *Server) ListFlightsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.forward(w, r, upstream.Request{
			Method:   http.MethodGet,
			Segments: []string{upstreamFlightsPath},
			RawQuery: r.URL.RawQuery,
		})
	}
}

func (s *Server) GetFlightHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.forward(w, r, upstream.Request{
			Method:   http.MethodGet,
			Segments: []string{upstreamFlightsPath, r.PathValue("id")},
			RawQuery: r.URL.RawQuery,
		})
	}
}

// FlightActionHandler posts an operation (delay, cancel, ...) on one flight.
func (s *Server) FlightActionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
		if err != nil {
			writeJSONError(w, "invalid_request", "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.forward(w, r, upstream.Request{
			Method:      http.MethodPost,
			Segments:    []string{upstreamFlightsPath, r.PathValue("id"), r.PathValue("action")},
			RawQuery:    r.URL.RawQuery,
			Body:        bytes.NewReader(body),
			ContentType: r.Header.Get("Content-Type"),
		})
	}
}

func (s *Server) forward(w http.ResponseWriter, r *http.Request, req upstream.Request) {
	req.RequestID = requestID(r.Context())
	resp, err := s.forwarder.Forward(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	relay(w, resp)
}
