package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	proxyerrors "github.com/jrsteele09/go-flight-proxy/internal/errors"
	"github.com/jrsteele09/go-flight-proxy/oauthmodel"
	"github.com/jrsteele09/go-flight-proxy/server/authflowrepo"
	"github.com/rs/zerolog/log"
)

// TokenHandler exchanges a frontend authorization code in authorization_code
// mode. In client_credentials mode it makes sure a token is cached and
// reports its status.
func (s *Server) TokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.tokens.GrantType().RequiresFrontendCode() {
			if _, err := s.tokens.Token(r.Context()); err != nil {
				s.writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, s.tokens.Status())
			return
		}

		var req oauthmodel.CodeExchangeRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "request body must be a JSON object", http.StatusBadRequest)
			return
		}
		if err := req.Validate(); err != nil {
			writeJSONError(w, "invalid_request", err.Error(), http.StatusBadRequest)
			return
		}

		params, err := s.exchangeParams(req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		resp, err := s.tokens.Exchange(r.Context(), req.Code, params.verifier, params.redirectURI)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.ReturnURL = params.returnURL
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, resp)
	}
}

type exchangeParams struct {
	verifier    string
	redirectURI string
	returnURL   string
}

// exchangeParams picks the code verifier and redirect URI for an exchange.
// A verifier in the request wins; otherwise the state issued by the login
// handler is consumed.
func (s *Server) exchangeParams(req oauthmodel.CodeExchangeRequest) (exchangeParams, error) {
	params := exchangeParams{verifier: req.CodeVerifier, redirectURI: req.RedirectURI}
	if params.verifier == "" {
		flow, err := s.authState.Take(req.State)
		if err != nil {
			return exchangeParams{}, proxyerrors.Wrapf(proxyerrors.Join(proxyerrors.ErrInvalidState, err), "[Server exchangeParams]")
		}
		params.verifier = flow.CodeVerifier
		params.returnURL = flow.ReturnURL
		if params.redirectURI == "" {
			params.redirectURI = flow.RedirectURI
		}
	}
	if params.redirectURI == "" {
		params.redirectURI = s.config.GetRedirectURI()
	}
	return params, nil
}

// LoginHandler starts a server-side PKCE login. The verifier stays on the
// proxy, keyed by the returned state.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.tokens.GrantType().RequiresFrontendCode() {
			s.writeError(w, r, fmt.Errorf("[Server LoginHandler] %w", proxyerrors.ErrUnsupportedGrant))
			return
		}
		if s.config.GetAuthURL() == "" {
			writeJSONError(w, "login_unavailable", "OAUTH_AUTH_URL is not configured", http.StatusNotImplemented)
			return
		}

		redirectURI := r.URL.Query().Get("redirect_uri")
		if redirectURI == "" {
			redirectURI = s.config.GetRedirectURI()
		}
		if redirectURI == "" {
			writeJSONError(w, "invalid_request", oauthmodel.ErrMissingRedirectURI.Error(), http.StatusBadRequest)
			return
		}

		state := uuid.New().String()
		verifier := oauthmodel.GenerateCodeVerifier()
		err := s.authState.Upsert(state, &authflowrepo.AuthFlowState{
			CodeVerifier: verifier,
			RedirectURI:  redirectURI,
			ReturnURL:    r.URL.Query().Get("return_url"),
			CreatedAt:    time.Now(),
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		authURL, err := s.tokens.AuthCodeURL(state, verifier, redirectURI)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		log.Debug().Str("request_id", requestID(r.Context())).Msg("login started")
		writeJSON(w, http.StatusOK, oauthmodel.LoginResponse{AuthorizationURL: authURL, State: state})
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.tokens.Invalidate()
		w.WriteHeader(http.StatusNoContent)
	}
}
