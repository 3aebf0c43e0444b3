package server_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/caarlos0/env/v11"
	"github.com/jrsteele09/go-flight-proxy/internal/config"
	"github.com/jrsteele09/go-flight-proxy/metrics"
	"github.com/jrsteele09/go-flight-proxy/oauthmodel"
	"github.com/jrsteele09/go-flight-proxy/server"
	"github.com/jrsteele09/go-flight-proxy/token"
	"github.com/jrsteele09/go-flight-proxy/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testCodeVerifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	testRedirectURI  = "http://localhost:3000/callback"
	testOrigin       = "http://localhost:3000"
)

// mockUpstream stands in for both the OAuth token endpoint and the flight API.
type mockUpstream struct {
	t        *testing.T
	tokenSrv *httptest.Server
	apiSrv   *httptest.Server

	mu            sync.Mutex
	tokenRequests int
	tokenForms    []url.Values
	apiRequests   []*http.Request

	tokenHandler func(w http.ResponseWriter, form url.Values)
	apiHandler   func(w http.ResponseWriter, r *http.Request)
}

func newMockUpstream(t *testing.T) *mockUpstream {
	t.Helper()
	m := &mockUpstream{
		t: t,
		tokenHandler: func(w http.ResponseWriter, form url.Values) {
			body := map[string]any{"access_token": "api-token", "token_type": "Bearer", "expires_in": 3600}
			if form.Get("grant_type") == "authorization_code" {
				body["access_token"] = "user-token"
				body["refresh_token"] = "refresh-1"
			}
			writeUpstreamJSON(w, http.StatusOK, body)
		},
		apiHandler: func(w http.ResponseWriter, r *http.Request) {
			writeUpstreamJSON(w, http.StatusOK, map[string]any{"flights": []map[string]string{{"id": "BA117"}}})
		},
	}
	m.tokenSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		m.mu.Lock()
		m.tokenRequests++
		m.tokenForms = append(m.tokenForms, r.PostForm)
		handler := m.tokenHandler
		m.mu.Unlock()
		handler(w, r.PostForm)
	}))
	m.apiSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.apiRequests = append(m.apiRequests, r.Clone(r.Context()))
		handler := m.apiHandler
		m.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(m.tokenSrv.Close)
	t.Cleanup(m.apiSrv.Close)
	return m
}

func (m *mockUpstream) setTokenHandler(h func(w http.ResponseWriter, form url.Values)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenHandler = h
}

func (m *mockUpstream) setAPIHandler(h func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apiHandler = h
}

func (m *mockUpstream) tokenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokenRequests
}

func (m *mockUpstream) lastTokenForm() url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(m.t, m.tokenForms)
	return m.tokenForms[len(m.tokenForms)-1]
}

func (m *mockUpstream) lastAPIRequest() *http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(m.t, m.apiRequests)
	return m.apiRequests[len(m.apiRequests)-1]
}

func writeUpstreamJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type proxy struct {
	*server.Server
	upstream *mockUpstream
	tokens   *token.Manager
}

func newProxy(t *testing.T, m *mockUpstream, overrides map[string]string) *proxy {
	t.Helper()
	vars := map[string]string{
		"ENV":                 "PROD",
		"OAUTH_CLIENT_ID":     "proxy-client",
		"OAUTH_CLIENT_SECRET": "proxy-secret",
		"OAUTH_TOKEN_URL":     m.tokenSrv.URL + "/oauth/token",
		"OAUTH_AUTH_STYLE":    "header",
		"API_BASE_URL":        m.apiSrv.URL + "/v1",
	}
	for k, v := range overrides {
		vars[k] = v
	}
	cfg, err := config.Load(env.Options{Environment: vars})
	require.NoError(t, err)

	met := metrics.New()
	httpClient := &http.Client{Transport: met.RoundTripper(http.DefaultTransport), Timeout: cfg.GetUpstreamTimeout()}

	opts := []token.ManagerOption{
		token.WithExpirySkew(cfg.GetTokenExpirySkew()),
		token.WithDefaultTTL(cfg.GetDefaultTokenTTL()),
		token.WithObserver(met),
	}
	if cfg.GetGrantType() == oauthmodel.AuthorizationCodeGrant {
		opts = append(opts, token.WithCodeExchanger(token.NewAuthCodeClient(cfg, httpClient)))
	} else {
		opts = append(opts, token.WithFetcher(token.NewClientCredentialsFetcher(cfg, httpClient)))
	}
	tokens, err := token.New(cfg.GetGrantType(), opts...)
	require.NoError(t, err)

	fwd := upstream.NewForwarder(cfg.GetAPIBaseURL(), httpClient, tokens)
	s, err := server.New(cfg, tokens, fwd, nil, met)
	require.NoError(t, err)
	return &proxy{Server: s, upstream: m, tokens: tokens}
}

func authCodeVars() map[string]string {
	return map[string]string{
		"OAUTH_GRANT_TYPE":   "authorization_code",
		"OAUTH_AUTH_URL":     "https://auth.flightops.test/authorize",
		"OAUTH_REDIRECT_URI": testRedirectURI,
	}
}

func (p *proxy) do(t *testing.T, method, target string, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestFlights_ClientCredentials_ForwardsWithCachedToken(t *testing.T) {
	p := newProxy(t, newMockUpstream(t), nil)

	rec := p.do(t, http.MethodGet, "/api/flights?to=LHR&date=2026-03-14&gate=A%2B1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"flights":[{"id":"BA117"}]}`, rec.Body.String())

	apiReq := p.upstream.lastAPIRequest()
	require.Equal(t, "/v1/flights", apiReq.URL.Path)
	require.Equal(t, "to=LHR&date=2026-03-14&gate=A%2B1", apiReq.URL.RawQuery)
	require.Equal(t, "Bearer api-token", apiReq.Header.Get("Authorization"))
	require.Equal(t, "client_credentials", p.upstream.lastTokenForm().Get("grant_type"))

	rec = p.do(t, http.MethodGet, "/api/flights/BA117", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "/v1/flights/BA117", p.upstream.lastAPIRequest().URL.Path)
	require.Equal(t, 1, p.upstream.tokenCount(), "second call must reuse the cached token")
}

func TestFlights_RelaysUpstreamErrorVerbatim(t *testing.T) {
	m := newMockUpstream(t)
	m.setAPIHandler(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"title":"flight not found"}`))
	})
	p := newProxy(t, m, nil)

	rec := p.do(t, http.MethodGet, "/api/flights/XX999", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	require.Equal(t, `{"title":"flight not found"}`, rec.Body.String())
}

func TestFlights_TokenEndpointRejection(t *testing.T) {
	m := newMockUpstream(t)
	m.setTokenHandler(func(w http.ResponseWriter, form url.Values) {
		writeUpstreamJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
	})
	p := newProxy(t, m, nil)

	rec := p.do(t, http.MethodGet, "/api/flights", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"error":"invalid_client"}`, rec.Body.String())
}

func TestFlights_TokenEndpointUnreachable(t *testing.T) {
	m := newMockUpstream(t)
	p := newProxy(t, m, nil)
	m.tokenSrv.Close()

	rec := p.do(t, http.MethodGet, "/api/flights", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode[map[string]string](t, rec)
	require.Equal(t, "token_unavailable", body["error"])
	require.Empty(t, body["error_description"])
}

func TestFlights_APIUnreachable(t *testing.T) {
	m := newMockUpstream(t)
	p := newProxy(t, m, map[string]string{"VERBOSE_ERRORS": "true"})
	m.apiSrv.Close()

	rec := p.do(t, http.MethodGet, "/api/flights", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode[map[string]string](t, rec)
	require.Equal(t, "upstream_unreachable", body["error"])
	require.NotEmpty(t, body["error_description"])
}

func TestFlightAction_PostsBody(t *testing.T) {
	m := newMockUpstream(t)
	var (
		mu      sync.Mutex
		gotBody string
	)
	m.setAPIHandler(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotBody = string(b)
		mu.Unlock()
		writeUpstreamJSON(w, http.StatusAccepted, map[string]string{"status": "delayed"})
	})
	p := newProxy(t, m, nil)

	rec := p.do(t, http.MethodPost, "/api/flights/BA117/delay", `{"minutes":20}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	apiReq := p.upstream.lastAPIRequest()
	require.Equal(t, http.MethodPost, apiReq.Method)
	require.Equal(t, "/v1/flights/BA117/delay", apiReq.URL.Path)
	require.Equal(t, "application/json", apiReq.Header.Get("Content-Type"))
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, `{"minutes":20}`, gotBody)
}

func TestTokenEndpoint_ClientCredentialsReturnsStatus(t *testing.T) {
	p := newProxy(t, newMockUpstream(t), nil)

	rec := p.do(t, http.MethodPost, "/api/auth/token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "api-token")

	status := decode[oauthmodel.TokenStatus](t, rec)
	require.True(t, status.Cached)
	require.True(t, status.Valid)
	require.Equal(t, oauthmodel.ClientCredentialsGrant, status.GrantType)
}

func TestTokenEndpoint_AuthCodeExchange(t *testing.T) {
	p := newProxy(t, newMockUpstream(t), authCodeVars())

	rec := p.do(t, http.MethodGet, "/api/flights", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code, "no token before the frontend logs in")
	require.Equal(t, map[string]string{"error": "not_authenticated", "error_description": "not authenticated"}, decode[map[string]string](t, rec))
	require.Equal(t, 0, p.upstream.tokenCount())

	rec = p.do(t, http.MethodPost, "/api/auth/token", `{"code":"auth-code-1","code_verifier":"`+testCodeVerifier+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[oauthmodel.TokenResponse](t, rec)
	require.Equal(t, "user-token", resp.AccessToken)
	require.Equal(t, "refresh-1", resp.RefreshToken)
	require.Positive(t, resp.ExpiresIn)

	form := p.upstream.lastTokenForm()
	require.Equal(t, "authorization_code", form.Get("grant_type"))
	require.Equal(t, "auth-code-1", form.Get("code"))
	require.Equal(t, testCodeVerifier, form.Get("code_verifier"))
	require.Equal(t, testRedirectURI, form.Get("redirect_uri"))

	rec = p.do(t, http.MethodGet, "/api/flights", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Bearer user-token", p.upstream.lastAPIRequest().Header.Get("Authorization"))

	rec = p.do(t, http.MethodPost, "/api/auth/logout", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = p.do(t, http.MethodGet, "/api/flights", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokenEndpoint_AuthCodeRejectedUpstream(t *testing.T) {
	m := newMockUpstream(t)
	m.setTokenHandler(func(w http.ResponseWriter, form url.Values) {
		writeUpstreamJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "code expired"})
	})
	p := newProxy(t, m, authCodeVars())

	rec := p.do(t, http.MethodPost, "/api/auth/token", `{"code":"stale","code_verifier":"`+testCodeVerifier+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"error":"invalid_grant","error_description":"code expired"}`, rec.Body.String())
}

func TestTokenEndpoint_InvalidBodies(t *testing.T) {
	p := newProxy(t, newMockUpstream(t), authCodeVars())

	for name, body := range map[string]string{
		"not json":         `code=abc`,
		"missing code":     `{"code_verifier":"` + testCodeVerifier + `"}`,
		"missing verifier": `{"code":"abc"}`,
		"short verifier":   `{"code":"abc","code_verifier":"short"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := p.do(t, http.MethodPost, "/api/auth/token", body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, "invalid_request", decode[map[string]string](t, rec)["error"])
		})
	}
	require.Equal(t, 0, p.upstream.tokenCount())
}

func TestLogin_ServerSidePKCE(t *testing.T) {
	p := newProxy(t, newMockUpstream(t), authCodeVars())

	rec := p.do(t, http.MethodGet, "/api/auth/login?return_url=/board", "")
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode[oauthmodel.LoginResponse](t, rec)
	require.NotEmpty(t, login.State)

	authURL, err := url.Parse(login.AuthorizationURL)
	require.NoError(t, err)
	q := authURL.Query()
	require.Equal(t, "auth.flightops.test", authURL.Host)
	require.Equal(t, login.State, q.Get("state"))
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.Equal(t, testRedirectURI, q.Get("redirect_uri"))
	require.Equal(t, "proxy-client", q.Get("client_id"))
	challenge := q.Get("code_challenge")

	rec = p.do(t, http.MethodPost, "/api/auth/token", `{"code":"auth-code-2","state":"`+login.State+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "/board", decode[oauthmodel.TokenResponse](t, rec).ReturnURL)

	verifier := p.upstream.lastTokenForm().Get("code_verifier")
	require.Equal(t, challenge, oauthmodel.CodeChallengeS256(verifier))

	// State is single use.
	rec = p.do(t, http.MethodPost, "/api/auth/token", `{"code":"auth-code-3","state":"`+login.State+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[map[string]string](t, rec)
	require.Equal(t, "invalid_state", body["error"])
	require.Equal(t, "invalid or expired state", body["error_description"])
}

func TestLogin_RequiresAuthCodeMode(t *testing.T) {
	p := newProxy(t, newMockUpstream(t), nil)

	rec := p.do(t, http.MethodGet, "/api/auth/login", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "unsupported_grant_type", decode[map[string]string](t, rec)["error"])
}

func TestEvents(t *testing.T) {
	p := newProxy(t, newMockUpstream(t), nil)

	rec := p.do(t, http.MethodPost, "/api/events", `{"type":"gate_change","flight":"BA117"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decode[server.EventResponse](t, rec)
	require.NotEmpty(t, resp.ID)
	require.False(t, resp.ReceivedAt.IsZero())
	require.JSONEq(t, `{"type":"gate_change","flight":"BA117"}`, string(resp.Event))

	rec = p.do(t, http.MethodPost, "/api/events", `[1,2]`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = p.do(t, http.MethodPost, "/api/events", `{"broken"`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, 0, p.upstream.tokenCount())
}

func TestInfoAndHealth(t *testing.T) {
	p := newProxy(t, newMockUpstream(t), nil)

	rec := p.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = p.do(t, http.MethodGet, "/api/info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[server.InfoResponse](t, rec)
	require.Equal(t, "client_credentials", info.GrantType)
	require.Equal(t, "PROD", info.Env)
	require.NotContains(t, rec.Body.String(), "proxy-secret")
}

func TestDebugToken_DevOnly(t *testing.T) {
	m := newMockUpstream(t)

	prod := newProxy(t, m, nil)
	require.Equal(t, http.StatusNotFound, prod.do(t, http.MethodGet, "/api/debug/token", "").Code)

	dev := newProxy(t, m, map[string]string{"ENV": "DEV"})
	require.Equal(t, http.StatusOK, dev.do(t, http.MethodGet, "/api/flights", "").Code)
	rec := dev.do(t, http.MethodGet, "/api/debug/token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "api-token")
	require.True(t, decode[oauthmodel.TokenStatus](t, rec).Valid)
}

func TestCORS(t *testing.T) {
	p := newProxy(t, newMockUpstream(t), nil)

	rec := p.do(t, http.MethodOptions, "/api/flights", "",
		"Origin", testOrigin,
		"Access-Control-Request-Method", http.MethodGet)
	require.Less(t, rec.Code, http.StatusMultipleChoices)
	require.Equal(t, testOrigin, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = p.do(t, http.MethodGet, "/api/flights", "", "Origin", "https://evil.example")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_WildcardDropsCredentials(t *testing.T) {
	p := newProxy(t, newMockUpstream(t), map[string]string{"ALLOWED_ORIGINS": "*"})

	rec := p.do(t, http.MethodGet, "/api/flights", "", "Origin", "https://any.example")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))

	specific := newProxy(t, newMockUpstream(t), nil)
	rec = specific.do(t, http.MethodGet, "/api/flights", "", "Origin", testOrigin)
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestErrorDescriptions_VerboseOnly(t *testing.T) {
	p := newProxy(t, newMockUpstream(t), authCodeVars())
	rec := p.do(t, http.MethodPost, "/api/auth/token", `{"code":"c","state":"unknown"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotContains(t, rec.Body.String(), "[Server")

	verbose := newProxy(t, newMockUpstream(t), map[string]string{
		"OAUTH_GRANT_TYPE": "authorization_code",
		"VERBOSE_ERRORS":   "true",
	})
	rec = verbose.do(t, http.MethodPost, "/api/auth/token", `{"code":"c","state":"unknown"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decode[map[string]string](t, rec)["error_description"], "state not found")
}

func TestRequestID(t *testing.T) {
	p := newProxy(t, newMockUpstream(t), nil)

	rec := p.do(t, http.MethodGet, "/api/flights", "", "X-Request-ID", "trace-42")
	require.Equal(t, "trace-42", rec.Header().Get("X-Request-ID"))
	require.Equal(t, "trace-42", p.upstream.lastAPIRequest().Header.Get("X-Request-ID"))

	rec = p.do(t, http.MethodGet, "/health", "")
	require.Empty(t, rec.Header().Get("X-Request-ID"))
	rec = p.do(t, http.MethodGet, "/api/info", "")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	p := newProxy(t, newMockUpstream(t), nil)
	require.Equal(t, http.StatusOK, p.do(t, http.MethodGet, "/api/flights", "").Code)

	rec := p.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `flight_proxy_requests_total{method="GET",route="GET /api/flights",status="200"} 1`)
	require.Contains(t, body, `flight_proxy_token_acquisitions_total{grant="client_credentials",outcome="success"} 1`)
	require.Contains(t, body, "flight_proxy_upstream_duration_seconds")
}

func TestRecoverMiddleware(t *testing.T) {
	p := newProxy(t, newMockUpstream(t), nil)
	h := server.ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}, p.APIMiddleware()...)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "internal_error", decode[map[string]string](t, rec)["error"])
}

func TestRoutes(t *testing.T) {
	p := newProxy(t, newMockUpstream(t), nil)
	require.Contains(t, p.Routes(), "GET "+server.RouteFlight)
	require.Contains(t, p.Routes(), "POST "+server.RouteAuthToken)
	require.NotContains(t, p.Routes(), "GET "+server.RouteDebugToken)
}
