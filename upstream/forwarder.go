package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	proxyerrors "github.com/jrsteele09/go-flight-proxy/internal/errors"
	"github.com/jrsteele09/go-flight-proxy/token"
	"github.com/rs/zerolog/log"
)

// maxBodyBytes caps how much of an upstream body is buffered for relaying.
const maxBodyBytes = 10 << 20

// relayedHeaders are copied from the upstream response to the frontend.
var relayedHeaders = []string{"Content-Type", "Cache-Control", "ETag", "Last-Modified", "Retry-After"}

// TokenSource supplies the bearer token attached to forwarded calls.
type TokenSource interface {
	Token(ctx context.Context) (token.Entry, error)
}

type Request struct {
	Method      string
	Segments    []string // path segments below the API base URL, escaped individually
	RawQuery    string   // forwarded unchanged
	Body        io.Reader
	ContentType string
	RequestID   string
}

// Response is the upstream reply, kept verbatim.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type Forwarder struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

func NewForwarder(baseURL string, httpClient *http.Client, tokens TokenSource) *Forwarder {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Forwarder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
	}
}

// Forward calls the flight-operations API with the cached bearer token. Any
// upstream status, including errors, is returned as a Response; only token
// and transport failures are returned as errors.
func (f *Forwarder) Forward(ctx context.Context, req Request) (*Response, error) {
	tok, err := f.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("[Forwarder Forward] %w", err)
	}

	target := f.URL(req.Segments, req.RawQuery)
	upstreamReq, err := http.NewRequestWithContext(ctx, req.Method, target, req.Body)
	if err != nil {
		return nil, fmt.Errorf("[Forwarder Forward] build request: %w", err)
	}
	upstreamReq.Header.Set("Authorization", tok.AuthorizationHeader())
	upstreamReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		contentType := req.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		upstreamReq.Header.Set("Content-Type", contentType)
	}
	if req.RequestID != "" {
		upstreamReq.Header.Set("X-Request-ID", req.RequestID)
	}

	resp, err := f.httpClient.Do(upstreamReq)
	if err != nil {
		return nil, fmt.Errorf("[Forwarder Forward] %s %s: %w: %w", req.Method, target, proxyerrors.ErrUpstreamUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("[Forwarder Forward] read body: %w: %w", proxyerrors.ErrUpstreamUnreachable, err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("[Forwarder Forward] %s %s: body exceeds %d bytes: %w", req.Method, target, maxBodyBytes, proxyerrors.ErrUpstreamUnreachable)
	}

	header := http.Header{}
	for _, name := range relayedHeaders {
		if v := resp.Header.Get(name); v != "" {
			header.Set(name, v)
		}
	}

	log.Debug().
		Str("method", req.Method).
		Str("url", target).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Msg("upstream call")

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     header,
		Body:       body,
	}, nil
}

// URL joins escaped segments and the raw query onto the API base URL.
func (f *Forwarder) URL(segments []string, rawQuery string) string {
	var b strings.Builder
	b.WriteString(f.baseURL)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	if rawQuery != "" {
		b.WriteByte('?')
		b.WriteString(rawQuery)
	}
	return b.String()
}
