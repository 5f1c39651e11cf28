package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestContextMiddleware_GeneratesRequestID(t *testing.T) {
	var captured string
	handler := NewRequestContextMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if _, err := uuid.Parse(captured); err != nil {
		t.Errorf("request id %q is not a UUID: %v", captured, err)
	}
	if got := w.Header().Get(RequestIDHeader); got != captured {
		t.Errorf("%s header = %q, want %q", RequestIDHeader, got, captured)
	}
}

func TestRequestContextMiddleware_PropagatesIncomingID(t *testing.T) {
	var captured string
	handler := NewRequestContextMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "upstream-id")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if captured != "upstream-id" {
		t.Errorf("request id = %q, want %q", captured, "upstream-id")
	}
}

func TestRequestContextMiddleware_TooLongIncomingID_IsReplaced(t *testing.T) {
	var captured string
	handler := NewRequestContextMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", maxRequestIDLength+1))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if _, err := uuid.Parse(captured); err != nil {
		t.Errorf("oversized incoming id should be replaced, got %q", captured)
	}
}

func TestSetOpenID_VisibleToOuterMiddleware(t *testing.T) {
	var seen string
	outer := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			seen = OpenIDFromContext(r.Context())
		})
	}

	handler := NewRequestContextMiddleware()(outer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetOpenID(r.Context(), "github_42")
	})))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if seen != "github_42" {
		t.Errorf("OpenIDFromContext = %q, want %q", seen, "github_42")
	}
}

func TestRequestContext_WithoutMiddleware_IsNoop(t *testing.T) {
	ctx := context.Background()

	SetOpenID(ctx, "google_1")

	if got := OpenIDFromContext(ctx); got != "" {
		t.Errorf("OpenIDFromContext = %q, want empty", got)
	}
	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("RequestIDFromContext = %q, want empty", got)
	}
}
