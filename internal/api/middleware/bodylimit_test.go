package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBodyLimitRejectsOversizedContentLength(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run when Content-Length exceeds the limit")
	})

	req := httptest.NewRequest(http.MethodPost, "/databases", strings.NewReader(strings.Repeat("x", 100)))
	req.ContentLength = 100
	rec := httptest.NewRecorder()

	BodyLimit(10)(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestBodyLimitAllowsRequestUnderLimit(t *testing.T) {
	var ran bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ran = true
	})

	req := httptest.NewRequest(http.MethodPost, "/databases", strings.NewReader("small"))
	rec := httptest.NewRecorder()

	BodyLimit(DefaultMaxBodySize)(next).ServeHTTP(rec, req)

	if !ran {
		t.Error("handler should run when the body is under the limit")
	}
}

func TestBodyLimitIgnoresGet(t *testing.T) {
	var ran bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ran = true
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.ContentLength = 1 << 30
	rec := httptest.NewRecorder()

	BodyLimit(10)(next).ServeHTTP(rec, req)

	if !ran {
		t.Error("BodyLimit should not apply to GET requests")
	}
}
