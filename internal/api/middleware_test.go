package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler(t *testing.T, wantOwner string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := ownerFrom(r.Context()); got != wantOwner {
			t.Fatalf("expected owner %q, got %q", wantOwner, got)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_NoTokensConfigured(t *testing.T) {
	s := &Server{defaultOwner: "default"}
	handler := s.authMiddleware(okHandler(t, "default"))

	req := httptest.NewRequest(http.MethodGet, "/v1/trades", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 when no tokens configured, got %d", rr.Code)
	}
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	s := &Server{tokens: map[string]string{"secret123": "alice"}}
	handler := s.authMiddleware(okHandler(t, "alice"))

	req := httptest.NewRequest(http.MethodGet, "/v1/budget", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	s := &Server{tokens: map[string]string{"secret123": "alice"}}
	handler := s.authMiddleware(okHandler(t, "alice"))

	req := httptest.NewRequest(http.MethodGet, "/v1/budget", nil)
	req.Header.Set("Authorization", "Bearer wrong_key")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestAuthMiddleware_TokenSelectsOwner(t *testing.T) {
	s := &Server{tokens: map[string]string{"secret123": "alice", "other456": "bob"}}

	for token, owner := range s.tokens {
		handler := s.authMiddleware(okHandler(t, owner))
		req := httptest.NewRequest(http.MethodGet, "/v1/budget", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", owner, rr.Code)
		}
	}
}

func TestAuthMiddleware_MalformedBearer(t *testing.T) {
	s := &Server{tokens: map[string]string{"secret123": "alice"}}
	handler := s.authMiddleware(okHandler(t, "alice"))

	req := httptest.NewRequest(http.MethodGet, "/v1/budget", nil)
	req.Header.Set("Authorization", "Basic secret123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for non-Bearer auth, got %d", rr.Code)
	}
}

func TestValidateDate(t *testing.T) {
	valid := []string{"2024-01-15", "2025-12-31", "2020-02-29"}
	for _, d := range valid {
		if !validateDate(d) {
			t.Fatalf("expected %q to be valid", d)
		}
	}

	invalid := []string{
		"", "2024", "01-15-2024", "2024/01/15",
		"abcd-ef-gh", "2024-13-01", "2024-01-32",
		"2024-1-5", "20240115", "2023-02-29",
	}
	for _, d := range invalid {
		if validateDate(d) {
			t.Fatalf("expected %q to be invalid", d)
		}
	}
}

func TestParseLimit(t *testing.T) {
	cases := []struct {
		query    string
		deflt    int
		expected int
	}{
		{"", 100, 100},
		{"?limit=50", 100, 50},
		{"?limit=0", 100, 100},
		{"?limit=-5", 100, 100},
		{"?limit=abc", 100, 100},
		{"?limit=2000", 100, maxQueryLimit},
		{"?limit=1000", 100, 1000},
		{"?limit=1", 50, 1},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/test"+tc.query, nil)
		got := parseLimit(req, tc.deflt)
		if got != tc.expected {
			t.Fatalf("parseLimit(%q, %d) = %d, want %d", tc.query, tc.deflt, got, tc.expected)
		}
	}
}

func TestValidSymbol(t *testing.T) {
	for _, s := range []string{"INFY", "infy.ns", "M&M.NS", "BAJAJ-AUTO", "500325.BO"} {
		if !validSymbol(s) {
			t.Fatalf("expected %q to be valid", s)
		}
	}
	for _, s := range []string{"", "IN FY", "INFY;DROP", "../etc"} {
		if validSymbol(s) {
			t.Fatalf("expected %q to be invalid", s)
		}
	}
}
