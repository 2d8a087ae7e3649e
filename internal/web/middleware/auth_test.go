package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JonMunkholm/catalogue/internal/config"
)

// fakeGitHub serves /user, mapping tokens to logins. Unknown tokens get 401.
func fakeGitHub(t *testing.T, logins map[string]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/user" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("X-GitHub-Api-Version"); got != "2022-11-28" {
			t.Errorf("X-GitHub-Api-Version = %q", got)
		}
		if got := r.Header.Get("Accept"); got != "application/vnd.github+json" {
			t.Errorf("Accept = %q", got)
		}
		token := r.Header.Get("Authorization")[len("Bearer "):]
		login, ok := logins[token]
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"login":"` + login + `","id":1}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(User(r.Context())))
	})
}

func serve(h http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/tables", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGitHubAuth(t *testing.T) {
	srv, _ := fakeGitHub(t, map[string]string{
		"good":     "Alice",
		"outsider": "mallory",
	})
	cfg := config.AuthConfig{AllowedUsers: []string{"alice", " bob "}, CacheTTL: time.Minute}
	h := GitHubAuth(cfg, GitHubVerifier{BaseURL: srv.URL})(echoUser())

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{"missing header", "", http.StatusUnauthorized, ""},
		{"allowed bearer, case-insensitive", "Bearer good", http.StatusOK, "Alice"},
		{"allowed token scheme", "token good", http.StatusOK, "Alice"},
		{"bare token", "good", http.StatusOK, "Alice"},
		{"not on allow-list", "Bearer outsider", http.StatusForbidden, ""},
		{"rejected by github", "Bearer bogus", http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, tt.header)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && rec.Body.String() != tt.wantUser {
				t.Errorf("user = %q, want %q", rec.Body.String(), tt.wantUser)
			}
		})
	}
}

func TestGitHubAuth_CachesAllowedTokens(t *testing.T) {
	srv, calls := fakeGitHub(t, map[string]string{"good": "alice"})
	cfg := config.AuthConfig{AllowedUsers: []string{"alice"}, CacheTTL: time.Minute}
	h := GitHubAuth(cfg, GitHubVerifier{BaseURL: srv.URL})(echoUser())

	for range 3 {
		if rec := serve(h, "Bearer good"); rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("github calls = %d, want 1", n)
	}
}

func TestGitHubAuth_NoCacheWhenTTLZero(t *testing.T) {
	srv, calls := fakeGitHub(t, map[string]string{"good": "alice"})
	cfg := config.AuthConfig{AllowedUsers: []string{"alice"}}
	h := GitHubAuth(cfg, GitHubVerifier{BaseURL: srv.URL})(echoUser())

	serve(h, "Bearer good")
	serve(h, "Bearer good")
	if n := calls.Load(); n != 2 {
		t.Errorf("github calls = %d, want 2", n)
	}
}

func TestGitHubAuth_Disabled(t *testing.T) {
	cfg := config.AuthConfig{Disabled: true, DevUser: "dev"}
	h := GitHubAuth(cfg, nil)(echoUser())

	rec := serve(h, "")
	if rec.Code != http.StatusOK || rec.Body.String() != "dev" {
		t.Errorf("got %d %q, want 200 dev", rec.Code, rec.Body.String())
	}
}

func TestGitHubAuth_VerifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := config.AuthConfig{AllowedUsers: []string{"alice"}}
	h := GitHubAuth(cfg, GitHubVerifier{BaseURL: srv.URL})(echoUser())

	if rec := serve(h, "Bearer good"); rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestTokenCache_Expiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newTokenCache(time.Minute)
	c.now = func() time.Time { return now }

	c.put("tok", "alice")
	if got, ok := c.get("tok"); !ok || got != "alice" {
		t.Fatalf("get = %q, %v", got, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.get("tok"); ok {
		t.Error("expired entry still returned")
	}
}

func TestWithUser(t *testing.T) {
	ctx := WithUser(context.Background(), "alice")
	if got := User(ctx); got != "alice" {
		t.Errorf("User = %q", got)
	}
	if got := User(context.Background()); got != "" {
		t.Errorf("User on empty ctx = %q", got)
	}
}
