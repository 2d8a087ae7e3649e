package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/catalogue/internal/config"
	"github.com/JonMunkholm/catalogue/internal/logging"
)

type userKey struct{}

// User returns the editor login resolved by GitHubAuth, or "".
func User(ctx context.Context) string {
	u, _ := ctx.Value(userKey{}).(string)
	return u
}

// WithUser stores login as the acting editor.
func WithUser(ctx context.Context, login string) context.Context {
	ctx = context.WithValue(ctx, userKey{}, login)
	return logging.WithUser(ctx, login)
}

// Verifier resolves a GitHub token to its login. It returns an empty login
// and no error when GitHub rejects the token.
type Verifier interface {
	Login(ctx context.Context, token string) (string, error)
}

// GitHubVerifier calls the GitHub user API.
type GitHubVerifier struct {
	BaseURL string // default https://api.github.com
	Client  *http.Client
}

// Login implements Verifier.
func (v GitHubVerifier) Login(ctx context.Context, token string) (string, error) {
	base := strings.TrimSuffix(v.BaseURL, "/")
	if base == "" {
		base = "https://api.github.com"
	}
	client := v.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/user", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("github user lookup: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", nil
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("github user lookup: status %d", resp.StatusCode)
	}

	var user struct {
		Login string `json:"login"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("decode github user: %w", err)
	}
	return user.Login, nil
}

// tokenCache remembers verified logins by token hash.
type tokenCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[[32]byte]cachedLogin
	now     func() time.Time
}

type cachedLogin struct {
	login   string
	expires time.Time
}

func newTokenCache(ttl time.Duration) *tokenCache {
	return &tokenCache{ttl: ttl, entries: make(map[[32]byte]cachedLogin), now: time.Now}
}

func (c *tokenCache) get(token string) (string, bool) {
	if c.ttl <= 0 {
		return "", false
	}
	k := sha256.Sum256([]byte(token))

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	if !ok {
		return "", false
	}
	if c.now().After(e.expires) {
		delete(c.entries, k)
		return "", false
	}
	return e.login, true
}

func (c *tokenCache) put(token, login string) {
	if c.ttl <= 0 {
		return
	}
	k := sha256.Sum256([]byte(token))
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, key)
		}
	}
	c.entries[k] = cachedLogin{login: login, expires: now.Add(c.ttl)}
}

var (
	errMissingAuth = errors.New("missing authorization header")
	errNotAllowed  = errors.New("user not allowed to edit")
)

// GitHubAuth returns middleware that resolves the Authorization header to a
// GitHub login and admits only logins on cfg.AllowedUsers (case-insensitive).
// Missing credentials get 401, rejected or unlisted users 403. With
// cfg.Disabled every request acts as cfg.DevUser.
func GitHubAuth(cfg config.AuthConfig, v Verifier) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(cfg.AllowedUsers))
	for _, u := range cfg.AllowedUsers {
		if u = strings.ToLower(strings.TrimSpace(u)); u != "" {
			allowed[u] = true
		}
	}
	cache := newTokenCache(cfg.CacheTTL)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Disabled {
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), cfg.DevUser)))
				return
			}

			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				slog.Warn("auth: missing authorization header",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, http.StatusUnauthorized, errMissingAuth, "AUTH001")
				return
			}

			login, ok := cache.get(token)
			if !ok {
				var err error
				login, err = v.Login(r.Context(), token)
				if err != nil {
					slog.Error("auth: token validation failed", "error", err, "path", r.URL.Path)
				}
				if login != "" && allowed[strings.ToLower(login)] {
					cache.put(token, login)
				}
			}

			if login == "" || !allowed[strings.ToLower(login)] {
				slog.Warn("auth: user not allowed",
					"login", login,
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, http.StatusForbidden, errNotAllowed, "AUTH002")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), login)))
		})
	}
}

// bearerToken strips an optional "Bearer " or "token " scheme.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	for _, scheme := range []string{"Bearer ", "bearer ", "token "} {
		if strings.HasPrefix(header, scheme) {
			return strings.TrimSpace(header[len(scheme):])
		}
	}
	return header
}

func writeAuthError(w http.ResponseWriter, status int, err error, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error(), "code": code})
}
