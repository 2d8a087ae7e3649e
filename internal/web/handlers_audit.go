package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/catalogue/internal/audit"
	"github.com/JonMunkholm/catalogue/internal/core"
	"github.com/JonMunkholm/catalogue/internal/logging"
	"github.com/go-chi/chi/v5/middleware"
)

// AuditReader queries recorded audit entries. *audit.Store implements it.
type AuditReader interface {
	List(ctx context.Context, f audit.Filter) (*audit.Page, error)
	Export(ctx context.Context, w io.Writer, f audit.Filter) error
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseAuditFilter reads action, key, user, from and to (YYYY-MM-DD, both
// inclusive) from the query string.
func parseAuditFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	f := audit.Filter{
		Action:     core.AuditAction(q.Get("action")),
		EditionKey: q.Get("key"),
		User:       q.Get("user"),
	}
	if from := q.Get("from"); from != "" {
		t, err := time.Parse(time.DateOnly, from)
		if err != nil {
			return f, fmt.Errorf("%w: from %q is not a date", core.ErrMalformedInput, from)
		}
		f.Since = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse(time.DateOnly, to)
		if err != nil {
			return f, fmt.Errorf("%w: to %q is not a date", core.ErrMalformedInput, to)
		}
		f.Until = t.AddDate(0, 0, 1)
	}
	return f, nil
}

// handleAuditLog returns one page of audit entries, newest first.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	f, err := parseAuditFilter(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	page := parseIntParam(r, "page", 1)
	f.Limit = parseIntParam(r, "pageSize", audit.DefaultLimit)
	f.Offset = (page - 1) * f.Limit

	result, err := s.auditLog.List(r.Context(), f)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleAuditLogExport downloads the matching audit entries as CSV.
func (s *Server) handleAuditLogExport(w http.ResponseWriter, r *http.Request) {
	f, err := parseAuditFilter(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	filename := fmt.Sprintf("audit_log_%s.csv", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	if err := s.auditLog.Export(r.Context(), ww, f); err != nil {
		if ww.BytesWritten() == 0 {
			s.respondError(w, r, err)
			return
		}
		logging.FromContext(r.Context()).Error("audit export interrupted", "error", err)
	}
}
