package web

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/catalogue/internal/core"
	"github.com/JonMunkholm/catalogue/internal/logging"
	"github.com/JonMunkholm/catalogue/internal/web/middleware"
	"github.com/go-chi/chi/v5"
)

// maxJSONBody bounds edition and notes request bodies.
const maxJSONBody = 1 << 20

// handleGetEdition returns the edition recomposed from the catalogue tables.
func (s *Server) handleGetEdition(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	e, err := s.service.LoadEdition(r.Context(), key)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fromEdition(e))
}

// handleUpsertEdition creates or updates an edition and answers 201 either
// way. An empty key creates a new edition under a generated key.
func (s *Server) handleUpsertEdition(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	var body editionWire
	if err := decodeJSON(r, &body); err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := r.Context()
	key, err := s.service.UpsertEdition(ctx, body.toEdition(), middleware.User(ctx))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "key": key})
}

// handleDeleteEdition removes an edition from every table. The key comes
// from the path or, for DELETE /api/edition, from a {"key": ...} body.
func (s *Server) handleDeleteEdition(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		var body struct {
			Key string `json:"key"`
		}
		if err := decodeJSON(r, &body); err != nil {
			s.respondError(w, r, err)
			return
		}
		key = strings.TrimSpace(body.Key)
	}
	if key == "" {
		s.respondError(w, r, fmt.Errorf("%w: key is required", core.ErrMalformedInput))
		return
	}

	ctx := r.Context()
	removed, err := s.service.DeleteEdition(ctx, key, middleware.User(ctx))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "key": key, "removed": removed})
}

// handleUpdateNotes sets the notes of a print edition. The key comes from
// the path or the body.
func (s *Server) handleUpdateNotes(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	var body struct {
		Key  string `json:"key"`
		Note string `json:"note"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.respondError(w, r, err)
		return
	}

	key := chi.URLParam(r, "key")
	if key == "" {
		key = strings.TrimSpace(body.Key)
	}
	if key == "" {
		s.respondError(w, r, fmt.Errorf("%w: key is required", core.ErrMalformedInput))
		return
	}

	ctx := r.Context()
	if err := s.service.UpdateNotes(ctx, key, body.Note, middleware.User(ctx)); err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(ctx).Debug("notes saved", "key", key, "length", len(body.Note))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "key": key, "note": body.Note})
}
