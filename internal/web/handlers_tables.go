package web

import (
	"fmt"
	"net/http"

	"github.com/JonMunkholm/catalogue/internal/core"
	"github.com/JonMunkholm/catalogue/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// handleListTables returns the registered catalogue tables by group.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ListTablesByGroup())
}

// handleExportTable streams the raw CSV file of one table.
func (s *Server) handleExportTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	def, ok := core.Get(table)
	if !ok {
		s.respondError(w, r, fmt.Errorf("%w: %s", core.ErrUnknownTable, table))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, def.Info.File))

	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	if err := s.service.Store().Export(r.Context(), table, ww); err != nil {
		if ww.BytesWritten() == 0 {
			s.respondError(w, r, err)
			return
		}
		// Headers are gone; the client sees a truncated file.
		logging.FromContext(r.Context()).Error("table export interrupted", "table", table, "error", err)
	}
}
