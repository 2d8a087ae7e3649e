package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/catalogue/internal/core"
	"github.com/JonMunkholm/catalogue/internal/images"
	"github.com/JonMunkholm/catalogue/internal/logging"
	"github.com/JonMunkholm/catalogue/internal/web/middleware"
)

// multipartOverhead is allowed on top of the image size limit for the form
// boundaries and the key and type fields.
const multipartOverhead = 64 << 10

// handleUploadImage stores a title page or frontispiece scan sent as
// multipart fields "file", "key" and "type".
func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.limiter.Acquire(ctx); err != nil {
		w.Header().Set("Retry-After", "5")
		s.respondError(w, r, err)
		return
	}
	defer s.limiter.Release()

	maxSize := s.cfg.Images.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if !errors.As(err, &tooLarge) {
			err = fmt.Errorf("%w: %v", core.ErrMalformedInput, err)
		}
		s.respondError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w \"file\"", images.ErrMissingField))
		return
	}
	defer file.Close()

	if header.Size > maxSize {
		s.respondError(w, r, &http.MaxBytesError{Limit: maxSize})
		return
	}

	key := r.FormValue("key")
	kind := r.FormValue("type")
	filename, err := images.Filename(key, kind, header.Filename)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	stored, err := s.images.Put(ctx, filename, file, header.Header.Get("Content-Type"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.service.LogAudit(ctx, core.AuditLogParams{
		Action:     core.ActionImageUpload,
		EditionKey: key,
		User:       middleware.User(ctx),
		Detail:     stored.Path,
	})
	logging.WithFields(ctx, "key", key, "filename", stored.Filename, "driver", s.images.Driver()).
		Info("image stored", "bytes", header.Size)

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"filename": stored.Filename,
		"path":     stored.Path,
	})
}
