// Package images stores title page and frontispiece scans uploaded from the
// catalogue editor.
//
// Uploads are named "<key>_<type>.<ext>" and written either to a local
// directory served under /tps/ or to an S3-compatible bucket. Both drivers
// overwrite an existing image of the same name.
package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/catalogue/internal/core"
)

// DefaultExtension is used when the uploaded file name has none.
const DefaultExtension = "png"

// ErrMissingField is returned when the key or type of an upload is empty.
var ErrMissingField = errors.New("missing upload field")

// Drivers.
const (
	DriverFS = "fs"
	DriverS3 = "s3"
)

// Stored describes a saved image.
type Stored struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

// Store saves images under a file name.
type Store interface {
	Driver() string
	Put(ctx context.Context, filename string, r io.Reader, contentType string) (Stored, error)
}

// Filename returns the stored name for an upload of type kind for edition
// key. The extension comes from uploadName, lower-cased.
func Filename(key, kind, uploadName string) (string, error) {
	if err := checkPart("key", key); err != nil {
		return "", err
	}
	if err := checkPart("type", kind); err != nil {
		return "", err
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(uploadName), "."))
	if ext == "" || strings.ContainsAny(ext, `/\`) {
		ext = DefaultExtension
	}
	return key + "_" + kind + "." + ext, nil
}

// checkPart rejects values that would escape the image directory.
func checkPart(name, v string) error {
	if v == "" {
		return fmt.Errorf("%w %q", ErrMissingField, name)
	}
	if strings.ContainsAny(v, `/\`) || v == "." || v == ".." {
		return fmt.Errorf("%w: %s %q", core.ErrMalformedInput, name, v)
	}
	return nil
}

func joinURL(prefix, filename string) string {
	if prefix == "" {
		return filename
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + filename
}
