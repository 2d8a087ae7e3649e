package audit

import (
	"context"
	"encoding/csv"
	"io"
	"strings"
	"time"

	"github.com/JonMunkholm/catalogue/internal/core"
)

var exportHeader = []string{
	"id", "created_at", "action", "severity", "edition_key",
	"user", "ip_address", "user_agent", "tables", "detail",
}

// Export writes the entries matching f to w as CSV, newest first. At most
// MaxLimit entries are written.
func (s *Store) Export(ctx context.Context, w io.Writer, f Filter) error {
	f.Limit = MaxLimit
	f.Offset = 0
	page, err := s.List(ctx, f)
	if err != nil {
		return err
	}
	return writeCSV(w, page.Entries)
}

func writeCSV(w io.Writer, entries []core.AuditEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write([]string{
			e.ID,
			e.CreatedAt.UTC().Format(time.RFC3339),
			string(e.Action),
			string(e.Severity),
			e.EditionKey,
			e.User,
			e.IPAddress,
			e.UserAgent,
			strings.Join(e.Tables, ";"),
			e.Detail,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
