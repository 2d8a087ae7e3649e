// Package audit stores catalogue audit entries in Postgres.
//
// The store implements core.AuditSink, so the service records every
// successful mutation through it. Entries can be listed with filters,
// exported as CSV and purged once they pass the retention period.
package audit

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/JonMunkholm/catalogue/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	id          UUID PRIMARY KEY,
	action      TEXT NOT NULL,
	severity    TEXT NOT NULL,
	edition_key TEXT NOT NULL DEFAULT '',
	user_name   TEXT,
	ip_address  INET,
	user_agent  TEXT,
	tables      TEXT[] NOT NULL DEFAULT '{}',
	detail      TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS audit_log_created_at_idx ON audit_log (created_at DESC);
CREATE INDEX IF NOT EXISTS audit_log_edition_key_idx ON audit_log (edition_key);
`

// DefaultLimit is the page size used when a filter does not set one.
const DefaultLimit = 50

// MaxLimit caps a single page, including CSV export.
const MaxLimit = 10000

// Store is a Postgres-backed audit log.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to the database at url and creates the audit_log table if
// it does not exist.
func Open(ctx context.Context, url string, maxConns int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse audit database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect audit database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}

	s := New(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool. The caller owns the pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the audit_log table and its indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create audit_log: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Record implements core.AuditSink.
func (s *Store) Record(ctx context.Context, e core.AuditEntry) error {
	id, err := toPgUUID(e.ID)
	if err != nil {
		return err
	}
	tables := e.Tables
	if tables == nil {
		tables = []string{}
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_log
			(id, action, severity, edition_key, user_name, ip_address, user_agent, tables, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id,
		string(e.Action),
		string(e.Severity),
		e.EditionKey,
		toPgText(e.User),
		parseIP(e.IPAddress),
		toPgText(e.UserAgent),
		tables,
		toPgText(e.Detail),
		created,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry %s: %w", e.ID, err)
	}
	return nil
}

// Filter selects audit entries. Zero fields do not filter.
type Filter struct {
	Action     core.AuditAction
	EditionKey string
	User       string
	Since      time.Time
	Until      time.Time
	Limit      int
	Offset     int
}

// Page is one page of audit entries, newest first.
type Page struct {
	Entries    []core.AuditEntry `json:"entries"`
	TotalCount int64             `json:"totalCount"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	TotalPages int               `json:"totalPages"`
}

func (f Filter) where() (string, []any) {
	wb := newWhereBuilder()
	wb.eq("action", string(f.Action))
	wb.eq("edition_key", f.EditionKey)
	wb.eq("user_name", f.User)
	wb.timeRange("created_at", f.Since, f.Until)
	return wb.build()
}

func (f Filter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultLimit
	case f.Limit > MaxLimit:
		return MaxLimit
	default:
		return f.Limit
	}
}

// List returns the entries matching f.
func (s *Store) List(ctx context.Context, f Filter) (*Page, error) {
	limit := f.limit()
	offset := max(f.Offset, 0)
	where, args := f.where()

	var total int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_log"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count audit entries: %w", err)
	}

	query := fmt.Sprintf(`SELECT id, action, severity, edition_key, user_name, ip_address,
		user_agent, tables, detail, created_at
		FROM audit_log%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	rows, err := s.pool.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]core.AuditEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	if totalPages < 1 {
		totalPages = 1
	}
	return &Page{
		Entries:    entries,
		TotalCount: total,
		Page:       offset/limit + 1,
		PageSize:   limit,
		TotalPages: totalPages,
	}, nil
}

// Purge deletes entries created before cutoff and returns how many were removed.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM audit_log WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge audit entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanEntry(rows pgx.Rows) (core.AuditEntry, error) {
	var (
		id        pgtype.UUID
		action    string
		severity  string
		key       string
		user      pgtype.Text
		ip        *netip.Addr
		userAgent pgtype.Text
		tables    []string
		detail    pgtype.Text
		created   time.Time
	)
	if err := rows.Scan(&id, &action, &severity, &key, &user, &ip, &userAgent, &tables, &detail, &created); err != nil {
		return core.AuditEntry{}, fmt.Errorf("scan audit entry: %w", err)
	}

	e := core.AuditEntry{
		Action:     core.AuditAction(action),
		Severity:   core.AuditSeverity(severity),
		EditionKey: key,
		User:       user.String,
		UserAgent:  userAgent.String,
		Tables:     tables,
		Detail:     detail.String,
		CreatedAt:  created.UTC(),
	}
	if id.Valid {
		e.ID = uuid.UUID(id.Bytes).String()
	}
	if ip != nil {
		e.IPAddress = ip.String()
	}
	return e, nil
}

func toPgUUID(s string) (pgtype.UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("audit entry id %q: %w", s, err)
	}
	return pgtype.UUID{Bytes: u, Valid: true}, nil
}

func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// parseIP strips a port if present. Unparseable addresses are stored as NULL.
func parseIP(s string) *netip.Addr {
	if s == "" {
		return nil
	}
	host := s
	if h, _, err := net.SplitHostPort(s); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	return &addr
}
