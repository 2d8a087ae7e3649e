package core

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionEditionUpsert AuditAction = "edition_upsert"
	ActionEditionDelete AuditAction = "edition_delete"
	ActionNotesUpdate   AuditAction = "notes_update"
	ActionImageUpload   AuditAction = "image_upload"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// AuditEntry is one recorded catalogue mutation.
type AuditEntry struct {
	ID         string        `json:"id"`
	Action     AuditAction   `json:"action"`
	Severity   AuditSeverity `json:"severity"`
	EditionKey string        `json:"editionKey"`
	User       string        `json:"user,omitempty"`
	IPAddress  string        `json:"ipAddress,omitempty"`
	UserAgent  string        `json:"userAgent,omitempty"`
	Tables     []string      `json:"tables,omitempty"`
	Detail     string        `json:"detail,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// AuditSink stores audit entries.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// AuditLogParams contains parameters for creating an audit entry.
type AuditLogParams struct {
	Action     AuditAction
	EditionKey string
	User       string
	Tables     []string
	Detail     string
}

func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionEditionDelete:
		return SeverityHigh
	case ActionImageUpload:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// LogAudit records an entry through the service's sink. Client IP and
// User-Agent come from ctx. A sink failure is logged and never returned, so
// auditing cannot fail a mutation that already committed.
func (s *Service) LogAudit(ctx context.Context, params AuditLogParams) AuditEntry {
	entry := AuditEntry{
		ID:         uuid.NewString(),
		Action:     params.Action,
		Severity:   determineSeverity(params.Action),
		EditionKey: params.EditionKey,
		User:       params.User,
		IPAddress:  IPAddressFromContext(ctx),
		UserAgent:  UserAgentFromContext(ctx),
		Tables:     params.Tables,
		Detail:     params.Detail,
		CreatedAt:  s.now().UTC(),
	}

	if err := s.audit.Record(ctx, entry); err != nil {
		slog.Error("audit record failed",
			"audit_id", entry.ID,
			"action", entry.Action,
			"key", entry.EditionKey,
			"error", err,
		)
	}
	return entry
}

// LogAuditSink writes entries to the structured log.
type LogAuditSink struct {
	Logger *slog.Logger // nil uses slog.Default()
}

// Record implements AuditSink.
func (l LogAuditSink) Record(ctx context.Context, e AuditEntry) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "audit",
		"audit_id", e.ID,
		"action", e.Action,
		"severity", e.Severity,
		"key", e.EditionKey,
		"user", e.User,
		"ip", e.IPAddress,
		"tables", e.Tables,
	)
	return nil
}

// MultiAuditSink records to every sink and joins their errors.
type MultiAuditSink []AuditSink

// Record implements AuditSink.
func (m MultiAuditSink) Record(ctx context.Context, e AuditEntry) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
