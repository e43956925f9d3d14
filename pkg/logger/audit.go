package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType string
	AccountID string
	Email     string // Logged masked
	Origin    string
	Decision  string
	Reason    string
	Success   bool
	Metadata  map[string]string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogLoginDecision logs the outcome of a login request
func (al *AuditLogger) LogLoginDecision(event AuditEvent) {
	event.EventType = "login"
	al.log("auth", event)
}

// LogRegistration logs registration outcomes
func (al *AuditLogger) LogRegistration(event AuditEvent) {
	event.EventType = "register"
	al.log("account", event)
}

func (al *AuditLogger) log(auditType string, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", auditType),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.AccountID != "" {
		attrs = append(attrs, slog.String("account_id", event.AccountID))
	}
	if event.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(event.Email)))
	}
	if event.Origin != "" {
		attrs = append(attrs, slog.String("origin", event.Origin))
	}
	if event.Decision != "" {
		attrs = append(attrs, slog.String("decision", event.Decision))
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}

	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	if event.Success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
	}
}
