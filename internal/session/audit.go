package session

import (
	"context"

	"github.com/google/uuid"

	otlpaudit "github.com/openkcm/common-sdk/pkg/otlp/audit"
	slogctx "github.com/veqryn/slog-context"
)

const auditInitiator = "auth relay"

func (m *Manager) newAuditMetadata(ctx context.Context) (otlpaudit.EventMetadata, bool) {
	metadata, err := otlpaudit.NewEventMetadata(auditInitiator, m.oauth.ClientID, uuid.NewString())
	if err != nil {
		slogctx.Error(ctx, "creating audit metadata", "error", err)
		return otlpaudit.EventMetadata{}, false
	}

	return metadata, true
}

// sendLoginSuccessAudit creates the user-login-success audit event and sends it.
func (m *Manager) sendLoginSuccessAudit(ctx context.Context, sessionID string) {
	if m.audit == nil {
		return
	}

	metadata, ok := m.newAuditMetadata(ctx)
	if !ok {
		return
	}

	objectID := fingerprint(sessionID)
	event, err := otlpaudit.NewUserLoginSuccessEvent(metadata, objectID, otlpaudit.LOGINMETHOD_OPENIDCONNECT, otlpaudit.MFATYPE_NONE, otlpaudit.USERTYPE_BUSINESS, objectID)
	if err != nil {
		slogctx.Error(ctx, "creating audit log", "error", err)
		return
	}

	if err := m.audit.SendEvent(ctx, event); err != nil {
		slogctx.Error(ctx, "Failed to send audit log for user login success", "error", err)
		return
	}
	slogctx.Debug(ctx, "sent audit log for user login success")
}

// sendLoginFailureAudit creates the user-login-failure audit event and sends it.
// Errors are logged and not propagated to the caller.
func (m *Manager) sendLoginFailureAudit(ctx context.Context, sessionID, reason string) {
	if m.audit == nil {
		return
	}

	metadata, ok := m.newAuditMetadata(ctx)
	if !ok {
		return
	}

	objectID := fingerprint(sessionID)
	event, err := otlpaudit.NewUserLoginFailureEvent(metadata, objectID, otlpaudit.LOGINMETHOD_OPENIDCONNECT, otlpaudit.FailReason(reason), objectID)
	if err != nil {
		slogctx.Error(ctx, "creating audit log", "error", err)
		return
	}

	if err := m.audit.SendEvent(ctx, event); err != nil {
		slogctx.Error(ctx, "Failed to send audit log for user login failure", "error", err)
		return
	}
	slogctx.Debug(ctx, "sent audit log for user login failure")
}
