package service

import (
	"log/slog"

	"github.com/webitel/im-tag-router/internal/domain/model"
)

// AuthMiddleware implements [DECORATOR_PATTERN] to log authorization
// decisions without touching the gate. Secrets are never logged.
type AuthMiddleware struct {
	Next   Auther
	Logger *slog.Logger
}

// NewAuthMiddleware creates a new logging decorator for the Auther.
func NewAuthMiddleware(next Auther, logger *slog.Logger) Auther {
	return &AuthMiddleware{
		Next:   next,
		Logger: logger,
	}
}

func (m *AuthMiddleware) AuthorizeOpen(conn model.Connector) bool {
	ok := m.Next.AuthorizeOpen(conn)

	attrs := []any{"granted", ok}
	if conn != nil {
		attrs = append(attrs, "conn_id", conn.GetID(), "key", conn.Query().Get(QueryKey))
	}

	if ok {
		m.Logger.Debug("AUTH_OPEN_DECISION", attrs...)
	} else {
		m.Logger.Warn("AUTH_OPEN_DENIED", attrs...)
	}
	return ok
}

func (m *AuthMiddleware) AuthorizeSend(conn model.Connector, req *model.Request) bool {
	ok := m.Next.AuthorizeSend(conn, req)

	key, _, _ := req.Credentials()
	attrs := []any{"granted", ok, "key", key}
	if conn != nil {
		attrs = append(attrs, "conn_id", conn.GetID())
	}

	if ok {
		m.Logger.Debug("AUTH_SEND_DECISION", attrs...)
	} else {
		m.Logger.Warn("AUTH_SEND_DENIED", attrs...)
	}
	return ok
}
