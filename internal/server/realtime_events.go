package server

import (
	"context"
	"log/slog"

	"postbook/internal/middleware"
)

// Events are published after the write committed. A failed publish is logged
// and never fails the request.
func (s *Server) publishAccountEvent(ctx context.Context, accountID uint, eventType string, payload map[string]any) {
	if !s.notifier.Enabled() {
		return
	}
	if err := s.notifier.PublishAccountEvent(ctx, accountID, eventType, payload); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish event",
			slog.String("type", eventType),
			slog.Uint64("account_id", uint64(accountID)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Server) publishBroadcastEvent(ctx context.Context, eventType string, payload map[string]any) {
	if !s.notifier.Enabled() {
		return
	}
	if err := s.notifier.PublishBroadcast(ctx, eventType, payload); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish broadcast event",
			slog.String("type", eventType),
			slog.String("error", err.Error()),
		)
	}
}
