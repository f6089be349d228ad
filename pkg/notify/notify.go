package notify

import (
	"context"

	"github.com/kopakredit/custimport/pkg/logger"
)

// Notifier is the sink for operator-facing toast notifications. Calls
// are fire-and-forget: implementations must return quickly and must
// not fail the operation that triggered them.
type Notifier interface {
	Success(ctx context.Context, msg string)
	Error(ctx context.Context, msg string)
}

// SlogNotifier writes notifications to the structured log. The
// dashboard picks toasts up from the HTTP response; the log copy is
// for operations.
type SlogNotifier struct{}

// NewSlogNotifier returns a log-backed notifier.
func NewSlogNotifier() *SlogNotifier {
	return &SlogNotifier{}
}

func (n *SlogNotifier) Success(ctx context.Context, msg string) {
	logger.Info(ctx, "notification", "kind", "success", "message", msg)
}

func (n *SlogNotifier) Error(ctx context.Context, msg string) {
	logger.Warn(ctx, "notification", "kind", "error", "message", msg)
}
