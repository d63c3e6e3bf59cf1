package notify

import (
	"context"
	"sync"

	"github.com/ObiAU/airwatch/internal/logging"
	"github.com/ObiAU/airwatch/internal/models"
)

// LogNotifier writes notifications to the log instead of delivering
// them. It keeps everything it saw for later inspection.
type LogNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (l *LogNotifier) Notify(ctx context.Context, n models.Notification) {
	l.mu.Lock()
	l.sent = append(l.sent, n)
	l.mu.Unlock()

	logging.From(ctx).Info("notification",
		"kind", n.Kind.String(),
		"region", n.Region,
		"urgent", n.Urgent,
		"body", n.Body)
}

func (l *LogNotifier) Sent() []models.Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Notification, len(l.sent))
	copy(out, l.sent)
	return out
}
