// Package alerts holds the sinks that receive user-facing alerts.
package alerts

import (
	"context"
	"sync"

	"consent-console/internal/domain"
	"consent-console/internal/ports"
	"github.com/google/uuid"
)

const DefaultQueueSize = 50

// Queue buffers a session's alerts until the client drains them. When full,
// the oldest alert is dropped.
type Queue struct {
	mu     sync.Mutex
	size   int
	alerts []domain.Alert
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{size: size}
}

var _ ports.AlertQueue = (*Queue)(nil)

func (q *Queue) Add(_ context.Context, alert domain.Alert) {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.alerts) == q.size {
		copy(q.alerts, q.alerts[1:])
		q.alerts = q.alerts[:q.size-1]
	}
	q.alerts = append(q.alerts, alert)
}

// Drain returns the buffered alerts oldest first and empties the queue.
func (q *Queue) Drain() []domain.Alert {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.alerts
	q.alerts = nil
	if out == nil {
		out = []domain.Alert{}
	}
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.alerts)
}

// LogSink writes alerts to the structured log.
type LogSink struct {
	Logger ports.Logger
}

func (s LogSink) Add(ctx context.Context, alert domain.Alert) {
	args := []any{"alert_id", alert.ID, "user_id", alert.UserID, "variant", string(alert.Variant)}
	if alert.Key != "" {
		args = append(args, "key", alert.Key)
	}
	if alert.Variant == domain.AlertDanger {
		s.Logger.Warn(ctx, alert.Message, append(args, "detail", alert.Detail)...)
		return
	}
	s.Logger.Info(ctx, alert.Message, args...)
}

// Saver persists an alert.
type Saver interface {
	Save(ctx context.Context, alert domain.Alert) error
}

// Persist stores alerts through a Saver. Alerts are fire-and-forget, so a
// failed write is logged and dropped.
type Persist struct {
	Saver  Saver
	Logger ports.Logger
}

func (p Persist) Add(ctx context.Context, alert domain.Alert) {
	if err := p.Saver.Save(context.WithoutCancel(ctx), alert); err != nil {
		p.Logger.Error(ctx, "failed to persist alert", "alert_id", alert.ID, "user_id", alert.UserID, "error", err)
	}
}

// Fanout delivers every alert to each sink in order.
type Fanout []ports.AlertSink

func (f Fanout) Add(ctx context.Context, alert domain.Alert) {
	for _, s := range f {
		s.Add(ctx, alert)
	}
}
