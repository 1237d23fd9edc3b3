package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"consent-console/internal/domain"
	"consent-console/internal/ports"
	"github.com/google/uuid"
)

// Notifier turns view outcomes into user-facing alerts.
type Notifier struct {
	sink   ports.AlertSink
	userID string
	now    func() time.Time

	mu sync.Mutex
	t  ports.Translator
}

func NewNotifier(sink ports.AlertSink, t ports.Translator, userID string) *Notifier {
	return &Notifier{sink: sink, t: t, userID: userID, now: time.Now}
}

func (n *Notifier) AddAlert(ctx context.Context, message string) {
	n.sink.Add(ctx, domain.Alert{
		ID:        uuid.NewString(),
		UserID:    n.userID,
		Variant:   domain.AlertSuccess,
		Message:   message,
		CreatedAt: n.now().UTC(),
	})
}

// SetTranslator switches the language of subsequent alerts.
func (n *Notifier) SetTranslator(t ports.Translator) {
	n.mu.Lock()
	n.t = t
	n.mu.Unlock()
}

func (n *Notifier) translator() ports.Translator {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.t
}

// T translates a message key without parameters.
func (n *Notifier) T(key string) string {
	return n.translator().T(key, nil)
}

// AddError reports err under the message key, rendered as t(key, {error}).
func (n *Notifier) AddError(ctx context.Context, key string, err error) {
	detail := errorMessage(err)
	n.sink.Add(ctx, domain.Alert{
		ID:        uuid.NewString(),
		UserID:    n.userID,
		Variant:   domain.AlertDanger,
		Key:       key,
		Message:   n.translator().T(key, map[string]string{"error": detail}),
		Detail:    detail,
		CreatedAt: n.now().UTC(),
	})
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	var described interface{ Description() string }
	if errors.As(err, &described) && described.Description() != "" {
		return described.Description()
	}
	return err.Error()
}
