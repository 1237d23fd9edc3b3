package ports

import (
	"context"
	"time"

	"consent-console/internal/domain"
)

type ApplicationsAPI interface {
	FetchApplications(ctx context.Context, env domain.Environment) ([]domain.Client, error)
	DeleteConsent(ctx context.Context, env domain.Environment, clientID string) error
}

type Translator interface {
	T(key string, params map[string]string) string
}

type DateFormatter interface {
	FormatDate(t time.Time) string
}

// Localizer is a translator and date formatter bound to one locale.
type Localizer interface {
	Translator
	DateFormatter
	Locale() string
}

type AlertSink interface {
	Add(ctx context.Context, alert domain.Alert)
}

type AlertHistory interface {
	ListRecent(ctx context.Context, userID string, limit int) ([]domain.Alert, error)
}

type Logger interface {
	Info(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Debug(ctx context.Context, msg string, args ...any)
}

// AlertQueue buffers alerts until a client collects them.
type AlertQueue interface {
	AlertSink
	Drain() []domain.Alert
}
