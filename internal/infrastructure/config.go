// Package infrastructure loads the process configuration.
package infrastructure

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	adaptermiddleware "consent-console/internal/adapters/http/middleware"
	adapterlogger "consent-console/internal/adapters/logger"
)

type Config struct {
	AccountBaseURL string
	Realm          string
	DefaultLocale  string
	DisplayTZ      *time.Location

	AuthMode      adaptermiddleware.Mode
	StaticUserID  string
	StaticToken   string
	Port          string
	LogLevel      slog.Level
	LogFormat     string
	XRayEnabled   bool
	XRaySegment   string
	AlertsTable   string
	Region        string
	AlertTTL      time.Duration
	AlertQueueCap int

	RequestTimeout      time.Duration
	ShutdownGracePeriod time.Duration
	SessionIdleTimeout  time.Duration
}

// HistoryEnabled reports whether alerts are persisted to DynamoDB.
func (c Config) HistoryEnabled() bool {
	return c.AlertsTable != "" && c.Region != ""
}

// LoadConfig reads the environment. Every problem found is reported in the
// returned error.
func LoadConfig() (Config, error) {
	var errs []error
	cfg := Config{
		AccountBaseURL: strings.TrimRight(os.Getenv("ACCOUNT_BASE_URL"), "/"),
		Realm:          getEnvOrDefault("ACCOUNT_REALM", "master"),
		DefaultLocale:  getEnvOrDefault("DEFAULT_LOCALE", "en"),
		StaticUserID:   getEnvOrDefault("STATIC_USER_ID", "local"),
		StaticToken:    os.Getenv("STATIC_ACCESS_TOKEN"),
		Port:           getEnvOrDefault("PORT", "8080"),
		LogFormat:      strings.ToLower(getEnvOrDefault("LOG_FORMAT", "json")),
		XRaySegment:    getEnvOrDefault("XRAY_SEGMENT_NAME", "consent-console"),
		AlertsTable:    os.Getenv("ALERTS_TABLE"),
		Region:         os.Getenv("AWS_REGION"),
	}

	if cfg.AccountBaseURL == "" {
		errs = append(errs, errors.New("ACCOUNT_BASE_URL is required"))
	} else if u, err := url.Parse(cfg.AccountBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("ACCOUNT_BASE_URL %q is not an absolute url", cfg.AccountBaseURL))
	}

	tz := getEnvOrDefault("DISPLAY_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		errs = append(errs, fmt.Errorf("DISPLAY_TIMEZONE: %w", err))
	}
	cfg.DisplayTZ = loc

	mode, err := adaptermiddleware.ParseAuthMode(os.Getenv("AUTH_MODE"))
	if err != nil {
		errs = append(errs, fmt.Errorf("AUTH_MODE: %w", err))
	}
	cfg.AuthMode = mode
	if mode == adaptermiddleware.ModeNone && cfg.StaticToken == "" {
		errs = append(errs, errors.New("STATIC_ACCESS_TOKEN is required when AUTH_MODE=none"))
	}

	if cfg.LogLevel, err = adapterlogger.ParseLevel(getEnvOrDefault("LOG_LEVEL", "info")); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", cfg.LogFormat))
	}

	cfg.XRayEnabled, err = getEnvBool("XRAY_ENABLED", false)
	errs = appendErr(errs, err)
	cfg.AlertQueueCap, err = getEnvInt("ALERT_QUEUE_SIZE", 50)
	errs = appendErr(errs, err)
	cfg.AlertTTL, err = getEnvDuration("ALERT_RETENTION", 30*24*time.Hour)
	errs = appendErr(errs, err)
	cfg.RequestTimeout, err = getEnvDuration("REQUEST_TIMEOUT", 20*time.Second)
	errs = appendErr(errs, err)
	cfg.ShutdownGracePeriod, err = getEnvDuration("SHUTDOWN_GRACE_PERIOD", 10*time.Second)
	errs = appendErr(errs, err)
	cfg.SessionIdleTimeout, err = getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute)
	errs = appendErr(errs, err)

	if cfg.AlertsTable != "" && cfg.Region == "" {
		errs = append(errs, errors.New("AWS_REGION is required when ALERTS_TABLE is set"))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getEnvOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def, fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	return d, nil
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

func appendErr(errs []error, err error) []error {
	if err != nil {
		return append(errs, err)
	}
	return errs
}
