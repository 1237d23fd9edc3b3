package application

import (
	"context"
	"sync"
	"time"

	"consent-console/internal/domain"
	"consent-console/internal/ports"
)

type SessionsConfig struct {
	API      ports.ApplicationsAPI
	Localize func(locale string) ports.Localizer
	NewQueue func() ports.AlertQueue
	// Shared receives every alert of every session in addition to the
	// session's own queue. Optional.
	Shared ports.AlertSink
	Logger ports.Logger
}

// SessionKey identifies a mounted view. Credential is empty for identities
// that were verified before reaching the console; otherwise it binds the
// session to the token the caller presented.
type SessionKey struct {
	UserID     string
	Credential string
}

// Session is one user's mounted Applications view.
type Session struct {
	Key    SessionKey
	UserID string
	View   *ApplicationsView
	Alerts ports.AlertQueue

	notify   *Notifier
	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Sessions keeps one view per user for the lifetime of root.
type Sessions struct {
	root context.Context
	cfg  SessionsConfig
	now  func() time.Time

	mu       sync.Mutex
	sessions map[SessionKey]*Session
}

func NewSessions(root context.Context, cfg SessionsConfig) *Sessions {
	return &Sessions{root: root, cfg: cfg, now: time.Now, sessions: map[SessionKey]*Session{}}
}

// Open returns the session for key, mounting a new view on first use. The
// session's environment is replaced with env so the latest credentials and
// locale are used for subsequent calls and alerts.
func (s *Sessions) Open(key SessionKey, env domain.Environment) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[key]; ok {
		sess.View.SetEnvironment(env)
		sess.notify.SetTranslator(s.cfg.Localize(env.Locale))
		sess.touch(s.now())
		return sess
	}
	userID := key.UserID
	queue := s.cfg.NewQueue()
	var sink ports.AlertSink = queue
	if s.cfg.Shared != nil {
		sink = teeSink{queue, s.cfg.Shared}
	}
	notifier := NewNotifier(sink, s.cfg.Localize(env.Locale), userID)
	sess := &Session{
		Key:    key,
		UserID: userID,
		View:   NewApplicationsView(s.cfg.API, env, notifier, s.cfg.Logger),
		Alerts: queue,
		notify: notifier,
	}
	sess.touch(s.now())
	sess.View.Activate(s.root)
	s.sessions[key] = sess
	s.cfg.Logger.Debug(s.root, "applications view mounted", "user_id", userID)
	return sess
}

func (s *Sessions) Get(key SessionKey) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if ok {
		sess.touch(s.now())
	}
	return sess, ok
}

// Close unmounts the view of key. It reports whether a session existed.
func (s *Sessions) Close(key SessionKey) bool {
	s.mu.Lock()
	sess, ok := s.sessions[key]
	delete(s.sessions, key)
	s.mu.Unlock()
	if ok {
		sess.View.Deactivate()
	}
	return ok
}

// Sweep closes sessions that have not been used for longer than idle and
// returns how many were closed.
func (s *Sessions) Sweep(idle time.Duration) int {
	cutoff := s.now().Add(-idle)
	s.mu.Lock()
	var stale []*Session
	for id, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) {
			stale = append(stale, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()
	for _, sess := range stale {
		sess.View.Deactivate()
	}
	return len(stale)
}

func (s *Sessions) CloseAll() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = map[SessionKey]*Session{}
	s.mu.Unlock()
	for _, sess := range all {
		sess.View.Deactivate()
	}
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

type teeSink []ports.AlertSink

func (t teeSink) Add(ctx context.Context, alert domain.Alert) {
	for _, s := range t {
		s.Add(ctx, alert)
	}
}
