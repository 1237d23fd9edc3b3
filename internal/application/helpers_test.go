package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"consent-console/internal/domain"
	"consent-console/internal/ports"
	"github.com/stretchr/testify/mock"
)

type fetchResult struct {
	clients []domain.Client
	err     error
}

type fetchCall struct {
	ctx  context.Context
	env  domain.Environment
	resp chan fetchResult
}

// fakeAPI hands every fetch to the test, which decides when and how it
// resolves. Responses are delivered even after cancellation so that stale
// results actually reach the view.
type fakeAPI struct {
	fetches chan *fetchCall

	mu        sync.Mutex
	deletes   []string
	deleteErr error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{fetches: make(chan *fetchCall, 16)}
}

func (f *fakeAPI) FetchApplications(ctx context.Context, env domain.Environment) ([]domain.Client, error) {
	call := &fetchCall{ctx: ctx, env: env, resp: make(chan fetchResult, 1)}
	f.fetches <- call
	r := <-call.resp
	return r.clients, r.err
}

func (f *fakeAPI) DeleteConsent(_ context.Context, _ domain.Environment, clientID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, clientID)
	return f.deleteErr
}

func (f *fakeAPI) deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletes...)
}

func nextFetch(t *testing.T, api *fakeAPI) *fetchCall {
	t.Helper()
	select {
	case call := <-api.fetches:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("expected a fetch to be issued")
		return nil
	}
}

type sinkMock struct{ mock.Mock }

func (m *sinkMock) Add(ctx context.Context, alert domain.Alert) {
	m.Called(ctx, alert)
}

type recordingSink struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func (r *recordingSink) Add(_ context.Context, alert domain.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
}

func (r *recordingSink) Drain() []domain.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.alerts
	r.alerts = nil
	return out
}

func (r *recordingSink) snapshot() []domain.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Alert(nil), r.alerts...)
}

var _ ports.AlertQueue = (*recordingSink)(nil)

type stubLocalizer struct{}

func (stubLocalizer) T(key string, params map[string]string) string {
	if len(params) == 0 {
		return key
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return fmt.Sprintf("%s(%s)", key, strings.Join(parts, ","))
}

func (stubLocalizer) FormatDate(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func (stubLocalizer) Locale() string { return "en" }

type spyLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *spyLogger) record(msg string) {
	l.mu.Lock()
	l.msgs = append(l.msgs, msg)
	l.mu.Unlock()
}

func (l *spyLogger) Info(_ context.Context, msg string, _ ...any)  { l.record(msg) }
func (l *spyLogger) Error(_ context.Context, msg string, _ ...any) { l.record(msg) }
func (l *spyLogger) Warn(_ context.Context, msg string, _ ...any)  { l.record(msg) }
func (l *spyLogger) Debug(_ context.Context, msg string, _ ...any) { l.record(msg) }

func (l *spyLogger) count(msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, m := range l.msgs {
		if m == msg {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, v *ApplicationsView, cond func(ViewState) bool) ViewState {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		ch := v.Changed()
		s := v.State()
		if cond(s) {
			return s
		}
		select {
		case <-ch:
		case <-deadline:
			t.Fatalf("condition not reached, last state: %+v", s)
		}
	}
}

func loaded(s ViewState) bool { return s.Loaded && s.Settled }

func appOne() domain.Client {
	return domain.Client{
		ClientID:   "app1",
		ClientName: "App One",
		Consent: &domain.Consent{
			CreatedDate:   domain.TimestampFromMillis(1700000000000),
			GrantedScopes: []domain.Scope{{ID: "s1", Name: "profile"}},
		},
	}
}
