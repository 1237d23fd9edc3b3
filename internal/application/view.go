package application

import (
	"context"
	"fmt"
	"sync"

	"consent-console/internal/domain"
	"consent-console/internal/ports"
)

// ViewState is a consistent snapshot of an ApplicationsView.
type ViewState struct {
	Generation uint64
	// Loaded is false until the first successful load; Applications is nil
	// in that case.
	Loaded bool
	// Settled is true once the current generation's fetch has completed,
	// successfully or not.
	Settled        bool
	Applications   []domain.Application
	LoadErr        error
	PendingRemoval string
}

// ApplicationsView owns the working list of authorized applications for one
// user, their expansion state and the consent removal flow.
//
// Every load is tagged with a generation. Only the response of the most
// recently requested generation may replace the working list.
type ApplicationsView struct {
	api    ports.ApplicationsAPI
	notify *Notifier
	logger ports.Logger

	mu      sync.Mutex
	env     domain.Environment
	base    context.Context
	stop    context.CancelFunc
	cancel  context.CancelFunc
	gen     uint64
	settled uint64
	clients []domain.Client
	open    map[string]bool
	loadErr error
	pending string
	changed chan struct{}
}

func NewApplicationsView(api ports.ApplicationsAPI, env domain.Environment, notify *Notifier, logger ports.Logger) *ApplicationsView {
	return &ApplicationsView{
		api:     api,
		env:     env,
		notify:  notify,
		logger:  logger,
		changed: make(chan struct{}),
	}
}

// Activate mounts the view and issues the first load. Loads run until ctx is
// cancelled or Deactivate is called. Activating an active view is a no-op.
func (v *ApplicationsView) Activate(ctx context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.base != nil {
		return
	}
	v.base, v.stop = context.WithCancel(ctx)
	v.refreshLocked()
}

// Deactivate cancels any in-flight load and discards the working list.
func (v *ApplicationsView) Deactivate() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.base == nil {
		return
	}
	v.stop()
	v.base, v.stop, v.cancel = nil, nil, nil
	v.clients, v.open, v.loadErr, v.pending = nil, nil, nil, ""
	v.settled = v.gen
	v.broadcastLocked()
}

func (v *ApplicationsView) Active() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.base != nil
}

// SetEnvironment replaces the environment used by subsequent API calls.
func (v *ApplicationsView) SetEnvironment(env domain.Environment) {
	v.mu.Lock()
	v.env = env
	v.mu.Unlock()
}

// Refresh starts a new generation, superseding any load in flight.
func (v *ApplicationsView) Refresh() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.base == nil {
		return domain.ErrInactive
	}
	v.refreshLocked()
	return nil
}

// Retry re-issues the load after a failure.
func (v *ApplicationsView) Retry() error {
	return v.Refresh()
}

func (v *ApplicationsView) refreshLocked() {
	if v.cancel != nil {
		v.cancel()
	}
	v.gen++
	ctx, cancel := context.WithCancel(v.base)
	v.cancel = cancel
	v.loadErr = nil
	gen, env := v.gen, v.env
	v.broadcastLocked()
	go v.load(ctx, gen, env)
}

func (v *ApplicationsView) load(ctx context.Context, gen uint64, env domain.Environment) {
	clients, err := v.api.FetchApplications(ctx, env)

	v.mu.Lock()
	if gen != v.gen || ctx.Err() != nil {
		v.mu.Unlock()
		v.logger.Debug(ctx, "discarding superseded applications response", "generation", gen)
		return
	}
	v.settled = gen
	if err != nil {
		v.loadErr = err
		v.broadcastLocked()
		v.mu.Unlock()
		v.logger.Error(ctx, "failed to load applications", "generation", gen, "error", err)
		v.notify.AddError(context.WithoutCancel(ctx), "loadApplicationsError", err)
		return
	}
	if clients == nil {
		clients = []domain.Client{}
	}
	v.clients = clients
	v.open = make(map[string]bool, len(clients))
	if v.pending != "" && indexOf(clients, v.pending) < 0 {
		v.pending = ""
	}
	v.broadcastLocked()
	v.mu.Unlock()
	v.logger.Debug(ctx, "applications loaded", "generation", gen, "count", len(clients))
}

// Toggle flips the detail panel of one application.
func (v *ApplicationsView) Toggle(clientID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, err := v.findLocked(clientID); err != nil {
		return err
	}
	v.open[clientID] = !v.open[clientID]
	v.broadcastLocked()
	return nil
}

// RequestRemoval asks for confirmation before removing access for clientID.
func (v *ApplicationsView) RequestRemoval(clientID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	c, err := v.findLocked(clientID)
	if err != nil {
		return err
	}
	if !c.Revocable() {
		return fmt.Errorf("application %q has no consent or offline access: %w", clientID, domain.ErrInvalidInput)
	}
	v.pending = clientID
	v.broadcastLocked()
	return nil
}

// CancelRemoval dismisses the pending confirmation.
func (v *ApplicationsView) CancelRemoval() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pending == "" {
		return
	}
	v.pending = ""
	v.broadcastLocked()
}

// ConfirmRemoval deletes the consent awaiting confirmation. On success the
// list is reloaded; on failure the working list is left untouched. Either way
// the outcome is reported as an alert.
func (v *ApplicationsView) ConfirmRemoval(ctx context.Context) error {
	v.mu.Lock()
	clientID, env := v.pending, v.env
	if clientID != "" {
		v.pending = ""
		v.broadcastLocked()
	}
	v.mu.Unlock()
	if clientID == "" {
		return domain.ErrNoPendingRemoval
	}

	if err := v.api.DeleteConsent(ctx, env, clientID); err != nil {
		v.logger.Warn(ctx, "failed to remove consent", "client_id", clientID, "error", err)
		v.notify.AddError(context.WithoutCancel(ctx), "removeConsentError", err)
		return fmt.Errorf("remove consent for %s: %w", clientID, err)
	}

	v.mu.Lock()
	if v.base != nil {
		v.refreshLocked()
	}
	v.mu.Unlock()
	v.logger.Info(ctx, "consent removed", "client_id", clientID)
	v.notify.AddAlert(context.WithoutCancel(ctx), v.notify.T("removeConsentSuccess"))
	return nil
}

func (v *ApplicationsView) State() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stateLocked()
}

// Changed returns a channel that is closed on the next state change.
func (v *ApplicationsView) Changed() <-chan struct{} {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.changed
}

// WaitSettled blocks until the current generation's load has completed.
func (v *ApplicationsView) WaitSettled(ctx context.Context) (ViewState, error) {
	for {
		v.mu.Lock()
		s, ch, active := v.stateLocked(), v.changed, v.base != nil
		v.mu.Unlock()
		if !active {
			return s, domain.ErrInactive
		}
		if s.Settled {
			return s, nil
		}
		select {
		case <-ctx.Done():
			return s, ctx.Err()
		case <-ch:
		}
	}
}

func (v *ApplicationsView) stateLocked() ViewState {
	s := ViewState{
		Generation:     v.gen,
		Loaded:         v.clients != nil,
		Settled:        v.settled == v.gen,
		LoadErr:        v.loadErr,
		PendingRemoval: v.pending,
	}
	if v.clients != nil {
		s.Applications = make([]domain.Application, len(v.clients))
		for i, c := range v.clients {
			s.Applications[i] = domain.Application{Client: c, Open: v.open[c.ClientID]}
		}
	}
	return s
}

func (v *ApplicationsView) findLocked(clientID string) (domain.Client, error) {
	if v.clients == nil {
		return domain.Client{}, domain.ErrLoading
	}
	i := indexOf(v.clients, clientID)
	if i < 0 {
		return domain.Client{}, fmt.Errorf("application %q: %w", clientID, domain.ErrNotFound)
	}
	return v.clients[i], nil
}

func (v *ApplicationsView) broadcastLocked() {
	close(v.changed)
	v.changed = make(chan struct{})
}

func indexOf(clients []domain.Client, clientID string) int {
	for i, c := range clients {
		if c.ClientID == clientID {
			return i
		}
	}
	return -1
}
