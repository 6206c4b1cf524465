// Package console ties the per-operator state together: tenant session,
// settings form, integrations, navigation and banner, and serves it over HTTP.
package console

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wolfman30/booking-console/internal/integrations"
	"github.com/wolfman30/booking-console/internal/kv"
	"github.com/wolfman30/booking-console/internal/notice"
	"github.com/wolfman30/booking-console/internal/observability/metrics"
	"github.com/wolfman30/booking-console/internal/session"
	"github.com/wolfman30/booking-console/internal/settings"
	"github.com/wolfman30/booking-console/internal/views"
	"github.com/wolfman30/booking-console/pkg/logging"
)

// Platform is everything the console needs from the chatbot platform.
type Platform interface {
	session.Lister
	session.Creator
	settings.Persister
	integrations.Updater
	integrations.CodeExchanger
}

// Deps are shared by every workspace.
type Deps struct {
	Platform    Platform
	KV          kv.Store
	Metrics     *metrics.ConsoleMetrics
	Gatherer    prometheus.Gatherer
	BannerTTL   time.Duration
	ToggleDelay time.Duration
	Logger      *logging.Logger
}

// Workspace is the console state of one operator account.
type Workspace struct {
	AccountID    string
	Session      *session.Store
	Form         *settings.Form
	Integrations *integrations.Manager
	Navigator    *views.Navigator
	Banner       *notice.Banner
	Events       *Hub

	gatherer prometheus.Gatherer
	logger   *logging.Logger
	unsub    func()

	loadMu sync.Mutex
	listed atomic.Bool
}

// NewWorkspace wires a workspace for accountID. Call Load to fetch tenants.
func NewWorkspace(accountID string, deps Deps) *Workspace {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithAccount(accountID)

	w := &Workspace{
		AccountID: accountID,
		Navigator: views.NewNavigator(),
		Events:    NewHub(),
		gatherer:  deps.Gatherer,
		logger:    logger,
	}

	var sessionOpts []session.Option
	formOpts := []settings.FormOption{
		settings.WithOnSaved(func(tenantID string, saved settings.Model) {
			w.Session.UpdateSettings(tenantID, saved.Stored())
		}),
	}
	intOpts := []integrations.Option{
		integrations.WithDelay(deps.ToggleDelay),
		integrations.WithCodeExchanger(deps.Platform),
		integrations.WithOnChange(func(tenantID string, changed integrations.Stored) {
			w.Session.UpdateIntegrations(tenantID, changed)
		}),
	}
	if deps.Metrics != nil {
		sessionOpts = append(sessionOpts, session.WithSelectionObserver(deps.Metrics))
		formOpts = append(formOpts, settings.WithSaveObserver(deps.Metrics))
		intOpts = append(intOpts, integrations.WithToggleObserver(deps.Metrics))
	}

	w.Session = session.NewStore(accountID, deps.Platform, deps.Platform, kv.Namespace(deps.KV, accountID), logger, sessionOpts...)
	w.Form = settings.NewForm(deps.Platform, logger.WithComponent("settings"), formOpts...)
	w.Integrations = integrations.NewManager(accountID, deps.Platform, logger, intOpts...)
	w.Banner = notice.NewBanner(deps.BannerTTL, notice.WithOnChange(func(m *notice.Message) {
		w.Events.Publish(EventBanner, m)
	}))
	w.unsub = w.Session.Subscribe(w.onSelection)
	return w
}

// onSelection rebuilds the tenant-scoped state whenever the selection changes.
// An operator re-selecting the tenant already on screen keeps its unsaved edits
// and pending requests.
func (w *Workspace) onSelection(sel session.Selection) {
	switch {
	case sel.Tenant == nil:
		w.Form.Unload()
		w.Integrations.Unload()
	case sel.Source == session.SourceUser && w.showing(sel.Tenant.ID):
	default:
		t := sel.Tenant
		w.Form.Load(t.ID, t.Category, t.Settings)
		w.Integrations.Load(t.ID, t.Integrations, t.GoogleConnections)
	}
	w.Events.Publish(EventSelection, sel)
}

func (w *Workspace) showing(tenantID string) bool {
	id, loaded := w.Form.TenantID()
	return loaded && id == tenantID
}

// Load fetches the tenant list. A failure is logged and returned; the
// workspace stays usable with an empty list.
func (w *Workspace) Load(ctx context.Context) error {
	err := w.Session.Load(ctx)
	if !errors.Is(err, session.ErrListTenants) {
		w.listed.Store(true)
	}
	w.Events.Publish(EventTenants, w.Session.Tenants())
	return err
}

// Select selects a tenant.
func (w *Workspace) Select(ctx context.Context, id string) (session.Tenant, error) {
	return w.Session.Select(ctx, id)
}

// Create creates and selects a tenant, then leaves the create flow for Analytics.
func (w *Workspace) Create(ctx context.Context, draft session.Draft) (session.Tenant, error) {
	t, err := w.Session.Create(ctx, draft)
	if err != nil {
		return t, err
	}
	loc := w.Navigator.CompleteCreateFlow()
	w.Events.Publish(EventTenants, w.Session.Tenants())
	w.Events.Publish(EventView, loc)
	return t, nil
}

// Save commits the settings form and shows the outcome banner. A save that
// went stale shows nothing: the tenant it belonged to is no longer on screen.
func (w *Workspace) Save(ctx context.Context) (settings.State, error) {
	st, err := w.Form.Save(ctx)
	switch {
	case err == nil:
		w.Banner.Show(notice.Success, notice.SaveSucceeded)
		w.Events.Publish(EventSettings, st)
	case errors.Is(err, settings.ErrStaleSave), errors.Is(err, settings.ErrSaveInFlight), errors.Is(err, settings.ErrNoTenant):
	default:
		w.Banner.Show(notice.Error, notice.SaveFailed)
		w.Events.Publish(EventSettings, st)
	}
	return st, err
}

// Toggle connects or disconnects a provider and shows the outcome banner.
func (w *Workspace) Toggle(ctx context.Context, p integrations.Provider, connect bool, code string) (integrations.State, error) {
	if _, err := integrations.ParseProvider(string(p)); err != nil {
		return integrations.State{}, err
	}
	if current, err := w.Integrations.State(); err == nil && !current.Busy[p] {
		// Other tabs disable the control while the request is pending.
		current.Busy[p] = true
		w.Events.Publish(EventIntegrations, current)
	}
	st, err := w.Integrations.Toggle(ctx, p, connect, code)
	switch {
	case err == nil:
		w.Banner.Show(notice.Success, integrations.SuccessMessage(p, connect))
	case errors.Is(err, integrations.ErrToggleInFlight), errors.Is(err, integrations.ErrStaleToggle),
		errors.Is(err, integrations.ErrNoTenant):
		return st, err
	default:
		w.Banner.Show(notice.Error, integrations.FailureMessage(p, connect))
	}
	w.Events.Publish(EventIntegrations, st)
	return st, err
}

// View renders the main content area.
func (w *Workspace) View() views.View {
	in := views.Input{Location: w.Navigator.Location()}
	if t, ok := w.Session.Selected(); ok {
		in.Tenant = &t
	}
	if st, err := w.Form.State(); err == nil {
		in.Form = &st
	}
	if st, err := w.Integrations.State(); err == nil {
		in.Integrations = &st
	}
	if in.Location.Page == views.Analytics && w.gatherer != nil {
		in.Activity = metrics.Snapshot(w.gatherer)
	}
	return views.Render(in)
}

// Close releases timers and subscriptions.
func (w *Workspace) Close() {
	if w.unsub != nil {
		w.unsub()
	}
	w.Banner.Close()
}

// Registry hands out one workspace per operator account, creating and loading
// it on first use.
type Registry struct {
	deps        Deps
	loadTimeout time.Duration

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithLoadTimeout bounds the initial tenant load of a new workspace.
func WithLoadTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.loadTimeout = d }
}

// NewRegistry creates an empty registry.
func NewRegistry(deps Deps, opts ...RegistryOption) *Registry {
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	r := &Registry{deps: deps, loadTimeout: 15 * time.Second, workspaces: make(map[string]*Workspace)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Workspace returns the workspace of accountID. Until the tenant list has been
// fetched once, every call retries it. The load runs detached from ctx so a cancelled
// request does not leave the workspace empty; a failure is logged and the
// workspace is still returned.
func (r *Registry) Workspace(ctx context.Context, accountID string) *Workspace {
	r.mu.Lock()
	w, ok := r.workspaces[accountID]
	if !ok {
		w = NewWorkspace(accountID, r.deps)
		r.workspaces[accountID] = w
	}
	r.mu.Unlock()

	if w.listed.Load() {
		return w
	}
	w.loadMu.Lock()
	defer w.loadMu.Unlock()
	if w.listed.Load() {
		return w
	}
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.loadTimeout)
	defer cancel()
	if err := w.Load(loadCtx); err != nil {
		w.logger.Warn("initial tenant load failed", "error", err)
	}
	return w
}

// Close closes every workspace.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, w := range r.workspaces {
		w.Close()
		delete(r.workspaces, id)
	}
}
