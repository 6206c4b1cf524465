package integrations

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/booking-console/pkg/logging"
)

var (
	// ErrNoTenant is returned when no tenant is loaded.
	ErrNoTenant = errors.New("integrations: no tenant loaded")
	// ErrToggleInFlight is returned while a toggle of the same provider is pending.
	ErrToggleInFlight = errors.New("integrations: toggle already in progress")
	// ErrStaleToggle is returned when the tenant changed while a toggle was pending.
	ErrStaleToggle = errors.New("integrations: toggle resolved for a tenant that is no longer loaded")
)

// Updater persists part of the integrations block of a tenant. Only the
// non-nil accounts of s are written.
type Updater interface {
	UpdateIntegrations(ctx context.Context, tenantID string, s Stored) error
}

// CodeExchanger trades a Google authorization code for the account email.
type CodeExchanger interface {
	ExchangeGoogleCode(ctx context.Context, code, accountID, tenantID string) (string, error)
}

// ToggleObserver is told about every toggle attempt.
type ToggleObserver interface {
	ObserveToggle(provider string, connect bool, status string)
}

// State is the integration view of the loaded tenant.
type State struct {
	TenantID string            `json:"tenantId"`
	Google   Connection        `json:"google"`
	Meta     Connection        `json:"meta"`
	Busy     map[Provider]bool `json:"busy"`
}

// Manager owns the connection state of the selected tenant. Toggles of
// different providers run independently; each provider allows one pending
// toggle at a time.
type Manager struct {
	accountID string
	updater   Updater
	exchanger CodeExchanger
	observer  ToggleObserver
	onChange  func(tenantID string, changed Stored)
	delay     time.Duration
	logger    *logging.Logger

	mu       sync.Mutex
	loaded   bool
	tenantID string
	epoch    uint64
	stored   Stored
	googleAt string
	metaAt   string
	busy     map[Provider]bool
}

// Option customizes a Manager.
type Option func(*Manager)

// WithDelay sets the simulated network delay applied before every toggle.
func WithDelay(d time.Duration) Option {
	return func(m *Manager) { m.delay = d }
}

// WithCodeExchanger enables the real Google authorization code exchange.
func WithCodeExchanger(e CodeExchanger) Option {
	return func(m *Manager) { m.exchanger = e }
}

// WithToggleObserver reports toggles to o.
func WithToggleObserver(o ToggleObserver) Option {
	return func(m *Manager) { m.observer = o }
}

// WithOnChange calls fn after every successful, non-stale toggle with the
// account that changed; the other provider is nil. fn runs without the
// manager lock held.
func WithOnChange(fn func(tenantID string, changed Stored)) Option {
	return func(m *Manager) { m.onChange = fn }
}

// NewManager creates a manager for one operator account.
func NewManager(accountID string, updater Updater, logger *logging.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	m := &Manager{
		accountID: accountID,
		updater:   updater,
		logger:    logger.WithComponent("integrations"),
		delay:     time.Second,
		busy:      make(map[Provider]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load seeds the state from a tenant's stored integrations. A stored Google
// credential counts as connected even without an integrations block.
func (m *Manager) Load(tenantID string, stored *Stored, creds []GoogleConnection) {
	var s Stored
	if stored != nil {
		if stored.Google != nil {
			g := *stored.Google
			s.Google = &g
		}
		if stored.Meta != nil {
			mt := *stored.Meta
			s.Meta = &mt
		}
	}
	googleAt := ""
	if len(creds) > 0 && (s.Google == nil || !s.Google.Connected) {
		s.Google = &GoogleAccount{Connected: true, Email: creds[0].Email, CalendarID: SimulatedCalendarID}
	}
	if len(creds) > 0 {
		googleAt = creds[0].CreatedAt
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = true
	m.tenantID = tenantID
	m.epoch++
	m.stored = s
	m.googleAt = googleAt
	m.metaAt = ""
	m.busy = make(map[Provider]bool)
}

// Unload clears the state.
func (m *Manager) Unload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = false
	m.tenantID = ""
	m.epoch++
	m.stored = Stored{}
	m.busy = make(map[Provider]bool)
}

// State returns the current connections of both providers.
func (m *Manager) State() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		return State{}, ErrNoTenant
	}
	return m.stateLocked(), nil
}

// Toggle connects or disconnects provider for the loaded tenant. code is the
// Google authorization code; without one (or without an exchanger) the
// connection is simulated. The provider's busy flag is set for the duration
// and cleared whatever the outcome; on failure the state is unchanged.
func (m *Manager) Toggle(ctx context.Context, provider Provider, connect bool, code string) (State, error) {
	if _, err := ParseProvider(string(provider)); err != nil {
		return State{}, err
	}

	m.mu.Lock()
	if !m.loaded {
		m.mu.Unlock()
		return State{}, ErrNoTenant
	}
	if m.busy[provider] {
		m.mu.Unlock()
		return State{}, ErrToggleInFlight
	}
	m.busy[provider] = true
	tenantID, epoch := m.tenantID, m.epoch
	m.mu.Unlock()

	next, at, err := m.toggle(ctx, tenantID, provider, connect, code)

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		m.observe(provider, connect, "stale")
		return State{}, ErrStaleToggle
	}
	delete(m.busy, provider)
	if err != nil {
		st := m.stateLocked()
		m.mu.Unlock()
		m.observe(provider, connect, "error")
		m.logger.Error("integration toggle failed", "tenant_id", tenantID, "provider", provider, "connect", connect, "error", err)
		return st, err
	}
	switch provider {
	case Google:
		m.stored.Google = next.Google
		m.googleAt = at
	case Meta:
		m.stored.Meta = next.Meta
		m.metaAt = at
	}
	st := m.stateLocked()
	m.mu.Unlock()

	m.observe(provider, connect, "ok")
	m.logger.Info("integration toggled", "tenant_id", tenantID, "provider", provider, "connect", connect)
	if m.onChange != nil {
		m.onChange(tenantID, next)
	}
	return st, nil
}

func (m *Manager) toggle(ctx context.Context, tenantID string, provider Provider, connect bool, code string) (Stored, string, error) {
	if err := sleep(ctx, m.delay); err != nil {
		return Stored{}, "", fmt.Errorf("integrations: %s: %w", provider, err)
	}

	var next Stored
	at := ""
	if connect {
		at = JustNow
	}
	switch provider {
	case Google:
		if !connect {
			next.Google = &GoogleAccount{}
			break
		}
		email := SimulatedGoogleEmail
		if code != "" && m.exchanger != nil {
			got, err := m.exchanger.ExchangeGoogleCode(ctx, code, m.accountID, tenantID)
			if err != nil {
				return Stored{}, "", fmt.Errorf("integrations: google code exchange: %w", err)
			}
			if got != "" {
				email = got
			}
		}
		next.Google = &GoogleAccount{Connected: true, Email: email, CalendarID: SimulatedCalendarID}
	case Meta:
		if !connect {
			next.Meta = &MetaAccount{}
			break
		}
		next.Meta = &MetaAccount{Connected: true, PageID: SimulatedMetaPageID, PageName: SimulatedMetaPage}
	}

	if m.updater != nil {
		if err := m.updater.UpdateIntegrations(ctx, tenantID, next); err != nil {
			return Stored{}, "", fmt.Errorf("integrations: update %s: %w", provider, err)
		}
	}
	return next, at, nil
}

func (m *Manager) stateLocked() State {
	busy := make(map[Provider]bool, len(Providers))
	for _, p := range Providers {
		busy[p] = m.busy[p]
	}
	st := State{TenantID: m.tenantID, Busy: busy}
	if g := m.stored.Google; g != nil && g.Connected {
		st.Google = Connection{Connected: true, AccountIdentifier: g.Email, LastSyncLabel: m.googleAt}
	}
	if mt := m.stored.Meta; mt != nil && mt.Connected {
		st.Meta = Connection{Connected: true, AccountIdentifier: mt.PageName, LastSyncLabel: m.metaAt}
	}
	return st
}

func (m *Manager) observe(p Provider, connect bool, status string) {
	if m.observer != nil {
		m.observer.ObserveToggle(string(p), connect, status)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
