// Package session tracks the tenants of one operator account and which of them
// is selected, persisting the selection so it survives reloads.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wolfman30/booking-console/internal/integrations"
	"github.com/wolfman30/booking-console/internal/kv"
	"github.com/wolfman30/booking-console/internal/settings"
	"github.com/wolfman30/booking-console/pkg/logging"
)

var (
	// ErrTenantNotFound is returned when selecting an id that is not in the list.
	ErrTenantNotFound = errors.New("session: tenant not in current list")
	// ErrListTenants wraps a failure to fetch the tenant list.
	ErrListTenants = errors.New("session: list tenants")
)

// Selection sources reported to observers and metrics.
const (
	SourceUser     = "user"
	SourceLoad     = "load"
	SourceFallback = "fallback"
	SourceCreate   = "create"
)

// Lister fetches the tenants of an account in display order.
type Lister interface {
	ListTenants(ctx context.Context, accountID string) ([]Tenant, error)
}

// Creator creates a tenant on the platform.
type Creator interface {
	CreateTenant(ctx context.Context, draft Draft) (Tenant, error)
}

// SelectionObserver is told about every selection change by source.
type SelectionObserver interface {
	ObserveSelection(source string)
}

// Selection is delivered to subscribers. Tenant is nil when nothing is selected.
type Selection struct {
	Tenant *Tenant
	Source string
}

// Store is the tenant list plus the selected tenant id of one account.
type Store struct {
	accountID string
	lister    Lister
	creator   Creator
	kv        kv.Store
	logger    *logging.Logger
	metrics   SelectionObserver

	mu       sync.Mutex
	tenants  []Tenant
	selected string

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Selection)
}

// Option customizes a Store.
type Option func(*Store)

// WithSelectionObserver reports selection changes to o.
func WithSelectionObserver(o SelectionObserver) Option {
	return func(s *Store) { s.metrics = o }
}

// NewStore creates a store for accountID. storage must already be scoped to
// the account (see kv.Namespace).
func NewStore(accountID string, lister Lister, creator Creator, storage kv.Store, logger *logging.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Store{
		accountID: accountID,
		lister:    lister,
		creator:   creator,
		kv:        storage,
		logger:    logger.WithComponent("session"),
		subs:      make(map[int]func(Selection)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn for selection changes and returns a func that removes it.
// fn runs synchronously on the goroutine that changed the selection.
func (s *Store) Subscribe(fn func(Selection)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// Tenants returns a copy of the current list.
func (s *Store) Tenants() []Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Tenant(nil), s.tenants...)
}

// Selected returns the selected tenant, if any.
func (s *Store) Selected() (Tenant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.findLocked(s.selected)
	return t, ok
}

// UpdateSettings replaces the cached configuration of tenant id after it was
// saved, so the next selection of id starts from what the platform now holds.
// It reports whether id is in the list.
func (s *Store) UpdateSettings(id string, stored *settings.Stored) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	s.tenants[i].Settings = stored
	return true
}

// UpdateIntegrations merges the non-nil accounts of changed into the cached
// integrations of tenant id. Disconnecting Google also drops the cached
// credentials, which would otherwise mark it connected again on the next load.
func (s *Store) UpdateIntegrations(id string, changed integrations.Stored) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	t := &s.tenants[i]
	var next integrations.Stored
	if t.Integrations != nil {
		next = *t.Integrations
	}
	if changed.Google != nil {
		g := *changed.Google
		next.Google = &g
		if !g.Connected {
			t.GoogleConnections = nil
		}
	}
	if changed.Meta != nil {
		mt := *changed.Meta
		next.Meta = &mt
	}
	t.Integrations = &next
	return true
}

// Load fetches the tenant list and resolves the selection: the stored id when
// it is in the list, otherwise the first tenant, otherwise none. A list
// failure leaves the list empty and is returned; it is not fatal.
func (s *Store) Load(ctx context.Context) error {
	tenants, listErr := s.lister.ListTenants(ctx, s.accountID)
	if listErr != nil {
		s.logger.Error("tenant list failed", "error", listErr)
		tenants = nil
	}

	s.mu.Lock()
	stored, legacy := s.readSelection(ctx)
	resolved := resolve(tenants, stored)
	source := SourceLoad
	if resolved != stored {
		source = SourceFallback
	}
	var persistErr error
	if resolved != "" && (resolved != stored || legacy) {
		persistErr = s.writeSelection(ctx, resolved)
		if persistErr != nil {
			s.logger.Error("persist fallback selection failed", "tenant_id", resolved, "error", persistErr)
		}
	}
	s.tenants = tenants
	s.selected = resolved
	sel := s.selectionLocked(source)
	s.mu.Unlock()

	s.notify(sel)

	if listErr != nil {
		return fmt.Errorf("%w: %w", ErrListTenants, listErr)
	}
	if persistErr != nil {
		return fmt.Errorf("session: persist selection: %w", persistErr)
	}
	return nil
}

// Select makes id the selected tenant. The selection is persisted before it
// is applied in memory; observers are notified even when id was already
// selected.
func (s *Store) Select(ctx context.Context, id string) (Tenant, error) {
	s.mu.Lock()
	t, ok := s.findLocked(id)
	if !ok {
		s.mu.Unlock()
		return Tenant{}, fmt.Errorf("%w: %q", ErrTenantNotFound, id)
	}
	if err := s.writeSelection(ctx, id); err != nil {
		s.mu.Unlock()
		return Tenant{}, fmt.Errorf("session: select: %w", err)
	}
	s.selected = id
	sel := s.selectionLocked(SourceUser)
	s.mu.Unlock()

	s.logger.Info("tenant selected", "tenant_id", id)
	s.notify(sel)
	return t, nil
}

// Create validates draft, creates the tenant on the platform, refreshes the
// list and selects the new tenant. On a creation failure nothing changes.
func (s *Store) Create(ctx context.Context, draft Draft) (Tenant, error) {
	draft = draft.Normalize()
	if draft.AccountID == "" {
		draft.AccountID = s.accountID
	}
	if err := draft.Validate(); err != nil {
		return Tenant{}, err
	}
	if s.creator == nil {
		return Tenant{}, errors.New("session: create: no creator configured")
	}

	created, err := s.creator.CreateTenant(ctx, draft)
	if err != nil {
		return Tenant{}, fmt.Errorf("session: create: %w", err)
	}

	tenants, listErr := s.lister.ListTenants(ctx, s.accountID)
	if listErr != nil {
		s.logger.Warn("tenant list refresh after create failed", "error", listErr)
		tenants = s.Tenants()
	}
	if !contains(tenants, created.ID) {
		tenants = append(tenants, created)
	}

	s.mu.Lock()
	if err := s.writeSelection(ctx, created.ID); err != nil {
		s.mu.Unlock()
		return created, fmt.Errorf("session: select created tenant: %w", err)
	}
	s.tenants = tenants
	s.selected = created.ID
	sel := s.selectionLocked(SourceCreate)
	s.mu.Unlock()

	s.logger.Info("tenant created", "tenant_id", created.ID)
	s.notify(sel)
	return created, nil
}

// readSelection returns the stored id and whether it came from the legacy key.
// Read failures count as no stored selection.
func (s *Store) readSelection(ctx context.Context) (string, bool) {
	id, ok, err := s.kv.Get(ctx, kv.KeySelectedTenant)
	if err != nil {
		s.logger.Warn("read selection failed", "error", err)
		return "", false
	}
	if ok && id != "" {
		return id, false
	}
	legacy, ok, err := s.kv.Get(ctx, kv.KeyLegacySelectedBusiness)
	if err != nil {
		s.logger.Warn("read legacy selection failed", "error", err)
		return "", false
	}
	if ok && legacy != "" {
		return legacy, true
	}
	return "", false
}

// writeSelection stores id under the current key and drops the legacy key.
func (s *Store) writeSelection(ctx context.Context, id string) error {
	if err := s.kv.Set(ctx, kv.KeySelectedTenant, id); err != nil {
		return err
	}
	if err := s.kv.Remove(ctx, kv.KeyLegacySelectedBusiness); err != nil {
		s.logger.Warn("remove legacy selection failed", "error", err)
	}
	return nil
}

func (s *Store) findLocked(id string) (Tenant, bool) {
	if i := s.indexLocked(id); i >= 0 {
		return s.tenants[i], true
	}
	return Tenant{}, false
}

func (s *Store) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, t := range s.tenants {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) selectionLocked(source string) Selection {
	sel := Selection{Source: source}
	if t, ok := s.findLocked(s.selected); ok {
		sel.Tenant = &t
	}
	return sel
}

func (s *Store) notify(sel Selection) {
	if s.metrics != nil {
		s.metrics.ObserveSelection(sel.Source)
	}
	s.subMu.Lock()
	fns := make([]func(Selection), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(sel)
	}
}

// resolve applies the fallback rule.
func resolve(tenants []Tenant, stored string) string {
	if contains(tenants, stored) {
		return stored
	}
	if len(tenants) > 0 {
		return tenants[0].ID
	}
	return ""
}

func contains(tenants []Tenant, id string) bool {
	if id == "" {
		return false
	}
	for _, t := range tenants {
		if t.ID == id {
			return true
		}
	}
	return false
}
