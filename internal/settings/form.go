package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/wolfman30/booking-console/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var formTracer = otel.Tracer("console.internal.settings")

var (
	// ErrNoTenant is returned when the form has not been loaded for a tenant.
	ErrNoTenant = errors.New("settings: no tenant loaded")
	// ErrBlankConstraint is returned when applying an empty immediate constraint.
	ErrBlankConstraint = errors.New("settings: immediate constraint is blank")
	// ErrSaveInFlight is returned when a save is already pending.
	ErrSaveInFlight = errors.New("settings: save already in progress")
	// ErrStaleSave is returned when a save resolved after the form moved on to
	// another tenant (or was reloaded); its result was discarded.
	ErrStaleSave = errors.New("settings: save resolved for a tenant that is no longer loaded")
)

// Persister stores the full settings model of a tenant.
type Persister interface {
	SaveSettings(ctx context.Context, tenantID string, m Model) error
}

// SaveObserver is told how each save ended: "success", "failure" or "stale".
type SaveObserver interface {
	ObserveSave(outcome string)
}

// State is a point-in-time view of the form.
type State struct {
	TenantID string `json:"tenantId"`
	Model    Model  `json:"model"`
	Dirty    bool   `json:"dirty"`
	Saving   bool   `json:"saving"`
}

// Form is the mutable settings model of the selected tenant with dirty
// tracking against the last committed baseline. It is safe for concurrent use.
type Form struct {
	persister Persister
	logger    *logging.Logger
	observer  SaveObserver
	onSaved   func(tenantID string, saved Model)
	newID     func() string

	mu       sync.Mutex
	loaded   bool
	tenantID string
	epoch    uint64
	current  Model
	baseline Model
	dirty    bool
	saving   bool
}

// FormOption customizes a Form.
type FormOption func(*Form)

// WithSaveObserver reports save outcomes to o.
func WithSaveObserver(o SaveObserver) FormOption {
	return func(f *Form) { f.observer = o }
}

// WithOnSaved calls fn with the committed model after every successful,
// non-stale save. fn runs without the form lock held.
func WithOnSaved(fn func(tenantID string, saved Model)) FormOption {
	return func(f *Form) { f.onSaved = fn }
}

// WithIDGenerator replaces the active-constraint id generator.
func WithIDGenerator(fn func() string) FormOption {
	return func(f *Form) { f.newID = fn }
}

// NewForm creates an empty form. Load must be called before edits.
func NewForm(persister Persister, logger *logging.Logger, opts ...FormOption) *Form {
	if logger == nil {
		logger = logging.Default()
	}
	f := &Form{
		persister: persister,
		logger:    logger,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Load replaces the whole form with the tenant's stored configuration merged
// over the defaults. The result is the new clean baseline. Any save still in
// flight for the previous load will be discarded when it resolves.
func (f *Form) Load(tenantID, category string, stored *Stored) {
	m := Merge(stored, category)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = true
	f.tenantID = tenantID
	f.epoch++
	f.current = m
	f.baseline = m.Committed()
	f.dirty = false
	f.saving = false
	f.logger.Debug("settings form loaded", "tenant_id", tenantID)
}

// Unload clears the form, e.g. when no tenant is selected any more.
func (f *Form) Unload() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = false
	f.tenantID = ""
	f.epoch++
	f.current = Model{}
	f.baseline = Model{}
	f.dirty = false
	f.saving = false
}

// TenantID returns the tenant the form is loaded for.
func (f *Form) TenantID() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tenantID, f.loaded
}

// State returns a copy of the current form state.
func (f *Form) State() (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		return State{}, ErrNoTenant
	}
	return f.stateLocked(), nil
}

// Baseline returns a copy of the last committed model.
func (f *Form) Baseline() (Model, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		return Model{}, ErrNoTenant
	}
	return f.baseline.Clone(), nil
}

// Dirty reports whether the form differs from its baseline.
func (f *Form) Dirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirty
}

// Patch sets one leaf field. See ApplyPatch for the path syntax.
func (f *Form) Patch(path string, value any) (State, error) {
	return f.mutate(func(m Model) (Model, error) {
		return ApplyPatch(m, path, value)
	})
}

// AddInterval adds a default interval to day.
func (f *Form) AddInterval(day Weekday) (State, error) {
	return f.mutate(func(m Model) (Model, error) {
		return AddInterval(m, day)
	})
}

// RemoveInterval removes interval i of day.
func (f *Form) RemoveInterval(day Weekday, i int) (State, error) {
	return f.mutate(func(m Model) (Model, error) {
		return RemoveInterval(m, day, i)
	})
}

// SetDayOpen opens or closes a day.
func (f *Form) SetDayOpen(day Weekday, open bool) (State, error) {
	return f.mutate(func(m Model) (Model, error) {
		return SetDayOpen(m, day, open)
	})
}

// AddService appends an empty service row.
func (f *Form) AddService() (State, error) {
	return f.mutate(func(m Model) (Model, error) {
		return AddService(m), nil
	})
}

// RemoveService removes service row i.
func (f *Form) RemoveService(i int) (State, error) {
	return f.mutate(func(m Model) (Model, error) {
		return RemoveService(m, i)
	})
}

// SetImmediateConstraint updates the staging field.
func (f *Form) SetImmediateConstraint(text string) (State, error) {
	return f.Patch("immediateConstraint", text)
}

// ApplyImmediateConstraint moves the staging text into the active constraints.
// Blank (or whitespace-only) staging text leaves everything untouched.
func (f *Form) ApplyImmediateConstraint() (State, error) {
	return f.mutate(func(m Model) (Model, error) {
		text := strings.TrimSpace(m.ImmediateConstraint)
		if text == "" {
			return m, ErrBlankConstraint
		}
		out := m.Clone()
		out.ActiveConstraints = append(out.ActiveConstraints, ActiveConstraint{
			ID:        f.newID(),
			Text:      text,
			AppliedAt: JustNow,
		})
		out.ImmediateConstraint = ""
		return out, nil
	})
}

// RemoveActiveConstraint removes the active constraint with id.
func (f *Form) RemoveActiveConstraint(id string) (State, error) {
	return f.mutate(func(m Model) (Model, error) {
		return RemoveActiveConstraint(m, id)
	})
}

// Reset discards every edit since the last commit.
func (f *Form) Reset() (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		return State{}, ErrNoTenant
	}
	f.current = f.baseline.Clone()
	f.dirty = false
	return f.stateLocked(), nil
}

// Save sends the full model to the persister. The form lock is not held while
// the request is in flight, so edits may continue; on success the model that
// was sent becomes the baseline. A save whose tenant (or load) is no longer
// current when it resolves is discarded and reported as ErrStaleSave.
func (f *Form) Save(ctx context.Context) (State, error) {
	f.mu.Lock()
	if !f.loaded {
		f.mu.Unlock()
		return State{}, ErrNoTenant
	}
	if f.saving {
		f.mu.Unlock()
		return State{}, ErrSaveInFlight
	}
	tenantID, epoch := f.tenantID, f.epoch
	sent := f.current.Committed()
	f.saving = true
	f.mu.Unlock()

	ctx, span := formTracer.Start(ctx, "settings.save",
		trace.WithAttributes(attribute.String("console.tenant_id", tenantID)))
	defer span.End()

	err := f.persister.SaveSettings(ctx, tenantID, sent)

	f.mu.Lock()
	if !f.loaded || f.tenantID != tenantID || f.epoch != epoch {
		f.mu.Unlock()
		f.observe("stale")
		f.logger.Warn("discarding stale settings save", "tenant_id", tenantID, "error", err)
		span.SetAttributes(attribute.Bool("console.stale", true))
		if err != nil {
			return State{}, errors.Join(ErrStaleSave, err)
		}
		return State{}, ErrStaleSave
	}
	f.saving = false
	if err != nil {
		st := f.stateLocked()
		f.mu.Unlock()
		f.observe("failure")
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		f.logger.Error("settings save failed", "tenant_id", tenantID, "error", err)
		return st, fmt.Errorf("settings: save: %w", err)
	}
	f.baseline = sent
	f.dirty = !Equal(f.current, f.baseline)
	st := f.stateLocked()
	f.mu.Unlock()

	f.observe("success")
	f.logger.Info("settings saved", "tenant_id", tenantID, "still_dirty", st.Dirty)
	if f.onSaved != nil {
		f.onSaved(tenantID, sent.Clone())
	}
	return st, nil
}

func (f *Form) mutate(fn func(Model) (Model, error)) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		return State{}, ErrNoTenant
	}
	next, err := fn(f.current)
	if err != nil {
		return f.stateLocked(), err
	}
	f.current = next
	f.dirty = !Equal(f.current, f.baseline)
	return f.stateLocked(), nil
}

func (f *Form) stateLocked() State {
	return State{
		TenantID: f.tenantID,
		Model:    f.current.Clone(),
		Dirty:    f.dirty,
		Saving:   f.saving,
	}
}

func (f *Form) observe(outcome string) {
	if f.observer != nil {
		f.observer.ObserveSave(outcome)
	}
}
