package console

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/booking-console/internal/integrations"
	"github.com/wolfman30/booking-console/internal/notice"
	"github.com/wolfman30/booking-console/internal/session"
	"github.com/wolfman30/booking-console/internal/views"
)

func loadedWorkspace(t *testing.T, p *stubPlatform) *Workspace {
	t.Helper()
	w := NewWorkspace("acct-1", testDeps(t, p))
	t.Cleanup(w.Close)
	require.NoError(t, w.Load(context.Background()))
	return w
}

func TestWorkspaceLoadSelectsFirstTenantAndLoadsForm(t *testing.T) {
	w := loadedWorkspace(t, &stubPlatform{tenants: twoTenants()})

	sel, ok := w.Session.Selected()
	require.True(t, ok)
	assert.Equal(t, "A", sel.ID)

	st, err := w.Form.State()
	require.NoError(t, err)
	assert.Equal(t, "A", st.TenantID)
	assert.Equal(t, "salon", st.Model.Category)

	ist, err := w.Integrations.State()
	require.NoError(t, err)
	assert.Equal(t, "A", ist.TenantID)
}

func TestWorkspaceSelectReloadsFormAndDropsEdits(t *testing.T) {
	w := loadedWorkspace(t, &stubPlatform{tenants: twoTenants()})
	_, err := w.Form.Patch("businessData.description", "edited")
	require.NoError(t, err)
	require.True(t, w.Form.Dirty())

	_, err = w.Select(context.Background(), "B")
	require.NoError(t, err)

	st, err := w.Form.State()
	require.NoError(t, err)
	assert.Equal(t, "B", st.TenantID)
	assert.False(t, st.Dirty)
	assert.Equal(t, "beauty", st.Model.Category)
}

func TestWorkspaceReselectKeepsUnsavedEdits(t *testing.T) {
	w := loadedWorkspace(t, &stubPlatform{tenants: twoTenants()})
	_, err := w.Form.Patch("businessData.description", "edited")
	require.NoError(t, err)
	events, cancel := w.Events.Subscribe()
	defer cancel()

	_, err = w.Select(context.Background(), "A")
	require.NoError(t, err)

	st, err := w.Form.State()
	require.NoError(t, err)
	assert.Equal(t, "A", st.TenantID)
	assert.True(t, st.Dirty)
	assert.Equal(t, "edited", st.Model.BusinessData.Description)
	ev := <-events
	assert.Equal(t, EventSelection, ev.Type)
}

func TestWorkspaceSavedSettingsSurviveTenantSwitch(t *testing.T) {
	w := loadedWorkspace(t, &stubPlatform{tenants: twoTenants()})
	_, err := w.Form.AddService()
	require.NoError(t, err)
	_, err = w.Form.Patch("pricing.services.0.name", "Haircut")
	require.NoError(t, err)
	_, err = w.Save(context.Background())
	require.NoError(t, err)

	_, err = w.Select(context.Background(), "B")
	require.NoError(t, err)
	_, err = w.Select(context.Background(), "A")
	require.NoError(t, err)

	st, err := w.Form.State()
	require.NoError(t, err)
	assert.False(t, st.Dirty)
	require.Len(t, st.Model.Pricing.Services, 1)
	assert.Equal(t, "Haircut", st.Model.Pricing.Services[0].Name)
	baseline, err := w.Form.Baseline()
	require.NoError(t, err)
	require.Len(t, baseline.Pricing.Services, 1)
}

func TestWorkspaceIntegrationsSurviveTenantSwitch(t *testing.T) {
	tenants := twoTenants()
	tenants[0].GoogleConnections = []integrations.GoogleConnection{{Email: "owner@salon.example.com", CreatedAt: "2026-01-02"}}
	w := loadedWorkspace(t, &stubPlatform{tenants: tenants})

	_, err := w.Toggle(context.Background(), integrations.Meta, true, "")
	require.NoError(t, err)
	_, err = w.Toggle(context.Background(), integrations.Google, false, "")
	require.NoError(t, err)

	_, err = w.Select(context.Background(), "B")
	require.NoError(t, err)
	_, err = w.Select(context.Background(), "A")
	require.NoError(t, err)

	st, err := w.Integrations.State()
	require.NoError(t, err)
	assert.True(t, st.Meta.Connected)
	assert.False(t, st.Google.Connected)
}

func TestWorkspaceEmptyListUnloadsForm(t *testing.T) {
	w := NewWorkspace("acct-1", testDeps(t, &stubPlatform{}))
	t.Cleanup(w.Close)
	require.NoError(t, w.Load(context.Background()))

	_, err := w.Form.State()
	assert.Error(t, err)
	v := w.View()
	require.NotNil(t, v.Placeholder)
	assert.Equal(t, "No Business Selected", v.Placeholder.Title)
}

func TestWorkspaceSaveShowsBanner(t *testing.T) {
	p := &stubPlatform{tenants: twoTenants()}
	w := loadedWorkspace(t, p)
	_, err := w.Form.Patch("constraints.maxPartySize", 8)
	require.NoError(t, err)

	st, err := w.Save(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Dirty)
	msg, ok := w.Banner.Current()
	require.True(t, ok)
	assert.Equal(t, notice.Success, msg.Kind)
	assert.Equal(t, notice.SaveSucceeded, msg.Text)

	_, err = w.Form.Patch("constraints.maxPartySize", 9)
	require.NoError(t, err)
	p.setSaveErr(errors.New("boom"))
	st, err = w.Save(context.Background())
	require.Error(t, err)
	assert.True(t, st.Dirty)
	msg, ok = w.Banner.Current()
	require.True(t, ok)
	assert.Equal(t, notice.Error, msg.Kind)
	assert.Equal(t, notice.SaveFailed, msg.Text)
}

func TestWorkspaceSaveWithoutTenantShowsNoBanner(t *testing.T) {
	w := NewWorkspace("acct-1", testDeps(t, &stubPlatform{}))
	t.Cleanup(w.Close)
	require.NoError(t, w.Load(context.Background()))

	_, err := w.Save(context.Background())
	require.Error(t, err)
	_, ok := w.Banner.Current()
	assert.False(t, ok)
}

func TestWorkspaceCreateCompletesCreateFlow(t *testing.T) {
	p := &stubPlatform{tenants: twoTenants()}
	w := loadedWorkspace(t, p)
	_, err := w.Navigator.Navigate(views.Settings)
	require.NoError(t, err)
	w.Navigator.OpenCreateFlow()

	created, err := w.Create(context.Background(), session.Draft{Name: " Haircut Hut ", Category: "Salon"})
	require.NoError(t, err)

	sel, ok := w.Session.Selected()
	require.True(t, ok)
	assert.Equal(t, created.ID, sel.ID)
	loc := w.Navigator.Location()
	assert.False(t, loc.ShowCreateFlow)
	assert.Equal(t, views.Analytics, loc.Page)

	st, err := w.Form.State()
	require.NoError(t, err)
	assert.Equal(t, created.ID, st.TenantID)
}

func TestWorkspaceCreateFailureKeepsFlowOpen(t *testing.T) {
	p := &stubPlatform{tenants: twoTenants(), createErr: errors.New("nope")}
	w := loadedWorkspace(t, p)
	w.Navigator.OpenCreateFlow()

	_, err := w.Create(context.Background(), session.Draft{Name: "X", Category: "beauty"})
	require.Error(t, err)
	assert.True(t, w.Navigator.Location().ShowCreateFlow)
	sel, _ := w.Session.Selected()
	assert.Equal(t, "A", sel.ID)
}

func TestWorkspaceToggleBanners(t *testing.T) {
	p := &stubPlatform{tenants: twoTenants()}
	w := loadedWorkspace(t, p)

	st, err := w.Toggle(context.Background(), integrations.Meta, true, "")
	require.NoError(t, err)
	assert.True(t, st.Meta.Connected)
	msg, ok := w.Banner.Current()
	require.True(t, ok)
	assert.Equal(t, "Meta account connected successfully!", msg.Text)

	p.mu.Lock()
	p.updateErr = errors.New("down")
	p.mu.Unlock()
	st, err = w.Toggle(context.Background(), integrations.Google, true, "")
	require.Error(t, err)
	assert.False(t, st.Google.Connected)
	msg, ok = w.Banner.Current()
	require.True(t, ok)
	assert.Equal(t, notice.Error, msg.Kind)
	assert.Equal(t, "Failed to connect google account.", msg.Text)
}

func TestWorkspaceToggleUnknownProvider(t *testing.T) {
	w := loadedWorkspace(t, &stubPlatform{tenants: twoTenants()})
	events, cancel := w.Events.Subscribe()
	defer cancel()

	_, err := w.Toggle(context.Background(), integrations.Provider("slack"), true, "")
	require.ErrorIs(t, err, integrations.ErrUnknownProvider)
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %s", ev.Type)
	default:
	}
}

func TestWorkspaceAnalyticsIncludesActivity(t *testing.T) {
	w := loadedWorkspace(t, &stubPlatform{tenants: twoTenants()})
	_, err := w.Form.Patch("constraints.maxPartySize", 7)
	require.NoError(t, err)
	_, err = w.Save(context.Background())
	require.NoError(t, err)

	v := w.View()
	require.NotNil(t, v.Analytics)
	assert.Equal(t, int64(1), v.Analytics.Console.SavesSucceeded)
}

func TestRegistryLoadsOnce(t *testing.T) {
	p := &stubPlatform{tenants: twoTenants()}
	r := NewRegistry(testDeps(t, p))
	defer r.Close()

	a := r.Workspace(context.Background(), "acct-1")
	b := r.Workspace(context.Background(), "acct-1")
	assert.Same(t, a, b)
	assert.Len(t, a.Session.Tenants(), 2)

	other := r.Workspace(context.Background(), "acct-2")
	assert.NotSame(t, a, other)
}

func TestRegistryLoadIgnoresRequestCancellation(t *testing.T) {
	p := &stubPlatform{tenants: twoTenants()}
	r := NewRegistry(testDeps(t, p))
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := r.Workspace(ctx, "acct-1")
	assert.Len(t, w.Session.Tenants(), 2)
}

func TestRegistryRetriesFailedInitialLoad(t *testing.T) {
	p := &stubPlatform{tenants: twoTenants()}
	p.setListErr(errors.New("503"))
	r := NewRegistry(testDeps(t, p))
	defer r.Close()

	w := r.Workspace(context.Background(), "acct-1")
	assert.Empty(t, w.Session.Tenants())

	p.setListErr(nil)
	w = r.Workspace(context.Background(), "acct-1")
	assert.Len(t, w.Session.Tenants(), 2)

	lists := p.listCount()
	r.Workspace(context.Background(), "acct-1")
	assert.Equal(t, lists, p.listCount(), "a loaded workspace is not fetched again")
}
