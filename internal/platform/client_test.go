package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/booking-console/internal/integrations"
	"github.com/wolfman30/booking-console/internal/session"
	"github.com/wolfman30/booking-console/internal/settings"
	"github.com/wolfman30/booking-console/pkg/logging"
)

type callRecord struct {
	operation string
	status    string
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []callRecord
}

func (o *recordingObserver) ObservePlatformCall(operation, status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, callRecord{operation, status})
}

func newTestClient(t *testing.T, h http.Handler, retries int) (*Client, *recordingObserver) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	obs := &recordingObserver{}
	c := NewClient(Config{
		BaseURL:       srv.URL + "/",
		Token:         "secret",
		Timeout:       2 * time.Second,
		RetryCount:    retries,
		RetryWaitTime: time.Millisecond,
	}, logging.Discard(), WithObserver(obs))
	return c, obs
}

func TestListTenants(t *testing.T) {
	c, obs := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/bots", r.URL.Path)
		assert.Equal(t, "acct-1", r.URL.Query().Get("account_id"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 7, "name": "Salon", "category": "Salon", "settings": {"constraints": {"maxPartySize": "3"}}},
			{"id": "", "name": "ghost"},
			{"id": "b-2", "name": "Gym", "category": "fitness", "account_id": 12}
		]`))
	}), 0)

	tenants, err := c.ListTenants(context.Background(), "acct-1")
	require.NoError(t, err)
	require.Len(t, tenants, 2)
	assert.Equal(t, "7", tenants[0].ID)
	assert.Equal(t, "salon", tenants[0].Category)
	require.NotNil(t, tenants[0].Settings)
	assert.Equal(t, 3, settings.Merge(tenants[0].Settings, "").Constraints.MaxPartySize)
	assert.Equal(t, "12", tenants[1].AccountID)
	assert.Equal(t, []callRecord{{"list_tenants", "ok"}}, obs.calls)
}

func TestListTenantsRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	c, obs := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, `{"error":"busy"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"1","name":"Salon","category":"salon"}]`))
	}), 2)

	tenants, err := c.ListTenants(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, tenants, 1)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, []callRecord{{"list_tenants", "ok"}}, obs.calls)
}

func TestListTenantsUpstreamFailure(t *testing.T) {
	c, obs := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"db down"}`))
	}), 0)

	_, err := c.ListTenants(context.Background(), "acct-1")
	require.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, []callRecord{{"list_tenants", "error"}}, obs.calls)
}

func TestCreateTenant(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var draft session.Draft
		require.NoError(t, json.NewDecoder(r.Body).Decode(&draft))
		assert.Equal(t, "Salon", draft.Name)
		assert.Equal(t, "acct-1", draft.AccountID)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 42, "name": "Salon", "category": "salon", "account_id": "acct-1"}`))
	}), 0)

	tenant, err := c.CreateTenant(context.Background(), session.Draft{Name: "Salon", Category: "salon", AccountID: "acct-1"})
	require.NoError(t, err)
	assert.Equal(t, "42", tenant.ID)
	assert.Equal(t, "acct-1", tenant.AccountID)
}

func TestCreateTenantValidationIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	c, obs := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"name already taken"}`))
	}), 3)

	_, err := c.CreateTenant(context.Background(), session.Draft{Name: "Salon", Category: "salon"})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "name already taken")
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, []callRecord{{"create_tenant", "rejected"}}, obs.calls)
}

func TestSaveSettingsSendsCommittedModel(t *testing.T) {
	var got map[string]any
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/bots/7/settings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}), 0)

	m := settings.DefaultModel()
	m.ImmediateConstraint = "draft"
	require.NoError(t, c.SaveSettings(context.Background(), "7", m))

	assert.NotContains(t, got, "immediateConstraint")
	assert.Contains(t, got, "businessHours")
	assert.Equal(t, "USD", got["pricing"].(map[string]any)["currency"])
}

func TestUpdateIntegrationsSendsOnlyToggledAccount(t *testing.T) {
	var bodies []map[string]any
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/bots/7/integrations", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		w.WriteHeader(http.StatusOK)
	}), 0)

	google := integrations.Stored{Google: &integrations.GoogleAccount{Connected: true, Email: "owner@example.com", CalendarID: "primary"}}
	require.NoError(t, c.UpdateIntegrations(context.Background(), "7", google))
	require.NoError(t, c.UpdateIntegrations(context.Background(), "7", integrations.Stored{Meta: &integrations.MetaAccount{}}))

	require.Len(t, bodies, 2)
	assert.Equal(t, map[string]any{"google_account": map[string]any{
		"connected": true, "email": "owner@example.com", "calendar_id": "primary",
	}}, bodies[0])
	assert.Equal(t, map[string]any{"meta_account": map[string]any{
		"connected": false, "page_id": "", "page_name": "",
	}}, bodies[1])
}

func TestListTenantsDecodesIntegrations(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"1","name":"Salon","category":"salon",
			"integrations":{"meta_account":{"connected":true,"page_id":"9","page_name":"Salon Page"}},
			"google_connections":[{"email":"owner@example.com","created_at":"2024-05-01"}]}]`))
	}), 0)

	tenants, err := c.ListTenants(context.Background(), "acct-1")
	require.NoError(t, err)
	require.Len(t, tenants, 1)
	require.NotNil(t, tenants[0].Integrations)
	assert.Equal(t, "Salon Page", tenants[0].Integrations.Meta.PageName)
	require.Len(t, tenants[0].GoogleConnections, 1)
	assert.Equal(t, "owner@example.com", tenants[0].GoogleConnections[0].Email)
}

func TestExchangeGoogleCode(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/google/token", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"code": "abc", "account_id": "acct-1", "chatbot_id": "7"}, body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"email":"owner@example.com"}`))
	}), 0)

	email, err := c.ExchangeGoogleCode(context.Background(), "abc", "acct-1", "7")
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", email)
}

func TestTransportFailureIsUpstream(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond}, logging.Discard())
	_, err := c.ListTenants(context.Background(), "acct-1")
	require.ErrorIs(t, err, ErrUpstream)
}
