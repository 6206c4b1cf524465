package console

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wolfman30/booking-console/internal/integrations"
	"github.com/wolfman30/booking-console/internal/kv"
	"github.com/wolfman30/booking-console/internal/observability/metrics"
	"github.com/wolfman30/booking-console/internal/session"
	"github.com/wolfman30/booking-console/internal/settings"
	"github.com/wolfman30/booking-console/pkg/logging"
)

type stubPlatform struct {
	mu        sync.Mutex
	tenants   []session.Tenant
	listErr   error
	createErr error
	saveErr   error
	updateErr error
	saves     []settings.Model
	updates   []integrations.Stored
	nextID    int
	lists     int
}

func (p *stubPlatform) ListTenants(ctx context.Context, _ string) ([]session.Tenant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lists++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.listErr != nil {
		return nil, p.listErr
	}
	return append([]session.Tenant(nil), p.tenants...), nil
}

func (p *stubPlatform) CreateTenant(_ context.Context, d session.Draft) (session.Tenant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return session.Tenant{}, p.createErr
	}
	p.nextID++
	t := session.Tenant{ID: "new-" + strconv.Itoa(p.nextID), Name: d.Name, Category: d.Category, AccountID: d.AccountID}
	p.tenants = append(p.tenants, t)
	return t, nil
}

func (p *stubPlatform) SaveSettings(_ context.Context, _ string, m settings.Model) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves = append(p.saves, m)
	return p.saveErr
}

func (p *stubPlatform) UpdateIntegrations(_ context.Context, _ string, s integrations.Stored) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, s)
	return p.updateErr
}

func (p *stubPlatform) ExchangeGoogleCode(_ context.Context, _, _, _ string) (string, error) {
	return "owner@salon.example.com", nil
}

func (p *stubPlatform) setListErr(err error) {
	p.mu.Lock()
	p.listErr = err
	p.mu.Unlock()
}

func (p *stubPlatform) listCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lists
}

func (p *stubPlatform) setSaveErr(err error) {
	p.mu.Lock()
	p.saveErr = err
	p.mu.Unlock()
}

func twoTenants() []session.Tenant {
	return []session.Tenant{
		{ID: "A", Name: "Cuts", Category: "salon"},
		{ID: "B", Name: "Glow", Category: "beauty"},
	}
}

func testDeps(t *testing.T, p *stubPlatform) Deps {
	t.Helper()
	reg := prometheus.NewRegistry()
	return Deps{
		Platform:  p,
		KV:        kv.NewMemoryStore(),
		Metrics:   metrics.NewConsoleMetrics(reg),
		Gatherer:  reg,
		BannerTTL: time.Minute,
		Logger:    logging.Discard(),
	}
}
