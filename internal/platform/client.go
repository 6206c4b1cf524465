// Package platform is the REST client for the chatbot platform that owns
// tenants, their stored configuration and their third-party account links.
package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/wolfman30/booking-console/internal/integrations"
	"github.com/wolfman30/booking-console/internal/session"
	"github.com/wolfman30/booking-console/internal/settings"
	"github.com/wolfman30/booking-console/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var platformTracer = otel.Tracer("console.internal.platform")

var (
	// ErrValidation is returned when the platform rejects a request (4xx).
	ErrValidation = errors.New("platform: request rejected")
	// ErrUpstream is returned for transport failures and 5xx answers.
	ErrUpstream = errors.New("platform: upstream failure")
)

const (
	defaultTimeout    = 15 * time.Second
	defaultRetryWait  = 500 * time.Millisecond
	defaultRetryLimit = 3 * time.Second
)

// CallObserver receives one observation per platform request.
type CallObserver interface {
	ObservePlatformCall(operation, status string, elapsed time.Duration)
}

// Config configures the client.
type Config struct {
	BaseURL       string
	Token         string
	Timeout       time.Duration
	RetryCount    int
	RetryWaitTime time.Duration
}

// Client talks to the platform REST API.
type Client struct {
	http     *resty.Client
	logger   *logging.Logger
	observer CallObserver
}

// Option customizes a Client.
type Option func(*Client)

// WithObserver reports request outcomes to o.
func WithObserver(o CallObserver) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient creates a platform client.
func NewClient(cfg Config, logger *logging.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	wait := cfg.RetryWaitTime
	if wait <= 0 {
		wait = defaultRetryWait
	}

	hc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(wait).
		SetRetryMaxWaitTime(defaultRetryLimit).
		AddRetryCondition(retryIdempotentServerErrors).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		hc.SetAuthToken(cfg.Token)
	}

	c := &Client{http: hc, logger: logger.WithComponent("platform")}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryIdempotentServerErrors retries 5xx answers for methods that are safe
// to repeat. POST is never retried.
func retryIdempotentServerErrors(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil {
		return false
	}
	switch r.Request.Method {
	case http.MethodGet, http.MethodPut:
		return err == nil && r.StatusCode() >= http.StatusInternalServerError
	}
	return false
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e *apiError) text() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// do runs one request inside a span and maps failures onto ErrValidation or
// ErrUpstream.
func (c *Client) do(ctx context.Context, op string, send func(*resty.Request) (*resty.Response, error), attrs ...attribute.KeyValue) error {
	ctx, span := platformTracer.Start(ctx, "platform."+op)
	defer span.End()
	span.SetAttributes(attrs...)

	var apiErr apiError
	req := c.http.R().SetContext(ctx).SetError(&apiErr)

	start := time.Now()
	resp, err := send(req)
	elapsed := time.Since(start)

	status := "ok"
	var outErr error
	switch {
	case err != nil:
		status = "error"
		outErr = fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
	case resp.StatusCode() >= http.StatusInternalServerError:
		status = "error"
		outErr = fmt.Errorf("%w: %s: status %d %s", ErrUpstream, op, resp.StatusCode(), apiErr.text())
	case resp.IsError():
		status = "rejected"
		outErr = fmt.Errorf("%w: %s: status %d %s", ErrValidation, op, resp.StatusCode(), apiErr.text())
	}
	if c.observer != nil {
		c.observer.ObservePlatformCall(op, status, elapsed)
	}
	if resp != nil {
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))
	}
	if outErr != nil {
		span.RecordError(outErr)
		span.SetStatus(codes.Error, status)
		c.logger.Warn("platform request failed", "operation", op, "status", status, "error", outErr)
		return outErr
	}
	c.logger.Debug("platform request ok", "operation", op, "elapsed_ms", elapsed.Milliseconds())
	return nil
}

// ListTenants returns the tenants of an operator account in platform order.
func (c *Client) ListTenants(ctx context.Context, accountID string) ([]session.Tenant, error) {
	var out []botDTO
	err := c.do(ctx, "list_tenants", func(r *resty.Request) (*resty.Response, error) {
		if accountID != "" {
			r.SetQueryParam("account_id", accountID)
		}
		return r.SetResult(&out).Get("/bots")
	}, attribute.String("console.account_id", accountID))
	if err != nil {
		return nil, err
	}
	tenants := make([]session.Tenant, 0, len(out))
	for _, b := range out {
		if b.ID == "" {
			continue
		}
		tenants = append(tenants, b.tenant())
	}
	return tenants, nil
}

// CreateTenant creates a tenant from draft.
func (c *Client) CreateTenant(ctx context.Context, draft session.Draft) (session.Tenant, error) {
	var out botDTO
	err := c.do(ctx, "create_tenant", func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(draft).SetResult(&out).Post("/bots")
	}, attribute.String("console.account_id", draft.AccountID))
	if err != nil {
		return session.Tenant{}, err
	}
	if out.ID == "" {
		return session.Tenant{}, fmt.Errorf("%w: create_tenant: response has no id", ErrUpstream)
	}
	return out.tenant(), nil
}

// SaveSettings replaces the stored configuration of a tenant.
func (c *Client) SaveSettings(ctx context.Context, tenantID string, m settings.Model) error {
	return c.do(ctx, "save_settings", func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("id", tenantID).SetBody(m.Committed()).Put("/bots/{id}/settings")
	}, attribute.String("console.tenant_id", tenantID))
}

// UpdateIntegrations writes the non-nil accounts of s onto the tenant.
func (c *Client) UpdateIntegrations(ctx context.Context, tenantID string, s integrations.Stored) error {
	return c.do(ctx, "update_integrations", func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("id", tenantID).SetBody(s).Patch("/bots/{id}/integrations")
	}, attribute.String("console.tenant_id", tenantID))
}

// ExchangeGoogleCode forwards an OAuth authorization code and returns the
// email of the connected Google account.
func (c *Client) ExchangeGoogleCode(ctx context.Context, code, accountID, tenantID string) (string, error) {
	var out struct {
		Email string `json:"email"`
	}
	body := map[string]string{
		"code":       code,
		"account_id": accountID,
		"chatbot_id": tenantID,
	}
	err := c.do(ctx, "google_token", func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(body).SetResult(&out).Post("/google/token")
	}, attribute.String("console.tenant_id", tenantID))
	if err != nil {
		return "", err
	}
	return out.Email, nil
}
