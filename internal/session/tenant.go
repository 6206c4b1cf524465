package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/booking-console/internal/integrations"
	"github.com/wolfman30/booking-console/internal/settings"
)

// ErrInvalidDraft is returned when a tenant draft fails local validation.
var ErrInvalidDraft = errors.New("session: invalid tenant draft")

// Tenant is one business managed through the console.
type Tenant struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Category  string           `json:"category"`
	Location  string           `json:"location,omitempty"`
	Phone     string           `json:"phone,omitempty"`
	AccountID string           `json:"account_id,omitempty"`
	Settings  *settings.Stored `json:"settings,omitempty"`

	Integrations      *integrations.Stored            `json:"integrations,omitempty"`
	GoogleConnections []integrations.GoogleConnection `json:"google_connections,omitempty"`
	Analytics         *AnalyticsData                  `json:"analytics,omitempty"`
}

// AnalyticsData is the per-tenant performance summary the platform reports.
type AnalyticsData struct {
	TotalUsers         int     `json:"total_users"`
	WeeklyAppointments int     `json:"weekly_appointments"`
	MonthlyRevenue     float64 `json:"monthly_revenue"`
	SatisfactionScore  float64 `json:"satisfaction_score"`
	ResponseTime       float64 `json:"response_time"`
}

// Draft is the input for creating a tenant.
type Draft struct {
	Name      string `json:"name"`
	Category  string `json:"category"`
	Location  string `json:"location,omitempty"`
	Phone     string `json:"phone,omitempty"`
	AccountID string `json:"account_id"`
}

// Normalize trims the draft and maps the category onto the fixed set.
func (d Draft) Normalize() Draft {
	d.Name = strings.TrimSpace(d.Name)
	d.Category = settings.NormalizeCategory(d.Category)
	d.Location = strings.TrimSpace(d.Location)
	d.Phone = strings.TrimSpace(d.Phone)
	d.AccountID = strings.TrimSpace(d.AccountID)
	return d
}

// Validate checks the required fields of a normalized draft.
func (d Draft) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDraft)
	}
	if d.Category == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidDraft)
	}
	if !settings.ValidCategory(d.Category) {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidDraft, d.Category)
	}
	return nil
}
