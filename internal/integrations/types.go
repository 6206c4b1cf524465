// Package integrations holds the third-party account connections (Google
// Calendar, Meta) of the selected tenant and the toggles that change them.
package integrations

import (
	"errors"
	"fmt"
	"strings"
)

// Provider names a third-party integration.
type Provider string

const (
	Google Provider = "google"
	Meta   Provider = "meta"
)

// Providers lists the supported providers in display order.
var Providers = []Provider{Google, Meta}

// ErrUnknownProvider is returned for providers outside Providers.
var ErrUnknownProvider = errors.New("integrations: unknown provider")

// ParseProvider normalizes s to a Provider.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Providers {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
}

// Title is the provider name as shown to operators.
func (p Provider) Title() string {
	switch p {
	case Google:
		return "Google"
	case Meta:
		return "Meta"
	}
	return string(p)
}

// Connection is the display state of one provider.
type Connection struct {
	Connected         bool   `json:"connected"`
	AccountIdentifier string `json:"accountIdentifier"`
	LastSyncLabel     string `json:"lastSyncLabel"`
}

// GoogleAccount is the stored Google link of a tenant.
type GoogleAccount struct {
	Connected  bool   `json:"connected"`
	Email      string `json:"email"`
	CalendarID string `json:"calendar_id"`
}

// MetaAccount is the stored Meta page link of a tenant.
type MetaAccount struct {
	Connected bool   `json:"connected"`
	PageID    string `json:"page_id"`
	PageName  string `json:"page_name"`
}

// Stored is the integrations block persisted on a tenant.
type Stored struct {
	Google *GoogleAccount `json:"google_account,omitempty"`
	Meta   *MetaAccount   `json:"meta_account,omitempty"`
}

// GoogleConnection is an OAuth credential the platform holds for a tenant.
type GoogleConnection struct {
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// Simulated account labels used when no real authorization happened.
const (
	SimulatedGoogleEmail = "admin@example.com"
	SimulatedCalendarID  = "primary"
	SimulatedMetaPageID  = "123456789"
	SimulatedMetaPage    = "Business Page"
	JustNow              = "Just now"
)

// SuccessMessage is the banner text for a completed toggle.
func SuccessMessage(p Provider, connect bool) string {
	verb := "disconnected"
	if connect {
		verb = "connected"
	}
	return fmt.Sprintf("%s account %s successfully!", p.Title(), verb)
}

// FailureMessage is the banner text for a failed toggle.
func FailureMessage(p Provider, connect bool) string {
	verb := "disconnect"
	if connect {
		verb = "connect"
	}
	return fmt.Sprintf("Failed to %s %s account.", verb, p)
}
