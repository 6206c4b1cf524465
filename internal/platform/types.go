package platform

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/wolfman30/booking-console/internal/integrations"
	"github.com/wolfman30/booking-console/internal/session"
	"github.com/wolfman30/booking-console/internal/settings"
)

// flexID decodes ids the platform sends as either strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// botDTO is a tenant ("bot") as the platform serves it.
type botDTO struct {
	ID        flexID           `json:"id"`
	Name      string           `json:"name"`
	Category  string           `json:"category"`
	Location  string           `json:"location"`
	Phone     string           `json:"phone"`
	AccountID flexID           `json:"account_id"`
	Settings  *settings.Stored `json:"settings"`

	Integrations      *integrations.Stored            `json:"integrations"`
	GoogleConnections []integrations.GoogleConnection `json:"google_connections"`
	Analytics         *session.AnalyticsData          `json:"analytics"`
}

func (b botDTO) tenant() session.Tenant {
	return session.Tenant{
		ID:        string(b.ID),
		Name:      b.Name,
		Category:  settings.NormalizeCategory(b.Category),
		Location:  b.Location,
		Phone:     b.Phone,
		AccountID: string(b.AccountID),
		Settings:  b.Settings,

		Integrations:      b.Integrations,
		GoogleConnections: b.GoogleConnections,
		Analytics:         b.Analytics,
	}
}
