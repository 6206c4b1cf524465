package views

import (
	"strings"

	"github.com/wolfman30/booking-console/internal/integrations"
	"github.com/wolfman30/booking-console/internal/observability/metrics"
	"github.com/wolfman30/booking-console/internal/session"
	"github.com/wolfman30/booking-console/internal/settings"
)

// Placeholder replaces a page's content when no tenant is selected.
type Placeholder struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

const noTenantTitle = "No Business Selected"

var placeholders = map[Page]Placeholder{
	Analytics:   {Title: noTenantTitle, Message: "Please select a business from the sidebar to view analytics."},
	Adjustments: {Title: noTenantTitle, Message: "Please select a business from the sidebar to make adjustments."},
	Settings:    {Title: noTenantTitle, Message: "Create or select a business to manage settings"},
}

// TenantSummary is the header of every tenant page.
type TenantSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// CreateForm describes the create-business flow.
type CreateForm struct {
	Categories []string `json:"categories"`
	Required   []string `json:"required"`
}

// AdjustmentsView is the settings form page.
type AdjustmentsView struct {
	Model      settings.Model `json:"model"`
	Dirty      bool           `json:"dirty"`
	Saving     bool           `json:"saving"`
	ShowSave   bool           `json:"showSave"`
	ShowReset  bool           `json:"showReset"`
	CanApply   bool           `json:"canApplyImmediateConstraint"`
	Categories []string       `json:"categories"`
}

// SettingsView is the integrations page.
type SettingsView struct {
	Google     integrations.Connection `json:"google"`
	Meta       integrations.Connection `json:"meta"`
	GoogleBusy bool                    `json:"googleBusy"`
	MetaBusy   bool                    `json:"metaBusy"`
}

// View is everything the front end needs to draw the main content area.
type View struct {
	Location    Location         `json:"location"`
	Tenant      *TenantSummary   `json:"tenant,omitempty"`
	Placeholder *Placeholder     `json:"placeholder,omitempty"`
	CreateForm  *CreateForm      `json:"createForm,omitempty"`
	Analytics   *AnalyticsView   `json:"analytics,omitempty"`
	Adjustments *AdjustmentsView `json:"adjustments,omitempty"`
	Settings    *SettingsView    `json:"settings,omitempty"`
}

// Input gathers the state Render reads. Form and Integrations are only
// consulted for their pages.
type Input struct {
	Location     Location
	Tenant       *session.Tenant
	Form         *settings.State
	Integrations *integrations.State
	Activity     metrics.ActivitySnapshot
}

// Render builds the view for in. The create flow replaces everything;
// otherwise the current page renders, or its placeholder without a tenant.
func Render(in Input) View {
	v := View{Location: in.Location}
	if in.Location.ShowCreateFlow {
		v.CreateForm = &CreateForm{
			Categories: append([]string(nil), settings.Categories...),
			Required:   []string{"name", "category"},
		}
		return v
	}
	if in.Tenant == nil {
		ph := placeholders[in.Location.Page]
		v.Placeholder = &ph
		return v
	}
	v.Tenant = &TenantSummary{ID: in.Tenant.ID, Name: in.Tenant.Name, Category: in.Tenant.Category}

	switch in.Location.Page {
	case Adjustments:
		if in.Form == nil {
			ph := placeholders[Adjustments]
			v.Placeholder = &ph
			return v
		}
		v.Adjustments = &AdjustmentsView{
			Model:      in.Form.Model,
			Dirty:      in.Form.Dirty,
			Saving:     in.Form.Saving,
			ShowSave:   in.Form.Dirty,
			ShowReset:  in.Form.Dirty,
			CanApply:   strings.TrimSpace(in.Form.Model.ImmediateConstraint) != "",
			Categories: append([]string(nil), settings.Categories...),
		}
	case Settings:
		sv := &SettingsView{}
		if st := in.Integrations; st != nil {
			sv.Google = st.Google
			sv.Meta = st.Meta
			sv.GoogleBusy = st.Busy[integrations.Google]
			sv.MetaBusy = st.Busy[integrations.Meta]
		}
		v.Settings = sv
	default:
		a := RenderAnalytics(in.Tenant.Analytics, in.Activity)
		v.Analytics = &a
	}
	return v
}
