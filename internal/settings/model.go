// Package settings holds the editable, change-tracked configuration of one tenant:
// business hours, services, free-text business data, notifications, operational
// limits and active constraints.
package settings

import (
	"reflect"
	"strings"
)

// Weekday is one of the seven fixed business-hours keys.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// Weekdays lists the keys in display order.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// ParseWeekday normalizes s to a Weekday.
func ParseWeekday(s string) (Weekday, bool) {
	d := Weekday(strings.ToLower(strings.TrimSpace(s)))
	for _, w := range Weekdays {
		if w == d {
			return d, true
		}
	}
	return "", false
}

// Categories is the fixed set of business categories.
var Categories = []string{
	"restaurant",
	"salon",
	"fitness",
	"healthcare",
	"retail",
	"professional_services",
	"automotive",
	"beauty",
	"education",
	"entertainment",
}

// ValidCategory reports whether c is one of Categories.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}

// NormalizeCategory lowercases c and joins words with underscores, so that
// "Professional Services" matches "professional_services".
func NormalizeCategory(c string) string {
	return strings.Join(strings.Fields(strings.ToLower(c)), "_")
}

// Interval is one open period within a day, "HH:MM" 24-hour clock.
type Interval struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// DefaultInterval is what a day gets when it is switched open.
var DefaultInterval = Interval{Open: "09:00", Close: "17:00"}

// BusinessHours maps every weekday to its intervals. An empty list means closed.
type BusinessHours map[Weekday][]Interval

// IsOpen is derived: a day is open iff it has at least one interval.
func (h BusinessHours) IsOpen(day Weekday) bool {
	return len(h[day]) > 0
}

// Service is one bookable service row. Rows are identified by position only.
type Service struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Duration int     `json:"duration"`
}

// Pricing groups the service list with its currency.
type Pricing struct {
	Currency string    `json:"currency"`
	Services []Service `json:"services"`
}

// BusinessData is free text fed to the chatbot prompt.
type BusinessData struct {
	Description string `json:"description"`
	Specialties string `json:"specialties"`
	Policies    string `json:"policies"`
}

// Notifications configures customer-facing reminders.
type Notifications struct {
	RemindersEnabled      bool   `json:"remindersEnabled"`
	ReminderHoursBefore   int    `json:"reminderHoursBefore"`
	BookingSuccessMessage string `json:"bookingSuccessMessage"`
}

// Constraints are operational limits. All values are non-negative.
type Constraints struct {
	MaxDailyAppointments    int `json:"maxDailyAppointments"`
	MinAdvanceBookingHours  int `json:"minAdvanceBookingHours"`
	MaxAdvanceBookingDays   int `json:"maxAdvanceBookingDays"`
	CancellationWindowHours int `json:"cancellationWindowHours"`
	MaxPartySize            int `json:"maxPartySize"`
}

// ActiveConstraint is an operator-entered override, e.g. "Closed today".
type ActiveConstraint struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	AppliedAt string `json:"appliedAt"`
}

// JustNow is the appliedAt label of a freshly applied constraint.
const JustNow = "just now"

// Model is the full editable configuration of a tenant.
type Model struct {
	BusinessHours     BusinessHours      `json:"businessHours"`
	Pricing           Pricing            `json:"pricing"`
	BusinessData      BusinessData       `json:"businessData"`
	Notifications     Notifications      `json:"notifications"`
	Constraints       Constraints        `json:"constraints"`
	Category          string             `json:"category"`
	ActiveConstraints []ActiveConstraint `json:"activeConstraints"`

	// ImmediateConstraint is a staging field. It is never persisted and does not
	// count towards the dirty state.
	ImmediateConstraint string `json:"immediateConstraint,omitempty"`
}

// Default values used when a tenant has nothing stored.
const (
	DefaultCurrency              = "USD"
	DefaultReminderHoursBefore   = 24
	DefaultBookingSuccessMessage = "Your appointment is confirmed! We look forward to seeing you."
)

// DefaultHours is 09:00-17:00 every day except Sunday, which is closed.
func DefaultHours() BusinessHours {
	h := make(BusinessHours, len(Weekdays))
	for _, d := range Weekdays {
		if d == Sunday {
			h[d] = []Interval{}
			continue
		}
		h[d] = []Interval{DefaultInterval}
	}
	return h
}

// DefaultNotifications returns the notification defaults.
func DefaultNotifications() Notifications {
	return Notifications{
		RemindersEnabled:      true,
		ReminderHoursBefore:   DefaultReminderHoursBefore,
		BookingSuccessMessage: DefaultBookingSuccessMessage,
	}
}

// DefaultConstraints returns the operational limit defaults.
func DefaultConstraints() Constraints {
	return Constraints{
		MaxDailyAppointments:    50,
		MinAdvanceBookingHours:  1,
		MaxAdvanceBookingDays:   30,
		CancellationWindowHours: 24,
		MaxPartySize:            6,
	}
}

// DefaultModel is the model of a tenant with no stored configuration.
func DefaultModel() Model {
	return Model{
		BusinessHours:     DefaultHours(),
		Pricing:           Pricing{Currency: DefaultCurrency, Services: []Service{}},
		Notifications:     DefaultNotifications(),
		Constraints:       DefaultConstraints(),
		ActiveConstraints: []ActiveConstraint{},
	}
}

// Clone returns a deep copy. Nil collections come back as empty ones so that
// structurally equal models compare equal.
func (m Model) Clone() Model {
	out := m
	out.BusinessHours = make(BusinessHours, len(Weekdays))
	for _, d := range Weekdays {
		src := m.BusinessHours[d]
		out.BusinessHours[d] = append(make([]Interval, 0, len(src)), src...)
	}
	out.Pricing.Services = append(make([]Service, 0, len(m.Pricing.Services)), m.Pricing.Services...)
	out.ActiveConstraints = append(make([]ActiveConstraint, 0, len(m.ActiveConstraints)), m.ActiveConstraints...)
	return out
}

// Committed is the part of the model that gets persisted: a clone without the
// staging field.
func (m Model) Committed() Model {
	out := m.Clone()
	out.ImmediateConstraint = ""
	return out
}

// Equal compares the committed parts of two models structurally.
func Equal(a, b Model) bool {
	return reflect.DeepEqual(a.Committed(), b.Committed())
}
