package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Stored is a tenant's configuration as the platform returns it. Any nested
// object may be missing, and individual notification or constraint fields may
// be absent too; Merge fills the gaps from the defaults.
type Stored struct {
	BusinessHours     map[string]*StoredDay `json:"businessHours,omitempty"`
	Pricing           *StoredPricing        `json:"pricing,omitempty"`
	BusinessData      *BusinessData         `json:"businessData,omitempty"`
	Notifications     *StoredNotifications  `json:"notifications,omitempty"`
	Constraints       *StoredConstraints    `json:"constraints,omitempty"`
	Category          string                `json:"category,omitempty"`
	ActiveConstraints []ActiveConstraint    `json:"activeConstraints,omitempty"`
}

// StoredPricing is the stored pricing block.
type StoredPricing struct {
	Currency string    `json:"currency,omitempty"`
	Services []Service `json:"services,omitempty"`
}

// StoredNotifications is the stored notification block with optional fields.
type StoredNotifications struct {
	RemindersEnabled      *bool    `json:"remindersEnabled,omitempty"`
	ReminderHoursBefore   *FlexInt `json:"reminderHoursBefore,omitempty"`
	BookingSuccessMessage *string  `json:"bookingSuccessMessage,omitempty"`
}

// StoredConstraints is the stored operational limits block with optional fields.
type StoredConstraints struct {
	MaxDailyAppointments    *FlexInt `json:"maxDailyAppointments,omitempty"`
	MinAdvanceBookingHours  *FlexInt `json:"minAdvanceBookingHours,omitempty"`
	MaxAdvanceBookingDays   *FlexInt `json:"maxAdvanceBookingDays,omitempty"`
	CancellationWindowHours *FlexInt `json:"cancellationWindowHours,omitempty"`
	MaxPartySize            *FlexInt `json:"maxPartySize,omitempty"`
}

// FlexInt decodes from either a JSON number or a numeric string; the platform
// has historically sent both.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		data = []byte(s)
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("settings: not a number: %s", data)
	}
	*f = FlexInt(int(n))
	return nil
}

// StoredDay holds one weekday's intervals. Besides the interval list it accepts
// the older single-shift shape {"open","close","closed"}.
type StoredDay struct {
	Intervals []Interval
}

func (d *StoredDay) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '[' {
		var list []Interval
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("settings: business hours: %w", err)
		}
		d.Intervals = list
		return nil
	}
	var legacy struct {
		Open   string `json:"open"`
		Close  string `json:"close"`
		Closed bool   `json:"closed"`
	}
	if err := json.Unmarshal(data, &legacy); err != nil {
		return fmt.Errorf("settings: business hours: %w", err)
	}
	if legacy.Closed {
		d.Intervals = []Interval{}
		return nil
	}
	d.Intervals = []Interval{{Open: legacy.Open, Close: legacy.Close}}
	return nil
}

func (d StoredDay) MarshalJSON() ([]byte, error) {
	if d.Intervals == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(d.Intervals)
}

// Merge builds a complete Model from stored over the defaults. It never fails:
// whatever is missing or unusable falls back to the default value.
// fallbackCategory is used when stored carries no category.
func Merge(stored *Stored, fallbackCategory string) Model {
	m := DefaultModel()
	m.Category = NormalizeCategory(fallbackCategory)
	if stored == nil {
		return m
	}

	for key, day := range stored.BusinessHours {
		wd, ok := ParseWeekday(key)
		if !ok || day == nil {
			continue
		}
		m.BusinessHours[wd] = append([]Interval{}, day.Intervals...)
	}

	if p := stored.Pricing; p != nil {
		if p.Currency != "" {
			m.Pricing.Currency = p.Currency
		}
		for _, s := range p.Services {
			if s.Price < 0 {
				s.Price = 0
			}
			if s.Duration < 0 {
				s.Duration = 0
			}
			m.Pricing.Services = append(m.Pricing.Services, s)
		}
	}

	if stored.BusinessData != nil {
		m.BusinessData = *stored.BusinessData
	}

	if n := stored.Notifications; n != nil {
		if n.RemindersEnabled != nil {
			m.Notifications.RemindersEnabled = *n.RemindersEnabled
		}
		mergeInt(&m.Notifications.ReminderHoursBefore, n.ReminderHoursBefore)
		if n.BookingSuccessMessage != nil {
			m.Notifications.BookingSuccessMessage = *n.BookingSuccessMessage
		}
	}

	if c := stored.Constraints; c != nil {
		mergeInt(&m.Constraints.MaxDailyAppointments, c.MaxDailyAppointments)
		mergeInt(&m.Constraints.MinAdvanceBookingHours, c.MinAdvanceBookingHours)
		mergeInt(&m.Constraints.MaxAdvanceBookingDays, c.MaxAdvanceBookingDays)
		mergeInt(&m.Constraints.CancellationWindowHours, c.CancellationWindowHours)
		mergeInt(&m.Constraints.MaxPartySize, c.MaxPartySize)
	}

	if stored.Category != "" {
		m.Category = NormalizeCategory(stored.Category)
	}

	for _, ac := range stored.ActiveConstraints {
		if strings.TrimSpace(ac.Text) == "" {
			continue
		}
		m.ActiveConstraints = append(m.ActiveConstraints, ac)
	}
	return m
}

// Stored converts the committed part of m back into the stored shape, so that
// Merge(m.Stored(), "") reproduces m.
func (m Model) Stored() *Stored {
	c := m.Committed()
	hours := make(map[string]*StoredDay, len(Weekdays))
	for _, d := range Weekdays {
		hours[string(d)] = &StoredDay{Intervals: c.BusinessHours[d]}
	}
	data := c.BusinessData
	n := c.Notifications
	reminderHours := FlexInt(n.ReminderHoursBefore)
	k := c.Constraints
	flex := func(v int) *FlexInt {
		f := FlexInt(v)
		return &f
	}
	return &Stored{
		BusinessHours: hours,
		Pricing:       &StoredPricing{Currency: c.Pricing.Currency, Services: c.Pricing.Services},
		BusinessData:  &data,
		Notifications: &StoredNotifications{
			RemindersEnabled:      &n.RemindersEnabled,
			ReminderHoursBefore:   &reminderHours,
			BookingSuccessMessage: &n.BookingSuccessMessage,
		},
		Constraints: &StoredConstraints{
			MaxDailyAppointments:    flex(k.MaxDailyAppointments),
			MinAdvanceBookingHours:  flex(k.MinAdvanceBookingHours),
			MaxAdvanceBookingDays:   flex(k.MaxAdvanceBookingDays),
			CancellationWindowHours: flex(k.CancellationWindowHours),
			MaxPartySize:            flex(k.MaxPartySize),
		},
		Category:          c.Category,
		ActiveConstraints: c.ActiveConstraints,
	}
}

// mergeInt copies v into dst when present and non-negative.
func mergeInt(dst *int, v *FlexInt) {
	if v == nil || *v < 0 {
		return
	}
	*dst = int(*v)
}
