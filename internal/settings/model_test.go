package settings

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultModel(t *testing.T) {
	m := DefaultModel()
	for _, d := range Weekdays {
		if d == Sunday {
			assert.False(t, m.BusinessHours.IsOpen(d), "sunday is closed by default")
			continue
		}
		assert.Equal(t, []Interval{{Open: "09:00", Close: "17:00"}}, m.BusinessHours[d], string(d))
	}
	assert.Equal(t, "USD", m.Pricing.Currency)
	assert.Empty(t, m.Pricing.Services)
	assert.True(t, m.Notifications.RemindersEnabled)
	assert.Equal(t, 24, m.Notifications.ReminderHoursBefore)
	assert.Equal(t, 50, m.Constraints.MaxDailyAppointments)
	assert.Equal(t, 6, m.Constraints.MaxPartySize)
}

func TestMergeNilIsDefaults(t *testing.T) {
	m := Merge(nil, "Professional Services")
	want := DefaultModel()
	want.Category = "professional_services"
	assert.True(t, Equal(want, m))
}

func TestMergePartialConfiguration(t *testing.T) {
	raw := `{
		"businessHours": {
			"monday": [{"open":"08:00","close":"12:00"},{"open":"13:00","close":"18:00"}],
			"tuesday": {"open":"10:00","close":"14:00","closed":false},
			"wednesday": {"closed": true},
			"thursday": null,
			"funday": [{"open":"01:00","close":"02:00"}]
		},
		"pricing": {"services": [{"name":"Cut","price":-5,"duration":45}]},
		"notifications": {"reminderHoursBefore": "12"},
		"constraints": {"maxPartySize": 2, "maxDailyAppointments": -1},
		"activeConstraints": [{"id":"a1","text":"Closed today","appliedAt":"just now"},{"id":"a2","text":"   "}]
	}`
	var stored Stored
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))

	m := Merge(&stored, "salon")

	assert.Len(t, m.BusinessHours[Monday], 2)
	assert.Equal(t, []Interval{{Open: "10:00", Close: "14:00"}}, m.BusinessHours[Tuesday])
	assert.False(t, m.BusinessHours.IsOpen(Wednesday))
	assert.Equal(t, []Interval{DefaultInterval}, m.BusinessHours[Thursday], "null keeps the default")
	assert.Len(t, m.BusinessHours, 7)

	assert.Equal(t, "USD", m.Pricing.Currency)
	require.Len(t, m.Pricing.Services, 1)
	assert.Zero(t, m.Pricing.Services[0].Price)
	assert.Equal(t, 45, m.Pricing.Services[0].Duration)

	assert.True(t, m.Notifications.RemindersEnabled)
	assert.Equal(t, 12, m.Notifications.ReminderHoursBefore)
	assert.Equal(t, DefaultBookingSuccessMessage, m.Notifications.BookingSuccessMessage)

	assert.Equal(t, 2, m.Constraints.MaxPartySize)
	assert.Equal(t, 50, m.Constraints.MaxDailyAppointments, "negative values fall back")

	assert.Equal(t, "salon", m.Category)
	require.Len(t, m.ActiveConstraints, 1)
	assert.Equal(t, "a1", m.ActiveConstraints[0].ID)
}

func TestFlexIntRejectsGarbage(t *testing.T) {
	var n StoredNotifications
	err := json.Unmarshal([]byte(`{"reminderHoursBefore":"soon"}`), &n)
	require.Error(t, err)
}

func TestStoredDayMarshalsIntervalList(t *testing.T) {
	out, err := json.Marshal(map[string]StoredDay{"sunday": {}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"sunday":[]}`, string(out))
}

func TestCloneIsDeep(t *testing.T) {
	m := DefaultModel()
	m.Pricing.Services = []Service{{Name: "Cut", Price: 10, Duration: 30}}
	c := m.Clone()
	c.BusinessHours[Monday][0].Open = "06:00"
	c.Pricing.Services[0].Name = "Shave"

	assert.Equal(t, "09:00", m.BusinessHours[Monday][0].Open)
	assert.Equal(t, "Cut", m.Pricing.Services[0].Name)
}

func TestEqualIgnoresStagingAndNilVsEmpty(t *testing.T) {
	a := DefaultModel()
	b := DefaultModel()
	b.ImmediateConstraint = "Closed today"
	b.ActiveConstraints = nil
	assert.True(t, Equal(a, b))

	b.Category = "fitness"
	assert.False(t, Equal(a, b))
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, "professional_services", NormalizeCategory("  Professional   Services "))
	assert.True(t, ValidCategory(NormalizeCategory("Beauty")))
	assert.False(t, ValidCategory("bakery"))
}

func TestStoredRoundTripsThroughMerge(t *testing.T) {
	m := DefaultModel()
	m.Category = "salon"
	m.BusinessHours[Sunday] = []Interval{{Open: "10:00", Close: "14:00"}}
	m.BusinessHours[Monday] = []Interval{}
	m.Pricing.Services = []Service{{Name: "Haircut", Price: 35, Duration: 45}}
	m.BusinessData.Description = "Neighbourhood salon"
	m.Notifications.RemindersEnabled = false
	m.Constraints.MaxPartySize = 0
	m.ActiveConstraints = []ActiveConstraint{{ID: "c1", Text: "Closed today", AppliedAt: JustNow}}
	m.ImmediateConstraint = "staged"

	got := Merge(m.Stored(), "fitness")
	assert.True(t, Equal(m, got))
	assert.Empty(t, got.ImmediateConstraint)
	assert.Equal(t, 0, got.Constraints.MaxPartySize)
	assert.False(t, got.BusinessHours.IsOpen(Monday))
}
