package settings

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPatchLeaves(t *testing.T) {
	base := AddService(DefaultModel())

	tests := []struct {
		name  string
		path  string
		value any
		check func(t *testing.T, m Model)
	}{
		{"category", "category", "Fitness", func(t *testing.T, m Model) {
			assert.Equal(t, "fitness", m.Category)
		}},
		{"description", "businessData.description", "Family run", func(t *testing.T, m Model) {
			assert.Equal(t, "Family run", m.BusinessData.Description)
		}},
		{"reminders off", "notifications.remindersEnabled", false, func(t *testing.T, m Model) {
			assert.False(t, m.Notifications.RemindersEnabled)
		}},
		{"reminder hours as string", "notifications.reminderHoursBefore", "48", func(t *testing.T, m Model) {
			assert.Equal(t, 48, m.Notifications.ReminderHoursBefore)
		}},
		{"constraint from json number", "constraints.maxPartySize", json.Number("8"), func(t *testing.T, m Model) {
			assert.Equal(t, 8, m.Constraints.MaxPartySize)
		}},
		{"currency", "pricing.currency", "eur", func(t *testing.T, m Model) {
			assert.Equal(t, "EUR", m.Pricing.Currency)
		}},
		{"service price", "pricing.services.0.price", 40.0, func(t *testing.T, m Model) {
			assert.Equal(t, 40.0, m.Pricing.Services[0].Price)
		}},
		{"interval close", "businessHours.monday.0.close", "19:30", func(t *testing.T, m Model) {
			assert.Equal(t, "19:30", m.BusinessHours[Monday][0].Close)
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := ApplyPatch(base, tc.path, tc.value)
			require.NoError(t, err)
			tc.check(t, out)
		})
	}
	assert.True(t, Equal(base, AddService(DefaultModel())), "input model is not modified")
}

func TestApplyPatchErrors(t *testing.T) {
	base := DefaultModel()

	tests := []struct {
		path  string
		value any
		want  error
	}{
		{"nope", "x", ErrUnknownPath},
		{"businessData.motto", "x", ErrUnknownPath},
		{"category", "bakery", ErrInvalidValue},
		{"constraints.maxPartySize", -1, ErrInvalidValue},
		{"constraints.maxPartySize", 1.5, ErrInvalidValue},
		{"notifications.remindersEnabled", "yes", ErrInvalidValue},
		{"pricing.services.0.price", 10, ErrIndexOutOfRange},
		{"businessHours.funday.0.open", "09:00", ErrUnknownDay},
		{"businessHours.sunday.0.open", "09:00", ErrIndexOutOfRange},
		{"businessHours.monday.0.open", "9am", ErrInvalidValue},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			out, err := ApplyPatch(base, tc.path, tc.value)
			require.ErrorIs(t, err, tc.want)
			assert.True(t, Equal(base, out))
		})
	}
}

func TestIntervalOperationsKeepOpenDerived(t *testing.T) {
	m := DefaultModel()
	var err error

	m, err = AddInterval(m, Monday)
	require.NoError(t, err)
	require.Len(t, m.BusinessHours[Monday], 2)

	m, err = RemoveInterval(m, Monday, 0)
	require.NoError(t, err)
	m, err = RemoveInterval(m, Monday, 0)
	require.NoError(t, err)
	assert.Empty(t, m.BusinessHours[Monday])
	assert.False(t, m.BusinessHours.IsOpen(Monday))

	m, err = SetDayOpen(m, Monday, true)
	require.NoError(t, err)
	assert.Equal(t, []Interval{DefaultInterval}, m.BusinessHours[Monday])

	m, err = AddInterval(m, Monday)
	require.NoError(t, err)
	m, err = SetDayOpen(m, Monday, true)
	require.NoError(t, err)
	assert.Len(t, m.BusinessHours[Monday], 2, "opening an open day changes nothing")

	m, err = SetDayOpen(m, Monday, false)
	require.NoError(t, err)
	assert.False(t, m.BusinessHours.IsOpen(Monday))

	_, err = RemoveInterval(m, Monday, 0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = AddInterval(m, Weekday("funday"))
	assert.ErrorIs(t, err, ErrUnknownDay)
}

func TestRemoveServiceReindexes(t *testing.T) {
	m := DefaultModel()
	for _, name := range []string{"a", "b", "c"} {
		m = AddService(m)
		var err error
		m, err = ApplyPatch(m, "pricing.services."+strconv.Itoa(len(m.Pricing.Services)-1)+".name", name)
		require.NoError(t, err)
	}

	m, err := RemoveService(m, 1)
	require.NoError(t, err)
	require.Len(t, m.Pricing.Services, 2)
	assert.Equal(t, "a", m.Pricing.Services[0].Name)
	assert.Equal(t, "c", m.Pricing.Services[1].Name)
	assert.Equal(t, DefaultServiceDuration, m.Pricing.Services[1].Duration)

	_, err = RemoveService(m, 2)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestRemoveActiveConstraint(t *testing.T) {
	m := DefaultModel()
	m.ActiveConstraints = []ActiveConstraint{
		{ID: "1", Text: "Closed today", AppliedAt: JustNow},
		{ID: "2", Text: "No walk-ins", AppliedAt: JustNow},
	}
	out, err := RemoveActiveConstraint(m, "1")
	require.NoError(t, err)
	require.Len(t, out.ActiveConstraints, 1)
	assert.Equal(t, "2", out.ActiveConstraints[0].ID)
	assert.Len(t, m.ActiveConstraints, 2)

	_, err = RemoveActiveConstraint(m, "9")
	assert.ErrorIs(t, err, ErrConstraintNotFound)
}
