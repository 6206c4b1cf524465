package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnknownPath is returned when a patch path does not name a field.
	ErrUnknownPath = errors.New("settings: unknown path")
	// ErrInvalidValue is returned when a value has the wrong type or range.
	ErrInvalidValue = errors.New("settings: invalid value")
	// ErrIndexOutOfRange is returned for row operations past the end of a list.
	ErrIndexOutOfRange = errors.New("settings: index out of range")
	// ErrUnknownDay is returned for weekday keys outside the fixed seven.
	ErrUnknownDay = errors.New("settings: unknown day")
	// ErrConstraintNotFound is returned when removing an unknown active constraint.
	ErrConstraintNotFound = errors.New("settings: active constraint not found")
)

// DefaultServiceDuration is the duration of a freshly added service row.
const DefaultServiceDuration = 30

// ApplyPatch returns a copy of m with the leaf at path set to value. m is not
// modified. Paths are dot separated with numeric list indices, for example
// "notifications.remindersEnabled", "pricing.services.0.price" or
// "businessHours.monday.1.close". Values may be JSON-decoded (float64, string,
// bool, json.Number) or native Go values.
func ApplyPatch(m Model, path string, value any) (Model, error) {
	out := m.Clone()
	seg := strings.Split(strings.TrimSpace(path), ".")
	if err := applyPatch(&out, seg, value); err != nil {
		return m, fmt.Errorf("%w (%s)", err, path)
	}
	return out, nil
}

func applyPatch(m *Model, seg []string, value any) error {
	switch seg[0] {
	case "category":
		if len(seg) != 1 {
			return ErrUnknownPath
		}
		s, err := asString(value)
		if err != nil {
			return err
		}
		c := NormalizeCategory(s)
		if !ValidCategory(c) {
			return fmt.Errorf("%w: category %q", ErrInvalidValue, s)
		}
		m.Category = c
		return nil
	case "immediateConstraint":
		if len(seg) != 1 {
			return ErrUnknownPath
		}
		s, err := asString(value)
		if err != nil {
			return err
		}
		m.ImmediateConstraint = s
		return nil
	case "businessData":
		if len(seg) != 2 {
			return ErrUnknownPath
		}
		return patchBusinessData(&m.BusinessData, seg[1], value)
	case "notifications":
		if len(seg) != 2 {
			return ErrUnknownPath
		}
		return patchNotifications(&m.Notifications, seg[1], value)
	case "constraints":
		if len(seg) != 2 {
			return ErrUnknownPath
		}
		return patchConstraints(&m.Constraints, seg[1], value)
	case "pricing":
		return patchPricing(&m.Pricing, seg[1:], value)
	case "businessHours":
		return patchHours(m.BusinessHours, seg[1:], value)
	}
	return ErrUnknownPath
}

func patchBusinessData(d *BusinessData, field string, value any) error {
	s, err := asString(value)
	if err != nil {
		return err
	}
	switch field {
	case "description":
		d.Description = s
	case "specialties":
		d.Specialties = s
	case "policies":
		d.Policies = s
	default:
		return ErrUnknownPath
	}
	return nil
}

func patchNotifications(n *Notifications, field string, value any) error {
	switch field {
	case "remindersEnabled":
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%w: want bool, got %T", ErrInvalidValue, value)
		}
		n.RemindersEnabled = b
	case "reminderHoursBefore":
		v, err := asNonNegativeInt(value)
		if err != nil {
			return err
		}
		n.ReminderHoursBefore = v
	case "bookingSuccessMessage":
		s, err := asString(value)
		if err != nil {
			return err
		}
		n.BookingSuccessMessage = s
	default:
		return ErrUnknownPath
	}
	return nil
}

func patchConstraints(c *Constraints, field string, value any) error {
	var dst *int
	switch field {
	case "maxDailyAppointments":
		dst = &c.MaxDailyAppointments
	case "minAdvanceBookingHours":
		dst = &c.MinAdvanceBookingHours
	case "maxAdvanceBookingDays":
		dst = &c.MaxAdvanceBookingDays
	case "cancellationWindowHours":
		dst = &c.CancellationWindowHours
	case "maxPartySize":
		dst = &c.MaxPartySize
	default:
		return ErrUnknownPath
	}
	v, err := asNonNegativeInt(value)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func patchPricing(p *Pricing, seg []string, value any) error {
	if len(seg) == 1 && seg[0] == "currency" {
		s, err := asString(value)
		if err != nil {
			return err
		}
		s = strings.ToUpper(strings.TrimSpace(s))
		if len(s) != 3 {
			return fmt.Errorf("%w: currency %q", ErrInvalidValue, s)
		}
		p.Currency = s
		return nil
	}
	if len(seg) != 3 || seg[0] != "services" {
		return ErrUnknownPath
	}
	i, err := index(seg[1], len(p.Services))
	if err != nil {
		return err
	}
	svc := &p.Services[i]
	switch seg[2] {
	case "name":
		s, err := asString(value)
		if err != nil {
			return err
		}
		svc.Name = s
	case "price":
		f, err := asFloat(value)
		if err != nil {
			return err
		}
		if f < 0 {
			return fmt.Errorf("%w: price must not be negative", ErrInvalidValue)
		}
		svc.Price = f
	case "duration":
		v, err := asNonNegativeInt(value)
		if err != nil {
			return err
		}
		svc.Duration = v
	default:
		return ErrUnknownPath
	}
	return nil
}

func patchHours(h BusinessHours, seg []string, value any) error {
	if len(seg) != 3 {
		return ErrUnknownPath
	}
	day, ok := ParseWeekday(seg[0])
	if !ok {
		return ErrUnknownDay
	}
	i, err := index(seg[1], len(h[day]))
	if err != nil {
		return err
	}
	s, err := asString(value)
	if err != nil {
		return err
	}
	if _, err := time.Parse("15:04", s); err != nil {
		return fmt.Errorf("%w: time %q, want HH:MM", ErrInvalidValue, s)
	}
	switch seg[2] {
	case "open":
		h[day][i].Open = s
	case "close":
		h[day][i].Close = s
	default:
		return ErrUnknownPath
	}
	return nil
}

// AddInterval appends DefaultInterval to day.
func AddInterval(m Model, day Weekday) (Model, error) {
	if _, ok := ParseWeekday(string(day)); !ok {
		return m, ErrUnknownDay
	}
	out := m.Clone()
	out.BusinessHours[day] = append(out.BusinessHours[day], DefaultInterval)
	return out, nil
}

// RemoveInterval drops interval i of day. Removing the last one closes the day.
func RemoveInterval(m Model, day Weekday, i int) (Model, error) {
	if _, ok := ParseWeekday(string(day)); !ok {
		return m, ErrUnknownDay
	}
	if i < 0 || i >= len(m.BusinessHours[day]) {
		return m, ErrIndexOutOfRange
	}
	out := m.Clone()
	list := out.BusinessHours[day]
	out.BusinessHours[day] = append(list[:i:i], list[i+1:]...)
	return out, nil
}

// SetDayOpen switches a day open or closed. Closing discards its intervals;
// opening a closed day seeds exactly one DefaultInterval; opening an open day
// changes nothing.
func SetDayOpen(m Model, day Weekday, open bool) (Model, error) {
	if _, ok := ParseWeekday(string(day)); !ok {
		return m, ErrUnknownDay
	}
	out := m.Clone()
	switch {
	case !open:
		out.BusinessHours[day] = []Interval{}
	case !out.BusinessHours.IsOpen(day):
		out.BusinessHours[day] = []Interval{DefaultInterval}
	}
	return out, nil
}

// AddService appends an empty service row.
func AddService(m Model) Model {
	out := m.Clone()
	out.Pricing.Services = append(out.Pricing.Services, Service{Duration: DefaultServiceDuration})
	return out
}

// RemoveService drops service row i; later rows shift down by one.
func RemoveService(m Model, i int) (Model, error) {
	if i < 0 || i >= len(m.Pricing.Services) {
		return m, ErrIndexOutOfRange
	}
	out := m.Clone()
	list := out.Pricing.Services
	out.Pricing.Services = append(list[:i:i], list[i+1:]...)
	return out, nil
}

// RemoveActiveConstraint drops the active constraint with the given id.
func RemoveActiveConstraint(m Model, id string) (Model, error) {
	for i, c := range m.ActiveConstraints {
		if c.ID != id {
			continue
		}
		out := m.Clone()
		list := out.ActiveConstraints
		out.ActiveConstraints = append(list[:i:i], list[i+1:]...)
		return out, nil
	}
	return m, ErrConstraintNotFound
}

func index(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrUnknownPath
	}
	if i < 0 || i >= n {
		return 0, ErrIndexOutOfRange
	}
	return i, nil
}

func asString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: want string, got %T", ErrInvalidValue, v)
	}
	return s, nil
}

func asFloat(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, x)
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, x)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: want number, got %T", ErrInvalidValue, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: not a finite number", ErrInvalidValue)
	}
	return f, nil
}

func asNonNegativeInt(v any) (int, error) {
	f, err := asFloat(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %v is not a whole number", ErrInvalidValue, f)
	}
	if f < 0 {
		return 0, fmt.Errorf("%w: %v must not be negative", ErrInvalidValue, f)
	}
	return int(f), nil
}
