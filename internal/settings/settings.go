// Package settings holds the user's preferences, stored in the kv store so
// the daemon and one-shot commands share them.
package settings

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/fakeyudi/moyu/internal/earnings"
	"github.com/fakeyudi/moyu/internal/kv"
)

// Store keys.
const (
	KeyWorkApps  = "workApps"
	KeySalary    = "salary"
	KeyWorkDays  = "workDays"
	KeyWorkHours = "workHours"
	KeyCurrency  = "currency"
	KeyTracking  = "isTrackingEnabled"
)

// ErrUnknownKey is returned by Get and Set for keys outside Keys().
var ErrUnknownKey = errors.New("unknown setting")

// Settings is the full preference set.
type Settings struct {
	WorkApps        []string              `json:"work_apps" yaml:"work_apps"`
	Compensation    earnings.Compensation `json:"compensation" yaml:"compensation"`
	TrackingEnabled bool                  `json:"tracking_enabled" yaml:"tracking_enabled"`
}

// Defaults has no whitelist, the default salary and tracking on.
func Defaults() Settings {
	return Settings{
		WorkApps:        []string{},
		Compensation:    earnings.Defaults(),
		TrackingEnabled: true,
	}
}

// Keys lists the settable keys in display order.
func Keys() []string {
	return []string{KeyWorkApps, KeySalary, KeyWorkDays, KeyWorkHours, KeyCurrency, KeyTracking}
}

// Load reads every key, keeping the default for absent ones.
func Load(ctx context.Context, store kv.Store) (Settings, error) {
	s := Defaults()
	fields := []struct {
		key string
		dst any
	}{
		{KeyWorkApps, &s.WorkApps},
		{KeySalary, &s.Compensation.MonthlySalary},
		{KeyWorkDays, &s.Compensation.WorkDaysPerMonth},
		{KeyWorkHours, &s.Compensation.WorkHoursPerDay},
		{KeyCurrency, &s.Compensation.CurrencySymbol},
		{KeyTracking, &s.TrackingEnabled},
	}
	for _, f := range fields {
		if _, err := store.Get(ctx, f.key, f.dst); err != nil {
			return Defaults(), fmt.Errorf("loading %s: %w", f.key, err)
		}
	}
	if s.WorkApps == nil {
		s.WorkApps = []string{}
	}
	return s, nil
}

// Save writes every key.
func Save(ctx context.Context, store kv.Store, s Settings) error {
	values := map[string]any{
		KeyWorkApps:  cleanApps(s.WorkApps),
		KeySalary:    s.Compensation.MonthlySalary,
		KeyWorkDays:  s.Compensation.WorkDaysPerMonth,
		KeyWorkHours: s.Compensation.WorkHoursPerDay,
		KeyCurrency:  s.Compensation.CurrencySymbol,
		KeyTracking:  s.TrackingEnabled,
	}
	for _, key := range Keys() {
		if err := store.Set(ctx, key, values[key]); err != nil {
			return fmt.Errorf("saving %s: %w", key, err)
		}
	}
	return nil
}

// Get renders one setting as text.
func Get(ctx context.Context, store kv.Store, key string) (string, error) {
	s, err := Load(ctx, store)
	if err != nil {
		return "", err
	}
	switch key {
	case KeyWorkApps:
		return strings.Join(s.WorkApps, ","), nil
	case KeySalary:
		return formatFloat(s.Compensation.MonthlySalary), nil
	case KeyWorkDays:
		return formatFloat(s.Compensation.WorkDaysPerMonth), nil
	case KeyWorkHours:
		return formatFloat(s.Compensation.WorkHoursPerDay), nil
	case KeyCurrency:
		return s.Compensation.CurrencySymbol, nil
	case KeyTracking:
		return strconv.FormatBool(s.TrackingEnabled), nil
	default:
		return "", fmt.Errorf("%w %q (valid: %s)", ErrUnknownKey, key, strings.Join(Keys(), ", "))
	}
}

// Set parses raw for key and stores it. workApps takes a comma-separated list.
func Set(ctx context.Context, store kv.Store, key, raw string) error {
	var value any
	switch key {
	case KeyWorkApps:
		value = cleanApps(strings.Split(raw, ","))
	case KeySalary, KeyWorkDays, KeyWorkHours:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || f < 0 {
			return fmt.Errorf("%s must be a non-negative number, got %q", key, raw)
		}
		value = f
	case KeyCurrency:
		value = strings.TrimSpace(raw)
	case KeyTracking:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s must be true or false, got %q", key, raw)
		}
		value = b
	default:
		return fmt.Errorf("%w %q (valid: %s)", ErrUnknownKey, key, strings.Join(Keys(), ", "))
	}
	if err := store.Set(ctx, key, value); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	return nil
}

// Reset deletes every setting so defaults apply again.
func Reset(ctx context.Context, store kv.Store) error {
	for _, key := range Keys() {
		if err := store.Delete(ctx, key); err != nil {
			return fmt.Errorf("resetting %s: %w", key, err)
		}
	}
	return nil
}

// cleanApps trims entries and drops blanks and duplicates.
func cleanApps(apps []string) []string {
	out := make([]string, 0, len(apps))
	for _, a := range apps {
		a = strings.TrimSpace(a)
		if a != "" && !slices.Contains(out, a) {
			out = append(out, a)
		}
	}
	return out
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
