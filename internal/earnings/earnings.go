// Package earnings converts break time into what the employer paid for it.
package earnings

import (
	"errors"
	"strconv"
)

// ErrConfigurationMissing reports that salary, days or hours are unset.
// Callers use it to explain a zero rate; it is never fatal.
var ErrConfigurationMissing = errors.New("compensation not configured")

// Compensation describes how the user is paid.
type Compensation struct {
	MonthlySalary    float64 `json:"salary"`
	WorkDaysPerMonth float64 `json:"work_days"`
	WorkHoursPerDay  float64 `json:"work_hours"`
	CurrencySymbol   string  `json:"currency,omitempty"`
}

// Defaults match a typical full-time schedule on a 10k monthly salary.
func Defaults() Compensation {
	return Compensation{
		MonthlySalary:    10000,
		WorkDaysPerMonth: 22,
		WorkHoursPerDay:  8,
		CurrencySymbol:   "¥",
	}
}

// Validate returns ErrConfigurationMissing when any factor is not positive.
func (c Compensation) Validate() error {
	if c.MonthlySalary <= 0 || c.WorkDaysPerMonth <= 0 || c.WorkHoursPerDay <= 0 {
		return ErrConfigurationMissing
	}
	return nil
}

// Rate is the pay per second of work time. An incomplete configuration
// yields zero rather than a division fault.
func Rate(c Compensation) float64 {
	if c.Validate() != nil {
		return 0
	}
	return c.MonthlySalary / (c.WorkDaysPerMonth * c.WorkHoursPerDay * 3600)
}

// Earned is what durationSeconds of break time was worth.
func Earned(durationSeconds float64, c Compensation) float64 {
	if durationSeconds <= 0 {
		return 0
	}
	return durationSeconds * Rate(c)
}

// HourlyRate is Rate scaled to an hour.
func HourlyRate(c Compensation) float64 {
	return Rate(c) * 3600
}

// Format renders an amount with the currency symbol and two decimals.
func Format(amount float64, currency string) string {
	return currency + strconv.FormatFloat(amount, 'f', 2, 64)
}
