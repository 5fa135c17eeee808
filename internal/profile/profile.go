// Package profile runs the interactive setup wizard that fills in the
// user's salary, working hours and work-app whitelist.
// Answers are written to the kv store through the settings package, and
// the presence of a saved salary marks setup as done.
package profile

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fakeyudi/moyu/internal/kv"
	"github.com/fakeyudi/moyu/internal/settings"
)

// maxSuggestions caps how many running apps are offered as whitelist hints.
const maxSuggestions = 12

// Exists reports whether setup has been completed against store.
func Exists(ctx context.Context, store kv.Store) bool {
	var salary float64
	found, err := store.Get(ctx, settings.KeySalary, &salary)
	return err == nil && found
}

// RunSetup prompts on out, reading answers from in. existing provides the
// default for every prompt (edit mode). suggestions are running apps shown
// as whitelist candidates.
func RunSetup(in io.Reader, out io.Writer, existing settings.Settings, suggestions []string) (settings.Settings, error) {
	r := bufio.NewReader(in)

	ask := func(prompt, defaultVal string) (string, error) {
		if defaultVal != "" {
			fmt.Fprintf(out, "%s [%s]: ", prompt, defaultVal)
		} else {
			fmt.Fprintf(out, "%s: ", prompt)
		}
		line, err := r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return defaultVal, nil
		}
		return line, nil
	}

	askNumber := func(prompt string, defaultVal float64) (float64, error) {
		for {
			ans, err := ask(prompt, strconv.FormatFloat(defaultVal, 'f', -1, 64))
			if err != nil {
				return 0, err
			}
			f, err := strconv.ParseFloat(ans, 64)
			if err == nil && f > 0 {
				return f, nil
			}
			fmt.Fprintln(out, "    Please enter a positive number.")
		}
	}

	askBool := func(prompt string, defaultVal bool) (bool, error) {
		def := "n"
		if defaultVal {
			def = "y"
		}
		ans, err := ask(prompt+" (y/n)", def)
		if err != nil {
			return false, err
		}
		return strings.ToLower(ans) == "y" || strings.ToLower(ans) == "yes", nil
	}

	s := existing

	fmt.Fprintln(out)
	fmt.Fprintln(out, "  ┌─────────────────────────────────┐")
	fmt.Fprintln(out, "  │     moyu — first-time setup     │")
	fmt.Fprintln(out, "  └─────────────────────────────────┘")
	fmt.Fprintln(out)

	var err error

	s.Compensation.MonthlySalary, err = askNumber("  Monthly salary", s.Compensation.MonthlySalary)
	if err != nil {
		return existing, err
	}
	s.Compensation.WorkDaysPerMonth, err = askNumber("  Work days per month", s.Compensation.WorkDaysPerMonth)
	if err != nil {
		return existing, err
	}
	s.Compensation.WorkHoursPerDay, err = askNumber("  Work hours per day", s.Compensation.WorkHoursPerDay)
	if err != nil {
		return existing, err
	}
	s.Compensation.CurrencySymbol, err = ask("  Currency symbol", s.Compensation.CurrencySymbol)
	if err != nil {
		return existing, err
	}

	if len(suggestions) > 0 {
		if len(suggestions) > maxSuggestions {
			suggestions = suggestions[:maxSuggestions]
		}
		fmt.Fprintf(out, "  Running apps: %s\n", strings.Join(suggestions, ", "))
	}
	apps, err := ask("  Work apps, comma-separated (anything else counts as loafing)", strings.Join(s.WorkApps, ","))
	if err != nil {
		return existing, err
	}
	s.WorkApps = splitApps(apps)

	s.TrackingEnabled, err = askBool("  Detect loafing automatically", s.TrackingEnabled)
	if err != nil {
		return existing, err
	}

	fmt.Fprintln(out)
	return s, nil
}

// splitApps parses a comma-separated answer, dropping blanks.
func splitApps(raw string) []string {
	apps := []string{}
	for _, a := range strings.Split(raw, ",") {
		if a = strings.TrimSpace(a); a != "" {
			apps = append(apps, a)
		}
	}
	return apps
}
