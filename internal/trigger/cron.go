// Package trigger computes next-fire times for cron and interval
// scheduled jobs.
package trigger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
)

// ErrInvalidCronField is returned when a cron field expression cannot
// be parsed.
var ErrInvalidCronField = errors.New("invalid cron field")

// searchHorizonYears bounds the next-fire search so an unsatisfiable
// field set terminates instead of spinning.
const searchHorizonYears = 5

// Field bounds.
const (
	minYear = 1970
	maxYear = 2099
)

// dayOfWeekNames maps three-letter names to 0=Monday numbering.
var dayOfWeekNames = map[string]int{
	"mon": 0, "tue": 1, "wed": 2, "thu": 3, "fri": 4, "sat": 5, "sun": 6,
}

// cronField is one compiled field of a cron schedule.
type cronField struct {
	min, max int
	wildcard bool
	step     int          // 0 means no step; with wildcard, fires every step-th value from min
	values   map[int]bool // nil for wildcard
}

// matches reports whether v satisfies the field.
func (f cronField) matches(v int) bool {
	if f.wildcard {
		if f.step > 1 {
			return (v-f.min)%f.step == 0
		}
		return true
	}
	return f.values[v]
}

// parseCronField compiles one field expression. Accepted forms:
// "*", "*/n", a literal, a range "a-b", and comma-lists of literals
// and ranges. names optionally maps symbolic values (day-of-week).
func parseCronField(expr string, minVal, maxVal int, names map[string]int) (cronField, error) {
	f := cronField{min: minVal, max: maxVal}
	expr = strings.TrimSpace(strings.ToLower(expr))

	if expr == "" || expr == "*" {
		f.wildcard = true
		return f, nil
	}

	if stepStr, ok := strings.CutPrefix(expr, "*/"); ok {
		step, err := strconv.Atoi(stepStr)
		if err != nil || step <= 0 {
			return f, fmt.Errorf("%w: bad step %q", ErrInvalidCronField, expr)
		}
		f.wildcard = true
		f.step = step
		return f, nil
	}

	f.values = make(map[int]bool)
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			loVal, loErr := parseCronValue(lo, names)
			hiVal, hiErr := parseCronValue(hi, names)
			if loErr != nil || hiErr != nil || loVal > hiVal {
				return f, fmt.Errorf("%w: bad range %q", ErrInvalidCronField, part)
			}
			for v := loVal; v <= hiVal; v++ {
				if v < minVal || v > maxVal {
					return f, fmt.Errorf("%w: %d out of range [%d,%d]", ErrInvalidCronField, v, minVal, maxVal)
				}
				f.values[v] = true
			}
			continue
		}

		v, err := parseCronValue(part, names)
		if err != nil {
			return f, fmt.Errorf("%w: %q", ErrInvalidCronField, part)
		}
		if v < minVal || v > maxVal {
			return f, fmt.Errorf("%w: %d out of range [%d,%d]", ErrInvalidCronField, v, minVal, maxVal)
		}
		f.values[v] = true
	}

	if len(f.values) == 0 {
		return f, fmt.Errorf("%w: empty field %q", ErrInvalidCronField, expr)
	}
	return f, nil
}

func parseCronValue(s string, names map[string]int) (int, error) {
	s = strings.TrimSpace(s)
	if names != nil {
		if v, ok := names[s]; ok {
			return v, nil
		}
	}
	return strconv.Atoi(s)
}

// fixedField builds a single-literal field, used for defaulting
// positional fields below the smallest explicitly set one.
func fixedField(v, minVal, maxVal int) cronField {
	return cronField{min: minVal, max: maxVal, values: map[int]bool{v: true}}
}

// wildcardField builds an unconstrained field.
func wildcardField(minVal, maxVal int) cronField {
	return cronField{min: minVal, max: maxVal, wildcard: true}
}

// CronSchedule is a compiled field-wise cron trigger.
type CronSchedule struct {
	year, month, day     cronField
	week, dayOfWeek      cronField
	hour, minute, second cronField
}

// CompileCron compiles a cron config, applying standard cron-field
// defaulting: positional fields coarser than the smallest set field
// default to wildcard, finer ones to their minimum. Week and
// day_of_week act as pure constraints and default to wildcard.
func CompileCron(cfg domain.CronConfig) (*CronSchedule, error) {
	// Positional fields from coarsest to finest.
	exprs := []string{cfg.Year, cfg.Month, cfg.Day, cfg.Hour, cfg.Minute, cfg.Second}
	mins := []int{minYear, 1, 1, 0, 0, 0}
	maxs := []int{maxYear, 12, 31, 23, 59, 59}

	smallest := -1
	for i, e := range exprs {
		if strings.TrimSpace(e) != "" {
			smallest = i
		}
	}
	if smallest == -1 && strings.TrimSpace(cfg.Week) == "" && strings.TrimSpace(cfg.DayOfWeek) == "" {
		return nil, fmt.Errorf("%w: no cron fields set", ErrInvalidCronField)
	}

	fields := make([]cronField, len(exprs))
	for i, e := range exprs {
		switch {
		case strings.TrimSpace(e) != "":
			f, err := parseCronField(e, mins[i], maxs[i], nil)
			if err != nil {
				return nil, err
			}
			fields[i] = f
		case i <= smallest:
			fields[i] = wildcardField(mins[i], maxs[i])
		default:
			fields[i] = fixedField(mins[i], mins[i], maxs[i])
		}
	}

	week, err := parseCronField(cfg.Week, 1, 53, nil)
	if err != nil {
		return nil, err
	}
	dow, err := parseCronField(cfg.DayOfWeek, 0, 6, dayOfWeekNames)
	if err != nil {
		return nil, err
	}

	return &CronSchedule{
		year:      fields[0],
		month:     fields[1],
		day:       fields[2],
		hour:      fields[3],
		minute:    fields[4],
		second:    fields[5],
		week:      week,
		dayOfWeek: dow,
	}, nil
}

// Next returns the smallest time strictly after `after` matching all
// fields, in the given location. ok is false when no match exists
// within the search horizon.
func (s *CronSchedule) Next(after time.Time, loc *time.Location) (time.Time, bool) {
	t := after.In(loc).Truncate(time.Second).Add(time.Second)
	horizon := after.Year() + searchHorizonYears

	for t.Year() <= horizon && t.Year() <= maxYear {
		if !s.year.matches(t.Year()) {
			t = time.Date(t.Year()+1, time.January, 1, 0, 0, 0, 0, loc)
			continue
		}
		if !s.month.matches(int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, loc)
			continue
		}
		if !s.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
			continue
		}
		if !s.hour.matches(t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, loc)
			continue
		}
		if !s.minute.matches(t.Minute()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute()+1, 0, 0, loc)
			continue
		}
		if !s.second.matches(t.Second()) {
			t = t.Add(time.Second)
			continue
		}
		return t.UTC(), true
	}

	return time.Time{}, false
}

// dayMatches combines the day-of-month, ISO-week, and day-of-week
// constraints (0=Monday).
func (s *CronSchedule) dayMatches(t time.Time) bool {
	if !s.day.matches(t.Day()) {
		return false
	}
	if !s.week.wildcard || s.week.step > 1 {
		_, isoWeek := t.ISOWeek()
		if !s.week.matches(isoWeek) {
			return false
		}
	}
	if !s.dayOfWeek.wildcard || s.dayOfWeek.step > 1 {
		monBased := (int(t.Weekday()) + 6) % 7
		if !s.dayOfWeek.matches(monBased) {
			return false
		}
	}
	return true
}
