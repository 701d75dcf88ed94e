// Package schedule provides the timing primitives for background work: a
// 5-field cron parser, a file-lock overlap guard, a channel semaphore, and
// a runner that fires registered jobs on matching minutes.
package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CronExpr is a parsed 5-field cron expression.
// Fields: minute, hour, day-of-month, month, day-of-week.
type CronExpr struct {
	Minute     []int
	Hour       []int
	DayOfMonth []int
	Month      []int
	DayOfWeek  []int
}

// ParseCron parses a standard 5-field cron expression.
// Supports: *, */N, N, N-M, N-M/S, comma-separated values.
func ParseCron(expr string) (*CronExpr, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron: expected 5 fields, got %d", len(fields))
	}

	specs := []struct {
		name     string
		min, max int
		dst      *[]int
	}{
		{"minute", 0, 59, nil},
		{"hour", 0, 23, nil},
		{"day-of-month", 1, 31, nil},
		{"month", 1, 12, nil},
		{"day-of-week", 0, 6, nil},
	}
	out := &CronExpr{}
	specs[0].dst = &out.Minute
	specs[1].dst = &out.Hour
	specs[2].dst = &out.DayOfMonth
	specs[3].dst = &out.Month
	specs[4].dst = &out.DayOfWeek

	for i, spec := range specs {
		vals, err := parseField(fields[i], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("cron: %s: %w", spec.name, err)
		}
		*spec.dst = vals
	}
	return out, nil
}

// Matches reports whether t falls within the expression.
func (c *CronExpr) Matches(t time.Time) bool {
	return intIn(c.Minute, t.Minute()) &&
		intIn(c.Hour, t.Hour()) &&
		intIn(c.DayOfMonth, t.Day()) &&
		intIn(c.Month, int(t.Month())) &&
		intIn(c.DayOfWeek, int(t.Weekday()))
}

// Next returns the first matching time after t, searching up to two years
// ahead. Returns the zero time if nothing matches within that horizon.
func (c *CronExpr) Next(t time.Time) time.Time {
	candidate := t.Truncate(time.Minute).Add(time.Minute)
	limit := t.Add(2 * 365 * 24 * time.Hour)

	for candidate.Before(limit) {
		switch {
		case !intIn(c.Month, int(candidate.Month())):
			candidate = time.Date(candidate.Year(), candidate.Month()+1, 1, 0, 0, 0, 0, candidate.Location())
		case !intIn(c.DayOfMonth, candidate.Day()) || !intIn(c.DayOfWeek, int(candidate.Weekday())):
			candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day()+1, 0, 0, 0, 0, candidate.Location())
		case !intIn(c.Hour, candidate.Hour()):
			candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day(), candidate.Hour()+1, 0, 0, 0, candidate.Location())
		case !intIn(c.Minute, candidate.Minute()):
			candidate = candidate.Add(time.Minute)
		default:
			return candidate
		}
	}
	return time.Time{}
}

func parseField(field string, min, max int) ([]int, error) {
	if field == "*" {
		return rangeSlice(min, max, 1), nil
	}

	seen := make(map[int]bool)
	for _, part := range strings.Split(field, ",") {
		vals, err := parsePart(part, min, max)
		if err != nil {
			return nil, err
		}
		for _, v := range vals {
			seen[v] = true
		}
	}

	result := make([]int, 0, len(seen))
	for v := range seen {
		result = append(result, v)
	}
	sort.Ints(result)
	return result, nil
}

func parsePart(part string, min, max int) ([]int, error) {
	if strings.HasPrefix(part, "*/") {
		step, err := strconv.Atoi(part[2:])
		if err != nil || step <= 0 {
			return nil, fmt.Errorf("invalid step %q", part)
		}
		return rangeSlice(min, max, step), nil
	}

	if strings.Contains(part, "-") {
		rangeParts := strings.SplitN(part, "/", 2)
		bounds := strings.SplitN(rangeParts[0], "-", 2)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("invalid range %q", part)
		}
		lo, err := strconv.Atoi(bounds[0])
		if err != nil {
			return nil, fmt.Errorf("invalid range start %q", bounds[0])
		}
		hi, err := strconv.Atoi(bounds[1])
		if err != nil {
			return nil, fmt.Errorf("invalid range end %q", bounds[1])
		}
		if lo < min || hi > max || lo > hi {
			return nil, fmt.Errorf("range %d-%d out of bounds [%d,%d]", lo, hi, min, max)
		}
		step := 1
		if len(rangeParts) == 2 {
			step, err = strconv.Atoi(rangeParts[1])
			if err != nil || step <= 0 {
				return nil, fmt.Errorf("invalid step in %q", part)
			}
		}
		return rangeSlice(lo, hi, step), nil
	}

	val, err := strconv.Atoi(part)
	if err != nil {
		return nil, fmt.Errorf("invalid value %q", part)
	}
	if val < min || val > max {
		return nil, fmt.Errorf("value %d out of bounds [%d,%d]", val, min, max)
	}
	return []int{val}, nil
}

func rangeSlice(min, max, step int) []int {
	out := make([]int, 0, (max-min)/step+1)
	for i := min; i <= max; i += step {
		out = append(out, i)
	}
	return out
}

func intIn(set []int, val int) bool {
	for _, v := range set {
		if v == val {
			return true
		}
	}
	return false
}
