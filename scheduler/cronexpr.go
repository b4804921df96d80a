package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var cronDescriptors = map[string]string{
	"@yearly":   "0 0 1 1 *",
	"@annually": "0 0 1 1 *",
	"@monthly":  "0 0 1 * *",
	"@weekly":   "0 0 * * 0",
	"@daily":    "0 0 * * *",
	"@midnight": "0 0 * * *",
	"@hourly":   "0 * * * *",
}

// cronExpr is a standard 5-field expression evaluated in loc.
type cronExpr struct {
	raw    string
	loc    *time.Location
	minute *valueSet
	hour   *valueSet
	dom    *valueSet
	month  *valueSet
	dow    *valueSet

	domAny bool
	dowAny bool
}

func parseCronExpr(expr string, loc *time.Location) (*cronExpr, error) {
	raw := strings.TrimSpace(expr)
	if d, ok := cronDescriptors[strings.ToLower(raw)]; ok {
		raw = d
	}
	fields := strings.Fields(raw)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression (expected 5 fields): %q", expr)
	}
	if loc == nil {
		loc = time.UTC
	}

	minute, err := parseField(fields[0], 0, 59)
	if err != nil {
		return nil, fmt.Errorf("minute: %w", err)
	}
	hour, err := parseField(fields[1], 0, 23)
	if err != nil {
		return nil, fmt.Errorf("hour: %w", err)
	}
	dom, err := parseField(fields[2], 1, 31)
	if err != nil {
		return nil, fmt.Errorf("dom: %w", err)
	}
	month, err := parseField(fields[3], 1, 12)
	if err != nil {
		return nil, fmt.Errorf("month: %w", err)
	}
	// 7 is accepted as Sunday.
	dow, err := parseField(fields[4], 0, 7)
	if err != nil {
		return nil, fmt.Errorf("dow: %w", err)
	}
	if dow.has(7) && !dow.all {
		dow.val[0] = struct{}{}
	}

	return &cronExpr{
		raw:    strings.TrimSpace(expr),
		loc:    loc,
		minute: minute,
		hour:   hour,
		dom:    dom,
		month:  month,
		dow:    dow,
		domAny: strings.TrimSpace(fields[2]) == "*",
		dowAny: strings.TrimSpace(fields[4]) == "*",
	}, nil
}

func (e *cronExpr) String() string { return e.raw }

// next returns the first matching minute strictly after "after". Days that cannot match are skipped whole.
func (e *cronExpr) next(after time.Time) (time.Time, error) {
	t := after.In(e.loc).Add(time.Minute).Truncate(time.Minute)
	limit := t.AddDate(5, 0, 0)
	for t.Before(limit) {
		if !e.month.has(int(t.Month())) || !e.dayMatches(t) {
			y, m, d := t.Date()
			t = time.Date(y, m, d+1, 0, 0, 0, 0, e.loc)
			continue
		}
		if !e.hour.has(t.Hour()) {
			y, m, d := t.Date()
			t = time.Date(y, m, d, t.Hour()+1, 0, 0, 0, e.loc)
			continue
		}
		if !e.minute.has(t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("no matching time within search window for %q", e.raw)
}

// dayMatches applies cron's rule: when both day fields are restricted either may match.
func (e *cronExpr) dayMatches(t time.Time) bool {
	domMatch := e.dom.has(t.Day())
	dowMatch := e.dow.has(int(t.Weekday()))
	if !e.domAny && !e.dowAny {
		return domMatch || dowMatch
	}
	if !e.domAny && !domMatch {
		return false
	}
	if !e.dowAny && !dowMatch {
		return false
	}
	return true
}

type valueSet struct {
	all bool
	val map[int]struct{}
}

func (s *valueSet) has(v int) bool {
	if s == nil {
		return false
	}
	if s.all {
		return true
	}
	_, ok := s.val[v]
	return ok
}

// parseField accepts "*", "n", "a-b", "*/s", "a-b/s" and comma lists of those.
func parseField(tok string, min, max int) (*valueSet, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return nil, fmt.Errorf("empty field")
	}
	if tok == "*" {
		return &valueSet{all: true}, nil
	}

	out := &valueSet{val: make(map[int]struct{})}
	for _, p := range strings.Split(tok, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		lo, hi, step := min, max, 1
		rangePart := p
		if i := strings.Index(p, "/"); i >= 0 {
			s, err := strconv.Atoi(p[i+1:])
			if err != nil || s <= 0 {
				return nil, fmt.Errorf("invalid step %q", p)
			}
			step = s
			rangePart = p[:i]
		}
		switch {
		case rangePart == "*":
		case strings.Contains(rangePart, "-"):
			a, b, _ := strings.Cut(rangePart, "-")
			var err error
			if lo, err = strconv.Atoi(a); err != nil {
				return nil, fmt.Errorf("invalid range %q", p)
			}
			if hi, err = strconv.Atoi(b); err != nil {
				return nil, fmt.Errorf("invalid range %q", p)
			}
		default:
			n, err := strconv.Atoi(rangePart)
			if err != nil {
				return nil, fmt.Errorf("invalid value %q", p)
			}
			lo, hi = n, n
			if step > 1 {
				hi = max
			}
		}
		if lo < min || hi > max || lo > hi {
			return nil, fmt.Errorf("value %q out of range (%d-%d)", p, min, max)
		}
		for v := lo; v <= hi; v += step {
			out.val[v] = struct{}{}
		}
	}
	if len(out.val) == 0 {
		return nil, fmt.Errorf("no values parsed from %q", tok)
	}
	return out, nil
}
