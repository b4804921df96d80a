package reports

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Period identifies one reporting week, written as "1Q-03".
type Period struct {
	Quarter string
	Week    int
}

func ParsePeriod(raw string) (Period, error) {
	raw = strings.TrimSpace(raw)
	quarter, week, ok := strings.Cut(raw, "-")
	if !ok {
		return Period{}, fmt.Errorf("invalid period %q: expected <quarter>-<week>", raw)
	}
	quarter = strings.ToUpper(strings.TrimSpace(quarter))
	if quarter == "" {
		return Period{}, fmt.Errorf("invalid period %q: empty quarter", raw)
	}
	n, err := strconv.Atoi(strings.TrimSpace(week))
	if err != nil || n <= 0 {
		return Period{}, fmt.Errorf("invalid period %q: bad week", raw)
	}
	return Period{Quarter: quarter, Week: n}, nil
}

func (p Period) String() string {
	return fmt.Sprintf("%s-%02d", p.Quarter, p.Week)
}

// MonthPlan lists the reporting weeks that belong to a calendar month.
type MonthPlan struct {
	Quarter string `yaml:"quarter" mapstructure:"quarter" json:"quarter"`
	Weeks   []int  `yaml:"weeks" mapstructure:"weeks" json:"weeks"`
}

func (p MonthPlan) Periods() []Period {
	out := make([]Period, 0, len(p.Weeks))
	for _, w := range p.Weeks {
		out = append(out, Period{Quarter: p.Quarter, Week: w})
	}
	return out
}

// Calendar maps a month (1-12) to its reporting weeks.
type Calendar map[int]MonthPlan

// DefaultCalendar follows a four-quarter academic year starting in April.
// Months without classes have no reporting weeks.
func DefaultCalendar() Calendar {
	return Calendar{
		4:  {Quarter: "1Q", Weeks: []int{1, 2, 3, 4}},
		5:  {Quarter: "1Q", Weeks: []int{5, 6, 7, 8}},
		6:  {Quarter: "2Q", Weeks: []int{1, 2, 3, 4}},
		7:  {Quarter: "2Q", Weeks: []int{5, 6, 7, 8}},
		10: {Quarter: "3Q", Weeks: []int{1, 2, 3, 4}},
		11: {Quarter: "3Q", Weeks: []int{5, 6, 7, 8}},
		12: {Quarter: "4Q", Weeks: []int{1, 2, 3}},
		1:  {Quarter: "4Q", Weeks: []int{4, 5, 6, 7, 8}},
	}
}

func ParseCalendar(data []byte) (Calendar, error) {
	var c Calendar
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func LoadCalendar(path string) (Calendar, error) {
	data, err := os.ReadFile(strings.TrimSpace(path))
	if err != nil {
		return nil, err
	}
	return ParseCalendar(data)
}

func (c Calendar) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("calendar is empty")
	}
	for m, plan := range c {
		if m < 1 || m > 12 {
			return fmt.Errorf("calendar month %d out of range", m)
		}
		if strings.TrimSpace(plan.Quarter) == "" {
			return fmt.Errorf("calendar month %d: quarter is required", m)
		}
		for _, w := range plan.Weeks {
			if w <= 0 {
				return fmt.Errorf("calendar month %d: invalid week %d", m, w)
			}
		}
	}
	return nil
}

func (c Calendar) Month(month int) (MonthPlan, error) {
	if month < 1 || month > 12 {
		return MonthPlan{}, fmt.Errorf("month %d out of range", month)
	}
	plan, ok := c[month]
	if !ok || len(plan.Weeks) == 0 {
		return MonthPlan{}, fmt.Errorf("month %d has no reporting weeks", month)
	}
	return plan, nil
}

// Months returns the months that have reporting weeks, ascending.
func (c Calendar) Months() []int {
	out := make([]int, 0, len(c))
	for m, plan := range c {
		if len(plan.Weeks) > 0 {
			out = append(out, m)
		}
	}
	sort.Ints(out)
	return out
}
