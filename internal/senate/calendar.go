package senate

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Calendar decides whether the assembly may convene on a given day.
// The check runs before any session state mutates.
type Calendar struct {
	forbiddenWeekdays map[time.Weekday]bool
	forbiddenDates    map[string]bool // "2006-01-02"
	logger            *zap.Logger
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// NewCalendar creates a calendar from weekday names and explicit dates
// (YYYY-MM-DD) on which no session may be held.
func NewCalendar(weekdays []string, dates []string, logger *zap.Logger) (*Calendar, error) {
	c := &Calendar{
		forbiddenWeekdays: make(map[time.Weekday]bool),
		forbiddenDates:    make(map[string]bool),
		logger:            logger,
	}
	for _, w := range weekdays {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(w))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", w)
		}
		c.forbiddenWeekdays[wd] = true
	}
	for _, d := range dates {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return nil, fmt.Errorf("bad forbidden date %q: %w", d, err)
		}
		c.forbiddenDates[d] = true
	}
	return c, nil
}

// CanConvene returns a descriptive error when the day is forbidden.
func (c *Calendar) CanConvene(day time.Time) error {
	if c == nil {
		return nil
	}
	if c.forbiddenWeekdays[day.Weekday()] {
		return fmt.Errorf("no session held on a %s", day.Weekday())
	}
	if c.forbiddenDates[day.Format("2006-01-02")] {
		return fmt.Errorf("the calendar forbids assembly on %s", day.Format("2006-01-02"))
	}
	return nil
}
