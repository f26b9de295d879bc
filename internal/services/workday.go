package services

import (
	"sort"
	"strings"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/au"
	"github.com/rickar/cal/v2/ca"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/ie"
	"github.com/rickar/cal/v2/jp"
	"github.com/rickar/cal/v2/nl"
	"github.com/rickar/cal/v2/nz"
	"github.com/rickar/cal/v2/se"
	"github.com/rickar/cal/v2/us"
)

// CalendarNone counts weekdays only.
const CalendarNone = "NONE"

// maxCountedDays caps a workday count so a stray far-future date cannot spin.
const maxCountedDays = 366 * 20

var calendarHolidays = map[string]struct {
	name     string
	holidays []*cal.Holiday
}{
	"US": {"United States", us.Holidays},
	"GB": {"United Kingdom", gb.Holidays},
	"IE": {"Ireland", ie.Holidays},
	"DE": {"Germany", de.Holidays},
	"FR": {"France", fr.Holidays},
	"NL": {"Netherlands", nl.Holidays},
	"SE": {"Sweden", se.Holidays},
	"JP": {"Japan", jp.Holidays},
	"AU": {"Australia", au.HolidaysNSW},
	"NZ": {"New Zealand", nz.Holidays},
	"CA": {"Canada", ca.Holidays},
}

// SupportedCalendars lists the accepted calendar country codes.
func SupportedCalendars() []string {
	out := []string{CalendarNone}
	for code := range calendarHolidays {
		out = append(out, code)
	}
	sort.Strings(out[1:])
	return out
}

// WorkdayCalendar counts working days for overlap reporting.
type WorkdayCalendar struct {
	country  string
	calendar *cal.BusinessCalendar
	loc      *time.Location
}

// NewWorkdayCalendar builds a calendar for country. Unknown codes fall back
// to weekends-only.
func NewWorkdayCalendar(country string, loc *time.Location) *WorkdayCalendar {
	if loc == nil {
		loc = time.UTC
	}
	country = strings.ToUpper(strings.TrimSpace(country))
	c := cal.NewBusinessCalendar()
	if h, ok := calendarHolidays[country]; ok {
		c.Name = h.name
		c.AddHoliday(h.holidays...)
	} else {
		country = CalendarNone
		c.Name = "Weekdays"
	}
	return &WorkdayCalendar{country: country, calendar: c, loc: loc}
}

func (w *WorkdayCalendar) Country() string { return w.country }

func (w *WorkdayCalendar) IsWorkday(t time.Time) bool {
	return w.calendar.IsWorkday(t.In(w.loc))
}

// WorkdaysBetween counts working days in [start, end], both inclusive.
func (w *WorkdayCalendar) WorkdaysBetween(start, end time.Time) int {
	from := middayOf(start, w.loc)
	to := middayOf(end, w.loc)
	count := 0
	for d, i := from, 0; !d.After(to) && i < maxCountedDays; d, i = d.AddDate(0, 0, 1), i+1 {
		if w.calendar.IsWorkday(d) {
			count++
		}
	}
	return count
}

func middayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 12, 0, 0, 0, loc)
}
