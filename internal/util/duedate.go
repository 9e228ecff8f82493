package util

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/de"
)

// calendars maps a region code to its bank-holiday calendar. Regions
// without registered holidays still skip weekends.
var calendars = map[string]*cal.BusinessCalendar{}

func init() {
	german := cal.NewBusinessCalendar()
	german.AddHoliday(de.Holidays...)
	calendars["DE"] = german
}

func calendarFor(region string) *cal.BusinessCalendar {
	if c, ok := calendars[region]; ok {
		return c
	}
	return cal.NewBusinessCalendar()
}

// NextDebitDate adds the lead time to start and rolls the result forward to
// the next business day of the region's calendar. The returned date seeds
// the prepare form; callers may override it.
func NextDebitDate(leadDays int, start time.Time, region string) time.Time {
	c := calendarFor(region)
	d := start.AddDate(0, 0, leadDays)
	for !c.IsWorkday(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}
