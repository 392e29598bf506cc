package reports

import (
	"time"

	"github.com/ken-eddy/simplesales/apperr"
	"github.com/ken-eddy/simplesales/models"
)

const (
	PeriodDaily   = "daily"
	PeriodWeekly  = models.PeriodWeekly
	PeriodMonthly = models.PeriodMonthly
)

// Window is an inclusive range of UTC calendar days.
type Window struct {
	From time.Time
	To   time.Time
}

// Since and Until bound created_at as [Since, Until).
func (w Window) Since() time.Time { return models.DateOf(w.From) }
func (w Window) Until() time.Time { return models.DateOf(w.To).AddDate(0, 0, 1) }

// Days is the number of calendar days covered.
func (w Window) Days() int {
	return int(w.Until().Sub(w.Since()).Hours() / 24)
}

// RollingWindow is the report window of a period ending today: 1, 7 or 30 days.
func RollingWindow(period string, now time.Time) (Window, error) {
	today := models.DateOf(now)
	switch period {
	case PeriodDaily:
		return Window{today, today}, nil
	case PeriodWeekly:
		return Window{today.AddDate(0, 0, -6), today}, nil
	case PeriodMonthly:
		return Window{today.AddDate(0, 0, -29), today}, nil
	}
	return Window{}, apperr.Validation("Invalid period type")
}

// previousWindow is the comparison window for growth figures. Weekly compares
// with the 7 days before; monthly with the calendar month that holds the day
// before the current window.
func previousWindow(period string, cur Window) Window {
	end := cur.Since().AddDate(0, 0, -1)
	if period == PeriodWeekly {
		return Window{end.AddDate(0, 0, -6), end}
	}
	return Window{time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC), end}
}

// monthWindow covers the calendar month offset months before now's month.
func monthWindow(now time.Time, offset int) Window {
	today := models.DateOf(now)
	first := time.Date(today.Year(), today.Month()-time.Month(offset), 1, 0, 0, 0, 0, time.UTC)
	return Window{first, first.AddDate(0, 1, -1)}
}
