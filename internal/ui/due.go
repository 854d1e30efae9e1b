package ui

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"simpletodo/internal/storage"
)

const (
	dueLayout     = "2006-01-02 15:04"
	dueDateLayout = "2006-01-02"
	clockLayout   = "15:04"
)

// defaultDueHour applies when only a date is given.
const defaultDueHour = 9

// ParseDue turns user input into epoch milliseconds. Empty input clears the
// due date and yields 0.
func ParseDue(v string, loc *time.Location) (int64, error) {
	if v == "" {
		return 0, nil
	}
	if t, err := time.ParseInLocation(dueLayout, v, loc); err == nil {
		return storage.Millis(t), nil
	}
	d, err := time.ParseInLocation(dueDateLayout, v, loc)
	if err != nil {
		return 0, fmt.Errorf("want %s or %s, got %q", dueLayout, dueDateLayout, v)
	}
	y, m, day := d.Date()
	return storage.Millis(time.Date(y, m, day, defaultDueHour, 0, 0, 0, loc)), nil
}

func formatDueInput(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).Format(dueLayout)
}

// FormatDue renders a due date relative to the calendar day of now.
func FormatDue(ms int64, now time.Time) string {
	due := time.UnixMilli(ms).In(now.Location())
	switch dayDiff(due, now) {
	case 0:
		return "today " + due.Format(clockLayout)
	case 1:
		return "tomorrow " + due.Format(clockLayout)
	case -1:
		return "yesterday " + due.Format(clockLayout)
	default:
		return due.Format(dueLayout)
	}
}

func relativeDue(ms int64, now time.Time) string {
	return humanize.RelTime(time.UnixMilli(ms), now, "ago", "from now")
}

func dayDiff(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(da.Sub(db).Hours() / 24)
}
