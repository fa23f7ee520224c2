// Package calendar holds the wall-clock values the app reasons about: a
// time of day without a date ("HH:mm") and a local calendar day.
package calendar

import (
	"fmt"
	"time"
)

const (
	timeOfDayLayout = "15:04"
	dayLayout       = "2006-01-02"
	monthLayout     = "2006-01"
)

type TimeOfDay struct {
	Hour   int
	Minute int
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse(timeOfDayLayout, s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("calendar: invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// ReachedBy reports whether the hour/minute of now is at or past t. The date
// of now is ignored.
func (t TimeOfDay) ReachedBy(now time.Time) bool {
	return TimeOfDayOf(now).Minutes() >= t.Minutes()
}

// On returns the instant t falls on for the given day.
func (t TimeOfDay) On(d Day, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, t.Hour, t.Minute, 0, 0, loc)
}

// Day is a calendar day in whatever location the source time carried.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("calendar: invalid day %q: %w", s, err)
	}
	return DayOf(t), nil
}

func (d Day) Start(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Day) UnmarshalText(b []byte) error {
	parsed, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Day) AddDays(n int) Day {
	return DayOf(d.Start(time.UTC).AddDate(0, 0, n))
}

// MonthDays returns every day of the month given as "YYYY-MM".
func MonthDays(month string) ([]Day, error) {
	t, err := time.Parse(monthLayout, month)
	if err != nil {
		return nil, fmt.Errorf("calendar: invalid month %q: %w", month, err)
	}
	var days []Day
	for cur := t; cur.Month() == t.Month(); cur = cur.AddDate(0, 0, 1) {
		days = append(days, DayOf(cur))
	}
	return days, nil
}
