package service

import (
	"fmt"
	"strings"

	"github.com/yourname/fixyoursleep/internal"
	"github.com/yourname/fixyoursleep/internal/calendar"
)

const maxStatusDays = 366

type SleepStats struct {
	TotalLogs      int     `json:"total_logs"`
	CompletedDays  int     `json:"completed_days"`
	CompletionRate float64 `json:"completion_rate"`
	CurrentStreak  int     `json:"current_streak"`
	LongestStreak  int     `json:"longest_streak"`
}

// CalculateSleepStats works on logs bucketed by local day. The current streak
// counts back from today, or from yesterday while today is still open.
func CalculateSleepStats(byDay map[calendar.Day][]internal.SleepLogEntry, today calendar.Day) SleepStats {
	var stats SleepStats
	completed := make(map[calendar.Day]bool, len(byDay))
	for d, entries := range byDay {
		stats.TotalLogs += len(entries)
		for _, e := range entries {
			if e.IsCompleted {
				completed[d] = true
				break
			}
		}
	}
	stats.CompletedDays = len(completed)
	if len(byDay) > 0 {
		stats.CompletionRate = float64(stats.CompletedDays) / float64(len(byDay))
	}

	d := today
	if !completed[d] {
		d = d.AddDays(-1)
	}
	for completed[d] {
		stats.CurrentStreak++
		d = d.AddDays(-1)
	}

	for d := range completed {
		if completed[d.AddDays(-1)] {
			continue
		}
		run := 0
		for cur := d; completed[cur]; cur = cur.AddDays(1) {
			run++
		}
		if run > stats.LongestStreak {
			stats.LongestStreak = run
		}
	}
	return stats
}

// ParseDays reads a comma separated list of YYYY-MM-DD dates.
func ParseDays(csv string) ([]calendar.Day, error) {
	var days []calendar.Day
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := calendar.ParseDay(part)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("no dates given")
	}
	if len(days) > maxStatusDays {
		return nil, fmt.Errorf("at most %d dates per request", maxStatusDays)
	}
	return days, nil
}
