// Package timeline turns the unordered message collection into the exact
// sequence the UI renders: messages sorted by creation time, interleaved
// with date separators carrying locale-relative labels.
package timeline

import (
	"sort"
	"strconv"
	"time"

	"github.com/BrunoPereyra/nexo-vecinal-sub000/internal/domain"
)

// Kind discriminates the two item variants.
type Kind int

const (
	KindDateSeparator Kind = iota
	KindMessage
)

// Item is a render-only derived value: either a date separator or a
// message entry. It is recomputed on every store mutation and never
// persisted.
type Item struct {
	Kind    Kind
	Label   string // separator only
	Day     time.Time
	Message domain.Message // message entry only
}

// Labels supplies the relative-date vocabulary so the hosting UI controls
// the language. Weekdays is indexed by time.Weekday (Sunday = 0).
type Labels struct {
	Today     string
	Yesterday string
	Weekdays  [7]string
}

// DefaultLabels returns English labels.
func DefaultLabels() Labels {
	return Labels{
		Today:     "Today",
		Yesterday: "Yesterday",
		Weekdays: [7]string{
			"Sunday", "Monday", "Tuesday", "Wednesday",
			"Thursday", "Friday", "Saturday",
		},
	}
}

// Build produces the grouped render sequence. Messages are sorted
// ascending by creation time regardless of arrival order; a separator is
// emitted before the first message and whenever the calendar day (in
// now's timezone) changes. Build is pure: identical input yields
// structurally identical output.
func Build(messages []domain.Message, now time.Time, labels Labels) []Item {
	if len(messages) == 0 {
		return nil
	}

	sorted := make([]domain.Message, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	loc := now.Location()
	items := make([]Item, 0, len(sorted)+4)
	var lastDay time.Time

	for _, m := range sorted {
		day := startOfDay(m.CreatedAt.In(loc))
		if !day.Equal(lastDay) {
			items = append(items, Item{
				Kind:  KindDateSeparator,
				Label: dayLabel(day, now, labels),
				Day:   day,
			})
			lastDay = day
		}
		items = append(items, Item{Kind: KindMessage, Day: day, Message: m})
	}

	return items
}

// dayLabel resolves the separator text for a calendar day relative to
// now: "Today", "Yesterday", the weekday name within the current
// Monday-started week, otherwise "{day}/{month}" with no leading zeros
// and no year.
func dayLabel(day, now time.Time, labels Labels) string {
	today := startOfDay(now)

	switch {
	case day.Equal(today):
		return labels.Today
	case day.Equal(today.AddDate(0, 0, -1)):
		return labels.Yesterday
	case !day.Before(startOfWeek(now)) && day.Before(today):
		return labels.Weekdays[day.Weekday()]
	default:
		return strconv.Itoa(day.Day()) + "/" + strconv.Itoa(int(day.Month()))
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// startOfWeek returns Monday 00:00 of t's week.
func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
