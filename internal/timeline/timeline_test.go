package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrunoPereyra/nexo-vecinal-sub000/internal/domain"
)

func msgAt(id string, at time.Time) domain.Message {
	return domain.Message{
		ID:         id,
		SenderID:   "u1",
		ReceiverID: "u2",
		Text:       "text " + id,
		CreatedAt:  at,
	}
}

func TestBuild_Empty(t *testing.T) {
	items := Build(nil, time.Now(), DefaultLabels())
	assert.Empty(t, items)
}

func TestBuild_SortsByCreationTime(t *testing.T) {
	loc := time.UTC
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, loc)

	// Insertion order is arrival order, not creation order.
	messages := []domain.Message{
		msgAt("m3", now.Add(-1*time.Minute)),
		msgAt("m1", now.Add(-3*time.Hour)),
		msgAt("m2", now.Add(-30*time.Minute)),
	}

	items := Build(messages, now, DefaultLabels())

	var last time.Time
	var ids []string
	for _, item := range items {
		if item.Kind != KindMessage {
			continue
		}
		require.False(t, item.Message.CreatedAt.Before(last), "entries must be non-decreasing")
		last = item.Message.CreatedAt
		ids = append(ids, item.Message.ID)
	}
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids)
}

func TestBuild_Idempotent(t *testing.T) {
	loc := time.UTC
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, loc)
	messages := []domain.Message{
		msgAt("m2", now.Add(-26*time.Hour)),
		msgAt("m1", now.Add(-48*time.Hour)),
		msgAt("m3", now.Add(-time.Hour)),
	}

	first := Build(messages, now, DefaultLabels())
	second := Build(messages, now, DefaultLabels())

	assert.Equal(t, first, second)
}

func TestBuild_SeparatorLabels(t *testing.T) {
	loc := time.UTC
	// Monday.
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, loc)

	messages := []domain.Message{
		msgAt("today", time.Date(2024, 6, 10, 9, 0, 0, 0, loc)),
		msgAt("yesterday", time.Date(2024, 6, 9, 21, 0, 0, 0, loc)),
		// Wednesday June 5 is in the prior week (weeks start Monday),
		// so it falls through to the numeric label.
		msgAt("lastweek", time.Date(2024, 6, 5, 8, 0, 0, 0, loc)),
		msgAt("mayday", time.Date(2024, 5, 1, 10, 0, 0, 0, loc)),
	}

	items := Build(messages, now, DefaultLabels())

	var labels []string
	for _, item := range items {
		if item.Kind == KindDateSeparator {
			labels = append(labels, item.Label)
		}
	}
	assert.Equal(t, []string{"1/5", "5/6", "Yesterday", "Today"}, labels)
}

func TestBuild_WeekdayLabelWithinCurrentWeek(t *testing.T) {
	loc := time.UTC
	// Thursday.
	now := time.Date(2024, 6, 13, 12, 0, 0, 0, loc)

	messages := []domain.Message{
		msgAt("tue", time.Date(2024, 6, 11, 10, 0, 0, 0, loc)),
	}

	items := Build(messages, now, DefaultLabels())
	require.Len(t, items, 2)
	assert.Equal(t, KindDateSeparator, items[0].Kind)
	assert.Equal(t, "Tuesday", items[0].Label)
}

func TestBuild_NoDuplicateSeparatorSameDay(t *testing.T) {
	loc := time.UTC
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, loc)

	messages := []domain.Message{
		msgAt("m1", now.Add(-2*time.Hour)),
		msgAt("m2", now.Add(-time.Hour)),
		msgAt("m3", now.Add(-30*time.Minute)),
	}

	items := Build(messages, now, DefaultLabels())
	require.Len(t, items, 4)
	assert.Equal(t, KindDateSeparator, items[0].Kind)
	assert.Equal(t, "Today", items[0].Label)
	for _, item := range items[1:] {
		assert.Equal(t, KindMessage, item.Kind)
	}
}

func TestBuild_SeparatorOnEveryDayChange(t *testing.T) {
	loc := time.UTC
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, loc)

	messages := []domain.Message{
		msgAt("m1", time.Date(2024, 6, 9, 23, 59, 0, 0, loc)),
		msgAt("m2", time.Date(2024, 6, 10, 0, 1, 0, 0, loc)),
	}

	items := Build(messages, now, DefaultLabels())
	require.Len(t, items, 4)
	assert.Equal(t, "Yesterday", items[0].Label)
	assert.Equal(t, "m1", items[1].Message.ID)
	assert.Equal(t, "Today", items[2].Label)
	assert.Equal(t, "m2", items[3].Message.ID)
}

func TestBuild_CustomLabels(t *testing.T) {
	loc := time.UTC
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, loc)

	labels := Labels{
		Today:     "Hoy",
		Yesterday: "Ayer",
		Weekdays: [7]string{
			"Domingo", "Lunes", "Martes", "Miércoles",
			"Jueves", "Viernes", "Sábado",
		},
	}

	messages := []domain.Message{msgAt("m1", now.Add(-time.Hour))}
	items := Build(messages, now, labels)
	require.NotEmpty(t, items)
	assert.Equal(t, "Hoy", items[0].Label)
}
