package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 15, 30, 0, 0, time.UTC)
}

func TestNextStreak(t *testing.T) {
	today := date(2026, time.March, 10)

	t.Run("first submission starts at 1", func(t *testing.T) {
		assert.Equal(t, 1, nextStreak(0, nil, today))
	})

	t.Run("same day keeps the counter", func(t *testing.T) {
		last := date(2026, time.March, 10)
		assert.Equal(t, 4, nextStreak(4, &last, today))
	})

	t.Run("same day with zero counter starts at 1", func(t *testing.T) {
		last := date(2026, time.March, 10)
		assert.Equal(t, 1, nextStreak(0, &last, today))
	})

	t.Run("consecutive day extends", func(t *testing.T) {
		last := date(2026, time.March, 9)
		assert.Equal(t, 7, nextStreak(6, &last, today))
	})

	t.Run("gap resets to 1", func(t *testing.T) {
		last := date(2026, time.March, 8)
		assert.Equal(t, 1, nextStreak(6, &last, today))
	})

	t.Run("clock time within the day is irrelevant", func(t *testing.T) {
		last := time.Date(2026, time.March, 9, 23, 59, 0, 0, time.UTC)
		early := time.Date(2026, time.March, 10, 0, 1, 0, 0, time.UTC)
		assert.Equal(t, 3, nextStreak(2, &last, early))
	})
}

func TestComputeLevel(t *testing.T) {
	assert.Equal(t, 1, computeLevel(0, 0))
	assert.Equal(t, 1, computeLevel(999, 0))
	assert.Equal(t, 2, computeLevel(1000, 0))
	assert.Equal(t, 2, computeLevel(500, 500))
	assert.Equal(t, 3, computeLevel(1999, 500))
	assert.Equal(t, 1, computeLevel(999.99, 0))
}

func TestWeekWindow(t *testing.T) {
	mondayStart := time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)

	t.Run("saturday run covers monday through saturday", func(t *testing.T) {
		from, to := weekWindow(date(2026, time.August, 29))
		assert.Equal(t, mondayStart, from)
		assert.Equal(t, 29, to.Day())
		assert.Equal(t, 23, to.Hour())
	})

	t.Run("monday run starts the same day", func(t *testing.T) {
		from, _ := weekWindow(date(2026, time.August, 24))
		assert.Equal(t, mondayStart, from)
	})

	t.Run("sunday belongs to the week that started six days earlier", func(t *testing.T) {
		from, _ := weekWindow(date(2026, time.August, 30))
		assert.Equal(t, mondayStart, from)
	})
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 0, daysBetween(date(2026, time.March, 10), date(2026, time.March, 10)))
	assert.Equal(t, 1, daysBetween(date(2026, time.March, 10), date(2026, time.March, 11)))
	// Month boundary.
	assert.Equal(t, 1, daysBetween(date(2026, time.February, 28), date(2026, time.March, 1)))
	assert.Equal(t, 31, daysBetween(date(2026, time.March, 1), date(2026, time.April, 1)))
}
