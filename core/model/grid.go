package model

import "time"

// Time grid constants. Minute offsets count from the simulation epoch, which is
// Monday 00:00 of week 1.
const (
	StepMinutes    = 5
	MinutesPerDay  = 24 * 60
	MinutesPerWeek = 7 * MinutesPerDay
	StepsPerDay    = MinutesPerDay / StepMinutes
	StepsPerWeek   = MinutesPerWeek / StepMinutes
	// StepsPerYear covers 2024, a leap year.
	StepsPerYear = 366 * StepsPerDay
)

// StepHours is the length of one grid step in hours.
const StepHours = float64(StepMinutes) / 60

// StepOf maps a minute offset to its grid index.
func StepOf(minute int) int { return minute / StepMinutes }

// WeekOf returns the 1-based planning week containing the minute offset.
func WeekOf(minute int) int { return minute/MinutesPerWeek + 1 }

// WeekStartStep returns the first grid index of a 1-based week.
func WeekStartStep(week int) int { return (week - 1) * StepsPerWeek }

// WeekOfStep returns the 1-based week containing grid index step.
func WeekOfStep(step int) int { return step/StepsPerWeek + 1 }

// Epoch is Monday 2024-01-01 00:00 UTC, the start of week 1.
var Epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// StepTime maps a grid index to wall-clock time.
func StepTime(step int) time.Time {
	return Epoch.Add(time.Duration(step*StepMinutes) * time.Minute)
}
