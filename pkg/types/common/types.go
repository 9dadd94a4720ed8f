// Package common holds value types shared across packages.
package common

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the layout of task dates and dataset versions.
const DateLayout = "2006-01-02"

// TaskDate is the calendar date a run is computed for. It marshals as
// "YYYY-MM-DD" and carries no time-of-day.
type TaskDate time.Time

// ParseTaskDate parses a "YYYY-MM-DD" string. An empty string yields today
// in UTC.
func ParseTaskDate(s string) (TaskDate, error) {
	if s == "" {
		return Today(), nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TaskDate{}, fmt.Errorf("invalid task date %q: %w", s, err)
	}
	return TaskDate(t), nil
}

// Today returns the current UTC calendar date.
func Today() TaskDate {
	y, m, d := time.Now().UTC().Date()
	return TaskDate(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// NewTaskDate builds a TaskDate from its components.
func NewTaskDate(year int, month time.Month, day int) TaskDate {
	return TaskDate(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

func (d TaskDate) Time() time.Time { return time.Time(d) }

func (d TaskDate) Year() int { return time.Time(d).Year() }

func (d TaskDate) IsZero() bool { return time.Time(d).IsZero() }

func (d TaskDate) String() string { return time.Time(d).Format(DateLayout) }

// MarshalJSON implements json.Marshaler.
func (d TaskDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *TaskDate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return err
	}
	*d = TaskDate(t)
	return nil
}

//Personal.AI order the ending
