package types

import (
	"fmt"
	"time"
)

// AgeAt returns full years elapsed between birth and at.
func AgeAt(birth, at time.Time) int {
	birth = birth.In(at.Location())
	years := at.Year() - birth.Year()
	if at.Month() < birth.Month() || (at.Month() == birth.Month() && at.Day() < birth.Day()) {
		years--
	}
	return years
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date decodes a JSON calendar date. It accepts "2006-01-02" as well as a full
// RFC 3339 timestamp, and null or "" as the zero value.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		d.Time = time.Time{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("date must be a string, got %s", s)
	}
	s = s[1 : len(s)-1]

	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC 3339", s)
		}
	}
	d.Time = t
	return nil
}

// Ptr returns nil for a nil d, else a pointer to its time.
func (d *Date) Ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}
