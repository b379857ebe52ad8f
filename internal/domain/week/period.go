package week

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DaysPerWeek is the fixed length of every daily status sequence.
const DaysPerWeek = 7

var dayNames = [DaysPerWeek]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Bounds returns the Monday 00:00:00.000 and Sunday 23:59:59.999 enclosing ref,
// evaluated in loc. A Sunday reference closes the week that started six days
// earlier.
func Bounds(ref time.Time, loc *time.Location) (start, end time.Time) {
	if loc == nil {
		loc = time.Local
	}
	t := ref.In(loc)
	back := DayIndex(t.Weekday())
	y, m, d := t.Date()
	start = time.Date(y, m, d-back, 0, 0, 0, 0, loc)
	end = time.Date(y, m, d-back+DaysPerWeek-1, 23, 59, 59, int(999*time.Millisecond), loc)
	return start, end
}

// DayIndex maps a weekday to its daily status index (Monday=0 ... Sunday=6).
func DayIndex(wd time.Weekday) int {
	return (int(wd) + DaysPerWeek - 1) % DaysPerWeek
}

// DayName returns the English name for a daily status index.
func DayName(index int) string {
	if index < 0 || index >= DaysPerWeek {
		return ""
	}
	return dayNames[index]
}

// ParseDay accepts a numeric index or a weekday name or prefix of at least
// three letters ("wed", "Wednesday").
func ParseDay(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if err := CheckDay(n); err != nil {
			return 0, err
		}
		return n, nil
	}
	lower := strings.ToLower(s)
	if len(lower) >= 3 {
		for i, name := range dayNames {
			if strings.HasPrefix(strings.ToLower(name), lower) {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrDayOutOfRange, s)
}

// CheckDay validates a daily status index.
func CheckDay(index int) error {
	if index < 0 || index >= DaysPerWeek {
		return fmt.Errorf("%w: %d", ErrDayOutOfRange, index)
	}
	return nil
}
