package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"creditline-backend/internal/domain"
)

// Preset names accepted by DateRangePreset
const (
	PresetToday          = "today"
	PresetYesterday      = "yesterday"
	PresetWeek           = "week"
	PresetBiWeekly       = "bi-weekly"
	PresetMonthly        = "monthly"
	PresetQuarterly      = "quarterly"
	PresetHalfYear       = "half-year"
	PresetHalfYearPlus3  = "half-year-plus-3"
	PresetYearly         = "yearly"
	DefaultDateRangeName = PresetMonthly
)

// PresetNames lists every supported preset
var PresetNames = []string{
	PresetToday, PresetYesterday, PresetWeek, PresetBiWeekly, PresetMonthly,
	PresetQuarterly, PresetHalfYear, PresetHalfYearPlus3, PresetYearly,
}

// Date represents a calendar date
type Date struct {
	Year  int
	Month int
	Day   int
}

// ParseDate converts a yyyy-mm-dd formatted string into a Date struct
func ParseDate(dateStr string) (Date, error) {
	parts := strings.Split(dateStr, "-")
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("invalid date format, expected yyyy-mm-dd")
	}

	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Date{}, fmt.Errorf("invalid year: %v", err)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return Date{}, fmt.Errorf("invalid month: %v", err)
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil {
		return Date{}, fmt.Errorf("invalid day: %v", err)
	}

	if month < 1 || month > 12 {
		return Date{}, fmt.Errorf("month must be between 1 and 12")
	}
	if day < 1 || day > DaysInMonth(year, month) {
		return Date{}, fmt.Errorf("day must be between 1 and %d", DaysInMonth(year, month))
	}

	return Date{Year: year, Month: month, Day: day}, nil
}

// Time returns midnight of the date in loc
func (d Date) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, loc)
}

// DaysInMonth returns the number of days in a given month
func DaysInMonth(year, month int) int {
	if month == 2 {
		if (year%4 == 0 && year%100 != 0) || (year%400 == 0) {
			return 29
		}
		return 28
	}
	if month == 4 || month == 6 || month == 9 || month == 11 {
		return 30
	}
	return 31
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// endOfDay is 23:59:59 with no sub-second part, so ranges print cleanly.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}

// monthsBack subtracts whole months, clamping the day to the target month's
// length instead of overflowing (May 31 minus 3 months is Feb 29/28).
func monthsBack(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	total := y*12 + int(m) - 1 - months
	year, month := total/12, total%12+1
	if dim := DaysInMonth(year, month); d > dim {
		d = dim
	}
	return time.Date(year, time.Month(month), d, 0, 0, 0, 0, t.Location())
}

// DateRangePreset maps a preset name to a window anchored at now. All windows
// except yesterday end at the end of today. Unknown names fall back to monthly.
func DateRangePreset(name string, now time.Time) domain.DateRange {
	today := startOfDay(now)
	end := endOfDay(now)

	switch strings.ToLower(strings.TrimSpace(name)) {
	case PresetToday:
		return domain.DateRange{Start: today, End: end}
	case PresetYesterday:
		y := today.AddDate(0, 0, -1)
		return domain.DateRange{Start: y, End: endOfDay(y)}
	case PresetWeek:
		return domain.DateRange{Start: today.AddDate(0, 0, -7), End: end}
	case PresetBiWeekly:
		return domain.DateRange{Start: today.AddDate(0, 0, -14), End: end}
	case PresetQuarterly:
		return domain.DateRange{Start: monthsBack(today, 3), End: end}
	case PresetHalfYear:
		return domain.DateRange{Start: monthsBack(today, 6), End: end}
	case PresetHalfYearPlus3:
		return domain.DateRange{Start: monthsBack(today, 9), End: end}
	case PresetYearly:
		return domain.DateRange{Start: monthsBack(today, 12), End: end}
	default:
		return domain.DateRange{Start: monthsBack(today, 1), End: end}
	}
}

// IsPreset reports whether name is a known preset
func IsPreset(name string) bool {
	for _, p := range PresetNames {
		if p == name {
			return true
		}
	}
	return false
}

// ParseDateRange builds an inclusive range from two yyyy-mm-dd strings
func ParseDateRange(start, end string, loc *time.Location) (domain.DateRange, error) {
	s, err := ParseDate(start)
	if err != nil {
		return domain.DateRange{}, domain.Validationf("invalid start date: %v", err)
	}
	e, err := ParseDate(end)
	if err != nil {
		return domain.DateRange{}, domain.Validationf("invalid end date: %v", err)
	}
	r := domain.DateRange{Start: s.Time(loc), End: endOfDay(e.Time(loc))}
	if err := r.Validate(); err != nil {
		return domain.DateRange{}, err
	}
	return r, nil
}
