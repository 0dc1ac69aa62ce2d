// Package date implements the calendar-day type shared by every record and
// range query in the system. The wire/file format is DD-MM-YYYY (§6); the
// internal representation is a plain {Year, Month, Day} struct compared
// field-by-field, so that chronological order and Go's natural comparison
// order always agree. This is a deliberate departure from the source this
// system was ported from: that implementation scanned DD-MM-YYYY into a
// struct whose fields were declared year/month/day but populated in
// day/month/year order, so a raw memcmp over the struct sorted by day,
// then month, then year — not chronologically. See DESIGN.md.
package date

import (
	"fmt"
	"strconv"
	"strings"
)

// Date is a calendar day. The zero value is the "absent" sentinel used
// for a record with no exit date yet.
type Date struct {
	Year, Month, Day int
}

// Zero is the absent-date sentinel, formatted on the wire as 00-00-0000.
var Zero = Date{}

// IsZero reports whether d is the absent-date sentinel.
func (d Date) IsZero() bool {
	return d == Zero
}

// Compare returns -1, 0, or 1 as d is chronologically before, equal to,
// or after other. Comparison is purely by field, never by any packed or
// byte-level representation.
func (d Date) Compare(other Date) int {
	if d.Year != other.Year {
		return sign(d.Year - other.Year)
	}
	if d.Month != other.Month {
		return sign(d.Month - other.Month)
	}
	return sign(d.Day - other.Day)
}

// Before reports whether d is chronologically before other.
func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }

// After reports whether d is chronologically after other.
func (d Date) After(other Date) bool { return d.Compare(other) > 0 }

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// Parse parses the wire/file format DD-MM-YYYY, rejecting day=00 or
// month=00 explicitly (§8 boundary cases; the source this was ported from
// left this case unspecified).
func Parse(s string) (Date, error) {
	fields := strings.Split(s, "-")
	if len(fields) != 3 {
		return Date{}, fmt.Errorf("date: %q: want DD-MM-YYYY", s)
	}

	day, err := strconv.Atoi(fields[0])
	if err != nil || len(fields[0]) != 2 {
		return Date{}, fmt.Errorf("date: %q: bad day field", s)
	}
	month, err := strconv.Atoi(fields[1])
	if err != nil || len(fields[1]) != 2 {
		return Date{}, fmt.Errorf("date: %q: bad month field", s)
	}
	year, err := strconv.Atoi(fields[2])
	if err != nil || len(fields[2]) != 4 {
		return Date{}, fmt.Errorf("date: %q: bad year field", s)
	}

	d := Date{Year: year, Month: month, Day: day}
	if !Valid(d) {
		return Date{}, fmt.Errorf("date: %q: invalid calendar date", s)
	}
	return d, nil
}

// daysInMonth returns the number of days in the given month of the given
// year, accounting for leap years.
func daysInMonth(year, month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		if isLeapYear(year) {
			return 29
		}
		return 28
	default:
		return 0
	}
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// Valid reports whether d is a well-formed calendar date. day=00 and
// month=00 are rejected, unlike the source this was ported from.
func Valid(d Date) bool {
	if d.Month < 1 || d.Month > 12 {
		return false
	}
	if d.Day < 1 || d.Day > daysInMonth(d.Year, d.Month) {
		return false
	}
	return true
}

// ValidInterval reports whether [d1,d2] is a non-empty, non-decreasing
// interval: d1 must not be chronologically after d2.
func ValidInterval(d1, d2 Date) bool {
	return !d1.After(d2)
}

// String formats d in the wire/file format DD-MM-YYYY. The zero value
// formats as the absent-date sentinel 00-00-0000.
func (d Date) String() string {
	return fmt.Sprintf("%02d-%02d-%04d", d.Day, d.Month, d.Year)
}
