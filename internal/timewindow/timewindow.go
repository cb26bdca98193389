// Package timewindow classifies dated documents against the recency windows
// used to decide what is worth retrieving.
package timewindow

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FiscalYearStartMonth is the first month of the Indian fiscal year.
const FiscalYearStartMonth = time.April

// DefaultMonthsBack is the concall retention window in months.
const DefaultMonthsBack = 18

var (
	yearPattern      = regexp.MustCompile(`\b(20\d{2})\b`)
	monthYearPattern = regexp.MustCompile(`(?i)(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)\w*\s+(20\d{2})`)
	monthIndex       = map[string]time.Month{
		"jan": time.January, "feb": time.February, "mar": time.March,
		"apr": time.April, "may": time.May, "jun": time.June,
		"jul": time.July, "aug": time.August, "sep": time.September,
		"oct": time.October, "nov": time.November, "dec": time.December,
	}
)

// FiscalYears holds the current fiscal year and the one before it. A fiscal
// year is named by the calendar year in which it ends.
type FiscalYears struct {
	Current  int
	Previous int
}

// FiscalYearsOfInterest returns the fiscal years in effect at now.
func FiscalYearsOfInterest(now time.Time) FiscalYears {
	current := now.Year()
	if now.Month() >= FiscalYearStartMonth {
		current++
	}
	return FiscalYears{Current: current, Previous: current - 1}
}

// Contains reports whether year is one of the two recent fiscal years.
func (f FiscalYears) Contains(year int) bool {
	return year == f.Current || year == f.Previous
}

// Years returns the window as a slice, current first.
func (f FiscalYears) Years() []int {
	return []int{f.Current, f.Previous}
}

// YearMonth is a calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// Index returns a monotonically increasing ordinal for comparisons.
func (ym YearMonth) Index() int {
	return ym.Year*12 + int(ym.Month) - 1
}

// AtOrAfter reports whether ym is the same month as other or later.
func (ym YearMonth) AtOrAfter(other YearMonth) bool {
	return ym.Index() >= other.Index()
}

func (ym YearMonth) String() string {
	return strconv.Itoa(ym.Year) + "-" + twoDigits(int(ym.Month))
}

// ConcallCutoff returns the month monthsBack months before now's month,
// computed on (year, month) pairs only.
func ConcallCutoff(now time.Time, monthsBack int) YearMonth {
	idx := now.Year()*12 + int(now.Month()) - 1 - monthsBack
	return YearMonth{Year: idx / 12, Month: time.Month(idx%12 + 1)}
}

// YearFromText extracts the first standalone 20xx year in text.
func YearFromText(text string) (int, bool) {
	m := yearPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return year, true
}

// MonthYearFromText extracts the first "<month> <year>" occurrence in text.
// Month names may be abbreviated or full and are matched case-insensitively.
func MonthYearFromText(text string) (YearMonth, bool) {
	m := monthYearPattern.FindStringSubmatch(text)
	if m == nil {
		return YearMonth{}, false
	}
	month, ok := monthIndex[strings.ToLower(m[1])]
	if !ok {
		return YearMonth{}, false
	}
	year, err := strconv.Atoi(m[2])
	if err != nil {
		return YearMonth{}, false
	}
	return YearMonth{Year: year, Month: month}, true
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
