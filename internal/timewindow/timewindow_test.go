package timewindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestFiscalYearsOfInterest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		now  time.Time
		want FiscalYears
	}{
		{name: "before april", now: date(2024, time.February, 15), want: FiscalYears{Current: 2024, Previous: 2023}},
		{name: "after april", now: date(2024, time.May, 15), want: FiscalYears{Current: 2025, Previous: 2024}},
		{name: "april first", now: date(2024, time.April, 1), want: FiscalYears{Current: 2025, Previous: 2024}},
		{name: "march end", now: date(2024, time.March, 31), want: FiscalYears{Current: 2024, Previous: 2023}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FiscalYearsOfInterest(tt.now))
		})
	}
}

func TestFiscalYearsContains(t *testing.T) {
	t.Parallel()

	fy := FiscalYearsOfInterest(date(2024, time.May, 15))
	assert.True(t, fy.Contains(2025))
	assert.True(t, fy.Contains(2024))
	assert.False(t, fy.Contains(2023))
	assert.Equal(t, []int{2025, 2024}, fy.Years())
}

func TestConcallCutoff(t *testing.T) {
	t.Parallel()

	cutoff := ConcallCutoff(date(2024, time.May, 15), 18)
	assert.Equal(t, YearMonth{Year: 2022, Month: time.November}, cutoff)

	assert.True(t, YearMonth{Year: 2022, Month: time.November}.AtOrAfter(cutoff))
	assert.False(t, YearMonth{Year: 2022, Month: time.October}.AtOrAfter(cutoff))
	assert.True(t, YearMonth{Year: 2023, Month: time.January}.AtOrAfter(cutoff))

	assert.Equal(t, YearMonth{Year: 2023, Month: time.December}, ConcallCutoff(date(2024, time.January, 31), 1))
	assert.Equal(t, YearMonth{Year: 2024, Month: time.January}, ConcallCutoff(date(2024, time.January, 2), 0))
}

func TestYearFromText(t *testing.T) {
	t.Parallel()

	year, ok := YearFromText("Financial Year 2023\nfrom bse")
	require.True(t, ok)
	assert.Equal(t, 2023, year)

	_, ok = YearFromText("Rating update")
	assert.False(t, ok)

	_, ok = YearFromText("ref 120245")
	assert.False(t, ok)

	year, ok = YearFromText("Annual Report - 2023 (Standalone)")
	require.True(t, ok)
	assert.Equal(t, 2023, year)
}

func TestMonthYearFromText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want YearMonth
		ok   bool
	}{
		{text: "Nov 2023", want: YearMonth{Year: 2023, Month: time.November}, ok: true},
		{text: "Rating update 14 March 2024 from icra", want: YearMonth{Year: 2024, Month: time.March}, ok: true},
		{text: "SEPTEMBER 2022", want: YearMonth{Year: 2022, Month: time.September}, ok: true},
		{text: "Oct 2023", want: YearMonth{Year: 2023, Month: time.October}, ok: true},
		{text: "october 2023 transcript", want: YearMonth{Year: 2023, Month: time.October}, ok: true},
		{text: "2023 Oct", ok: false},
		{text: "Transcript", ok: false},
	}
	for _, tt := range tests {
		got, ok := MonthYearFromText(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.text)
		}
	}
}

func TestYearMonthString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2023-04", YearMonth{Year: 2023, Month: time.April}.String())
}
