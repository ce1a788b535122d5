package tracking

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func days(n int) time.Time {
	return day0.AddDate(0, 0, n)
}

func TestDecide(t *testing.T) {
	const maxSplit = DefaultMaxTrackingSplit

	tests := []struct {
		name  string
		prev  *Previous
		today time.Time
		want  Decision
	}{
		{name: "no previous record", prev: nil, today: days(0), want: DecisionNew},
		{name: "within tolerance", prev: &Previous{Status: StatusProgress, Latest: days(0)}, today: days(maxSplit - 1), want: DecisionExtend},
		{name: "exactly at cutoff", prev: &Previous{Status: StatusProgress, Latest: days(0)}, today: days(maxSplit), want: DecisionNew},
		{name: "past tolerance", prev: &Previous{Status: StatusProgress, Latest: days(0)}, today: days(maxSplit + 1), want: DecisionNew},
		{name: "complete period", prev: &Previous{Status: StatusComplete, Latest: days(0)}, today: days(1), want: DecisionNew},
		{name: "void period", prev: &Previous{Status: StatusVoid, Latest: days(0)}, today: days(0), want: DecisionNew},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.prev, Cutoff(tt.today, maxSplit))
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCutoffAndStale(t *testing.T) {
	today := time.Date(2024, 5, 10, 18, 30, 0, 0, time.UTC)
	cutoff := Cutoff(today, 3)
	require.Equal(t, time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC), cutoff)

	require.True(t, Stale(time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), cutoff))
	require.False(t, Stale(cutoff, cutoff))
	require.False(t, Stale(time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC), cutoff))
}

func TestStatusClose(t *testing.T) {
	next, err := StatusProgress.Close(1)
	require.NoError(t, err)
	require.Equal(t, StatusVoid, next)

	next, err = StatusProgress.Close(0)
	require.NoError(t, err)
	require.Equal(t, StatusVoid, next)

	next, err = StatusProgress.Close(2)
	require.NoError(t, err)
	require.Equal(t, StatusComplete, next)

	_, err = StatusComplete.Close(5)
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = StatusVoid.Close(5)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestParseStatus(t *testing.T) {
	status, err := ParseStatus("COMPLETE")
	require.NoError(t, err)
	require.True(t, status.Terminal())
	require.True(t, status.Counted())

	_, err = ParseStatus("in progress")
	require.Error(t, err)

	require.False(t, StatusVoid.Counted())
	require.Equal(t, "in progress", StatusProgress.Label())
}

func TestDateSpan(t *testing.T) {
	_, _, ok := DateSpan(nil)
	require.False(t, ok)

	began, latest, ok := DateSpan([]Entry{{Date: days(2)}, {Date: days(-1)}, {Date: days(5)}})
	require.True(t, ok)
	require.Equal(t, days(-1), began)
	require.Equal(t, days(5), latest)
}

func TestWeeks(t *testing.T) {
	require.Equal(t, 1, Weeks(days(0), days(0)))
	require.Equal(t, 1, Weeks(days(0), days(3)))
	require.Equal(t, 1, Weeks(days(0), days(7)))
	require.Equal(t, 2, Weeks(days(0), days(8)))
}

func TestVolumePerPersonPerWeekGallonsScenario(t *testing.T) {
	entries := make([]Entry, 0, 4)
	for i := 0; i > -4; i-- {
		entries = append(entries, Entry{Date: days(i), Litres: GallonsToLitres(5)})
	}

	value, ok := VolumePerPersonPerWeek(StatusProgress, entries, 4)
	require.True(t, ok)
	require.Equal(t, 5.0, Round2(LitresToGallons(value)))
}

func TestVolumePerPersonPerWeekAbsent(t *testing.T) {
	entries := []Entry{{Date: days(0), Litres: 10}, {Date: days(1), Litres: 10}}

	_, ok := VolumePerPersonPerWeek(StatusVoid, entries, 2)
	require.False(t, ok, "void periods are not meaningful")

	_, ok = VolumePerPersonPerWeek(StatusProgress, nil, 2)
	require.False(t, ok, "empty periods are not meaningful")

	_, ok = VolumePerPersonPerWeek(StatusComplete, []Entry{{Date: days(0)}, {Date: days(1)}}, 2)
	require.False(t, ok, "zero volume is not meaningful")

	single, ok := VolumePerPersonPerWeek(StatusProgress, []Entry{{Date: days(0), Litres: 12}}, 3)
	require.True(t, ok)
	require.InDelta(t, 4.0, single, 1e-9)
}

func TestVolumePerPersonPerWeekNonNegativeAndFinite(t *testing.T) {
	for population := 1; population <= 8; population++ {
		for span := 0; span < 30; span += 4 {
			entries := []Entry{
				{Date: days(0), Litres: 0.5 * float64(population)},
				{Date: days(span), Litres: 17.25},
			}
			value, ok := VolumePerPersonPerWeek(StatusProgress, entries, population)
			require.True(t, ok)
			require.GreaterOrEqual(t, value, 0.0)
			require.False(t, math.IsInf(value, 0) || math.IsNaN(value))
		}
	}
}

func TestUnitRoundTrip(t *testing.T) {
	for _, litres := range []float64{0, 0.01, 1, 3.785411784, 18.9, 1234.5678} {
		require.InDelta(t, litres, GallonsToLitres(LitresToGallons(litres)), 1e-9)
	}

	unit, err := ParseUnit("Liters")
	require.NoError(t, err)
	require.Equal(t, UnitLitres, unit)

	unit, err = ParseUnit("gallon")
	require.NoError(t, err)
	require.InDelta(t, 2*LitresPerGallon, ToLitres(2, unit), 1e-12)
	require.InDelta(t, 2.0, FromLitres(2*LitresPerGallon, unit), 1e-12)

	_, err = ParseUnit("cubits")
	require.Error(t, err)
}

func TestSummarize(t *testing.T) {
	empty := Summarize(nil)
	require.Equal(t, Summary{}, empty)

	single := Summarize([]float64{4.5})
	require.Equal(t, 1, single.Count)
	require.Equal(t, 4.5, single.Mean)
	require.Zero(t, single.StdDev)

	many := Summarize([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	require.Equal(t, 5.0, many.Mean)
	require.InDelta(t, 2.138089935, many.StdDev, 1e-9)
}
