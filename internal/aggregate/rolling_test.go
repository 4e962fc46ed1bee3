package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesOf(t *testing.T, start string, arrivals, durable []int) []DayBucket {
	t.Helper()
	require.Equal(t, len(arrivals), len(durable))
	first := day(t, start)
	buckets := make([]DayBucket, len(arrivals))
	for i := range arrivals {
		buckets[i] = DayBucket{
			Date:     first.AddDate(0, 0, i),
			Arrivals: arrivals[i],
			Durable:  durable[i],
		}
	}
	return buckets
}

func TestRolling_NoRowsBeforeFullWindow(t *testing.T) {
	buckets := seriesOf(t, "2012-04-01",
		[]int{1, 1, 1, 1, 1},
		[]int{0, 1, 1, 0, 1})

	rows := Rolling(buckets, 3)

	require.Len(t, rows, 3)
	assert.Equal(t, day(t, "2012-04-03"), rows[0].Date)
	assert.Equal(t, day(t, "2012-04-05"), rows[2].Date)
}

func TestRolling_SumsAndRatio(t *testing.T) {
	buckets := seriesOf(t, "2012-04-01",
		[]int{2, 0, 4, 0, 2},
		[]int{1, 1, 0, 2, 1})

	rows := Rolling(buckets, 3)

	require.Len(t, rows, 3)
	assert.Equal(t, 6, rows[0].ArrivalsSum) // days 1..3
	assert.Equal(t, 2, rows[0].DurableSum)
	require.NotNil(t, rows[0].Ratio)
	assert.InDelta(t, 2.0/6.0, *rows[0].Ratio, 1e-9)

	assert.Equal(t, 4, rows[1].ArrivalsSum) // days 2..4
	assert.Equal(t, 3, rows[1].DurableSum)
}

func TestRolling_NilRatioOnZeroArrivals(t *testing.T) {
	buckets := seriesOf(t, "2012-04-01",
		[]int{0, 0, 0},
		[]int{1, 0, 2})

	rows := Rolling(buckets, 3)

	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].Ratio)
	assert.Equal(t, 3, rows[0].DurableSum)
}

func TestRolling_SeriesShorterThanWindow(t *testing.T) {
	buckets := seriesOf(t, "2012-04-01", []int{1, 1}, []int{1, 1})
	assert.Nil(t, Rolling(buckets, 3))
	assert.Nil(t, Rolling(buckets, 0))
}

func TestRolling_WindowOfOne(t *testing.T) {
	buckets := seriesOf(t, "2012-04-01", []int{2, 0}, []int{1, 1})

	rows := Rolling(buckets, 1)

	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].Ratio)
	assert.InDelta(t, 0.5, *rows[0].Ratio, 1e-9)
	assert.Nil(t, rows[1].Ratio)
}

// The incremental running sums must agree with brute-force summation
// over every window, for every valid window length.
func TestRolling_MatchesBruteForce(t *testing.T) {
	arrivals := []int{3, 0, 1, 5, 0, 0, 2, 7, 1, 0, 4, 2, 0, 1}
	durable := []int{1, 0, 1, 2, 0, 0, 1, 3, 0, 0, 2, 1, 0, 1}
	buckets := seriesOf(t, "2012-04-01", arrivals, durable)

	for window := 1; window <= len(buckets); window++ {
		rows := Rolling(buckets, window)
		require.Len(t, rows, len(buckets)-window+1, "window %d", window)

		for i, row := range rows {
			wantDurable, wantArrivals := 0, 0
			for j := i; j < i+window; j++ {
				wantDurable += durable[j]
				wantArrivals += arrivals[j]
			}
			assert.Equal(t, wantDurable, row.DurableSum, "window %d row %d", window, i)
			assert.Equal(t, wantArrivals, row.ArrivalsSum, "window %d row %d", window, i)

			if wantArrivals == 0 {
				assert.Nil(t, row.Ratio, "window %d row %d", window, i)
			} else {
				require.NotNil(t, row.Ratio, "window %d row %d", window, i)
				assert.InDelta(t, float64(wantDurable)/float64(wantArrivals), *row.Ratio, 1e-12)
			}
		}
	}
}
