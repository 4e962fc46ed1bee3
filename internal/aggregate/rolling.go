package aggregate

import "time"

// WindowRow is the trailing-window durability ratio for one day.
type WindowRow struct {
	Date        time.Time `json:"date"`
	WindowDays  int       `json:"windowDays"`
	DurableSum  int       `json:"durableSum"`
	ArrivalsSum int       `json:"arrivalsSum"`
	// Ratio is durable over arrivals across the window, nil when the
	// window saw no arrivals.
	Ratio *float64 `json:"ratio"`
}

// Rolling computes the trailing, inclusive windowDays-day ratio of
// durable closures to arrivals for every day with a full window.
//
// The sums are maintained incrementally: one add and one subtract per
// day, so the cost is linear in the number of days regardless of the
// window length. Days before the first full window produce no row.
func Rolling(buckets []DayBucket, windowDays int) []WindowRow {
	if windowDays <= 0 || len(buckets) < windowDays {
		return nil
	}

	rows := make([]WindowRow, 0, len(buckets)-windowDays+1)
	durableSum, arrivalsSum := 0, 0

	for i, b := range buckets {
		durableSum += b.Durable
		arrivalsSum += b.Arrivals
		if i >= windowDays {
			out := buckets[i-windowDays]
			durableSum -= out.Durable
			arrivalsSum -= out.Arrivals
		}
		if i < windowDays-1 {
			continue
		}

		row := WindowRow{
			Date:        b.Date,
			WindowDays:  windowDays,
			DurableSum:  durableSum,
			ArrivalsSum: arrivalsSum,
		}
		if arrivalsSum > 0 {
			ratio := float64(durableSum) / float64(arrivalsSum)
			row.Ratio = &ratio
		}
		rows = append(rows, row)
	}
	return rows
}
