package timeseries

import "time"

// RangeRightClosed returns the timestamps in (start, end] stepped at
// the given interval: the first entry is start+step, the last is end.
// Each timestamp marks the end of its interval, matching how MIG rows
// declare packed readings. Returns nil when step is not positive or the
// span does not cover a single interval.
func RangeRightClosed(start, end time.Time, step time.Duration) []time.Time {
	if step <= 0 || !start.Before(end) {
		return nil
	}

	var out []time.Time
	for ts := start.Add(step); !ts.After(end); ts = ts.Add(step) {
		out = append(out, ts)
	}
	return out
}

// RangeInclusive returns the timestamps in [start, end] stepped at the
// given interval, both endpoints included. Two-wire register runs carry
// a reading at the start of the span as well as at every step.
func RangeInclusive(start, end time.Time, step time.Duration) []time.Time {
	if step <= 0 || end.Before(start) {
		return nil
	}

	var out []time.Time
	for ts := start; !ts.After(end); ts = ts.Add(step) {
		out = append(out, ts)
	}
	return out
}

// Spread distributes n timestamps evenly across [start, end], both
// endpoints included. This is the fallback for files that omit their
// interval declaration: the spacing is derived from the observed
// reading count rather than declared metadata. n must be at least 2;
// n == 1 yields just start.
func Spread(start, end time.Time, n int) []time.Time {
	if n <= 0 || end.Before(start) {
		return nil
	}
	if n == 1 {
		return []time.Time{start}
	}

	total := end.Sub(start)
	out := make([]time.Time, n)
	for i := 0; i < n; i++ {
		out[i] = start.Add(total * time.Duration(i) / time.Duration(n-1))
	}
	return out
}
