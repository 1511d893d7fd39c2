package timeseries

import (
	"math"
	"slices"
	"time"
)

// Subtype distinguishes the two column flavours a device contributes to
// an assembled table.
type Subtype string

// Column subtypes.
const (
	SubtypeValue   Subtype = "value"
	SubtypeQuality Subtype = "quality"
)

// DeviceKey is the composite identity of one logical meter channel.
//
// Grouping during assembly uses the (AccessEAN, EnergyType, Unit,
// Serial) subset; the remaining fields are descriptive and ride along
// as column metadata.
type DeviceKey struct {
	AccessEAN   string `json:"access_ean"`
	Description string `json:"description,omitempty"`
	Serial      string `json:"serial,omitempty"`
	Direction   string `json:"direction,omitempty"`
	CounterID   string `json:"counter_id,omitempty"`
	EnergyType  string `json:"energy_type,omitempty"`
	Unit        string `json:"unit,omitempty"`
}

// GroupKey is the subset of DeviceKey used to group rows belonging to
// the same channel.
type GroupKey struct {
	AccessEAN  string
	EnergyType string
	Unit       string
	Serial     string
}

// Group returns the grouping key for this device.
func (k DeviceKey) Group() GroupKey {
	return GroupKey{
		AccessEAN:  k.AccessEAN,
		EnergyType: k.EnergyType,
		Unit:       k.Unit,
		Serial:     k.Serial,
	}
}

// IntervalSeries holds the readings reconstructed from one body row:
// a timestamp index with parallel value and quality-code slices, tagged
// with the owning device identity.
//
// Values, Codes and Index are always the same length. A value masked by
// an invalid quality code is NaN while its code is retained.
type IntervalSeries struct {
	Device DeviceKey
	Index  []time.Time
	Values []float64
	Codes  []string
}

// Empty reports whether the series carries no readings. Rows with an
// undefined interval length produce empty series, which assembly skips.
func (s IntervalSeries) Empty() bool {
	return len(s.Index) == 0
}

// Append concatenates another series onto s in place. Used to stack the
// per-day rows of one device into a single column. Indices are kept in
// arrival order; duplicates are not collapsed.
func (s *IntervalSeries) Append(other IntervalSeries) {
	s.Index = append(s.Index, other.Index...)
	s.Values = append(s.Values, other.Values...)
	s.Codes = append(s.Codes, other.Codes...)
}

// Column is one column of an assembled Table: either the value series
// or the quality-code series of a device.
type Column struct {
	Device  DeviceKey
	Subtype Subtype

	// Values is aligned with Table.Index for value columns; positions
	// without a reading are NaN. Nil for quality columns.
	Values []float64

	// Codes is aligned with Table.Index for quality columns; positions
	// without a reading are empty. Nil for value columns.
	Codes []string
}

// Table is the wide time-series frame: a shared ascending timestamp
// index with (device, subtype) columns in first-encounter order.
type Table struct {
	Index   []time.Time
	Columns []Column
}

// Assemble builds a Table from stacked per-device series.
//
// The table index is the sorted union of every series index. Each
// series contributes a value column and a quality column, aligned by
// timestamp: positions the series does not cover are NaN (values) or
// empty (codes). Column order follows the order of the input slice.
//
// A timestamp may legitimately repeat within one series, for example
// when an export carries the same span twice. Every occurrence keeps
// its own row: the index repeats a timestamp as many times as the
// widest series does, and a series' k-th reading for a timestamp lands
// on the k-th row for it. Series that carry the timestamp only once
// align on its first row.
func Assemble(series []IntervalSeries) Table {
	var t Table

	need := make(map[time.Time]int)
	for _, s := range series {
		seen := make(map[time.Time]int)
		for _, ts := range s.Index {
			seen[ts]++
			if seen[ts] > need[ts] {
				need[ts] = seen[ts]
			}
		}
	}

	unique := make([]time.Time, 0, len(need))
	for ts := range need {
		unique = append(unique, ts)
	}
	sortTimes(unique)

	type slot struct {
		ts      time.Time
		ordinal int
	}
	pos := make(map[slot]int)
	for _, ts := range unique {
		for k := 0; k < need[ts]; k++ {
			pos[slot{ts, k}] = len(t.Index)
			t.Index = append(t.Index, ts)
		}
	}

	for _, s := range series {
		values := make([]float64, len(t.Index))
		for i := range values {
			values[i] = math.NaN()
		}
		codes := make([]string, len(t.Index))

		ordinal := make(map[time.Time]int)
		for i, ts := range s.Index {
			p := pos[slot{ts, ordinal[ts]}]
			ordinal[ts]++
			values[p] = s.Values[i]
			codes[p] = s.Codes[i]
		}

		t.Columns = append(t.Columns,
			Column{Device: s.Device, Subtype: SubtypeValue, Values: values},
			Column{Device: s.Device, Subtype: SubtypeQuality, Codes: codes},
		)
	}

	return t
}

// sortTimes sorts timestamps ascending in place.
func sortTimes(ts []time.Time) {
	slices.SortFunc(ts, func(a, b time.Time) int {
		return a.Compare(b)
	})
}
