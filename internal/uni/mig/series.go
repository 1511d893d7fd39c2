package mig

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/meterdock/ediel-core/internal/timeseries"
	"github.com/meterdock/ediel-core/internal/uni"
)

// ErrUnsupportedInterval indicates a row declared an interval length
// the packing stride formula cannot express. Known lengths are 15, 30
// and 60 minutes; anything finer packs more columns per reading than
// the layout reserves.
var ErrUnsupportedInterval = errors.New("mig: unsupported interval length")

// invalidQualityCode marks a reading the sender flags as unusable; its
// value is masked to NaN while the code itself is retained.
const invalidQualityCode = "?"

// Timeseries assembles the wide time-series table of a packed interval
// export: rows grouped by channel identity, each row unpacked into an
// interval series, stacked per device and aligned on the union of all
// timestamps. Variants without interval rows return ErrNotApplicable.
// The table is built once and cached.
func (p *Parser) Timeseries() (timeseries.Table, error) {
	if p.dialect.Kind != KindInterval {
		return timeseries.Table{}, fmt.Errorf("%w: variant %d has no interval time series", uni.ErrNotApplicable, p.dialect.Variant)
	}
	p.tableOnce.Do(func() {
		p.table, p.tableErr = p.buildTable()
	})
	return p.table, p.tableErr
}

func (p *Parser) buildTable() (timeseries.Table, error) {
	rows, err := p.IntervalRows()
	if err != nil {
		return timeseries.Table{}, err
	}

	// Stack each row's series onto its device, keeping groups and
	// devices within a group in first-encounter order.
	var groupOrder []timeseries.GroupKey
	deviceOrder := make(map[timeseries.GroupKey][]timeseries.DeviceKey)
	stacked := make(map[timeseries.DeviceKey]*timeseries.IntervalSeries)

	for _, row := range rows {
		series, err := p.rowSeries(row)
		if err != nil {
			return timeseries.Table{}, err
		}
		if series.Empty() {
			continue
		}

		device := row.Device()
		group := device.Group()
		if _, seen := deviceOrder[group]; !seen {
			groupOrder = append(groupOrder, group)
		}
		if existing, ok := stacked[device]; ok {
			existing.Append(series)
			continue
		}
		deviceOrder[group] = append(deviceOrder[group], device)
		s := series
		stacked[device] = &s
	}

	var all []timeseries.IntervalSeries
	for _, group := range groupOrder {
		for _, device := range deviceOrder[group] {
			all = append(all, *stacked[device])
		}
	}
	return timeseries.Assemble(all), nil
}

// rowSeries unpacks one row's value and quality blocks into an
// interval series. The index spans (Start, End] right-closed at the
// declared interval; the value block starts after the metadata columns
// at a granularity-dependent stride, with the matching quality code a
// fixed distance further right. A row without a declared interval
// yields an empty series.
func (p *Parser) rowSeries(row IntervalRow) (timeseries.IntervalSeries, error) {
	if row.Interval <= 0 {
		return timeseries.IntervalSeries{}, nil
	}

	index := timeseries.RangeRightClosed(row.Start, row.End, time.Duration(row.Interval)*time.Minute)
	if len(index) == 0 {
		return timeseries.IntervalSeries{}, nil
	}

	stride := 5 - 60/row.Interval
	if stride <= 0 {
		return timeseries.IntervalSeries{}, fmt.Errorf("%w: %d min", ErrUnsupportedInterval, row.Interval)
	}
	offset := intervalMetaColumns + stride - 1

	series := timeseries.IntervalSeries{
		Device: row.Device(),
		Index:  index,
		Values: make([]float64, len(index)),
		Codes:  make([]string, len(index)),
	}

	for k := range index {
		col := offset + k*stride

		value, ok, err := p.ParseFloat("value", field(row.fields, col))
		if err != nil {
			return timeseries.IntervalSeries{}, err
		}
		if !ok {
			value = math.NaN()
		}

		code := p.interned(field(row.fields, col+qualityBlockOffset))
		if code == invalidQualityCode {
			value = math.NaN()
		}

		series.Values[k] = value
		series.Codes[k] = code
	}
	return series, nil
}
