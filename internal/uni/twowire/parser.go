package twowire

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/meterdock/ediel-core/internal/timeseries"
	"github.com/meterdock/ediel-core/internal/uni"
)

// dateTimeFormat is the two-wire timestamp layout after joining a
// date cell with its adjacent time cell.
const dateTimeFormat = "0201200615:04"

// Device is one decoded body row: a meter's static attributes and its
// flat run of readings. Readings a row leaves blank are NaN.
type Device struct {
	Ean        string    `json:"ean,omitempty"` // long layout only
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Tariff     string    `json:"tariff"`
	Cumulative string    `json:"cumulative"`
	Unit       string    `json:"unit"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Values     []float64 `json:"values"`
}

// Option adjusts parser behaviour.
type Option func(*options)

type options struct {
	dedup bool
	base  []uni.Option
}

// DeduplicateDevices keeps only the first occurrence when several rows
// share a device name. Some heads emit the same register twice per
// export.
func DeduplicateDevices() Option {
	return func(o *options) { o.dedup = true }
}

// WithHeaderOptions forwards options to the shared UNI header parse,
// for example uni.DropContractInfoLines.
func WithHeaderOptions(opts ...uni.Option) Option {
	return func(o *options) { o.base = append(o.base, opts...) }
}

// Parser decodes one two-wire export. The row layout is resolved by
// probing on first body access and fixed afterwards; decoded devices
// and the derived frames are computed once and cached.
type Parser struct {
	*uni.Parser

	mode  Mode
	dedup bool

	decodeOnce sync.Once
	layout     Layout
	devices    []Device
	decodeErr  error

	metaOnce sync.Once
	meta     timeseries.MetaFrame
	metaErr  error

	tableOnce sync.Once
	table     timeseries.RegisterTable
	tableErr  error
}

// New parses the header of a two-wire export. The sub-format is taken
// from the Format property's first token; files without one decode as
// MMR.
func New(src uni.Source, opts ...Option) (*Parser, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	base, err := uni.Parse(src, o.base...)
	if err != nil {
		return nil, err
	}

	p := &Parser{Parser: base, mode: ModeMMR, dedup: o.dedup}
	if format := base.Format(); len(format) > 0 && Mode(format[0]) == ModeAMR {
		p.mode = ModeAMR
	}
	return p, nil
}

// Mode returns the metering sub-format.
func (p *Parser) Mode() Mode { return p.mode }

// Layout returns the row layout adopted by probing. It forces the
// probe if the body has not been decoded yet.
func (p *Parser) Layout() (Layout, error) {
	if _, err := p.Devices(); err != nil {
		return 0, err
	}
	return p.layout, nil
}

// Interval returns the declared reading interval from the header's
// Format property ("Interval: <N> min"), or 0 when the file omits it.
func (p *Parser) Interval() time.Duration {
	format := p.Format()
	if len(format) < 2 {
		return 0
	}
	_, raw, found := strings.Cut(format[1], ": ")
	if !found {
		return 0
	}
	raw = strings.TrimSuffix(strings.ReplaceAll(raw, " ", ""), "min")
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return 0
	}
	return time.Duration(minutes) * time.Minute
}

// Devices decodes the body rows, probing the short layout first and
// retrying with the long one when a date cell fails to convert.
// Exactly one layout is adopted for the parser's lifetime.
func (p *Parser) Devices() ([]Device, error) {
	p.decodeOnce.Do(func() {
		p.devices, p.decodeErr = p.decode(LayoutShort)
		if p.decodeErr == nil {
			p.layout = LayoutShort
			return
		}

		var convErr *uni.ConvertError
		if !errors.As(p.decodeErr, &convErr) {
			return
		}
		p.devices, p.decodeErr = p.decode(LayoutLong)
		if p.decodeErr == nil {
			p.layout = LayoutLong
		}
	})
	return p.devices, p.decodeErr
}

func (p *Parser) decode(layout Layout) ([]Device, error) {
	spec := layoutSpecs[layout]

	var devices []Device
	seen := make(map[string]struct{})

	for _, record := range p.Body() {
		if len(record) == 0 {
			continue
		}

		dev, err := p.decodeRow(record, spec)
		if err != nil {
			return nil, err
		}
		if p.dedup {
			if _, dup := seen[dev.Name]; dup {
				continue
			}
			seen[dev.Name] = struct{}{}
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

func (p *Parser) decodeRow(record []string, spec layoutSpec) (Device, error) {
	dev := Device{
		Name:       field(record, spec.name),
		Type:       field(record, spec.typ),
		Tariff:     field(record, spec.tariff),
		Cumulative: field(record, spec.cumulative),
		Unit:       field(record, spec.unit),
	}
	if spec.ean >= 0 {
		dev.Ean = field(record, spec.ean)
	}

	var err error
	dev.Start, err = p.parseDateTime("Start", field(record, spec.startDate), field(record, spec.startTime))
	if err != nil {
		return Device{}, err
	}
	dev.End, err = p.parseDateTime("End", field(record, spec.endDate), field(record, spec.endTime))
	if err != nil {
		return Device{}, err
	}

	// First reading sits inside the metadata block, the rest follow
	// the End columns up to the layout's padding tail.
	columns := []int{spec.firstValue}
	for i := spec.valuesFrom; i < len(record)-spec.padTail; i++ {
		columns = append(columns, i)
	}
	for _, col := range columns {
		v, ok, err := p.ParseFloat("value", field(record, col))
		if err != nil {
			return Device{}, err
		}
		if !ok {
			v = math.NaN()
		}
		dev.Values = append(dev.Values, v)
	}
	return dev, nil
}

// parseDateTime joins a date cell with its adjacent time cell. The
// cells are mandatory: a blank or misaligned pair is a conversion
// failure, which is what drives the layout probe.
func (p *Parser) parseDateTime(column, dateStr, timeStr string) (time.Time, error) {
	combined := dateStr + timeStr
	ts, err := time.ParseInLocation(dateTimeFormat, combined, p.Location())
	if err != nil {
		return time.Time{}, &uni.ConvertError{Column: column, Value: combined, Err: err}
	}
	return ts, nil
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}

// MetadataFrame returns the transposed static attributes: one column
// per device, one row per attribute. The long layout contributes an
// Ean row.
func (p *Parser) MetadataFrame() (timeseries.MetaFrame, error) {
	p.metaOnce.Do(func() {
		p.meta, p.metaErr = p.buildMetadata()
	})
	return p.meta, p.metaErr
}

func (p *Parser) buildMetadata() (timeseries.MetaFrame, error) {
	devices, err := p.Devices()
	if err != nil {
		return timeseries.MetaFrame{}, err
	}

	attributes := []string{"Type", "Tariff", "Cumulative", "Unit", "Start", "End"}
	if p.layout == LayoutLong {
		attributes = append([]string{"Ean"}, attributes...)
	}

	frame := timeseries.MetaFrame{Attributes: attributes}
	for _, dev := range devices {
		frame.Devices = append(frame.Devices, dev.Name)
	}

	frame.Cells = make([][]string, len(attributes))
	for i, attr := range attributes {
		row := make([]string, len(devices))
		for j, dev := range devices {
			row[j] = deviceAttribute(dev, attr)
		}
		frame.Cells[i] = row
	}
	return frame, nil
}

func deviceAttribute(dev Device, attr string) string {
	switch attr {
	case "Ean":
		return dev.Ean
	case "Type":
		return dev.Type
	case "Tariff":
		return dev.Tariff
	case "Cumulative":
		return dev.Cumulative
	case "Unit":
		return dev.Unit
	case "Start":
		return dev.Start.Format(time.RFC3339)
	case "End":
		return dev.End.Format(time.RFC3339)
	default:
		return ""
	}
}

// Timeseries transposes the readings into a timestamp-indexed table,
// one column per device. The index steps at the declared interval, or
// is spread evenly across [Start, End] when the file omits one. AMR
// tables drop their final row: it is a checksum total, not a reading.
func (p *Parser) Timeseries() (timeseries.RegisterTable, error) {
	p.tableOnce.Do(func() {
		p.table, p.tableErr = p.buildTable()
	})
	return p.table, p.tableErr
}

func (p *Parser) buildTable() (timeseries.RegisterTable, error) {
	devices, err := p.Devices()
	if err != nil {
		return timeseries.RegisterTable{}, err
	}
	if len(devices) == 0 {
		return timeseries.RegisterTable{}, nil
	}

	// Rows may be ragged: pad every device to the widest reading run,
	// then drop trailing positions no device covers.
	count := 0
	for _, dev := range devices {
		count = max(count, len(dev.Values))
	}
	values := make([][]float64, len(devices))
	for i, dev := range devices {
		padded := make([]float64, count)
		copy(padded, dev.Values)
		for j := len(dev.Values); j < count; j++ {
			padded[j] = math.NaN()
		}
		values[i] = padded
	}
	for count > 0 && allNaNAt(values, count-1) {
		count--
		for i := range values {
			values[i] = values[i][:count]
		}
	}

	// The span is shared by every row; the first device declares it.
	start, end := devices[0].Start, devices[0].End

	var index []time.Time
	if interval := p.Interval(); interval > 0 {
		index = timeseries.RangeInclusive(start, end, interval)
	} else {
		index = timeseries.Spread(start, end, count)
	}
	if len(index) != count {
		return timeseries.RegisterTable{}, fmt.Errorf(
			"twowire: %d readings do not fit the %d timestamps spanning %s to %s",
			count, len(index), start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	table := timeseries.RegisterTable{Index: index, Values: values}
	for _, dev := range devices {
		table.Devices = append(table.Devices, dev.Name)
	}

	if p.mode == ModeAMR {
		table.DropLastRow()
	}
	return table, nil
}

func allNaNAt(values [][]float64, pos int) bool {
	for _, vs := range values {
		if !math.IsNaN(vs[pos]) {
			return false
		}
	}
	return true
}
