package twowire

import "fmt"

// Layout identifies the structural row layout of a two-wire body.
// It is resolved by probing, not declared in the file.
type Layout int

const (
	// LayoutShort has no leading device EAN column: the device name is
	// the first field.
	LayoutShort Layout = iota

	// LayoutLong carries a device EAN before the name, shifting every
	// later column right by one. Its rows also end in two padding
	// columns that carry no readings.
	LayoutLong
)

func (l Layout) String() string {
	switch l {
	case LayoutShort:
		return "short"
	case LayoutLong:
		return "long"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// Mode is the metering sub-format, taken from the first token of the
// header's Format property.
type Mode string

const (
	// ModeMMR is manual meter reading.
	ModeMMR Mode = "MMR"

	// ModeAMR is automated meter reading; its tables end in a checksum
	// row that is dropped after assembly.
	ModeAMR Mode = "AMR"
)

// Column positions per layout. Start and End are split over a date
// column and an adjacent time column; the first reading sits between
// the Start time and the End date, the rest follow the End time.
type layoutSpec struct {
	ean        int // -1 when absent
	name       int
	typ        int
	tariff     int
	cumulative int
	unit       int
	startDate  int
	startTime  int
	firstValue int
	endDate    int
	endTime    int
	valuesFrom int // remaining readings start here
	padTail    int // trailing non-reading columns
}

var layoutSpecs = map[Layout]layoutSpec{
	LayoutShort: {
		ean: -1, name: 0, typ: 1, tariff: 2, cumulative: 3, unit: 4,
		startDate: 5, startTime: 6, firstValue: 7, endDate: 8, endTime: 9,
		valuesFrom: 10, padTail: 0,
	},
	LayoutLong: {
		ean: 0, name: 1, typ: 2, tariff: 3, cumulative: 4, unit: 5,
		startDate: 6, startTime: 7, firstValue: 8, endDate: 9, endTime: 10,
		valuesFrom: 11, padTail: 2,
	},
}
