package timeseries

import "time"

// MetaFrame is the transposed metadata view of a two-wire file: one
// column per device, one row per static attribute (type, tariff, unit,
// span, ...). Cells are kept as the decoded strings; Start/End rows
// carry RFC 3339 renderings of the parsed timestamps.
type MetaFrame struct {
	// Attributes are the row labels, in layout order.
	Attributes []string `json:"attributes"`

	// Devices are the column headers (device names, first-encounter
	// order, after optional de-duplication).
	Devices []string `json:"devices"`

	// Cells is indexed [attribute][device].
	Cells [][]string `json:"cells"`
}

// RegisterTable is the transposed reading view of a two-wire file:
// a shared timestamp index with one float column per device.
type RegisterTable struct {
	Index   []time.Time `json:"index"`
	Devices []string    `json:"devices"`

	// Values is indexed [device][timestamp] and aligned with Index.
	Values [][]float64 `json:"values"`
}

// DropLastRow removes the final timestamp row from the table. AMR
// exports append a checksum total after the last reading; it is not a
// reading and is stripped after assembly.
func (t *RegisterTable) DropLastRow() {
	if len(t.Index) == 0 {
		return
	}
	t.Index = t.Index[:len(t.Index)-1]
	for i := range t.Values {
		if len(t.Values[i]) > 0 {
			t.Values[i] = t.Values[i][:len(t.Values[i])-1]
		}
	}
}
