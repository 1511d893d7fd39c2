package twowire

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/meterdock/ediel-core/internal/uni"
)

// twowireSource builds an in-memory export with the given Format
// property and body rows.
func twowireSource(format string, bodyRows ...string) uni.Source {
	var sb strings.Builder
	sb.WriteString("[Time zone];+0100\n")
	if format != "" {
		sb.WriteString("[Format];" + format + "\n")
	}
	sb.WriteString("[Body Start]\n")
	for _, row := range bodyRows {
		sb.WriteString(row)
		sb.WriteString("\n")
	}
	sb.WriteString("[Body End]\n")
	return uni.StringSource("readings.csv", sb.String())
}

// shortRow lays out a short-format row: name, type, tariff,
// cumulative, unit, start date+time, first reading, end date+time,
// remaining readings.
func shortRow(name string, readings []string) string {
	fields := []string{name, "electricity", "day", "yes", "kWh",
		"01032024", "00:00", readings[0], "01032024", "03:00"}
	return strings.Join(append(fields, readings[1:]...), ";")
}

// longRow is the same but with a leading device EAN and two trailing
// padding columns.
func longRow(ean, name string, readings []string) string {
	fields := []string{ean, name, "electricity", "day", "yes", "kWh",
		"01032024", "00:00", readings[0], "01032024", "03:00"}
	fields = append(fields, readings[1:]...)
	return strings.Join(append(fields, "", ""), ";")
}

func TestDevicesShortLayout(t *testing.T) {
	p, err := New(twowireSource("MMR;Interval: 60 min",
		shortRow("meter-1", []string{"1,5", "2,5", "3,5", "4,5"}),
		shortRow("meter-2", []string{"10", "20", "30", "40"}),
	))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	devices, err := p.Devices()
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	layout, err := p.Layout()
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if layout != LayoutShort {
		t.Errorf("layout = %s, want short", layout)
	}
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(devices))
	}

	dev := devices[0]
	if dev.Name != "meter-1" || dev.Ean != "" {
		t.Errorf("device = %q ean %q, want meter-1 without ean", dev.Name, dev.Ean)
	}
	if dev.Unit != "kWh" || dev.Cumulative != "yes" {
		t.Errorf("attributes = %q/%q", dev.Unit, dev.Cumulative)
	}
	wantStart := time.Date(2024, 3, 1, 0, 0, 0, 0, p.Location())
	if !dev.Start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", dev.Start, wantStart)
	}
	if len(dev.Values) != 4 || dev.Values[0] != 1.5 || dev.Values[3] != 4.5 {
		t.Errorf("values = %v, want [1.5 2.5 3.5 4.5]", dev.Values)
	}
}

func TestDevicesFallBackToLongLayout(t *testing.T) {
	p, err := New(twowireSource("MMR;Interval: 60 min",
		longRow("541449200000000001", "meter-1", []string{"1", "2", "3", "4"}),
	))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	devices, err := p.Devices()
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	layout, err := p.Layout()
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}

	if layout != LayoutLong {
		t.Errorf("layout = %s, want long after short probe fails", layout)
	}
	if len(devices) != 1 {
		t.Fatalf("got %d devices, want 1", len(devices))
	}
	if devices[0].Ean != "541449200000000001" || devices[0].Name != "meter-1" {
		t.Errorf("device = %+v, want ean and name split", devices[0])
	}
	if len(devices[0].Values) != 4 {
		t.Errorf("values = %v, want 4 readings without the padding tail", devices[0].Values)
	}
}

func TestMetadataFrame(t *testing.T) {
	p, err := New(twowireSource("MMR;Interval: 60 min",
		longRow("541449200000000001", "meter-1", []string{"1", "2", "3", "4"}),
		longRow("541449200000000002", "meter-2", []string{"5", "6", "7", "8"}),
	))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	meta, err := p.MetadataFrame()
	if err != nil {
		t.Fatalf("MetadataFrame: %v", err)
	}

	if meta.Attributes[0] != "Ean" {
		t.Errorf("long layout metadata must lead with Ean, got %v", meta.Attributes)
	}
	if len(meta.Devices) != 2 || meta.Devices[1] != "meter-2" {
		t.Errorf("devices = %v", meta.Devices)
	}
	if meta.Cells[0][1] != "541449200000000002" {
		t.Errorf("ean cell = %q", meta.Cells[0][1])
	}
	if len(meta.Cells) != len(meta.Attributes) {
		t.Errorf("cells rows = %d, want %d", len(meta.Cells), len(meta.Attributes))
	}
}

func TestTimeseriesDeclaredInterval(t *testing.T) {
	p, err := New(twowireSource("MMR;Interval: 60 min",
		shortRow("meter-1", []string{"1", "2", "3", "4"}),
	))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	table, err := p.Timeseries()
	if err != nil {
		t.Fatalf("Timeseries: %v", err)
	}

	if len(table.Index) != 4 {
		t.Fatalf("index has %d timestamps, want 4 for a 3h span at 60 min", len(table.Index))
	}
	wantFirst := time.Date(2024, 3, 1, 0, 0, 0, 0, p.Location())
	if !table.Index[0].Equal(wantFirst) {
		t.Errorf("first timestamp = %v, want span start", table.Index[0])
	}
	if table.Devices[0] != "meter-1" || table.Values[0][3] != 4 {
		t.Errorf("table = %v %v", table.Devices, table.Values)
	}
}

func TestTimeseriesSpreadFallback(t *testing.T) {
	// No interval declared: four readings spread evenly over the
	// three-hour span land 60 minutes apart.
	p, err := New(twowireSource("MMR",
		shortRow("meter-1", []string{"1", "2", "3", "4"}),
	))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	table, err := p.Timeseries()
	if err != nil {
		t.Fatalf("Timeseries: %v", err)
	}
	if len(table.Index) != 4 {
		t.Fatalf("index has %d timestamps, want count-derived 4", len(table.Index))
	}
	if got := table.Index[1].Sub(table.Index[0]); got != time.Hour {
		t.Errorf("spacing = %v, want 1h", got)
	}
	if !table.Index[3].Equal(time.Date(2024, 3, 1, 3, 0, 0, 0, p.Location())) {
		t.Errorf("last timestamp = %v, want span end", table.Index[3])
	}
}

func TestTimeseriesAMRDropsChecksumRow(t *testing.T) {
	p, err := New(twowireSource("AMR;Interval: 60 min",
		shortRow("meter-1", []string{"1", "2", "3", "9999"}),
	))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Mode() != ModeAMR {
		t.Fatalf("mode = %s, want AMR", p.Mode())
	}

	table, err := p.Timeseries()
	if err != nil {
		t.Fatalf("Timeseries: %v", err)
	}
	if len(table.Index) != 3 {
		t.Fatalf("index has %d timestamps, want 3 after dropping the checksum row", len(table.Index))
	}
	if len(table.Values[0]) != 3 {
		t.Errorf("values = %v, want checksum total removed", table.Values[0])
	}
}

func TestDeduplicateDevices(t *testing.T) {
	p, err := New(twowireSource("MMR;Interval: 60 min",
		shortRow("meter-1", []string{"1", "2", "3", "4"}),
		shortRow("meter-1", []string{"5", "6", "7", "8"}),
	), DeduplicateDevices())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	devices, err := p.Devices()
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("got %d devices, want first occurrence only", len(devices))
	}
	if devices[0].Values[0] != 1 {
		t.Errorf("kept values = %v, want the first row's", devices[0].Values)
	}
}

func TestWithHeaderOptionsDropsContractInfo(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("[Time zone];+0100\n")
	sb.WriteString("[Format];MMR;Interval: 60 min\n")
	sb.WriteString("[Body Start]\n")
	sb.WriteString(shortRow("meter-1", []string{"1", "2", "3", "4"}) + "\n")
	sb.WriteString("CONTRACT-INFO;admin;row\n")
	sb.WriteString("[Body End]\n")

	p, err := New(uni.StringSource("readings.csv", sb.String()),
		WithHeaderOptions(uni.DropContractInfoLines()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	devices, err := p.Devices()
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if len(devices) != 1 || devices[0].Name != "meter-1" {
		t.Fatalf("devices = %+v, want meter-1 only", devices)
	}
}

func TestTimeseriesBlankReadingsAreNaN(t *testing.T) {
	p, err := New(twowireSource("MMR;Interval: 60 min",
		shortRow("meter-1", []string{"1", "", "3", "4"}),
	))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	devices, err := p.Devices()
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if !math.IsNaN(devices[0].Values[1]) {
		t.Errorf("blank reading = %v, want NaN", devices[0].Values[1])
	}
}

func TestTimeseriesCountMismatch(t *testing.T) {
	// Five readings against a 3h span at 60 min (four timestamps).
	p, err := New(twowireSource("MMR;Interval: 60 min",
		shortRow("meter-1", []string{"1", "2", "3", "4", "5"}),
	))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Timeseries(); err == nil {
		t.Error("want an error when readings do not fit the declared interval")
	}
}
