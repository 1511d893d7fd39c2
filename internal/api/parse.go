package api

import (
	"io"
	"math"
	"net/http"
	"time"

	"github.com/meterdock/ediel-core/internal/timeseries"
	"github.com/meterdock/ediel-core/internal/uni"
	"github.com/meterdock/ediel-core/internal/uni/mig"
	"github.com/meterdock/ediel-core/internal/uni/twowire"
)

// ParseDevice summarises one meter channel found in a previewed file.
type ParseDevice struct {
	AccessEAN  string     `json:"access_ean,omitempty"`
	Name       string     `json:"name,omitempty"`
	Serial     string     `json:"serial,omitempty"`
	EnergyType string     `json:"energy_type,omitempty"`
	Unit       string     `json:"unit,omitempty"`
	Readings   int        `json:"readings"`
	First      *time.Time `json:"first,omitempty"`
	Last       *time.Time `json:"last,omitempty"`
}

// ParseResponse is the stateless parse preview result. Nothing is
// stored; the uploaded file is parsed and summarised in-memory.
type ParseResponse struct {
	Filename string `json:"filename"`
	Family   string `json:"family"`
	Variant  int    `json:"variant,omitzero"`
	Kind     string `json:"kind,omitempty"`   // mig: interval, register, flat
	Mode     string `json:"mode,omitempty"`   // twowire: MMR, AMR
	Layout   string `json:"layout,omitempty"` // twowire: short, long

	Timezone   string              `json:"timezone"`
	CreatedOn  *time.Time          `json:"created_on,omitempty"`
	Properties map[string][]string `json:"properties"`

	Devices  []ParseDevice `json:"devices"`
	Readings int           `json:"readings"`
}

// handleParse parses an uploaded exchange file and returns a summary.
//
// The raw file content is the request body; the original filename is
// passed as the "filename" query parameter so MIG variants can be
// resolved from the export naming convention.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		writeBadRequest(w, "filename query parameter is required")
		return
	}

	content, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "reading request body: "+err.Error())
		return
	}
	if len(content) == 0 {
		writeBadRequest(w, "request body is empty")
		return
	}

	src := uni.ReaderSource(filename, content)

	var resp *ParseResponse
	if _, ok := uni.MatchFilename(filename); ok {
		resp, err = previewMIG(src)
	} else {
		resp, err = previewTwoWire(src)
	}
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// previewMIG summarises a MIG export without storing anything.
func previewMIG(src uni.Source) (*ParseResponse, error) {
	p, err := mig.New(src)
	if err != nil {
		return nil, err
	}

	resp := newParseResponse(p.Parser)
	resp.Family = "mig"
	resp.Variant = p.Dialect().Variant
	resp.Kind = p.Dialect().Kind.String()

	switch p.Dialect().Kind {
	case mig.KindInterval:
		table, err := p.Timeseries()
		if err != nil {
			return nil, err
		}
		for _, col := range table.Columns {
			if col.Subtype != timeseries.SubtypeValue {
				continue
			}
			d := ParseDevice{
				AccessEAN:  col.Device.AccessEAN,
				Name:       col.Device.Description,
				Serial:     col.Device.Serial,
				EnergyType: col.Device.EnergyType,
				Unit:       col.Device.Unit,
			}
			var first, last time.Time
			for j, v := range col.Values {
				if math.IsNaN(v) {
					continue
				}
				if d.Readings == 0 {
					first = table.Index[j]
				}
				last = table.Index[j]
				d.Readings++
			}
			if d.Readings > 0 {
				d.First, d.Last = &first, &last
			}
			resp.Devices = append(resp.Devices, d)
			resp.Readings += d.Readings
		}

	case mig.KindRegister:
		registers, err := p.Registers()
		if err != nil {
			return nil, err
		}
		byEAN := map[string]int{}
		for _, reg := range registers {
			if byEAN[reg.AccessEAN] == 0 {
				resp.Devices = append(resp.Devices, ParseDevice{
					AccessEAN: reg.AccessEAN,
					Serial:    reg.Serial,
				})
			}
			byEAN[reg.AccessEAN]++
		}
		for i := range resp.Devices {
			resp.Devices[i].Readings = byEAN[resp.Devices[i].AccessEAN]
			resp.Readings += resp.Devices[i].Readings
		}

	case mig.KindFlat:
		readings, err := p.Readings()
		if err != nil {
			return nil, err
		}
		index := map[string]int{}
		for _, rd := range readings {
			i, ok := index[rd.AccessEAN]
			if !ok {
				i = len(resp.Devices)
				index[rd.AccessEAN] = i
				resp.Devices = append(resp.Devices, ParseDevice{
					AccessEAN:  rd.AccessEAN,
					EnergyType: rd.EnergyType,
					Unit:       rd.Unit,
				})
			}
			if rd.Consumption != nil {
				resp.Devices[i].Readings++
				resp.Readings++
			}
		}
	}

	return resp, nil
}

// previewTwoWire summarises a two-wire register export.
func previewTwoWire(src uni.Source) (*ParseResponse, error) {
	p, err := twowire.New(src)
	if err != nil {
		return nil, err
	}

	meters, err := p.Devices()
	if err != nil {
		return nil, err
	}
	layout, err := p.Layout()
	if err != nil {
		return nil, err
	}
	table, err := p.Timeseries()
	if err != nil {
		return nil, err
	}

	resp := newParseResponse(p.Parser)
	resp.Family = "twowire"
	resp.Mode = string(p.Mode())
	resp.Layout = layout.String()

	for i, name := range table.Devices {
		d := ParseDevice{Name: name}
		if i < len(meters) {
			d.AccessEAN = meters[i].Ean
			d.Unit = meters[i].Unit
		}
		var first, last time.Time
		for j, v := range table.Values[i] {
			if math.IsNaN(v) {
				continue
			}
			if d.Readings == 0 {
				first = table.Index[j]
			}
			last = table.Index[j]
			d.Readings++
		}
		if d.Readings > 0 {
			d.First, d.Last = &first, &last
		}
		resp.Devices = append(resp.Devices, d)
		resp.Readings += d.Readings
	}

	return resp, nil
}

// newParseResponse fills the shared header fields.
func newParseResponse(p *uni.Parser) *ParseResponse {
	resp := &ParseResponse{
		Filename:   p.Name(),
		Properties: map[string][]string{},
	}
	if loc := p.Location(); loc != nil {
		resp.Timezone = loc.String()
	}
	if created := p.CreatedOn(); !created.IsZero() {
		resp.CreatedOn = &created
	}
	for _, key := range p.Properties() {
		if v, ok := p.Property(key); ok {
			resp.Properties[key] = v
		}
	}
	return resp
}
