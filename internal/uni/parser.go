package uni

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"
)

// DateFormat is the timestamp layout used throughout the UNI family:
// day, month, year, then 24-hour wall time.
const DateFormat = "02012006 15:04"

// Header sentinel keys marking the body's line range.
const (
	keyBodyStart = "Body Start"
	keyBodyEnd   = "Body End"
	keyTimezone  = "Time zone"
	keyCreatedOn = "Created on"
	keyFormat    = "Format"
)

// contractInfoMarker tags administrative rows some senders interleave
// with readings; they carry no metering data.
const contractInfoMarker = "CONTRACT-INFO"

// Option adjusts parser construction.
type Option func(*Parser)

// WithName overrides the source's file name. Useful when content comes
// from a buffer but the original name is known.
func WithName(name string) Option {
	return func(p *Parser) { p.name = name }
}

// DropContractInfoLines removes CONTRACT-INFO rows before the header
// scan, so they neither shift the body range nor reach the decoder.
func DropContractInfoLines() Option {
	return func(p *Parser) { p.dropContractInfo = true }
}

// Parser holds a fully scanned UNI file: raw records, the header
// property map, the body line range and the file's fixed-offset
// location. Construction fails on structural problems; a returned
// Parser is immutable and safe for concurrent reads.
type Parser struct {
	source           Source
	name             string
	dropContractInfo bool

	raw   [][]string
	props map[string][]string

	bodyStart int
	bodyEnd   int

	loc       *time.Location
	createdOn time.Time
}

// Parse scans the source, extracts the header properties and locates
// the body. It fails with ErrEmptyInput for a zero-line source, with
// ErrMissingBodyMarkers when the Body Start / Body End sentinels are
// not both present, and with ErrMissingTimezone when the Time zone
// property is absent or malformed.
func Parse(src Source, opts ...Option) (*Parser, error) {
	p := &Parser{source: src, name: src.Name()}
	for _, opt := range opts {
		opt(p)
	}

	if err := p.load(); err != nil {
		return nil, err
	}
	if err := p.scanHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parser) load() error {
	rc, err := p.source.Open()
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	r.Comma = ';'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read source: %w", err)
		}
		if p.dropContractInfo && slices.Contains(record, contractInfoMarker) {
			continue
		}
		p.raw = append(p.raw, record)
	}

	if len(p.raw) == 0 {
		return ErrEmptyInput
	}
	return nil
}

func (p *Parser) scanHeader() error {
	p.props = make(map[string][]string)
	p.bodyStart, p.bodyEnd = -1, -1

	for i, line := range p.raw {
		if len(line) == 0 {
			continue
		}
		key := line[0]
		if !strings.HasPrefix(key, "[") {
			continue
		}
		key = strings.Trim(key, "[]")

		switch key {
		case keyBodyStart:
			p.bodyStart = i + 1
			continue
		case keyBodyEnd:
			p.bodyEnd = i - 1
			continue
		}

		var value []string
		for _, field := range line[1:] {
			if field != "" {
				value = append(value, field)
			}
		}
		if len(value) == 0 {
			continue
		}
		// Last occurrence of a repeated key wins.
		p.props[key] = value
	}

	if p.bodyStart < 0 || p.bodyEnd < 0 {
		return ErrMissingBodyMarkers
	}

	loc, err := parseTimezone(p.propScalar(keyTimezone))
	if err != nil {
		return err
	}
	p.loc = loc

	if co, ok := p.props[keyCreatedOn]; ok {
		ts, err := time.ParseInLocation(DateFormat, strings.Join(co, " "), p.loc)
		if err == nil {
			p.createdOn = ts
		}
	}
	return nil
}

// parseTimezone decodes the signed fixed offset the header declares,
// e.g. "+0100". UNI files never carry DST-aware named zones.
func parseTimezone(s string) (*time.Location, error) {
	if len(s) != 5 || (s[0] != '+' && s[0] != '-') {
		return nil, ErrMissingTimezone
	}
	hours, err := strconv.Atoi(s[1:3])
	if err != nil {
		return nil, ErrMissingTimezone
	}
	minutes, err := strconv.Atoi(s[3:5])
	if err != nil {
		return nil, ErrMissingTimezone
	}

	offset := hours*3600 + minutes*60
	if s[0] == '-' {
		offset = -offset
	}
	return time.FixedZone(s, offset), nil
}

// Name returns the file name the content arrived under.
func (p *Parser) Name() string { return p.name }

// Raw returns every record of the file, header included.
func (p *Parser) Raw() [][]string { return p.raw }

// Body returns the records between the body sentinels.
func (p *Parser) Body() [][]string {
	if p.bodyStart > p.bodyEnd || p.bodyEnd >= len(p.raw) {
		return nil
	}
	return p.raw[p.bodyStart : p.bodyEnd+1]
}

// BodyRange returns the inclusive [start, end] line indices of the
// body within Raw.
func (p *Parser) BodyRange() (start, end int) { return p.bodyStart, p.bodyEnd }

// Properties returns the header keys in sorted order, excluding the
// body sentinels.
func (p *Parser) Properties() []string {
	keys := make([]string, 0, len(p.props))
	for k := range p.props {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Property returns the value fields of a header key.
func (p *Parser) Property(key string) ([]string, bool) {
	v, ok := p.props[key]
	return v, ok
}

// propScalar returns a property's first value field, or "".
func (p *Parser) propScalar(key string) string {
	v := p.props[key]
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// Format returns the header's Format property fields, e.g.
// ["MMR", "Interval: 15 min"].
func (p *Parser) Format() []string { return p.props[keyFormat] }

// Location returns the file's fixed-offset timezone.
func (p *Parser) Location() *time.Location { return p.loc }

// CreatedOn returns the file's creation timestamp, or the zero time
// when the header omits it.
func (p *Parser) CreatedOn() time.Time { return p.createdOn }

// ParseTime decodes a timestamp cell in the file's declared format and
// location. A blank cell yields the zero time with no error; any other
// failure is reported as a *ConvertError.
func (p *Parser) ParseTime(column, value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, nil
	}
	ts, err := time.ParseInLocation(DateFormat, value, p.loc)
	if err != nil {
		return time.Time{}, &ConvertError{Column: column, Value: value, Err: err}
	}
	return ts, nil
}

// ParseFloat decodes a numeric cell, normalizing decimal commas. A
// blank cell yields (0, false, nil); any other failure is reported as
// a *ConvertError.
func (p *Parser) ParseFloat(column, value string) (float64, bool, error) {
	if strings.TrimSpace(value) == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", "."), 64)
	if err != nil {
		return 0, false, &ConvertError{Column: column, Value: value, Err: err}
	}
	return f, true, nil
}
