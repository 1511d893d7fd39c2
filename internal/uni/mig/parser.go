package mig

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/meterdock/ediel-core/internal/timeseries"
	"github.com/meterdock/ediel-core/internal/uni"
)

// calculatedPrefix discriminates the two row shapes of a register
// export: an 18-digit access EAN followed by the AP LEVEL marker means
// a calculated row.
var calculatedPrefix = regexp.MustCompile(`^[0-9]{18};AP LEVEL;`)

// Field counts the two register row shapes split into. The final two
// fields of each shape are always blank padding and are discarded.
const (
	calculatedFieldCount = 19
	physicalFieldCount   = 22
)

// Parser decodes one MIG export. The variant is resolved from the file
// name at construction and fixed for the parser's lifetime. Decoded
// rows and the assembled time-series table are computed once, on first
// request.
type Parser struct {
	*uni.Parser

	dialect Dialect

	// intern dedupes the small repeated vocabulary of the category
	// columns (units, directions, energy types); wide exports repeat
	// them tens of thousands of times.
	intern map[string]string

	intervalOnce sync.Once
	intervalRows []IntervalRow
	intervalErr  error

	registerOnce sync.Once
	registers    []Register
	registerErr  error

	readingOnce sync.Once
	readings    []Reading
	readingErr  error

	tableOnce sync.Once
	table     timeseries.Table
	tableErr  error
}

// New parses the header of a MIG export and resolves its variant from
// the source's file name. Body rows are decoded lazily.
func New(src uni.Source, opts ...uni.Option) (*Parser, error) {
	base, err := uni.Parse(src, opts...)
	if err != nil {
		return nil, err
	}

	dialect, err := ResolveFilename(base.Name())
	if err != nil {
		return nil, err
	}

	return &Parser{
		Parser:  base,
		dialect: dialect,
		intern:  make(map[string]string),
	}, nil
}

// Dialect returns the variant layout resolved at construction.
func (p *Parser) Dialect() Dialect { return p.dialect }

// IntervalRows decodes the body of a packed interval export (variants
// 91, 92, 93). Exact duplicate rows are dropped; rows too short to
// carry the metadata block are skipped. Other variants return
// ErrNotApplicable.
func (p *Parser) IntervalRows() ([]IntervalRow, error) {
	if p.dialect.Kind != KindInterval {
		return nil, fmt.Errorf("%w: variant %d has no interval rows", uni.ErrNotApplicable, p.dialect.Variant)
	}
	p.intervalOnce.Do(func() {
		p.intervalRows, p.intervalErr = p.decodeIntervalRows()
	})
	return p.intervalRows, p.intervalErr
}

// Registers decodes the body of a register export (variant 94). Other
// variants return ErrNotApplicable.
func (p *Parser) Registers() ([]Register, error) {
	if p.dialect.Kind != KindRegister {
		return nil, fmt.Errorf("%w: variant %d has no register rows", uni.ErrNotApplicable, p.dialect.Variant)
	}
	p.registerOnce.Do(func() {
		p.registers, p.registerErr = p.decodeRegisters()
	})
	return p.registers, p.registerErr
}

// Readings decodes the body of a flat consumption export (variants 95,
// 96). Other variants return ErrNotApplicable.
func (p *Parser) Readings() ([]Reading, error) {
	if p.dialect.Kind != KindFlat {
		return nil, fmt.Errorf("%w: variant %d has no flat readings", uni.ErrNotApplicable, p.dialect.Variant)
	}
	p.readingOnce.Do(func() {
		p.readings, p.readingErr = p.decodeReadings()
	})
	return p.readings, p.readingErr
}

// MetadataFrame always fails with ErrNotApplicable: MIG exports carry
// no per-device metadata view. The method exists so MIG and two-wire
// parsers expose the same surface.
func (p *Parser) MetadataFrame() (timeseries.MetaFrame, error) {
	return timeseries.MetaFrame{}, fmt.Errorf("%w: MIG exports carry no metadata frame", uni.ErrNotApplicable)
}

func (p *Parser) interned(s string) string {
	if v, ok := p.intern[s]; ok {
		return v
	}
	p.intern[s] = s
	return s
}

// field returns record[i], or "" past the end. Short rows degrade to
// blank cells rather than panicking.
func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}

func (p *Parser) decodeIntervalRows() ([]IntervalRow, error) {
	var rows []IntervalRow
	seen := make(map[string]struct{})

	for _, record := range p.Body() {
		if len(record) < intervalMetaColumns {
			continue
		}
		joined := strings.Join(record, ";")
		if _, dup := seen[joined]; dup {
			continue
		}
		seen[joined] = struct{}{}

		row, err := p.decodeIntervalRow(record)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (p *Parser) decodeIntervalRow(record []string) (IntervalRow, error) {
	start, err := p.ParseTime("Start", field(record, 0))
	if err != nil {
		return IntervalRow{}, err
	}
	end, err := p.ParseTime("End", field(record, 1))
	if err != nil {
		return IntervalRow{}, err
	}

	row := IntervalRow{
		Start:       start,
		End:         end,
		AccessEAN:   field(record, 2),
		Serial:      p.interned(field(record, 3)),
		CounterID:   p.interned(field(record, 4)),
		EnergyType:  p.interned(field(record, 5)),
		Direction:   p.interned(field(record, 6)),
		Unit:        p.interned(field(record, 7)),
		Reason:      p.interned(field(record, 8)),
		Description: strings.TrimSpace(field(record, descriptionColumn)),
		CityEAN:     field(record, cityEANColumn),
		fields:      record,
	}

	if raw := field(record, intervalColumn); raw != "" {
		interval, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return IntervalRow{}, &uni.ConvertError{Column: "Interval", Value: raw, Err: err}
		}
		row.Interval = interval
	}
	return row, nil
}

func (p *Parser) decodeRegisters() ([]Register, error) {
	var rows []Register
	for _, record := range p.Body() {
		if len(record) == 0 {
			continue
		}
		row, err := p.decodeRegister(record)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (p *Parser) decodeRegister(record []string) (Register, error) {
	joined := strings.Join(record, ";")

	if calculatedPrefix.MatchString(joined) {
		return p.decodeCalculatedRegister(splitRow(joined, calculatedFieldCount))
	}
	return p.decodePhysicalRegister(splitRow(joined, physicalFieldCount))
}

// splitRow re-splits a row into at most n fields; any excess separators
// stay inside the final field, matching how short register rows absorb
// free-text tails.
func splitRow(joined string, n int) []string {
	return strings.SplitN(joined, ";", n)
}

func (p *Parser) decodeCalculatedRegister(f []string) (Register, error) {
	r := Register{
		Calculated:        true,
		AccessEAN:         field(f, 0),
		Serial:            p.interned(field(f, 1)),
		RegisterID:        p.interned(field(f, 2)),
		EnergyType:        p.interned(field(f, 3)),
		TimeFrame:         p.interned(field(f, 4)),
		QualityCode:       p.interned(field(f, 7)),
		QualityReason:     p.interned(field(f, 8)),
		Unit:              p.interned(field(f, 9)),
		Reason:            p.interned(field(f, 10)),
		SwitchingCategory: p.interned(field(f, 14)),
		Description:       strings.TrimSpace(field(f, 15)),
		CityEAN:           field(f, 16),
	}

	var err error
	if r.Start, err = p.ParseTime("Start", field(f, 5)); err != nil {
		return Register{}, err
	}
	if r.End, err = p.ParseTime("End", field(f, 6)); err != nil {
		return Register{}, err
	}
	if r.EstimateStart, err = p.ParseTime("EstimateStart", field(f, 13)); err != nil {
		return Register{}, err
	}
	if r.Value, err = p.parseOptionalFloat("Value", field(f, 11)); err != nil {
		return Register{}, err
	}
	if r.Estimate, err = p.parseOptionalFloat("Estimate", field(f, 12)); err != nil {
		return Register{}, err
	}
	return r, nil
}

func (p *Parser) decodePhysicalRegister(f []string) (Register, error) {
	r := Register{
		AccessEAN:             field(f, 0),
		Serial:                p.interned(field(f, 1)),
		RegisterID:            p.interned(field(f, 2)),
		EnergyType:            p.interned(field(f, 3)),
		MeteringMethod:        p.interned(field(f, 4)),
		Unit:                  p.interned(field(f, 5)),
		TimeFrame:             p.interned(field(f, 6)),
		PreviousQualityCode:   p.interned(field(f, 9)),
		PreviousQualityReason: p.interned(field(f, 10)),
		LatestQualityCode:     p.interned(field(f, 13)),
		LatestQualityReason:   p.interned(field(f, 14)),
		Reason:                p.interned(field(f, 15)),
		Description:           strings.TrimSpace(field(f, 16)),
		MeterType:             p.interned(field(f, 17)),
		GasConversionUnit:     p.interned(field(f, 19)),
	}

	var err error
	if r.PreviousDateTime, err = p.ParseTime("PreviousDateTime", field(f, 7)); err != nil {
		return Register{}, err
	}
	if r.LatestDateTime, err = p.ParseTime("LatestDateTime", field(f, 11)); err != nil {
		return Register{}, err
	}
	if r.PreviousValue, err = p.parseOptionalFloat("PreviousValue", field(f, 8)); err != nil {
		return Register{}, err
	}
	if r.LatestValue, err = p.parseOptionalFloat("LatestValue", field(f, 12)); err != nil {
		return Register{}, err
	}
	if r.GasConversionFactor, err = p.parseOptionalFloat("GasConversionFactor", field(f, 18)); err != nil {
		return Register{}, err
	}
	return r, nil
}

func (p *Parser) parseOptionalFloat(column, value string) (*float64, error) {
	v, ok, err := p.ParseFloat(column, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (p *Parser) decodeReadings() ([]Reading, error) {
	var rows []Reading
	seen := make(map[string]struct{})

	for _, record := range p.Body() {
		if len(record) == 0 {
			continue
		}
		joined := strings.Join(record, ";")
		if _, dup := seen[joined]; dup {
			continue
		}
		seen[joined] = struct{}{}

		row, err := p.decodeReading(record)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (p *Parser) decodeReading(record []string) (Reading, error) {
	r := Reading{
		AccessEAN:      field(record, 2),
		EnergyType:     p.interned(field(record, 3)),
		MeteringMethod: p.interned(field(record, 4)),
		TimeFrame:      p.interned(field(record, 5)),
		Direction:      p.interned(field(record, 6)),
		Unit:           p.interned(field(record, 7)),
		Reason:         p.interned(field(record, 8)),
		QualityCode:    p.interned(field(record, 10)),
		Description:    strings.TrimSpace(field(record, 11)),
	}

	var err error
	if r.Start, err = p.ParseTime("Start", field(record, 0)); err != nil {
		return Reading{}, err
	}
	if r.End, err = p.ParseTime("End", field(record, 1)); err != nil {
		return Reading{}, err
	}
	if r.Consumption, err = p.parseOptionalFloat("Consumption", field(record, 9)); err != nil {
		return Reading{}, err
	}
	return r, nil
}
