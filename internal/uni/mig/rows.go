package mig

import (
	"time"

	"github.com/meterdock/ediel-core/internal/timeseries"
)

// IntervalRow is one decoded row of a packed interval export (variants
// 91, 92, 93): the device identity, the covered [Start, End] span, the
// declared interval length, and the raw fields the packed value and
// quality blocks are sliced from.
type IntervalRow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	AccessEAN  string `json:"access_ean"`
	Serial     string `json:"serial"`
	CounterID  string `json:"counter_id"`
	EnergyType string `json:"energy_type"`
	Direction  string `json:"direction"`
	Unit       string `json:"unit"`
	Reason     string `json:"reason"`

	// Interval is the declared reading length in minutes; 0 when the
	// row does not declare one. Rows without an interval produce an
	// empty series.
	Interval int `json:"interval"`

	Description string `json:"description"`
	CityEAN     string `json:"city_ean"`

	fields []string
}

// Device returns the channel identity the row's readings belong to.
func (r IntervalRow) Device() timeseries.DeviceKey {
	return timeseries.DeviceKey{
		AccessEAN:   r.AccessEAN,
		Description: r.Description,
		Serial:      r.Serial,
		Direction:   r.Direction,
		CounterID:   r.CounterID,
		EnergyType:  r.EnergyType,
		Unit:        r.Unit,
	}
}

// Register is one decoded row of a register export (variant 94). Rows
// come in two shapes: calculated access-point level registers and
// physical meter registers, told apart by the row prefix. Fields not
// present in a row's shape stay at their zero value; blank cells in
// numeric fields decode to nil.
type Register struct {
	// Calculated reports the row shape: true for access-point level
	// rows, false for physical registers.
	Calculated bool `json:"calculated"`

	AccessEAN  string `json:"access_ean"`
	Serial     string `json:"serial"`
	RegisterID string `json:"register_id"`
	EnergyType string `json:"energy_type"`
	TimeFrame  string `json:"time_frame"`
	Unit       string `json:"unit"`
	Reason     string `json:"reason"`

	Description string `json:"description"`

	// Calculated-only fields.
	Start             time.Time `json:"start,omitzero"`
	End               time.Time `json:"end,omitzero"`
	QualityCode       string    `json:"quality_code,omitempty"`
	QualityReason     string    `json:"quality_reason,omitempty"`
	Value             *float64  `json:"value,omitempty"`
	Estimate          *float64  `json:"estimate,omitempty"`
	EstimateStart     time.Time `json:"estimate_start,omitzero"`
	SwitchingCategory string    `json:"switching_category,omitempty"`
	CityEAN           string    `json:"city_ean,omitempty"`

	// Physical-only fields.
	MeteringMethod        string    `json:"metering_method,omitempty"`
	PreviousDateTime      time.Time `json:"previous_datetime,omitzero"`
	PreviousValue         *float64  `json:"previous_value,omitempty"`
	PreviousQualityCode   string    `json:"previous_quality_code,omitempty"`
	PreviousQualityReason string    `json:"previous_quality_reason,omitempty"`
	LatestDateTime        time.Time `json:"latest_datetime,omitzero"`
	LatestValue           *float64  `json:"latest_value,omitempty"`
	LatestQualityCode     string    `json:"latest_quality_code,omitempty"`
	LatestQualityReason   string    `json:"latest_quality_reason,omitempty"`
	MeterType             string    `json:"meter_type,omitempty"`
	GasConversionFactor   *float64  `json:"gas_conversion_factor,omitempty"`
	GasConversionUnit     string    `json:"gas_conversion_unit,omitempty"`
}

// Reading is one decoded row of a flat consumption export (variants
// 95, 96): a single reading over [Start, End].
type Reading struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	AccessEAN      string   `json:"access_ean"`
	EnergyType     string   `json:"energy_type"`
	MeteringMethod string   `json:"metering_method"`
	TimeFrame      string   `json:"time_frame"`
	Direction      string   `json:"direction"`
	Unit           string   `json:"unit"`
	Reason         string   `json:"reason"`
	Consumption    *float64 `json:"consumption"`
	QualityCode    string   `json:"quality_code"`
	Description    string   `json:"description"`
}
