// Package timeseries provides the tabular types shared by the UNI file
// parsers: device identities, per-row interval series, and the wide
// time-indexed tables assembled from them.
//
// # Purpose
//
// Metering exports carry readings in two shapes: row-packed interval
// blocks (MIG family) and row-oriented register runs (two-wire family).
// Both are reconstructed into time-indexed tables here so that the rest
// of the system (archive, InfluxDB export, API) deals with one model.
//
// # Index conventions
//
// MIG interval rows span (Start, End] at a declared interval length:
// each index timestamp marks the end of its interval. Two-wire register
// runs span [Start, End] inclusive. When a two-wire file omits its
// interval, the observed reading count is spread evenly across the
// declared span instead.
//
// # Undefined values
//
// Undefined readings are math.NaN in value columns and the empty string
// in quality-code columns. Alignment to a table index never drops a
// quality code: a masked value keeps its paired code.
package timeseries
