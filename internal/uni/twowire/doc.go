// Package twowire decodes the register-reading UNI exports produced by
// two-wire metering heads (AMR and MMR sub-formats).
//
// Unlike MIG interval exports, two-wire bodies are row-oriented: each
// row is one meter's static attributes followed by a flat run of
// readings, one column per reading. Rows come in two layouts that are
// not declared anywhere: the long layout carries a leading device EAN
// column, which shifts every later column by one. The package probes
// the short layout first and falls back to the long one when a date
// cell fails to convert.
//
// The reading timestamps are reconstructed from the row's [Start, End]
// span: stepped at the interval the header's Format property declares,
// or spread evenly across the span when the file omits the interval.
// AMR exports append a checksum total after the final reading; it is
// dropped after assembly.
package twowire
