// Package mig decodes the MIG export family of UNI files.
//
// MIG exports are produced by the market exchange platform under six
// variant codes, carried in the file name (EXPORT91..EXPORT96):
//
//   - 91, 92, 93: interval exports. Each body row packs a day of
//     readings plus a parallel quality-code block into one wide row;
//     the package unpacks them into per-device interval series and
//     assembles a wide time-series table.
//   - 94: register exports with heterogeneous rows — calculated
//     (access-point level) and physical registers carry different
//     column sets, told apart by a fixed row prefix.
//   - 95, 96: flat consumption rows, one reading per row.
//
// The variant is resolved once from the file name; an unrecognized
// code fails with ErrUnsupportedVariant. Decoded rows and derived
// tables are computed on first request and cached.
package mig
