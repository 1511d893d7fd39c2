// Package uni parses the semicolon-delimited exchange files used by
// grid operators for metering data ("UNI" format).
//
// A UNI file is a property header followed by a body of data rows. Each
// header line starts with a bracket-wrapped key:
//
//	[Time zone];+0100
//	[Created on];01032024 06:15
//	[Body Start]
//	...data rows...
//	[Body End]
//
// The two sentinel keys mark the body's line range; everything between
// them is handed to a format-specific decoder. This package handles the
// shared layer: header extraction, body location, timezone and date
// handling, and the source abstraction. The mig and twowire
// sub-packages decode the body itself.
//
// # Usage
//
//	p, err := uni.Parse(uni.FileSource("export.csv"))
//	if err != nil {
//	    return err
//	}
//	tz := p.Location()
//	for _, row := range p.Body() {
//	    ...
//	}
package uni
