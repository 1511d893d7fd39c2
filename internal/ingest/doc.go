// Package ingest drives the import pipeline: it polls the inbox
// directory for exchange files, routes each file to the matching
// parser, records the outcome in SQLite and forwards readings to the
// time-series sink.
//
// # Flow
//
//	inbox/*.csv → parse (mig or twowire) → imports table
//	                                     → InfluxDB points
//	                                     → MQTT import events
//
// Files whose name matches the network operator's export convention
// (sender.receiver.sequence.EXPORTnn.MIGn.csv) decode as MIG exports;
// everything else is probed as a two-wire register export. A file is
// processed at most once: its filename is checked against the imports
// table before parsing, and processed files are moved to the archive
// directory when one is configured.
//
// Parse failures are recorded too, with status "failed" and the error
// text, so a mangled file does not get retried on every poll.
package ingest
