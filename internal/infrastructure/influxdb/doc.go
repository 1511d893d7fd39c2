// Package influxdb provides time-series storage for imported readings.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched metric writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series persistence for:
//   - Interval readings reconstructed from interval exports
//   - Register readings from two-wire register exports
//   - Import throughput statistics
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "edielcore",
//	    Bucket: "readings",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteReading(device, ts, 42.5, "")
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// Exchange files carry whole days of interval data, so a single import can
// produce thousands of points; batching keeps that to a handful of requests.
package influxdb
