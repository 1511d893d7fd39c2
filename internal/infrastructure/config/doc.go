// Package config loads the service configuration from YAML, applies
// EDIELCORE_* environment overrides and validates the result once at
// startup.
//
// Secrets such as the InfluxDB token and broker password belong in
// environment variables, not in the file; keep config.yaml at 0600
// either way.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
