// Package config loads and validates devsel's application configuration.
//
// Values are resolved in order: built-in defaults, then the YAML file, then
// DEVSEL_* environment variables. Load validates the result and reports
// every problem at once.
//
// Secrets (MQTT password, InfluxDB token) are best supplied through the
// environment rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Catalog.Path)
package config
