// Package config loads and validates webCamCtrl configuration.
//
// Values are resolved in three layers:
//  1. built-in defaults
//  2. the YAML file (optional; an empty path skips it)
//  3. WCC_* environment variables
//
// The environment names keep the old system property names, e.g.
// wcc.rs232.net.host becomes WCC_RS232_NET_HOST.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Camera.Link.Address())
//
// Secrets (MQTT password, InfluxDB token) belong in the environment rather
// than the file.
package config
