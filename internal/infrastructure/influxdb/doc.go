// Package influxdb records camera link telemetry in InfluxDB v2.
//
// Points go through the client library's batching write API, so writes
// never block the camera path. Three measurements are written:
//
//	camera_response  per classified response; tags command, outcome;
//	                 fields status, latency_ms
//	camera_link      periodic processor counter snapshot
//	camera_event     operator events (preset stored, scan toggled)
//
// Unsolicited camera messages are tagged command=unsolicited. A nil
// *Client drops every write, so callers can hold one unconditionally when
// telemetry is disabled.
package influxdb
