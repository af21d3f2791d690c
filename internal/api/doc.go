// Package api implements the HTTP API and WebSocket stream for webCamCtrl.
//
// This package provides:
//   - REST endpoints for camera commands, presets, scanning and statistics
//   - The legacy /camctrl?json={"command":"NAME[::ARGS]"} endpoint used by
//     the browser control page
//   - A WebSocket hub broadcasting classified camera responses and control
//     events
//   - Middleware: request ID, access log, panic recovery, CORS, body size cap
//
// # Endpoints
//
//	GET  /healthz                         liveness
//	GET  /api/v1/health                   component health
//	GET  /api/v1/stats                    link and queue counters
//	POST /api/v1/commands                 {"command":"ZOOM_IN","args":"05"}
//	GET  /api/v1/presets                  preset labels
//	PUT  /api/v1/presets/{number}         {"label":"Door","store":true}
//	POST /api/v1/presets/{number}/move
//	GET  /api/v1/scan
//	POST /api/v1/scan                     {"enabled":true}
//	GET  /api/v1/ws                       WebSocket
//	GET|POST /camctrl?json=...            legacy grammar
//
// # WebSocket
//
// Clients send {"type":"subscribe","payload":{"channels":["camera.response"]}}
// and then receive {"type":"event","event_type":"camera.response",...}
// messages. Control events use the "camera.event" channel.
//
// # Errors
//
// Failures are JSON: {"error":{"code":"not_found","message":"..."}}.
//
// Authentication is not provided; run the service on a trusted network.
package api
