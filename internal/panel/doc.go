// Package panel serves the browser control page as embedded assets.
//
// The page drives the camera through the legacy /camctrl endpoint: pan,
// tilt and zoom buttons send catalog commands, the preset grid moves to
// or stores presets, and a toggle starts and stops the preset scan. It
// follows the classified response stream on /api/v1/ws.
//
// Assets are embedded with go:embed so the binary has no runtime file
// dependency. A directory may be given instead for page development.
package panel
