// Package control implements the browser-facing command grammar of
// webCamCtrl on top of the camera processor.
//
// A request is a JSON object {"command":"NAME[::ARGS]"}:
//
//	PRESETS              return every preset label as PRESET_DATA
//	N                    move to preset N
//	PRESET_STORE         arm store mode
//	N::label             (armed) label preset N and save the position there
//	SCAN_PRESETS::ON     start, or restart, the preset tour
//	SCAN_PRESETS::OFF    stop the preset tour
//	anything else        sent to the camera by catalog name; ARGS ignored
//
// Every reply carries "message": "JSON command is NAME".
//
// The Controller is an owned value: store mode, the scanner and the sender
// are fields, so several controllers can coexist in tests.
package control
