// Package preset manages the camera's stored positions: the labels shown
// to users, kept in SQLite, and the Scanner that tours the positions.
//
// The camera itself remembers where each preset points. This package only
// tracks what each one is called and when it was last saved, and issues
// moves through an rs232.CommandSender.
//
// Scanning visits presets 0..MaxPreset in order, waits Interval at each, and
// wraps around until stopped:
//
//	scanner := preset.NewScanner(processor, preset.ScanConfig{Interval: 5 * time.Second})
//	scanner.Start()
//	defer scanner.Close()
package preset
