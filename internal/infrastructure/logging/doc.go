// Package logging configures the service's log/slog output.
//
// Entries are JSON by default and text when logging.format is "text".
// They go to stdout, stderr, or a file rotated by lumberjack:
//
//	logging:
//	  level: info
//	  format: json
//	  output: file
//	  file:
//	    path: ./logs/webcamctrl.log
//	    max_size: 50      # MB
//	    max_backups: 5
//	    max_age: 30       # days
//
// Subsystems take a Component logger so entries can be filtered by
// component=rs232, component=mqtt and so on. Credentials from the config
// must never be passed as attributes.
package logging
