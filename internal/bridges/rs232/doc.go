// Package rs232 implements the PTZ camera protocol engine.
//
// The camera speaks a binary request/response protocol over RS232. The link
// is usually tunnelled through a serial-to-network bridge (TCP), but a local
// serial port works too.
//
// # Architecture
//
//	┌──────────────┐  Submit   ┌───────────┐  Dequeue  ┌─────────────┐
//	│ API / MQTT / │──────────►│   Queue   │──────────►│ sender loop │──► link
//	│   Scanner    │           │ (admission│           └─────────────┘
//	└──────────────┘           │  + ACK)   │◄──OnResponse── Reader ◄── link
//	                           └─────┬─────┘
//	                                 ▼
//	                         ResponseListener
//
// # Command Catalog
//
// Commands are defined in CSV lines:
//
//	name, hexOpcode, [argSpec], [hexResponse], [hexCompletionCode], [delayMs]
//
// argSpec is either fixed hex bytes or a settable range "MIN..MAX". Malformed
// lines are logged and skipped. The bundled catalog is used unless an
// external directory holds *.csv files; later files override earlier ones.
//
// # Flow Control
//
// One command is outstanding at a time. The queue dispatches the next one
// only when the previous one has been answered (or 1 s has passed), at least
// 200 ms have elapsed since the last dispatch, and the 50 ms post-response
// pause is over. A NACK (0xB4) holds the reader for 250 ms and then releases
// the gate without resending.
//
// # Wire Format
//
// Outbound frames are the opcode followed by argument bytes. Inbound, each
// read (up to 20 bytes) is treated as exactly one message.
//
// # Reconnection
//
// Any write, dequeue or read failure tears down the link, queue and reader
// and reconnects to the same address with exponential backoff. The handshake
// command (IDENTIFIER) is sent first on every new link, followed by commands
// that had not been dispatched yet.
//
// # Usage
//
//	catalog, err := rs232.NewLoader(rs232.LoaderOptions{}).Load("")
//	if err != nil {
//	    return err
//	}
//	proc := rs232.NewProcessor(catalog, rs232.ProcessorConfig{})
//	if err := proc.Initialize(ctx, "192.168.1.148", 3002); err != nil {
//	    return err
//	}
//	defer proc.Close()
//
//	proc.SendDataCommand(rs232.CmdHomePositionMove)
//	proc.SendDataCommandWithArgs(rs232.CmdPresetMove, []byte{3})
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
// Response listeners run on the reader goroutine.
package rs232
