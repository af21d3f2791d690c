package rs232

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"go.bug.st/serial"
)

// Link is the byte stream to the camera.
type Link interface {
	io.ReadWriteCloser
}

// Dialer opens a Link. For TCP, address and port locate the serial-to-network
// bridge. For a local serial port, address is the device path.
type Dialer interface {
	Dial(ctx context.Context, address string, port int) (Link, error)
}

// writeDeadliner is implemented by links that support write timeouts.
type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// TCPDialer connects to a serial-to-network bridge.
type TCPDialer struct {
	// Timeout bounds connection establishment. Default: 10 seconds.
	Timeout time.Duration
}

// Dial opens a TCP connection to address:port.
func (d TCPDialer) Dial(ctx context.Context, address string, port int) (Link, error) {
	if address == "" || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("%w: %q port %d", ErrInvalidAddress, address, port)
	}
	timeout := d.Timeout
	if timeout == 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(address, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("dial tcp %s:%d: %w", address, port, err)
	}
	return conn, nil
}

// Serial line defaults.
const (
	defaultBaudRate = 9600
	serialDataBits  = 8
)

// SerialDialer opens a local RS232 port at 8N1.
type SerialDialer struct {
	// BaudRate defaults to 9600.
	BaudRate int
}

// Dial opens the serial device named by address. The port argument is ignored.
func (d SerialDialer) Dial(_ context.Context, address string, _ int) (Link, error) {
	if address == "" {
		return nil, fmt.Errorf("%w: empty serial device", ErrInvalidAddress)
	}
	baud := d.BaudRate
	if baud == 0 {
		baud = defaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: serialDataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(address, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", address, err)
	}
	return port, nil
}

// SerialPorts lists the serial devices present on this host.
func SerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}
	return ports, nil
}
