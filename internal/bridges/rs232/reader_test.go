package rs232

import (
	"bytes"
	"net"
	"testing"
	"time"
)

func TestReaderDeliversEachRead(t *testing.T) {
	camera, host := net.Pipe()
	defer camera.Close()
	defer host.Close()

	msgs := make(chan []byte, 4)
	r := NewReader(host, func(b []byte) { msgs <- b })
	r.Start()
	r.Start()

	for _, frame := range [][]byte{{0x90, 0x50, 0x01}, {0xB1}} {
		if _, err := camera.Write(frame); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		select {
		case got := <-msgs:
			if !bytes.Equal(got, frame) {
				t.Errorf("message = %X, want %X", got, frame)
			}
		case <-time.After(time.Second):
			t.Fatalf("message %X not delivered", frame)
		}
	}

	if got := r.Messages(); got != 2 {
		t.Errorf("Messages() = %d, want 2", got)
	}
	if got := r.BytesReceived(); got != 4 {
		t.Errorf("BytesReceived() = %d, want 4", got)
	}
}

func TestReaderReportsLinkLoss(t *testing.T) {
	camera, host := net.Pipe()
	defer host.Close()

	errs := make(chan error, 1)
	r := NewReader(host, func([]byte) {})
	r.OnError(func(err error) { errs <- err })
	r.Start()

	camera.Close()

	select {
	case err := <-errs:
		if err == nil {
			t.Error("OnError called with nil error")
		}
	case <-time.After(time.Second):
		t.Fatal("link loss not reported")
	}

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("reader did not exit")
	}
}

func TestReaderStopIsSilent(t *testing.T) {
	camera, host := net.Pipe()
	defer camera.Close()
	defer host.Close()

	called := make(chan error, 1)
	r := NewReader(host, func([]byte) {})
	r.OnError(func(err error) { called <- err })
	r.Start()

	r.Stop()

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("reader did not exit after Stop")
	}
	select {
	case err := <-called:
		t.Errorf("OnError called after Stop: %v", err)
	default:
	}
}
