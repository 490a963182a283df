package udp

import (
	"net"
	"testing"
	"time"
)

// loopbackEcho starts a bare UDP listener that echoes every datagram back to
// whoever sent it, so Adapter can be exercised without a real gateway.
func loopbackEcho(t *testing.T) string {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	go func() {
		buf := make([]byte, 1500)
		for {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			conn.WriteToUDP(buf[:n], addr)
		}
	}()
	return conn.LocalAddr().String()
}

func TestDialSendRecvRoundTrip(t *testing.T) {
	addr := loopbackEcho(t)
	a, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer a.Close()

	if err := a.Send([]byte("ping")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	buf := make([]byte, 64)
	n, err := a.RecvWithTimeout(buf, 2000)
	if err != nil {
		t.Fatalf("RecvWithTimeout: %v", err)
	}
	if string(buf[:n]) != "ping" {
		t.Fatalf("got %q, want %q", buf[:n], "ping")
	}
}

func TestRecvNonblockingWouldBlock(t *testing.T) {
	addr := loopbackEcho(t)
	a, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer a.Close()

	buf := make([]byte, 64)
	if _, err := a.RecvNonblocking(buf); err == nil {
		t.Fatalf("RecvNonblocking = nil error, want ErrWouldBlock")
	}
}

func TestRecvWithTimeoutExpires(t *testing.T) {
	addr := loopbackEcho(t)
	a, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer a.Close()

	buf := make([]byte, 64)
	start := time.Now()
	if _, err := a.RecvWithTimeout(buf, 100); err == nil {
		t.Fatalf("RecvWithTimeout = nil error, want ErrTimeout")
	}
	if time.Since(start) < 90*time.Millisecond {
		t.Fatalf("RecvWithTimeout returned too early")
	}
}

func TestCloseStopsReceiveLoop(t *testing.T) {
	addr := loopbackEcho(t)
	a, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
