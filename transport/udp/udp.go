// Package udp implements transport.Adapter over a UDP socket (§4.J,
// §6 "Wire protocol: MQTT-SN v1.2 over UDP"). The receive goroutine is
// the spec's "interrupt-like context" producer (§5): it only ever
// copies a datagram into a buffered channel, never touching the codec
// or QoS engine directly.
package udp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/golang-io/mqttsn/pkt"
	"github.com/golang-io/mqttsn/transport"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const recvBufferDepth = 64

// maxDatagramSize follows spec §4.J: "the adapter MAY drop inbound
// datagrams larger than 512 bytes."
const maxDatagramSize = 512

// Adapter dials one gateway endpoint and runs its receive loop under an
// errgroup, mirroring how the teacher's cmd/mqtt-client supervises its
// reader/signal/connect goroutines (client.go, cmd/mqtt-client/main.go).
// This is the one place in the module goroutines are allowed to run free
// of the single-threaded core (spec §5).
type Adapter struct {
	id   string
	conn *net.UDPConn

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	recvCh chan *[]byte
}

// Dial resolves gatewayAddr (host:port) and starts the background
// receive loop.
func Dial(gatewayAddr string) (*Adapter, error) {
	dst, err := net.ResolveUDPAddr("udp", gatewayAddr)
	if err != nil {
		return nil, fmt.Errorf("transport/udp: resolve %s: %w", gatewayAddr, err)
	}
	conn, err := net.DialUDP("udp", nil, dst)
	if err != nil {
		return nil, fmt.Errorf("transport/udp: dial %s: %w", gatewayAddr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)
	a := &Adapter{
		id:     uuid.NewString(),
		conn:   conn,
		group:  group,
		ctx:    gctx,
		cancel: cancel,
		recvCh: make(chan *[]byte, recvBufferDepth),
	}
	group.Go(a.receiveLoop)
	log.Printf("transport/udp: dialed instance=%s gateway=%s", a.id, gatewayAddr)
	return a, nil
}

// ID returns the adapter's instance tag, used in log lines to tell
// adapters apart when a process drives more than one at once.
func (a *Adapter) ID() string { return a.id }

func (a *Adapter) receiveLoop() error {
	for {
		select {
		case <-a.ctx.Done():
			return a.ctx.Err()
		default:
		}
		scratch := pkt.GetScratch()
		a.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, err := a.conn.Read(*scratch)
		if err != nil {
			pkt.PutScratch(scratch)
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if a.ctx.Err() != nil {
				return a.ctx.Err()
			}
			log.Printf("transport/udp: read error instance=%s: %v", a.id, err)
			continue
		}
		if n > maxDatagramSize {
			log.Printf("transport/udp: dropped oversize datagram instance=%s size=%d", a.id, n)
			pkt.PutScratch(scratch)
			continue
		}
		*scratch = (*scratch)[:n]
		select {
		case a.recvCh <- scratch:
		default:
			log.Printf("transport/udp: recv buffer full, dropping datagram instance=%s", a.id)
			pkt.PutScratch(scratch)
		}
	}
}

// Send implements transport.Adapter.
func (a *Adapter) Send(b []byte) error {
	if _, err := a.conn.Write(b); err != nil {
		return fmt.Errorf("transport/udp: send: %w", err)
	}
	return nil
}

// RecvNonblocking implements transport.Adapter.
func (a *Adapter) RecvNonblocking(buf []byte) (int, error) {
	select {
	case frame := <-a.recvCh:
		n := copy(buf, *frame)
		pkt.PutScratch(frame)
		return n, nil
	default:
		return 0, transport.ErrWouldBlock
	}
}

// RecvWithTimeout implements transport.Adapter.
func (a *Adapter) RecvWithTimeout(buf []byte, ms int) (int, error) {
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case frame := <-a.recvCh:
		n := copy(buf, *frame)
		pkt.PutScratch(frame)
		return n, nil
	case <-timer.C:
		return 0, transport.ErrTimeout
	}
}

// Close stops the receive loop and closes the socket.
func (a *Adapter) Close() error {
	a.cancel()
	err := a.conn.Close()
	if waitErr := a.group.Wait(); waitErr != nil && a.ctx.Err() == nil {
		log.Printf("transport/udp: receive loop exited instance=%s: %v", a.id, waitErr)
	}
	return err
}

var _ transport.Adapter = (*Adapter)(nil)
