// Package transport defines the capability set the core engine needs
// from a datagram transport (§4.J Transport Adapter), without naming an
// address family or socket implementation. The concrete UDP adapter
// lives in transport/udp.
package transport

import "errors"

// ErrWouldBlock is returned by RecvNonblocking when no datagram is
// waiting.
var ErrWouldBlock = errors.New("transport: would block")

// ErrTimeout is returned by RecvWithTimeout when ms elapses with no
// datagram arriving.
var ErrTimeout = errors.New("transport: timeout")

// ErrCapacity is returned by Send when the adapter's outbound path is
// saturated (e.g. a full write-pacing channel).
var ErrCapacity = errors.New("transport: send capacity exceeded")

// Adapter is the core's view of a datagram socket (§4.J). The core
// imposes no address family; resolving gateway_ip/gateway_port is the
// adapter's responsibility, supplied at construction.
type Adapter interface {
	// Send transmits b to the configured gateway. Implementations MAY
	// return ErrCapacity instead of blocking when internal pacing is
	// saturated.
	Send(b []byte) error

	// RecvNonblocking copies one waiting datagram into buf and returns
	// its length, or ErrWouldBlock if none is ready.
	RecvNonblocking(buf []byte) (int, error)

	// RecvWithTimeout blocks for at most ms milliseconds waiting for one
	// datagram, returning ErrTimeout if none arrives.
	RecvWithTimeout(buf []byte, ms int) (int, error)

	// Close releases the underlying socket and stops any background
	// receive goroutine.
	Close() error
}
