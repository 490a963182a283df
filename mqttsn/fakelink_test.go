package mqttsn

import (
	"github.com/golang-io/mqttsn/transport"
)

// fakeAdapter is an in-process transport.Adapter pair used to drive an
// Engine against a scripted gateway without opening a real socket,
// mirroring how the teacher's own server/client tests ran both ends of
// a connection in one process.
type fakeAdapter struct {
	out chan []byte // frames this end sends
	in  chan []byte // frames this end receives
}

func newFakeLink() (client *fakeAdapter, gateway *fakeAdapter) {
	a := make(chan []byte, 64)
	b := make(chan []byte, 64)
	client = &fakeAdapter{out: a, in: b}
	gateway = &fakeAdapter{out: b, in: a}
	return client, gateway
}

func (f *fakeAdapter) Send(b []byte) error {
	cp := append([]byte(nil), b...)
	select {
	case f.out <- cp:
		return nil
	default:
		return transport.ErrCapacity
	}
}

func (f *fakeAdapter) RecvNonblocking(buf []byte) (int, error) {
	select {
	case frame := <-f.in:
		return copy(buf, frame), nil
	default:
		return 0, transport.ErrWouldBlock
	}
}

func (f *fakeAdapter) RecvWithTimeout(buf []byte, ms int) (int, error) {
	select {
	case frame := <-f.in:
		return copy(buf, frame), nil
	default:
		return 0, transport.ErrTimeout
	}
}

func (f *fakeAdapter) Close() error { return nil }

var _ transport.Adapter = (*fakeAdapter)(nil)
