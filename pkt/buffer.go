package pkt

import "sync"

// MaxFrameSize bounds the datagrams this codec is asked to parse. The
// adapter may drop anything larger before it reaches here (§4.J).
const MaxFrameSize = 512

// bufferPool hands out fixed-size scratch buffers for receive paths,
// adapted from the teacher's packet.Buffer/GetBuffer/PutBuffer
// (packet/pool.go): steady-state operation must not allocate (§5), so
// the transport adapter and inbound queue draw their receive scratch
// space from here instead of calling make([]byte, N) per datagram.
type bufferPool struct {
	pool *sync.Pool
}

func newBufferPool() *bufferPool {
	return &bufferPool{
		pool: &sync.Pool{
			New: func() any {
				b := make([]byte, MaxFrameSize)
				return &b
			},
		},
	}
}

func (p *bufferPool) Get() *[]byte {
	return p.pool.Get().(*[]byte)
}

func (p *bufferPool) Put(b *[]byte) {
	*b = (*b)[:MaxFrameSize]
	p.pool.Put(b)
}

var scratch = newBufferPool()

// GetScratch returns a pooled MaxFrameSize byte buffer for receiving
// into; callers must PutScratch it back when done.
func GetScratch() *[]byte { return scratch.Get() }

// PutScratch returns a buffer obtained from GetScratch to the pool.
func PutScratch(b *[]byte) { scratch.Put(b) }
