package mqttsn

import (
	"github.com/golang-io/mqttsn/pkt"
	"github.com/golang-io/requests"
)

// options carries every knob named in spec §6's Configuration table,
// following options.go's Option func(*Options) / newOptions(opts...)
// pattern exactly.
type options struct {
	GatewayAddr string

	ClientID     string
	KeepAliveSec uint16
	CleanSession bool

	ConnackTimeoutMS uint64

	QoS1RetryCount     int
	QoS1RetryTimeoutMS uint64
	QoS2RetryTimeoutMS uint64

	ChunkPayloadSize  int
	MaxChunks         int
	ReceiveBudgetBytes int
	InterChunkDelayMS uint64
	EveryNChunks      int
	BurstPauseMS      uint64
	RetransmitDelayMS uint64
	QuietWindowMS     uint64
	BlockTimeoutMS    uint64

	ChunkTopic       string
	RetransmitTopic  string
	BlockTopic       string
	BlockQoS         pkt.QoS

	Callbacks    Callbacks
	Persistence  Persistence
	InboundDepth int
}

// Option mutates an options value at construction, the way every
// Option in the teacher's options.go does.
type Option func(*options)

func newOptions(opts ...Option) options {
	o := options{
		ClientID:           "mqttsn-" + requests.GenId(),
		KeepAliveSec:       60,
		ConnackTimeoutMS:   5000,
		QoS1RetryCount:     3,
		QoS1RetryTimeoutMS: 1000,
		QoS2RetryTimeoutMS: 1000,
		ChunkPayloadSize:   120,
		MaxChunks:          1000,
		ReceiveBudgetBytes: 55 * 1024,
		InterChunkDelayMS:  10,
		EveryNChunks:       20,
		BurstPauseMS:       50,
		RetransmitDelayMS:  5,
		QuietWindowMS:      3000,
		BlockTimeoutMS:     60000,
		ChunkTopic:         "chunks",
		RetransmitTopic:    "retransmit",
		BlockTopic:         "block",
		BlockQoS:           pkt.QoS0,
		InboundDepth:       16,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// GatewayAddr sets the UDP host:port the engine dials (spec §6
// gateway_ip/gateway_port).
func GatewayAddr(addr string) Option {
	return func(o *options) { o.GatewayAddr = addr }
}

// ClientID overrides the generated client id; ids over 23 bytes are
// rejected (not truncated) at encode time (pkt.Connect.encodeBody).
func ClientID(id string) Option {
	return func(o *options) { o.ClientID = id }
}

// KeepAlive sets keep_alive_sec; 0 disables pings.
func KeepAlive(sec uint16) Option {
	return func(o *options) { o.KeepAliveSec = sec }
}

// CleanSession sets clean_session.
func CleanSession(clean bool) Option {
	return func(o *options) { o.CleanSession = clean }
}

// ConnackTimeout overrides connack_timeout_ms.
func ConnackTimeout(ms uint64) Option {
	return func(o *options) { o.ConnackTimeoutMS = ms }
}

// QoS1Retry overrides qos1_retry_count/qos1_retry_timeout_ms. Pass
// qos.Unbounded for count to retry forever.
func QoS1Retry(count int, timeoutMS uint64) Option {
	return func(o *options) { o.QoS1RetryCount = count; o.QoS1RetryTimeoutMS = timeoutMS }
}

// QoS2RetryTimeout overrides the PUBREC/PUBREL segment timeout.
func QoS2RetryTimeout(ms uint64) Option {
	return func(o *options) { o.QoS2RetryTimeoutMS = ms }
}

// ChunkPayloadSize overrides chunk_payload_size (1-120).
func ChunkPayloadSize(n int) Option {
	return func(o *options) { o.ChunkPayloadSize = n }
}

// MaxChunks overrides max_chunks.
func MaxChunks(n int) Option {
	return func(o *options) { o.MaxChunks = n }
}

// ReceiveBudgetBytes overrides receive_budget_bytes.
func ReceiveBudgetBytes(n int) Option {
	return func(o *options) { o.ReceiveBudgetBytes = n }
}

// Pacing overrides inter_chunk_delay_ms/every_n_chunks/burst_pause_ms.
func Pacing(interChunkMS uint64, everyN int, burstPauseMS uint64) Option {
	return func(o *options) {
		o.InterChunkDelayMS = interChunkMS
		o.EveryNChunks = everyN
		o.BurstPauseMS = burstPauseMS
	}
}

// BlockTopics overrides the chunk/retransmit/completion topic names
// (spec §6: "by convention <prefix>/chunks and <prefix>/retransmit").
func BlockTopics(chunk, retransmit, completion string) Option {
	return func(o *options) {
		o.ChunkTopic = chunk
		o.RetransmitTopic = retransmit
		o.BlockTopic = completion
	}
}

// WithCallbacks installs the capability object the engine calls into
// (spec §9).
func WithCallbacks(cb Callbacks) Option {
	return func(o *options) { o.Callbacks = cb }
}

// WithPersistence installs the block-transfer persistence collaborator
// (spec §6: "the engine CALLS, does not implement").
func WithPersistence(p Persistence) Option {
	return func(o *options) { o.Persistence = p }
}

// InboundQueueDepth overrides the bounded inbound FIFO's capacity
// (default 16, spec §4.D).
func InboundQueueDepth(n int) Option {
	return func(o *options) { o.InboundDepth = n }
}
