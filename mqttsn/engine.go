// Package mqttsn is the public Pub/Sub API (§4.G): a single Engine type
// wiring the wire codec, session state machine, QoS engine, topic
// registry, and block-transfer subsystem together over a transport
// adapter. Construction follows options.go's functional-option pattern;
// the engine itself stays single-threaded cooperative per spec §5 — the
// only goroutine in the whole module lives in transport/udp.
package mqttsn

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/golang-io/mqttsn/block"
	"github.com/golang-io/mqttsn/clock"
	"github.com/golang-io/mqttsn/idalloc"
	"github.com/golang-io/mqttsn/inqueue"
	"github.com/golang-io/mqttsn/metrics"
	"github.com/golang-io/mqttsn/pkt"
	"github.com/golang-io/mqttsn/qos"
	"github.com/golang-io/mqttsn/registry"
	"github.com/golang-io/mqttsn/session"
	"github.com/golang-io/mqttsn/topic"
	"github.com/golang-io/mqttsn/transport"
	"github.com/golang-io/mqttsn/transport/udp"
)

// Engine is the client-side MQTT-SN engine. Build one with New and drive
// it with Run (or call Poll from your own loop).
type Engine struct {
	cfg       options
	clk       clock.Clock
	transport transport.Adapter

	reg       *registry.Registry
	alloc     *idalloc.Allocator
	sess      *session.Session
	qosEngine *qos.Engine
	inbound   *inqueue.Queue
	trie      *topic.MemoryTrie

	blockSender   *block.Sender
	blockReceiver *block.Receiver
	persistence   Persistence

	cb      Callbacks
	metrics *metrics.Collector

	chunkTopicID      uint16
	retransmitTopicID uint16
	blockTopicID      uint16

	pendingRegID       uint16
	pendingRegResult   *pkt.Regack
	pendingSubID       uint16
	pendingSubResult   *pkt.Suback
	pendingUnsubID     uint16
	pendingUnsubResult *pkt.Unsuback

	pendingQoS2 map[uint16]uint16

	pendingPublishID   uint16
	pendingPublishDone bool
	pendingPublishErr  error

	lastConnectErr error
}

// New dials the configured gateway and constructs an idle Engine.
func New(opts ...Option) (*Engine, error) {
	cfg := newOptions(opts...)
	if cfg.GatewayAddr == "" {
		return nil, &Error{Kind: InvalidArgument, Err: fmt.Errorf("mqttsn.GatewayAddr option is required")}
	}

	adapter, err := udp.Dial(cfg.GatewayAddr)
	if err != nil {
		return nil, err
	}
	return newEngine(cfg, clock.NewReal(), adapter), nil
}

// newEngine wires the Engine's collaborators around an already-live
// transport adapter and clock. Split out of New so tests can substitute
// an in-memory transport.Adapter and a clock.Fake without opening a real
// socket.
func newEngine(cfg options, clk clock.Clock, adapter transport.Adapter) *Engine {
	reg := registry.New()
	alloc := idalloc.New()

	persistence := cfg.Persistence
	if persistence == nil {
		persistence = discardPersistence{}
	}

	e := &Engine{
		cfg:       cfg,
		clk:       clk,
		transport: adapter,
		reg:       reg,
		alloc:     alloc,
		sess: session.New(session.Config{
			ClientID:         cfg.ClientID,
			KeepAliveSec:     cfg.KeepAliveSec,
			CleanSession:     cfg.CleanSession,
			ConnackTimeoutMS: cfg.ConnackTimeoutMS,
		}, clk, reg),
		qosEngine: qos.New(qos.Config{
			QoS1RetryCount:     cfg.QoS1RetryCount,
			QoS1RetryTimeoutMS: cfg.QoS1RetryTimeoutMS,
			QoS2RetryTimeoutMS: cfg.QoS2RetryTimeoutMS,
		}, clk, alloc),
		inbound: inqueue.New(cfg.InboundDepth),
		trie:    topic.NewMemoryTrie(),
		blockSender: block.NewSender(block.SenderConfig{
			ChunkPayloadSize:  cfg.ChunkPayloadSize,
			InterChunkDelayMS: cfg.InterChunkDelayMS,
			EveryNChunks:      cfg.EveryNChunks,
			BurstPauseMS:      cfg.BurstPauseMS,
			RetransmitDelayMS: cfg.RetransmitDelayMS,
			QoS:               cfg.BlockQoS,
		}, clk),
		blockReceiver: block.NewReceiver(block.ReceiverConfig{
			ChunkPayloadSize: cfg.ChunkPayloadSize,
			MaxChunks:        cfg.MaxChunks,
			MaxReceiveBudget: cfg.ReceiveBudgetBytes,
			QuietWindowMS:    cfg.QuietWindowMS,
			TimeoutMS:        cfg.BlockTimeoutMS,
		}, clk),
		persistence: persistence,
		cb:          cfg.Callbacks,
		metrics:     metrics.New(),
		pendingQoS2: make(map[uint16]uint16),
	}
	log.Printf("mqttsn: engine created client_id=%s gateway=%s", cfg.ClientID, cfg.GatewayAddr)
	return e
}

// Metrics returns the engine's Prometheus collector.
func (e *Engine) Metrics() *metrics.Collector { return e.metrics }

// IsConnected reports whether publish/subscribe operations are
// currently permitted.
func (e *Engine) IsConnected() bool { return e.sess.IsConnected() }

// Close releases the transport adapter.
func (e *Engine) Close() error { return e.transport.Close() }

// Connect performs the CONNECT/CONNACK handshake (§4.E, §4.G), then
// registers the block-transfer topics so their gateway-assigned ids are
// known before any block transfer or NACK can arrive.
func (e *Engine) Connect(ctx context.Context) error {
	connect := e.sess.BeginConnect()
	if err := e.sendFrame(connect); err != nil {
		return err
	}
	if err := e.waitFor(ctx, e.cfg.ConnackTimeoutMS, func() bool {
		return e.sess.State() != session.Connecting
	}); err != nil {
		return err
	}
	if !e.sess.IsConnected() {
		if rej, ok := e.lastConnectErr.(*session.ErrRejected); ok {
			return &Error{Kind: Rejected, Code: rej.Code}
		}
		return ErrTimeout
	}
	e.cb.connected()

	for _, name := range []string{e.cfg.ChunkTopic, e.cfg.RetransmitTopic, e.cfg.BlockTopic} {
		if _, err := e.Register(name); err != nil {
			log.Printf("mqttsn: failed to register block topic %q: %v", name, err)
		}
	}
	e.chunkTopicID, _ = e.reg.LookupID(e.cfg.ChunkTopic)
	e.retransmitTopicID, _ = e.reg.LookupID(e.cfg.RetransmitTopic)
	e.blockTopicID, _ = e.reg.LookupID(e.cfg.BlockTopic)
	return nil
}

// Disconnect sends DISCONNECT and transitions locally regardless of
// whether the gateway acknowledges it (spec §4.E: "Any -> Disconnected
// on local disconnect()").
func (e *Engine) Disconnect() error {
	if e.sess.State() == session.Disconnected {
		return nil
	}
	err := e.sendFrame(&pkt.Disconnect{})
	e.sess.Disconnect()
	e.cb.disconnected(nil)
	return err
}

// Register requests a topic-id for name and blocks for the REGACK
// (§4.G register).
func (e *Engine) Register(name string) (uint16, error) {
	if !e.sess.IsConnected() {
		return 0, ErrNotConnected
	}
	msgID := e.alloc.Next()
	if err := e.sendFrame(&pkt.Register{MsgID: msgID, TopicName: name}); err != nil {
		return 0, err
	}
	e.pendingRegID, e.pendingRegResult = msgID, nil
	defer func() { e.pendingRegID = 0 }()

	if err := e.waitFor(context.Background(), e.cfg.ConnackTimeoutMS, func() bool {
		return e.pendingRegResult != nil
	}); err != nil {
		return 0, err
	}
	ack := e.pendingRegResult
	if ack.ReturnCode != pkt.Accepted {
		return 0, &Error{Kind: Rejected, Code: ack.ReturnCode}
	}
	e.reg.Upsert(name, ack.TopicID, pkt.TopicIDNormal)
	e.cb.registered(name, ack.TopicID)
	return ack.TopicID, nil
}

// Subscribe requests a subscription and blocks for the SUBACK (§4.G
// subscribe).
func (e *Engine) Subscribe(name string, qos pkt.QoS) (uint16, error) {
	if !e.sess.IsConnected() {
		return 0, ErrNotConnected
	}
	msgID := e.alloc.Next()
	sub := &pkt.Subscribe{QoS: qos, TopicIDType: pkt.TopicIDNormal, MsgID: msgID, TopicName: name}
	if err := e.sendFrame(sub); err != nil {
		return 0, err
	}
	e.pendingSubID, e.pendingSubResult = msgID, nil
	defer func() { e.pendingSubID = 0 }()

	if err := e.waitFor(context.Background(), e.cfg.ConnackTimeoutMS, func() bool {
		return e.pendingSubResult != nil
	}); err != nil {
		return 0, err
	}
	ack := e.pendingSubResult
	if ack.ReturnCode != pkt.Accepted {
		return 0, &Error{Kind: Rejected, Code: ack.ReturnCode}
	}
	if ack.TopicID != 0 {
		e.reg.Upsert(name, ack.TopicID, pkt.TopicIDNormal)
	}
	e.trie.Subscribe(name)
	e.cb.subscribed(name, ack.TopicID)
	return ack.TopicID, nil
}

// Unsubscribe withdraws a subscription and blocks for the UNSUBACK,
// dropping name from the local filter bookkeeping so handlePublish stops
// dispatching on it even if the gateway later reuses its topic-id for an
// unrelated name.
func (e *Engine) Unsubscribe(name string) error {
	if !e.sess.IsConnected() {
		return ErrNotConnected
	}
	msgID := e.alloc.Next()
	unsub := &pkt.Unsubscribe{TopicIDType: pkt.TopicIDNormal, MsgID: msgID, TopicName: name}
	if err := e.sendFrame(unsub); err != nil {
		return err
	}
	e.pendingUnsubID, e.pendingUnsubResult = msgID, nil
	defer func() { e.pendingUnsubID = 0 }()

	if err := e.waitFor(context.Background(), e.cfg.ConnackTimeoutMS, func() bool {
		return e.pendingUnsubResult != nil
	}); err != nil {
		return err
	}
	e.trie.Unsubscribe(name)
	return nil
}

// Publish sends payload on name at qos, auto-registering name first if
// it isn't already known (spec §4.G: "publish auto-registers an unknown
// name"). QoS 0 returns as soon as the frame is handed to the transport;
// QoS 1/2 blocks until the handshake reaches a terminal outcome, since
// there is no separate publish-result callback to deliver it on
// (§4.F: "On PUBACK return-code != accepted: surface to caller").
func (e *Engine) Publish(name string, payload []byte, qos pkt.QoS) error {
	if !e.sess.IsConnected() {
		return ErrNotConnected
	}
	topicID, ok := e.reg.LookupID(name)
	if !ok {
		id, err := e.Register(name)
		if err != nil {
			return err
		}
		topicID = id
	}
	pub := e.qosEngine.PreparePublish(topicID, pkt.TopicIDNormal, payload, qos)
	if qos == pkt.QoS0 {
		return e.sendFrame(pub)
	}

	e.pendingPublishID, e.pendingPublishDone, e.pendingPublishErr = pub.MsgID, false, nil
	defer func() { e.pendingPublishID = 0 }()

	if err := e.sendFrame(pub); err != nil {
		return err
	}
	if err := e.waitFor(context.Background(), e.publishDeadlineMS(qos), func() bool {
		return e.pendingPublishDone
	}); err != nil {
		return err
	}
	return e.pendingPublishErr
}

// publishDeadlineMS bounds how long Publish will wait for a QoS 1/2
// outcome: the retry budget's worth of round-trips, or no bound at all
// when the budget is qos.Unbounded.
func (e *Engine) publishDeadlineMS(level pkt.QoS) uint64 {
	if e.cfg.QoS1RetryCount == qos.Unbounded {
		return ^uint64(0)
	}
	timeoutMS := e.cfg.QoS1RetryTimeoutMS
	if level == pkt.QoS2 {
		timeoutMS = e.cfg.QoS2RetryTimeoutMS
	}
	return uint64(e.cfg.QoS1RetryCount+1) * timeoutMS
}

// Cancel drops a QoS 1/2 inflight publish without retrying or
// synthesizing a local ack (§5 Cancellation).
func (e *Engine) Cancel(msgID uint16) { e.qosEngine.Cancel(msgID) }

// SetOnMessage installs (or replaces) the inbound PUBLISH callback
// (spec §4.G set_on_message).
func (e *Engine) SetOnMessage(cb func(topicName string, data []byte, qos pkt.QoS)) {
	e.cb.OnMessage = cb
}

// SendBlock starts a block transfer of payload over the configured
// chunk topic, returning the assigned block-id (§4.H).
func (e *Engine) SendBlock(payload []byte) (uint16, error) {
	if !e.sess.IsConnected() {
		return 0, ErrNotConnected
	}
	if e.chunkTopicID == 0 {
		return 0, &Error{Kind: InvalidArgument, Err: fmt.Errorf("chunk topic not registered, call Connect first")}
	}
	return e.blockSender.Begin(payload), nil
}

// AbortTransfer cancels any in-progress outbound block transfer (§5
// abort_transfer()).
func (e *Engine) AbortTransfer() {
	if e.blockSender.Active() {
		e.metrics.BlocksAborted.Inc()
	}
	e.blockSender.Reset()
}

// Run drives Poll on a fixed tick until ctx is cancelled or Poll
// returns an error.
func (e *Engine) Run(ctx context.Context, tick time.Duration) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.Poll(); err != nil {
				return err
			}
		}
	}
}

// Poll is one non-blocking iteration of the main loop (§5): drain the
// transport into the inbound queue, dispatch every queued frame, then
// service session keep-alive, QoS retransmits, and block-transfer
// pacing/NACK timers.
func (e *Engine) Poll() error {
	e.drainTransport()
	for {
		item, ok := e.inbound.Pop()
		if !ok {
			break
		}
		e.handleFrame(item.(*[]byte))
	}

	e.sess.ConnackTimedOut()
	if e.sess.NeedsPing() {
		if err := e.sendFrame(e.sess.BuildPing()); err != nil {
			log.Printf("mqttsn: ping send failed: %v", err)
		}
	}
	if e.sess.CheckKeepaliveLost() {
		e.cb.disconnected(ErrKeepaliveLost)
	}

	due, timedOut := e.qosEngine.PollRetransmits()
	for _, r := range due {
		e.metrics.Retransmits.Inc()
		if r.Publish != nil {
			e.sendFrame(r.Publish)
		}
		if r.Pubrel != nil {
			e.sendFrame(r.Pubrel)
		}
	}
	for _, id := range timedOut {
		log.Printf("mqttsn: publish %d abandoned after retry budget exhausted", id)
		if e.pendingPublishID != 0 && id == e.pendingPublishID {
			e.pendingPublishErr, e.pendingPublishDone = ErrTimeout, true
		}
	}
	e.metrics.Inflight.Set(float64(e.qosEngine.Inflight()))

	if e.blockSender.Active() {
		if frame, qos, ok := e.blockSender.Tick(e.clk.NowMillis()); ok {
			e.publishChunk(frame, qos)
		}
	}
	if line, ok := e.blockReceiver.RequestMissing(); ok {
		e.metrics.NacksEmitted.Inc()
		e.publishRetransmitRequest(line)
	}
	if e.blockReceiver.CheckTimeout() {
		e.metrics.BlocksAborted.Inc()
	}
	e.blockReceiver.CheckInitialComplete()
	return nil
}

// ErrKeepaliveLost mirrors session.ErrKeepaliveLost as an *Error so
// OnDisconnected callbacks get the engine's uniform error shape.
var ErrKeepaliveLost = &Error{Kind: NotConnected, Err: session.ErrKeepaliveLost}

func (e *Engine) drainTransport() {
	for {
		scratch := pkt.GetScratch()
		n, err := e.transport.RecvNonblocking(*scratch)
		if err != nil {
			pkt.PutScratch(scratch)
			return
		}
		*scratch = (*scratch)[:n]
		if !e.inbound.Push(scratch) {
			e.metrics.FramesDropped.Inc()
			pkt.PutScratch(scratch)
		}
	}
}

func (e *Engine) handleFrame(raw *[]byte) {
	msg, err := pkt.Decode(*raw)
	pkt.PutScratch(raw)
	if err != nil {
		e.metrics.FramesDropped.Inc()
		log.Printf("mqttsn: decode error: %v", err)
		return
	}
	e.metrics.FramesReceived.Inc()
	e.sess.Touch()

	switch m := msg.(type) {
	case *pkt.Connack:
		e.lastConnectErr = e.sess.HandleConnack(m)
	case *pkt.Register:
		e.sendFrame(e.sess.HandleRegister(m))
	case *pkt.Regack:
		if e.pendingRegID != 0 && m.MsgID == e.pendingRegID {
			e.pendingRegResult = m
		}
	case *pkt.Suback:
		if e.pendingSubID != 0 && m.MsgID == e.pendingSubID {
			e.pendingSubResult = m
		}
	case *pkt.Unsuback:
		if e.pendingUnsubID != 0 && m.MsgID == e.pendingUnsubID {
			e.pendingUnsubResult = m
		}
	case *pkt.Publish:
		e.handlePublish(m)
	case *pkt.Puback:
		err := e.qosEngine.HandlePuback(m)
		if err != nil {
			log.Printf("mqttsn: %v", err)
		}
		if e.pendingPublishID != 0 && m.MsgID == e.pendingPublishID {
			if m.ReturnCode != pkt.Accepted {
				e.pendingPublishErr = &Error{Kind: Rejected, Code: m.ReturnCode}
			} else {
				e.pendingPublishErr = err
			}
			e.pendingPublishDone = true
		}
	case *pkt.Pubrec:
		rel, err := e.qosEngine.HandlePubrec(m)
		if err != nil {
			log.Printf("mqttsn: %v", err)
			return
		}
		e.sendFrame(rel)
	case *pkt.Pubrel:
		dispatch, payload, comp := e.qosEngine.OnPubrel(m)
		e.sendFrame(comp)
		if dispatch {
			topicID := e.pendingQoS2[m.MsgID]
			delete(e.pendingQoS2, m.MsgID)
			e.deliver(topicID, payload, pkt.QoS2)
		}
	case *pkt.Pubcomp:
		err := e.qosEngine.HandlePubcomp(m)
		if err != nil {
			log.Printf("mqttsn: %v", err)
		}
		if e.pendingPublishID != 0 && m.MsgID == e.pendingPublishID {
			e.pendingPublishErr, e.pendingPublishDone = err, true
		}
	case *pkt.PingResp:
		e.sess.HandlePingResp()
	case *pkt.Disconnect:
		e.sess.Disconnect()
		e.cb.disconnected(nil)
	case *pkt.WillTopicReq:
		e.sendFrame(&pkt.WillTopic{})
	case *pkt.WillMsgReq:
		e.sendFrame(&pkt.WillMsg{})
	case *pkt.Advertise, *pkt.GWInfo:
		// informational only (spec §1 Non-goals: gateway discovery).
	default:
		log.Printf("mqttsn: unhandled frame type %s", msg.MsgType())
	}
}

func (e *Engine) handlePublish(pub *pkt.Publish) {
	switch pub.TopicID {
	case e.chunkTopicID:
		if err := e.blockReceiver.ProcessChunk(pub.Data); err != nil {
			if err == block.ErrBudgetExceeded {
				e.metrics.BlocksAborted.Inc()
			}
			log.Printf("mqttsn: block chunk rejected: %v", err)
			return
		}
		if e.blockReceiver.IsComplete() {
			e.completeBlockTransfer()
		}
		return
	case e.retransmitTopicID:
		if n, err := e.blockSender.HandleNack(string(pub.Data)); err != nil {
			log.Printf("mqttsn: NACK rejected: %v", err)
		} else {
			e.metrics.NacksServed.Add(float64(n))
		}
		return
	}

	if pub.QoS == pkt.QoS2 {
		e.pendingQoS2[pub.MsgID] = pub.TopicID
	}
	dispatch, puback, pubrec := e.qosEngine.OnPublish(pub)
	if puback != nil {
		e.sendFrame(puback)
	}
	if pubrec != nil {
		e.sendFrame(pubrec)
	}
	if dispatch {
		e.deliver(pub.TopicID, pub.Data, pub.QoS)
	}
}

// deliver resolves topicID to its registered name and cross-checks it
// against the locally-tracked subscription filters before handing it to
// the application callback, so a gateway reusing a topic-id the engine
// never subscribed to can't masquerade as a subscribed one.
func (e *Engine) deliver(topicID uint16, payload []byte, level pkt.QoS) {
	name, ok := e.reg.LookupName(topicID)
	if !ok {
		log.Printf("mqttsn: dropping delivery for unregistered topic id %d", topicID)
		return
	}
	if _, ok := e.trie.Find(name); !ok {
		log.Printf("mqttsn: dropping delivery of %q: no matching local subscription", name)
		return
	}
	e.cb.message(name, payload, level)
}

func (e *Engine) completeBlockTransfer() {
	now := e.clk.NowMillis()
	elapsed := e.blockReceiver.Elapsed(now)
	data, ext, blockID, size := e.blockReceiver.Complete()
	parts := (size + e.cfg.ChunkPayloadSize - 1) / e.cfg.ChunkPayloadSize

	name := fmt.Sprintf("block-%d.%s", blockID, ext)
	if !e.persistence.IsStorageReady() {
		log.Printf("mqttsn: storage not ready, dropping block %d", blockID)
	} else if err := e.persistence.SaveBlock(name, data); err != nil {
		log.Printf("mqttsn: failed to save block %d: %v", blockID, err)
	}

	msg := block.CompletionMessage(blockID, size, parts, ext, elapsed)
	e.publishRetransmitCompletion(msg)
	e.metrics.BlocksComplete.Inc()
}

func (e *Engine) publishChunk(frame []byte, qos pkt.QoS) {
	pub := e.qosEngine.PreparePublish(e.chunkTopicID, pkt.TopicIDNormal, frame, qos)
	e.sendFrame(pub)
}

func (e *Engine) publishRetransmitRequest(line string) {
	pub := e.qosEngine.PreparePublish(e.retransmitTopicID, pkt.TopicIDNormal, []byte(line), pkt.QoS0)
	e.sendFrame(pub)
}

func (e *Engine) publishRetransmitCompletion(msg string) {
	pub := e.qosEngine.PreparePublish(e.blockTopicID, pkt.TopicIDNormal, []byte(msg), pkt.QoS0)
	e.sendFrame(pub)
}

func (e *Engine) sendFrame(msg pkt.Packet) error {
	frame, err := pkt.Encode(msg)
	if err != nil {
		return &Error{Kind: EncodeError, Err: err}
	}
	if err := e.transport.Send(frame); err != nil {
		return fmt.Errorf("mqttsn: send: %w", err)
	}
	e.metrics.FramesSent.Inc()
	return nil
}

// waitFor polls the engine until cond is true, ctx is cancelled, or
// deadlineMS elapses. Suspension between polls is an explicit sleep, the
// only yielding point in the otherwise cooperative core (spec §5).
func (e *Engine) waitFor(ctx context.Context, deadlineMS uint64, cond func() bool) error {
	start := e.clk.NowMillis()
	for !cond() {
		if clock.Elapsed(start, e.clk.NowMillis()) > deadlineMS {
			return ErrTimeout
		}
		e.Poll()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
	return nil
}
