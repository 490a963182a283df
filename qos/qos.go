// Package qos implements the outbound and inbound PUBLISH handshakes for
// QoS 0/1/2 (§4.F QoS Engine): the inflight table, retransmission with
// DUP suppression, the PUBREC/PUBREL/PUBCOMP tail, and duplicate
// detection on the receive side.
package qos

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/golang-io/mqttsn/clock"
	"github.com/golang-io/mqttsn/idalloc"
	"github.com/golang-io/mqttsn/pkt"
)

// ErrTimeout is returned when an inflight publish exhausts its retry
// budget without a terminal acknowledgment.
var ErrTimeout = errors.New("qos: timeout")

// Unbounded marks Config.QoS1RetryCount as never giving up, for
// application-critical streams (§4.F). The same count governs QoS 2
// entries.
const Unbounded = -1

// recvDedupCapacity bounds the inbound QoS1 duplicate-suppression table;
// oldest entries are evicted first once it fills, the same bounded-FIFO
// trade-off inqueue.Queue makes for the wire-level queue.
const recvDedupCapacity = 64

// Config carries the retry policy knobs from spec §6.
type Config struct {
	QoS1RetryCount     int // Unbounded for unlimited retries
	QoS1RetryTimeoutMS uint64
	QoS2RetryTimeoutMS uint64
}

// state is the inflight entry's position in the QoS1/2 handshake
// (§3 Inflight Publish).
type state int

const (
	awaitingPubAck state = iota
	awaitingPubRec
	awaitingPubComp
)

type inflight struct {
	msgID      uint16
	qos        pkt.QoS
	topicID    uint16
	topicType  pkt.TopicIDType
	payload    []byte
	sendTime   uint64
	retryCount int
	state      state
}

type recvKey struct {
	topicID uint16
	msgID   uint16
}

// Engine tracks outbound inflight publishes and inbound dedup state for
// one session. It never sends or receives bytes itself: callers pass the
// frames it builds to a transport, and feed it frames they decode,
// keeping qos decoupled from transport the way session is (spec §9).
type Engine struct {
	cfg   Config
	clock clock.Clock
	alloc *idalloc.Allocator

	mu       sync.Mutex
	inflight map[uint16]*inflight

	recvMu    sync.Mutex
	recvOrder []recvKey
	recvSeen  map[recvKey]bool
	held      map[uint16][]byte
}

// New returns an Engine with an empty inflight table.
func New(cfg Config, clk clock.Clock, alloc *idalloc.Allocator) *Engine {
	return &Engine{
		cfg:      cfg,
		clock:    clk,
		alloc:    alloc,
		inflight: make(map[uint16]*inflight),
		recvSeen: make(map[recvKey]bool),
		held:     make(map[uint16][]byte),
	}
}

// PreparePublish builds the PUBLISH frame for one application publish
// call. For QoS 0 it returns the frame with no bookkeeping; for QoS 1/2
// it allocates a message-id and snapshots an inflight record.
func (e *Engine) PreparePublish(topicID uint16, topicType pkt.TopicIDType, data []byte, qos pkt.QoS) *pkt.Publish {
	p := &pkt.Publish{
		QoS:         qos,
		TopicIDType: topicType,
		TopicID:     topicID,
		Data:        data,
	}
	if qos == pkt.QoS0 {
		return p
	}

	msgID := e.alloc.Next()
	p.MsgID = msgID

	st := awaitingPubAck
	if qos == pkt.QoS2 {
		st = awaitingPubRec
	}
	e.mu.Lock()
	e.inflight[msgID] = &inflight{
		msgID:     msgID,
		qos:       qos,
		topicID:   topicID,
		topicType: topicType,
		payload:   append([]byte(nil), data...),
		sendTime:  e.clock.NowMillis(),
		state:     st,
	}
	e.mu.Unlock()
	return p
}

// HandlePuback completes a QoS 1 publish, returning nil when the
// gateway accepted it; a non-accepted return code still releases the
// inflight entry but the error is returned to the caller (spec §4.F:
// "On PUBACK return-code != accepted: surface to caller").
func (e *Engine) HandlePuback(ack *pkt.Puback) error {
	e.mu.Lock()
	entry, ok := e.inflight[ack.MsgID]
	if ok {
		delete(e.inflight, ack.MsgID)
	}
	e.mu.Unlock()
	if !ok || entry.state != awaitingPubAck {
		return fmt.Errorf("qos: unexpected PUBACK for message id %d", ack.MsgID)
	}
	if ack.ReturnCode != pkt.Accepted {
		return fmt.Errorf("qos: publish rejected: %s", ack.ReturnCode)
	}
	return nil
}

// HandlePubrec advances a QoS 2 publish from AwaitingPubRec to
// AwaitingPubComp and returns the PUBREL to send.
func (e *Engine) HandlePubrec(rec *pkt.Pubrec) (*pkt.Pubrel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.inflight[rec.MsgID]
	if !ok || entry.state != awaitingPubRec {
		return nil, fmt.Errorf("qos: unexpected PUBREC for message id %d", rec.MsgID)
	}
	entry.state = awaitingPubComp
	entry.sendTime = e.clock.NowMillis()
	entry.retryCount = 0
	rel := &pkt.Pubrel{}
	rel.MsgID = rec.MsgID
	return rel, nil
}

// HandlePubcomp completes a QoS 2 publish.
func (e *Engine) HandlePubcomp(comp *pkt.Pubcomp) error {
	e.mu.Lock()
	entry, ok := e.inflight[comp.MsgID]
	if ok {
		delete(e.inflight, comp.MsgID)
	}
	e.mu.Unlock()
	if !ok || entry.state != awaitingPubComp {
		return fmt.Errorf("qos: unexpected PUBCOMP for message id %d", comp.MsgID)
	}
	return nil
}

// Cancel drops an inflight entry without retrying and without
// synthesizing a local acknowledgment (§5 Cancellation).
func (e *Engine) Cancel(msgID uint16) {
	e.mu.Lock()
	delete(e.inflight, msgID)
	e.mu.Unlock()
}

// Retransmission describes one frame the caller must resend.
type Retransmission struct {
	MsgID   uint16
	Publish *pkt.Publish // set when the original PUBLISH is being retried
	Pubrel  *pkt.Pubrel  // set when only the PUBREL tail is being retried
}

// PollRetransmits checks every inflight entry against its timeout and
// returns the frames due for resend. Entries that exhaust their retry
// budget are released and reported via timedOut.
func (e *Engine) PollRetransmits() (due []Retransmission, timedOut []uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.NowMillis()
	for id, entry := range e.inflight {
		timeoutMS := e.cfg.QoS1RetryTimeoutMS
		maxRetries := e.cfg.QoS1RetryCount
		if entry.state == awaitingPubComp || entry.state == awaitingPubRec {
			timeoutMS = e.cfg.QoS2RetryTimeoutMS
		}
		if clock.Elapsed(entry.sendTime, now) < timeoutMS {
			continue
		}
		if maxRetries != Unbounded && entry.retryCount >= maxRetries {
			delete(e.inflight, id)
			timedOut = append(timedOut, id)
			log.Printf("qos: publish timed out after %d retries msg_id=%d", entry.retryCount, id)
			continue
		}
		entry.retryCount++
		entry.sendTime = now
		switch entry.state {
		case awaitingPubAck:
			due = append(due, Retransmission{MsgID: id, Publish: &pkt.Publish{
				DUP: true, QoS: entry.qos, TopicIDType: entry.topicType,
				TopicID: entry.topicID, MsgID: id, Data: entry.payload,
			}})
		case awaitingPubRec:
			due = append(due, Retransmission{MsgID: id, Publish: &pkt.Publish{
				DUP: true, QoS: entry.qos, TopicIDType: entry.topicType,
				TopicID: entry.topicID, MsgID: id, Data: entry.payload,
			}})
		case awaitingPubComp:
			// spec §9: DUP is never set on a PUBREL retransmit.
			rel := &pkt.Pubrel{}
			rel.MsgID = id
			due = append(due, Retransmission{MsgID: id, Pubrel: rel})
		}
	}
	return due, timedOut
}

// Inflight reports how many publishes are currently outstanding, for
// diagnostics/metrics.
func (e *Engine) Inflight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inflight)
}
