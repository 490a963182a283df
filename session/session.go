// Package session implements the client connection state machine
// (§4.E): CONNECT/CONNACK handshake, keep-alive PINGREQ timing, and
// REGISTER-from-gateway auto-acknowledgment.
package session

import (
	"errors"
	"fmt"
	"log"

	"github.com/golang-io/mqttsn/clock"
	"github.com/golang-io/mqttsn/pkt"
	"github.com/golang-io/mqttsn/registry"
)

// State enumerates the connection lifecycle (§3 Session).
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Awake
	Asleep
	Lost
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Awake:
		return "awake"
	case Asleep:
		return "asleep"
	case Lost:
		return "lost"
	default:
		return "unknown"
	}
}

// ErrNotConnected is returned by operations that require State ==
// Connected or Awake.
var ErrNotConnected = errors.New("session: not connected")

// ErrRejected wraps a CONNACK/REGACK/SUBACK reject return-code.
type ErrRejected struct {
	Code pkt.ReturnCode
}

func (e *ErrRejected) Error() string { return fmt.Sprintf("session: rejected: %s", e.Code) }

// ErrKeepaliveLost reports that no PINGRESP arrived inside 1.5x the
// keep-alive interval after a retransmitted PINGREQ (§4.E).
var ErrKeepaliveLost = errors.New("session: keepalive lost")

// Config carries the connection-scoped knobs from options.go's Option
// surface that the session needs directly.
type Config struct {
	ClientID         string
	KeepAliveSec     uint16
	CleanSession     bool
	ConnackTimeoutMS uint64
}

// Session owns the connection lifecycle for one client. It does not send
// frames itself; its methods return the frames to send and the caller
// encodes and transmits them, so Session stays decoupled from the
// transport, mirroring the capability-passing design note in spec §9 (no
// cyclic client<->transport references).
type Session struct {
	cfg      Config
	clock    clock.Clock
	registry *registry.Registry

	state        State
	lastPingSent uint64
	lastActivity uint64
	connectedAt  uint64
}

// New constructs a Session in the Disconnected state.
func New(cfg Config, clk clock.Clock, reg *registry.Registry) *Session {
	return &Session{cfg: cfg, clock: clk, registry: reg, state: Disconnected}
}

// State reports the current connection state.
func (s *Session) State() State { return s.state }

// IsConnected reports whether publish/subscribe operations are
// currently permitted (§3 invariant: Connected or Awake).
func (s *Session) IsConnected() bool {
	return s.state == Connected || s.state == Awake
}

// BeginConnect transitions Disconnected -> Connecting and returns the
// CONNECT frame to send. When Config.CleanSession is set it clears the
// topic registry (§4.B: clean-session reconnect resets the registry).
func (s *Session) BeginConnect() *pkt.Connect {
	if s.cfg.CleanSession {
		s.registry.Clear()
	}
	s.state = Connecting
	now := s.clock.NowMillis()
	s.lastActivity = now
	s.lastPingSent = now
	return &pkt.Connect{
		CleanSession: s.cfg.CleanSession,
		Duration:     s.cfg.KeepAliveSec,
		ClientID:     s.cfg.ClientID,
	}
}

// HandleConnack processes the gateway's reply to CONNECT.
func (s *Session) HandleConnack(ack *pkt.Connack) error {
	if s.state != Connecting {
		return fmt.Errorf("session: unexpected CONNACK in state %s", s.state)
	}
	if ack.ReturnCode != pkt.Accepted {
		s.state = Disconnected
		return &ErrRejected{Code: ack.ReturnCode}
	}
	s.state = Connected
	s.connectedAt = s.clock.NowMillis()
	s.touch()
	log.Printf("session: connect accepted client_id=%s", s.cfg.ClientID)
	return nil
}

// ConnackTimedOut transitions Connecting -> Disconnected when no CONNACK
// arrived within ConnackTimeoutMS.
func (s *Session) ConnackTimedOut() bool {
	if s.state != Connecting {
		return false
	}
	if clock.Elapsed(s.lastActivity, s.clock.NowMillis()) < s.cfg.ConnackTimeoutMS {
		return false
	}
	s.state = Disconnected
	log.Printf("session: CONNACK timeout client_id=%s", s.cfg.ClientID)
	return true
}

// touch records activity, used both by explicit PINGRESP handling and by
// any other frame that counts as liveness.
func (s *Session) touch() {
	s.lastActivity = s.clock.NowMillis()
}

// Touch records that a frame was received from the gateway, resetting
// the keepalive-lost clock even when it wasn't a PINGRESP.
func (s *Session) Touch() { s.touch() }

// NeedsPing reports whether a PINGREQ should be emitted now, per the
// keep_alive/2 cadence (§4.E, invariant 10).
func (s *Session) NeedsPing() bool {
	if s.cfg.KeepAliveSec == 0 || !s.IsConnected() {
		return false
	}
	halfIntervalMS := uint64(s.cfg.KeepAliveSec) * 1000 / 2
	return clock.Elapsed(s.lastPingSent, s.clock.NowMillis()) >= halfIntervalMS
}

// BuildPing returns a PINGREQ and records the send time.
func (s *Session) BuildPing() *pkt.PingReq {
	s.lastPingSent = s.clock.NowMillis()
	return &pkt.PingReq{}
}

// HandlePingResp records gateway liveness.
func (s *Session) HandlePingResp() {
	s.touch()
}

// CheckKeepaliveLost transitions Connected -> Lost once
// (now - last-activity) exceeds 1.5x the keep-alive interval (§4.E).
func (s *Session) CheckKeepaliveLost() bool {
	if s.cfg.KeepAliveSec == 0 || !s.IsConnected() {
		return false
	}
	thresholdMS := uint64(s.cfg.KeepAliveSec) * 1000 * 3 / 2
	if clock.Elapsed(s.lastActivity, s.clock.NowMillis()) <= thresholdMS {
		return false
	}
	s.state = Lost
	log.Printf("session: keepalive lost client_id=%s", s.cfg.ClientID)
	return true
}

// HandleRegister answers a gateway-initiated REGISTER immediately with
// REGACK(accepted) and records the mapping (§4.E).
func (s *Session) HandleRegister(reg *pkt.Register) *pkt.Regack {
	s.registry.Upsert(reg.TopicName, reg.TopicID, pkt.TopicIDNormal)
	s.touch()
	return &pkt.Regack{TopicID: reg.TopicID, MsgID: reg.MsgID, ReturnCode: pkt.Accepted}
}

// Disconnect transitions to Disconnected unconditionally, whether
// requested locally or signaled by the gateway's DISCONNECT frame.
func (s *Session) Disconnect() {
	s.state = Disconnected
	log.Printf("session: disconnected client_id=%s", s.cfg.ClientID)
}
