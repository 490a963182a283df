package session

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-io/mqttsn/clock"
	"github.com/golang-io/mqttsn/pkt"
	"github.com/golang-io/mqttsn/registry"
)

func newTestSession() (*Session, *clock.Fake) {
	clk := clock.NewFake()
	reg := registry.New()
	cfg := Config{ClientID: "pico_w", KeepAliveSec: 60, ConnackTimeoutMS: 5000}
	return New(cfg, clk, reg), clk
}

func TestConnectAccepted(t *testing.T) {
	s, _ := newTestSession()
	c := s.BeginConnect()
	if c.ClientID != "pico_w" || s.State() != Connecting {
		t.Fatalf("BeginConnect did not transition to Connecting")
	}
	if err := s.HandleConnack(&pkt.Connack{ReturnCode: pkt.Accepted}); err != nil {
		t.Fatalf("HandleConnack: %v", err)
	}
	if s.State() != Connected || !s.IsConnected() {
		t.Fatalf("state = %s, want connected", s.State())
	}
}

func TestConnectRejected(t *testing.T) {
	s, _ := newTestSession()
	s.BeginConnect()
	err := s.HandleConnack(&pkt.Connack{ReturnCode: pkt.RejectedNotSupported})
	var rej *ErrRejected
	if !errors.As(err, &rej) {
		t.Fatalf("err = %v, want *ErrRejected", err)
	}
	if s.State() != Disconnected {
		t.Fatalf("state = %s, want disconnected after reject", s.State())
	}
}

func TestConnackTimeout(t *testing.T) {
	s, clk := newTestSession()
	s.BeginConnect()
	if s.ConnackTimedOut() {
		t.Fatalf("ConnackTimedOut() true before deadline")
	}
	clk.Advance(6 * time.Second)
	if !s.ConnackTimedOut() {
		t.Fatalf("ConnackTimedOut() false after deadline")
	}
	if s.State() != Disconnected {
		t.Fatalf("state = %s, want disconnected", s.State())
	}
}

func TestKeepaliveCycle(t *testing.T) {
	s, clk := newTestSession()
	s.BeginConnect()
	s.HandleConnack(&pkt.Connack{ReturnCode: pkt.Accepted})

	if s.NeedsPing() {
		t.Fatalf("NeedsPing() true immediately after connect")
	}
	clk.Advance(31 * time.Second) // > keep_alive/2 (30s)
	if !s.NeedsPing() {
		t.Fatalf("NeedsPing() false after half-interval elapsed")
	}
	s.BuildPing()
	if s.NeedsPing() {
		t.Fatalf("NeedsPing() true immediately after BuildPing")
	}
}

func TestKeepaliveLost(t *testing.T) {
	s, clk := newTestSession()
	s.BeginConnect()
	s.HandleConnack(&pkt.Connack{ReturnCode: pkt.Accepted})

	clk.Advance(89 * time.Second) // < 1.5x keepalive (90s)
	if s.CheckKeepaliveLost() {
		t.Fatalf("CheckKeepaliveLost() true before threshold")
	}
	clk.Advance(2 * time.Second) // now 91s total, > 90s
	if !s.CheckKeepaliveLost() {
		t.Fatalf("CheckKeepaliveLost() false after threshold")
	}
	if s.State() != Lost {
		t.Fatalf("state = %s, want lost", s.State())
	}
}

func TestPingrespResetsActivity(t *testing.T) {
	s, clk := newTestSession()
	s.BeginConnect()
	s.HandleConnack(&pkt.Connack{ReturnCode: pkt.Accepted})
	clk.Advance(80 * time.Second)
	s.HandlePingResp()
	clk.Advance(80 * time.Second)
	if s.CheckKeepaliveLost() {
		t.Fatalf("CheckKeepaliveLost() true despite PINGRESP resetting activity")
	}
}

func TestHandleRegisterAutoAcks(t *testing.T) {
	s, _ := newTestSession()
	ack := s.HandleRegister(&pkt.Register{TopicID: 7, MsgID: 3, TopicName: "sensors/temp"})
	if ack.ReturnCode != pkt.Accepted || ack.TopicID != 7 || ack.MsgID != 3 {
		t.Fatalf("HandleRegister ack = %#v", ack)
	}
	id, ok := s.registry.LookupID("sensors/temp")
	if !ok || id != 7 {
		t.Fatalf("registry not updated by HandleRegister")
	}
}

func TestCleanSessionClearsRegistry(t *testing.T) {
	clk := clock.NewFake()
	reg := registry.New()
	reg.Upsert("stale", 1, pkt.TopicIDNormal)
	cfg := Config{ClientID: "pico_w", KeepAliveSec: 60, ConnackTimeoutMS: 5000, CleanSession: true}
	s := New(cfg, clk, reg)
	s.BeginConnect()
	if _, ok := reg.LookupID("stale"); ok {
		t.Fatalf("expected clean-session BeginConnect to clear the registry")
	}
}
