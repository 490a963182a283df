package qos

import (
	"testing"

	"github.com/golang-io/mqttsn/clock"
	"github.com/golang-io/mqttsn/idalloc"
	"github.com/golang-io/mqttsn/pkt"
)

func TestInboundQoS0AlwaysDispatches(t *testing.T) {
	e := New(Config{}, clock.NewFake(), idalloc.New())
	dispatch, ack, rec := e.OnPublish(&pkt.Publish{QoS: pkt.QoS0, TopicID: 7, Data: []byte("x")})
	if !dispatch || ack != nil || rec != nil {
		t.Fatalf("QoS0 dispatch=%v ack=%v rec=%v, want true/nil/nil", dispatch, ack, rec)
	}
}

func TestInboundQoS1DuplicateSuppressesDispatchNotAck(t *testing.T) {
	e := New(Config{}, clock.NewFake(), idalloc.New())
	pub := &pkt.Publish{QoS: pkt.QoS1, TopicID: 7, MsgID: 5, Data: []byte("x")}

	dispatch1, ack1, _ := e.OnPublish(pub)
	dispatch2, ack2, _ := e.OnPublish(pub)
	dispatch3, ack3, _ := e.OnPublish(pub)

	if !dispatch1 || dispatch2 || dispatch3 {
		t.Fatalf("expected exactly one dispatch: %v %v %v", dispatch1, dispatch2, dispatch3)
	}
	for i, ack := range []*pkt.Puback{ack1, ack2, ack3} {
		if ack == nil || ack.TopicID != 7 || ack.MsgID != 5 || ack.ReturnCode != pkt.Accepted {
			t.Fatalf("ack %d = %#v, want an accepted PUBACK every time", i, ack)
		}
	}
}

func TestInboundQoS2HeldUntilPubrel(t *testing.T) {
	e := New(Config{}, clock.NewFake(), idalloc.New())
	pub := &pkt.Publish{QoS: pkt.QoS2, TopicID: 7, MsgID: 9, Data: []byte("payload")}

	dispatch, _, rec1 := e.OnPublish(pub)
	if dispatch || rec1 == nil || rec1.MsgID != 9 {
		t.Fatalf("first receipt: dispatch=%v rec=%#v", dispatch, rec1)
	}

	// Duplicate PUBLISH while held: PUBREC again, no dispatch, no re-store.
	dispatch, _, rec2 := e.OnPublish(pub)
	if dispatch || rec2 == nil {
		t.Fatalf("duplicate receipt: dispatch=%v rec=%#v", dispatch, rec2)
	}

	rel := &pkt.Pubrel{}
	rel.MsgID = 9
	dispatch, payload, comp := e.OnPubrel(rel)
	if !dispatch || string(payload) != "payload" || comp.MsgID != 9 {
		t.Fatalf("OnPubrel: dispatch=%v payload=%q comp=%#v", dispatch, payload, comp)
	}

	// A second PUBREL for the same, now-released, message id does not
	// redispatch.
	dispatch, _, comp2 := e.OnPubrel(rel)
	if dispatch {
		t.Fatalf("second PUBREL must not redispatch")
	}
	if comp2.MsgID != 9 {
		t.Fatalf("PUBCOMP msg id = %d, want 9", comp2.MsgID)
	}
}

func TestInboundQoS1DedupEvictsOldestPastCapacity(t *testing.T) {
	e := New(Config{}, clock.NewFake(), idalloc.New())
	for id := uint16(1); id <= recvDedupCapacity+1; id++ {
		e.OnPublish(&pkt.Publish{QoS: pkt.QoS1, TopicID: 1, MsgID: id, Data: []byte("x")})
	}
	// id 1 has now been evicted; redelivering it dispatches again.
	dispatch, _, _ := e.OnPublish(&pkt.Publish{QoS: pkt.QoS1, TopicID: 1, MsgID: 1, Data: []byte("x")})
	if !dispatch {
		t.Fatalf("expected evicted id 1 to dispatch again")
	}
}
