package pkt

import (
	"bytes"
	"reflect"
	"testing"
)

// TestRoundTrip checks property 1: decode(encode(M)) == M, for one
// representative message of every supported type.
func TestRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		msg  Packet
	}{
		{"ADVERTISE", &Advertise{GwID: 3, Duration: 900}},
		{"SEARCHGW", &SearchGW{Radius: 1}},
		{"GWINFO with addr", &GWInfo{GwID: 3, GwAddr: []byte{10, 0, 0, 1}}},
		{"GWINFO no addr", &GWInfo{GwID: 3}},
		{"CONNECT", &Connect{Will: false, CleanSession: true, Duration: 60, ClientID: "pico_w"}},
		{"CONNACK", &Connack{ReturnCode: Accepted}},
		{"WILLTOPICREQ", &WillTopicReq{}},
		{"WILLTOPIC set", &WillTopic{QoS: QoS1, Retain: true, Topic: "lwt/node1"}},
		{"WILLTOPIC empty", &WillTopic{}},
		{"WILLMSGREQ", &WillMsgReq{}},
		{"WILLMSG", &WillMsg{Payload: []byte("offline")}},
		{"REGISTER", &Register{TopicID: 0, MsgID: 5, TopicName: "sensors/temp"}},
		{"REGACK", &Regack{TopicID: 0x1234, MsgID: 5, ReturnCode: Accepted}},
		{"PUBLISH qos0", &Publish{QoS: QoS0, TopicID: 7, Data: []byte("hi")}},
		{"PUBLISH qos2 dup", &Publish{DUP: true, QoS: QoS2, TopicID: 7, MsgID: 42, Data: []byte{1, 2, 3}}},
		{"PUBACK", &Puback{TopicID: 7, MsgID: 1, ReturnCode: Accepted}},
		{"PUBREC", &Pubrec{msgIDOnly{MsgID: 1}}},
		{"PUBREL", &Pubrel{msgIDOnly{MsgID: 1}}},
		{"PUBCOMP", &Pubcomp{msgIDOnly{MsgID: 1}}},
		{"SUBSCRIBE normal", &Subscribe{QoS: QoS1, TopicIDType: TopicIDNormal, MsgID: 9, TopicName: "a/b"}},
		{"SUBSCRIBE predefined", &Subscribe{QoS: QoS1, TopicIDType: TopicIDPredefined, MsgID: 9, TopicID: 3}},
		{"SUBACK", &Suback{TopicIDType: TopicIDNormal, TopicID: 0x1234, MsgID: 9, ReturnCode: Accepted}},
		{"UNSUBSCRIBE", &Unsubscribe{TopicIDType: TopicIDNormal, MsgID: 9, TopicName: "a/b"}},
		{"UNSUBACK", &Unsuback{msgIDOnly{MsgID: 9}}},
		{"PINGREQ empty", &PingReq{}},
		{"PINGREQ sleeping", &PingReq{ClientID: "pico_w"}},
		{"PINGRESP", &PingResp{}},
		{"DISCONNECT plain", &Disconnect{}},
		{"DISCONNECT sleep", &Disconnect{Duration: 300}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := Encode(tc.msg)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(raw)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !reflect.DeepEqual(got, tc.msg) {
				t.Fatalf("round trip mismatch:\n got  %#v\n want %#v", got, tc.msg)
			}
			if got.MsgType() != tc.msg.MsgType() {
				t.Fatalf("MsgType() = %v, want %v", got.MsgType(), tc.msg.MsgType())
			}
		})
	}
}

func TestPubackToleratesSixByteBody(t *testing.T) {
	raw := []byte{0x08, byte(PUBACK), 0, 7, 0, 1, byte(Accepted), 0}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	pa, ok := got.(*Puback)
	if !ok {
		t.Fatalf("got %T, want *Puback", got)
	}
	if pa.TopicID != 7 || pa.MsgID != 1 || pa.ReturnCode != Accepted {
		t.Fatalf("got %#v", pa)
	}
}

func TestPublishShortTopicName(t *testing.T) {
	id := ShortTopicID("ab")
	p := &Publish{TopicIDType: TopicIDShort, TopicID: id, Data: []byte("x")}
	raw, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	gp := got.(*Publish)
	if gp.ShortTopicName() != "ab" {
		t.Fatalf("ShortTopicName() = %q, want %q", gp.ShortTopicName(), "ab")
	}
}

func TestEncodeRejectsOversizeClientID(t *testing.T) {
	_, err := Encode(&Connect{ClientID: string(bytes.Repeat([]byte("x"), 24))})
	if err == nil {
		t.Fatalf("expected error for 24-byte client id")
	}
}
