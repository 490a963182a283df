package pkt

// Publish carries application data, identified by a 2-byte TopicID
// whose interpretation depends on Flags.TopicIDType (§3 Topic Registry):
// a normal or predefined numeric id, or — for TopicIDShort — the two
// ASCII bytes of a short topic name packed into the same field.
//
// Wire layout: Flags(1) TopicId(2) MsgId(2) Data(N).
//
// MsgId is meaningless at QoS 0 but is still carried on the wire (unlike
// MQTT, MQTT-SN always reserves the field); callers at QoS 0 may leave
// it zero.
type Publish struct {
	DUP         bool
	QoS         QoS
	Retain      bool
	TopicIDType TopicIDType
	TopicID     uint16
	MsgID       uint16
	Data        []byte
}

func (m *Publish) MsgType() Type { return PUBLISH }

func (m *Publish) encodeBody() ([]byte, error) {
	flags := Flags{DUP: m.DUP, QoS: m.QoS, Retain: m.Retain, TopicIDType: m.TopicIDType}
	b := make([]byte, 5, 5+len(m.Data))
	b[0] = flags.encode()
	putU16(b[1:3], m.TopicID)
	putU16(b[3:5], m.MsgID)
	b = append(b, m.Data...)
	return b, nil
}

func (m *Publish) decodeBody(buf []byte) error {
	if len(buf) < 5 {
		return DecodeError{Kind: TooShort, Reason: "PUBLISH body must be at least 5 bytes"}
	}
	flags, err := decodeFlags(buf[0])
	if err != nil {
		return err
	}
	m.DUP, m.QoS, m.Retain, m.TopicIDType = flags.DUP, flags.QoS, flags.Retain, flags.TopicIDType
	m.TopicID = u16(buf[1:3])
	m.MsgID = u16(buf[3:5])
	m.Data = append([]byte(nil), buf[5:]...)
	return nil
}

// ShortTopicName decodes TopicID as the two ASCII bytes of a short
// topic name, valid only when TopicIDType == TopicIDShort.
func (m *Publish) ShortTopicName() string {
	return string([]byte{byte(m.TopicID >> 8), byte(m.TopicID)})
}

// ShortTopicID packs a two-character topic name into the TopicID field
// the way a short-topic PUBLISH/SUBSCRIBE expects it on the wire.
func ShortTopicID(name string) uint16 {
	b := []byte(name)
	if len(b) != 2 {
		return 0
	}
	return uint16(b[0])<<8 | uint16(b[1])
}
