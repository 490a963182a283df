package pkt

// Unsubscribe mirrors Subscribe's topic-reference rules without a QoS.
type Unsubscribe struct {
	TopicIDType TopicIDType
	MsgID       uint16
	TopicName   string
	TopicID     uint16
}

func (m *Unsubscribe) MsgType() Type { return UNSUBSCRIBE }

func (m *Unsubscribe) encodeBody() ([]byte, error) {
	flags := Flags{TopicIDType: m.TopicIDType}
	b := make([]byte, 3)
	b[0] = flags.encode()
	putU16(b[1:3], m.MsgID)
	if m.TopicIDType == TopicIDPredefined {
		tail := make([]byte, 2)
		putU16(tail, m.TopicID)
		return append(b, tail...), nil
	}
	return append(b, m.TopicName...), nil
}

func (m *Unsubscribe) decodeBody(buf []byte) error {
	if len(buf) < 3 {
		return DecodeError{Kind: TooShort, Reason: "UNSUBSCRIBE body must be at least 3 bytes"}
	}
	flags, err := decodeFlags(buf[0])
	if err != nil {
		return err
	}
	m.TopicIDType = flags.TopicIDType
	m.MsgID = u16(buf[1:3])
	rest := buf[3:]
	if m.TopicIDType == TopicIDPredefined {
		if len(rest) != 2 {
			return DecodeError{Kind: LengthMismatch, Reason: "predefined topic id must be 2 bytes"}
		}
		m.TopicID = u16(rest)
		return nil
	}
	m.TopicName = string(rest)
	return nil
}

// Unsuback carries only the correlating MsgId.
type Unsuback struct{ msgIDOnly }

func (m *Unsuback) MsgType() Type { return UNSUBACK }
