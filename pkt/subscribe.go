package pkt

// Subscribe requests a subscription. TopicName is used when
// TopicIDType is Normal or Short; TopicID is used for Predefined
// (§3 Topic Registry: short names and predefined ids are distinct kinds).
type Subscribe struct {
	DUP         bool
	QoS         QoS
	TopicIDType TopicIDType
	MsgID       uint16
	TopicName   string
	TopicID     uint16
}

func (m *Subscribe) MsgType() Type { return SUBSCRIBE }

func (m *Subscribe) encodeBody() ([]byte, error) {
	flags := Flags{DUP: m.DUP, QoS: m.QoS, TopicIDType: m.TopicIDType}
	b := make([]byte, 3)
	b[0] = flags.encode()
	putU16(b[1:3], m.MsgID)
	switch m.TopicIDType {
	case TopicIDPredefined:
		tail := make([]byte, 2)
		putU16(tail, m.TopicID)
		b = append(b, tail...)
	default:
		b = append(b, m.TopicName...)
	}
	return b, nil
}

func (m *Subscribe) decodeBody(buf []byte) error {
	if len(buf) < 3 {
		return DecodeError{Kind: TooShort, Reason: "SUBSCRIBE body must be at least 3 bytes"}
	}
	flags, err := decodeFlags(buf[0])
	if err != nil {
		return err
	}
	m.DUP, m.QoS, m.TopicIDType = flags.DUP, flags.QoS, flags.TopicIDType
	m.MsgID = u16(buf[1:3])
	rest := buf[3:]
	if m.TopicIDType == TopicIDPredefined {
		if len(rest) != 2 {
			return DecodeError{Kind: LengthMismatch, Reason: "predefined topic id must be 2 bytes"}
		}
		m.TopicID = u16(rest)
		return nil
	}
	if m.TopicIDType == TopicIDShort && len(rest) != 2 {
		return DecodeError{Kind: LengthMismatch, Reason: "short topic name must be 2 bytes"}
	}
	m.TopicName = string(rest)
	return nil
}

// Suback answers SUBSCRIBE with the assigned topic-id (meaningless for
// a wildcard filter, where the gateway returns 0) and a return code.
type Suback struct {
	TopicIDType TopicIDType
	TopicID     uint16
	MsgID       uint16
	ReturnCode  ReturnCode
}

func (m *Suback) MsgType() Type { return SUBACK }

func (m *Suback) encodeBody() ([]byte, error) {
	flags := Flags{TopicIDType: m.TopicIDType}
	b := make([]byte, 6)
	b[0] = flags.encode()
	putU16(b[1:3], m.TopicID)
	putU16(b[3:5], m.MsgID)
	b[5] = byte(m.ReturnCode)
	return b, nil
}

func (m *Suback) decodeBody(buf []byte) error {
	if len(buf) != 6 {
		return DecodeError{Kind: LengthMismatch, Reason: "SUBACK body must be 6 bytes"}
	}
	flags, err := decodeFlags(buf[0])
	if err != nil {
		return err
	}
	m.TopicIDType = flags.TopicIDType
	m.TopicID = u16(buf[1:3])
	m.MsgID = u16(buf[3:5])
	m.ReturnCode = ReturnCode(buf[5])
	return nil
}
