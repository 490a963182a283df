package pkt

// Connect is the client's request to establish a session (§4.E
// Disconnected → Connecting). Flags carries Will and Clean; QoS, Retain
// and DUP are not meaningful here and must be zero.
//
// Wire layout: Flags(1) ProtocolId(1) Duration(2) ClientId(0..23).
type Connect struct {
	Will         bool
	CleanSession bool
	Duration     uint16 // keep-alive, seconds
	ClientID     string
}

func (m *Connect) MsgType() Type { return CONNECT }

func (m *Connect) encodeBody() ([]byte, error) {
	if len(m.ClientID) > 23 {
		return nil, DecodeError{Kind: InvalidFlags, Reason: "client id exceeds 23 bytes"}
	}
	flags := Flags{Will: m.Will, Clean: m.CleanSession}
	b := make([]byte, 4, 4+len(m.ClientID))
	b[0] = flags.encode()
	b[1] = ProtocolID
	putU16(b[2:4], m.Duration)
	b = append(b, m.ClientID...)
	return b, nil
}

func (m *Connect) decodeBody(buf []byte) error {
	if len(buf) < 4 {
		return DecodeError{Kind: TooShort, Reason: "CONNECT body must be at least 4 bytes"}
	}
	flags, err := decodeFlags(buf[0])
	if err != nil {
		return err
	}
	if buf[1] != ProtocolID {
		return DecodeError{Kind: InvalidFlags, Reason: "unsupported protocol id"}
	}
	m.Will, m.CleanSession = flags.Will, flags.Clean
	m.Duration = u16(buf[2:4])
	if len(buf) > 4 {
		if len(buf)-4 > 23 {
			return DecodeError{Kind: LengthMismatch, Reason: "client id exceeds 23 bytes"}
		}
		m.ClientID = string(buf[4:])
	}
	return nil
}

// Connack answers CONNECT (and also REGISTER/SUBSCRIBE/PUBLISH-style
// flows use the shared ReturnCode meaning; §4.E).
type Connack struct {
	ReturnCode ReturnCode
}

func (m *Connack) MsgType() Type { return CONNACK }

func (m *Connack) encodeBody() ([]byte, error) {
	return []byte{byte(m.ReturnCode)}, nil
}

func (m *Connack) decodeBody(buf []byte) error {
	if len(buf) != 1 {
		return DecodeError{Kind: LengthMismatch, Reason: "CONNACK body must be 1 byte"}
	}
	m.ReturnCode = ReturnCode(buf[0])
	return nil
}
