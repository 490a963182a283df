package pkt

// Will-topic messages. This engine has no will-topic support (spec §1
// Non-goals); these types are decoded so a gateway exchange involving
// them doesn't produce UnknownType errors, but the engine answers
// WILLTOPICREQ/WILLMSGREQ by synthesizing empty WILLTOPIC/WILLMSG
// replies rather than implementing will storage.

// WillTopicReq carries no body; the gateway is asking for the will topic.
type WillTopicReq struct{}

func (m *WillTopicReq) MsgType() Type                  { return WILLTOPICREQ }
func (m *WillTopicReq) encodeBody() ([]byte, error)    { return nil, nil }
func (m *WillTopicReq) decodeBody(buf []byte) error {
	if len(buf) != 0 {
		return DecodeError{Kind: LengthMismatch, Reason: "WILLTOPICREQ carries no body"}
	}
	return nil
}

// WillTopic carries the will topic name and its publish flags. An empty
// Topic signals "no will topic" (used here to reject will support).
type WillTopic struct {
	QoS    QoS
	Retain bool
	Topic  string
}

func (m *WillTopic) MsgType() Type { return WILLTOPIC }

func (m *WillTopic) encodeBody() ([]byte, error) {
	if m.Topic == "" {
		return nil, nil
	}
	flags := Flags{QoS: m.QoS, Retain: m.Retain}
	return append([]byte{flags.encode()}, m.Topic...), nil
}

func (m *WillTopic) decodeBody(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	flags, err := decodeFlags(buf[0])
	if err != nil {
		return err
	}
	m.QoS, m.Retain = flags.QoS, flags.Retain
	m.Topic = string(buf[1:])
	return nil
}

// WillMsgReq carries no body.
type WillMsgReq struct{}

func (m *WillMsgReq) MsgType() Type               { return WILLMSGREQ }
func (m *WillMsgReq) encodeBody() ([]byte, error) { return nil, nil }
func (m *WillMsgReq) decodeBody(buf []byte) error {
	if len(buf) != 0 {
		return DecodeError{Kind: LengthMismatch, Reason: "WILLMSGREQ carries no body"}
	}
	return nil
}

// WillMsg carries the will payload.
type WillMsg struct {
	Payload []byte
}

func (m *WillMsg) MsgType() Type { return WILLMSG }

func (m *WillMsg) encodeBody() ([]byte, error) {
	return m.Payload, nil
}

func (m *WillMsg) decodeBody(buf []byte) error {
	m.Payload = append([]byte(nil), buf...)
	return nil
}
