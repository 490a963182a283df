package mqttsn

import "github.com/golang-io/mqttsn/pkt"

// Callbacks is the capability object the engine calls into for every
// asynchronous event (spec §9: "callbacks... exposed as a capability
// object implementing the set {connected, registered, message,
// subscribed, disconnected}"). Every field is optional; a nil field is
// simply not invoked.
type Callbacks struct {
	OnConnected    func()
	OnRegistered   func(topicName string, topicID uint16)
	OnMessage      func(topicName string, data []byte, qos pkt.QoS)
	OnSubscribed   func(topicName string, topicID uint16)
	OnDisconnected func(err error)
}

func (c Callbacks) connected() {
	if c.OnConnected != nil {
		c.OnConnected()
	}
}

func (c Callbacks) registered(name string, id uint16) {
	if c.OnRegistered != nil {
		c.OnRegistered(name, id)
	}
}

func (c Callbacks) message(name string, data []byte, qos pkt.QoS) {
	if c.OnMessage != nil {
		c.OnMessage(name, data, qos)
	}
}

func (c Callbacks) subscribed(name string, id uint16) {
	if c.OnSubscribed != nil {
		c.OnSubscribed(name, id)
	}
}

func (c Callbacks) disconnected(err error) {
	if c.OnDisconnected != nil {
		c.OnDisconnected(err)
	}
}
