package qos

import "github.com/golang-io/mqttsn/pkt"

// OnPublish processes an inbound PUBLISH and reports whether the
// application callback should fire, along with the acknowledgment (if
// any) the caller must send back (§4.F Inbound PUBLISH).
//
// QoS 0 dispatches unconditionally with no ack. QoS 1 dispatches once
// per (topic-id, message-id) and always acks. QoS 2 holds the message-id
// until the matching PUBREL arrives, acking every receipt (including
// duplicates) with PUBREC but never dispatching here.
func (e *Engine) OnPublish(pub *pkt.Publish) (dispatch bool, puback *pkt.Puback, pubrec *pkt.Pubrec) {
	switch pub.QoS {
	case pkt.QoS0:
		return true, nil, nil
	case pkt.QoS1:
		key := recvKey{topicID: pub.TopicID, msgID: pub.MsgID}
		dispatch = e.markSeen(key)
		return dispatch, &pkt.Puback{TopicID: pub.TopicID, MsgID: pub.MsgID, ReturnCode: pkt.Accepted}, nil
	case pkt.QoS2:
		e.recvMu.Lock()
		if _, already := e.held[pub.MsgID]; !already {
			e.held[pub.MsgID] = append([]byte(nil), pub.Data...)
		}
		e.recvMu.Unlock()
		rec := &pkt.Pubrec{}
		rec.MsgID = pub.MsgID
		return false, nil, rec
	default:
		return true, nil, nil
	}
}

// OnPubrel releases a held QoS 2 message, returning the payload for
// dispatch (first delivery only) and the PUBCOMP to send. A PUBREL with
// no matching held entry (a duplicate, or one arriving after the entry
// was already released) still gets a PUBCOMP but no re-dispatch.
func (e *Engine) OnPubrel(rel *pkt.Pubrel) (dispatch bool, payload []byte, comp *pkt.Pubcomp) {
	e.recvMu.Lock()
	data, ok := e.held[rel.MsgID]
	if ok {
		delete(e.held, rel.MsgID)
	}
	e.recvMu.Unlock()
	comp = &pkt.Pubcomp{}
	comp.MsgID = rel.MsgID
	return ok, data, comp
}

// markSeen records key in the bounded dedup table and reports whether
// this is the first time it has been seen.
func (e *Engine) markSeen(key recvKey) bool {
	e.recvMu.Lock()
	defer e.recvMu.Unlock()
	if e.recvSeen[key] {
		return false
	}
	e.recvSeen[key] = true
	e.recvOrder = append(e.recvOrder, key)
	if len(e.recvOrder) > recvDedupCapacity {
		oldest := e.recvOrder[0]
		e.recvOrder = e.recvOrder[1:]
		delete(e.recvSeen, oldest)
	}
	return true
}
