package block

import (
	"fmt"
	"log"

	"github.com/golang-io/mqttsn/clock"
	"github.com/golang-io/mqttsn/pkt"
)

// SenderConfig carries the chunking/pacing knobs from spec §6. Sender
// never calls a publish surface directly — per spec §9's capability
// rule the caller (the root engine) takes the frame Tick returns and
// hands it to the QoS/session layer itself, so block never holds a
// reference back into the pub/sub surface.
type SenderConfig struct {
	ChunkPayloadSize  int
	InterChunkDelayMS uint64
	EveryNChunks      int
	BurstPauseMS      uint64
	RetransmitDelayMS uint64
	Topic             uint16
	TopicType         pkt.TopicIDType
	QoS               pkt.QoS
}

func (c SenderConfig) withDefaults() SenderConfig {
	if c.ChunkPayloadSize <= 0 {
		c.ChunkPayloadSize = 120
	}
	if c.InterChunkDelayMS == 0 {
		c.InterChunkDelayMS = 10
	}
	if c.EveryNChunks <= 0 {
		c.EveryNChunks = 20
	}
	if c.BurstPauseMS == 0 {
		c.BurstPauseMS = 50
	}
	if c.RetransmitDelayMS == 0 {
		c.RetransmitDelayMS = 5
	}
	return c
}

// Sender chunks one payload at a time, pacing transmission and
// retaining the cached payload for NACK-driven retransmission until
// Reset or a new transfer begins (§4.H).
type Sender struct {
	cfg   SenderConfig
	clock clock.Clock

	active      bool
	blockID     uint16
	nextBlockID uint16
	payload     []byte
	totalParts  int

	nextPart     int
	lastSendTime uint64

	retransmitQueue []int
	lastRetransmit  uint64
}

// NewSender returns an idle Sender.
func NewSender(cfg SenderConfig, clk clock.Clock) *Sender {
	return &Sender{cfg: cfg.withDefaults(), clock: clk}
}

// Begin starts a new transfer, taking exclusive ownership of payload
// (spec §9: explicit transfer of ownership, no dual ownership) and
// returns the assigned block id.
func (s *Sender) Begin(payload []byte) uint16 {
	s.blockID = s.nextBlockID
	s.nextBlockID++
	s.payload = payload
	s.totalParts = (len(payload) + s.cfg.ChunkPayloadSize - 1) / s.cfg.ChunkPayloadSize
	if s.totalParts == 0 {
		s.totalParts = 1
	}
	s.nextPart = 1
	s.active = true
	s.retransmitQueue = nil
	s.lastSendTime = 0
	log.Printf("block: sender begin block_id=%d total_parts=%d size=%d", s.blockID, s.totalParts, len(payload))
	return s.blockID
}

// Active reports whether a transfer is in progress.
func (s *Sender) Active() bool { return s.active }

// chunkAt builds the wire bytes for a 1-based part number.
func (s *Sender) chunkAt(part int) []byte {
	offset := (part - 1) * s.cfg.ChunkPayloadSize
	end := offset + s.cfg.ChunkPayloadSize
	if end > len(s.payload) {
		end = len(s.payload)
	}
	data := s.payload[offset:end]
	h := Header{BlockID: s.blockID, PartNum: uint16(part), TotalParts: uint16(s.totalParts), DataLen: uint16(len(data))}
	return h.Encode(data)
}

// Tick returns the next chunk to publish, if the pacing interval has
// elapsed. Retransmission requests take priority over forward progress.
func (s *Sender) Tick(now uint64) (frame []byte, qos pkt.QoS, ok bool) {
	if len(s.retransmitQueue) > 0 {
		if clock.Elapsed(s.lastRetransmit, now) < s.cfg.RetransmitDelayMS {
			return nil, 0, false
		}
		part := s.retransmitQueue[0]
		s.retransmitQueue = s.retransmitQueue[1:]
		s.lastRetransmit = now
		return s.chunkAt(part), pkt.QoS0, true
	}
	if !s.active || s.nextPart > s.totalParts {
		return nil, 0, false
	}
	if s.nextPart > 1 { // the first chunk of a transfer sends immediately
		gap := s.cfg.InterChunkDelayMS
		if (s.nextPart-1)%s.cfg.EveryNChunks == 0 {
			gap = s.cfg.BurstPauseMS
		}
		if clock.Elapsed(s.lastSendTime, now) < gap {
			return nil, 0, false
		}
	}
	frame = s.chunkAt(s.nextPart)
	s.nextPart++
	s.lastSendTime = now
	return frame, s.cfg.QoS, true
}

// Done reports whether every chunk of the active transfer has been sent
// at least once (retransmission may still be pending).
func (s *Sender) Done() bool {
	return s.active && s.nextPart > s.totalParts
}

// HandleNack parses an inbound NACK and queues the requested chunks for
// retransmission, validating the block id matches the cached transfer.
func (s *Sender) HandleNack(line string) (int, error) {
	blockID, parts, err := ParseNack(line)
	if err != nil {
		return 0, err
	}
	if !s.active || blockID != s.blockID {
		return 0, fmt.Errorf("block: NACK for block %d does not match cached block %d", blockID, s.blockID)
	}
	queued := 0
	for _, p := range parts {
		if p < 1 || p > s.totalParts {
			continue
		}
		s.retransmitQueue = append(s.retransmitQueue, p)
		queued++
	}
	return queued, nil
}

// Reset releases the cached payload and returns the sender to idle
// (§4.H Completion/cleanup).
func (s *Sender) Reset() {
	s.active = false
	s.payload = nil
	s.retransmitQueue = nil
}
