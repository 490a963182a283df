package block

import (
	"fmt"
	"log"

	"github.com/golang-io/mqttsn/clock"
)

// ReceiverConfig carries the reassembly limits from spec §6.
type ReceiverConfig struct {
	ChunkPayloadSize int
	MaxChunks        int
	MaxReceiveBudget int
	QuietWindowMS    uint64
	TimeoutMS        uint64
}

func (c ReceiverConfig) withDefaults() ReceiverConfig {
	if c.ChunkPayloadSize <= 0 {
		c.ChunkPayloadSize = 120
	}
	if c.MaxChunks <= 0 {
		c.MaxChunks = 1000
	}
	if c.MaxReceiveBudget <= 0 {
		c.MaxReceiveBudget = 55 * 1024
	}
	if c.QuietWindowMS == 0 {
		c.QuietWindowMS = 3000
	}
	if c.TimeoutMS == 0 {
		c.TimeoutMS = 60000
	}
	return c
}

// Phase is the receiver's reassembly lifecycle stage (§3 Block Transfer
// Receiver State).
type Phase int

const (
	Idle Phase = iota
	Receiving
	InitialComplete
)

// Receiver reassembles one block transfer at a time from inbound
// chunks, tracking a bit mask of received parts (§4.I).
type Receiver struct {
	cfg   ReceiverConfig
	clock clock.Clock

	phase           Phase
	blockID         uint16
	totalParts      int
	receivedCount   int
	mask            []bool
	buffer          []byte
	lastPartLen     int
	highestPartSeen int
	lastUpdate      uint64
	startTime       uint64
	lastNack        uint64
}

// NewReceiver returns an idle Receiver.
func NewReceiver(cfg ReceiverConfig, clk clock.Clock) *Receiver {
	return &Receiver{cfg: cfg.withDefaults(), clock: clk, phase: Idle}
}

// ProcessChunk validates and stores one inbound chunk (§4.I Validation,
// Storage).
func (r *Receiver) ProcessChunk(raw []byte) error {
	if len(raw) < HeaderSize {
		return ErrTooShort
	}
	h, err := DecodeHeader(raw)
	if err != nil {
		return err
	}
	body := raw[HeaderSize:]
	if h.PartNum == 0 {
		return ErrPartNumZero
	}
	if int(h.PartNum) > int(h.TotalParts) {
		return ErrPartNumTooLarge
	}
	if int(h.TotalParts) > r.cfg.MaxChunks {
		return ErrTooManyParts
	}
	if int(h.DataLen) > r.cfg.ChunkPayloadSize || int(h.DataLen) > len(body) {
		return ErrChunkTooLarge
	}

	now := r.clock.NowMillis()
	if r.phase == Idle || h.BlockID != r.blockID {
		required := int(h.TotalParts)*r.cfg.ChunkPayloadSize + int(h.TotalParts)/8 + 1
		if required > r.cfg.MaxReceiveBudget {
			return ErrBudgetExceeded
		}
		r.blockID = h.BlockID
		r.totalParts = int(h.TotalParts)
		r.receivedCount = 0
		r.mask = make([]bool, r.totalParts+1) // 1-indexed
		r.buffer = make([]byte, r.totalParts*r.cfg.ChunkPayloadSize)
		r.highestPartSeen = 0
		r.phase = Receiving
		r.startTime = now
		log.Printf("block: receiver start block_id=%d total_parts=%d", h.BlockID, h.TotalParts)
	}

	part := int(h.PartNum)
	offset := (part - 1) * r.cfg.ChunkPayloadSize
	copy(r.buffer[offset:], body[:h.DataLen])
	if part == r.totalParts {
		r.lastPartLen = int(h.DataLen)
	}
	if !r.mask[part] {
		r.mask[part] = true
		r.receivedCount++
	}
	if part > r.highestPartSeen {
		r.highestPartSeen = part
	}
	r.lastUpdate = now
	return nil
}

// Elapsed returns the time since the current reassembly began, for the
// completion notification's TIME field (§4.I).
func (r *Receiver) Elapsed(now uint64) uint64 {
	return clock.Elapsed(r.startTime, now)
}

// IsComplete reports whether every part has arrived.
func (r *Receiver) IsComplete() bool {
	return r.phase != Idle && r.receivedCount == r.totalParts
}

// TotalSize computes the reassembled payload length, accounting for a
// possibly short final chunk.
func (r *Receiver) TotalSize() int {
	if r.totalParts == 0 {
		return 0
	}
	lastLen := r.lastPartLen
	if lastLen == 0 {
		lastLen = r.cfg.ChunkPayloadSize
	}
	return (r.totalParts-1)*r.cfg.ChunkPayloadSize + lastLen
}

// Complete returns the reassembled buffer (trimmed to TotalSize), its
// detected file extension, and releases the receiver back to Idle
// (§4.I Completion).
func (r *Receiver) Complete() (data []byte, ext string, blockID uint16, totalSize int) {
	size := r.TotalSize()
	data = append([]byte(nil), r.buffer[:size]...)
	ext = SniffExtension(data)
	blockID = r.blockID
	totalSize = size
	r.release()
	return data, ext, blockID, totalSize
}

// CompletionMessage formats the spec's fixed completion payload (§4.I).
func CompletionMessage(blockID uint16, size, parts int, ext string, elapsedMS uint64) string {
	return fmt.Sprintf("BLOCK_RECEIVED: ID=%d, SIZE=%d, PARTS=%d, TYPE=%s, TIME=%d", blockID, size, parts, ext, elapsedMS)
}

// RequestMissing returns the NACK line to publish, if one is due. It is
// always safe to call; it returns ok=false when there is nothing to
// request right now (§4.I NACK emission conditions).
func (r *Receiver) RequestMissing() (line string, ok bool) {
	if r.phase == Idle || r.IsComplete() || r.highestPartSeen == 0 {
		return "", false
	}
	now := r.clock.NowMillis()
	if clock.Elapsed(r.lastUpdate, now) < r.cfg.QuietWindowMS {
		return "", false
	}
	var missing []int
	for p := 1; p <= r.highestPartSeen; p++ {
		if !r.mask[p] {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return "", false
	}
	r.lastNack = now
	return EncodeNack(r.blockID, missing), true
}

// CheckTimeout releases the receiver to Idle if no chunk has arrived
// for TimeoutMS, reporting whether it did so.
func (r *Receiver) CheckTimeout() bool {
	if r.phase == Idle {
		return false
	}
	if clock.Elapsed(r.lastUpdate, r.clock.NowMillis()) <= r.cfg.TimeoutMS {
		return false
	}
	log.Printf("block: receiver timeout block_id=%d received=%d/%d", r.blockID, r.receivedCount, r.totalParts)
	r.release()
	return true
}

// CheckInitialComplete raises the "initial transfer complete" marker
// once no progress has been made for >=10s, at least the expected
// transfer duration has elapsed, and at least half the chunks arrived
// (spec §4.I, resolving the source's divergent 2-phase/3-phase handling
// in favor of this 3-condition form per §9 Open Questions).
func (r *Receiver) CheckInitialComplete() bool {
	if r.phase != Receiving {
		return false
	}
	now := r.clock.NowMillis()
	noProgress := clock.Elapsed(r.lastUpdate, now) >= 10000
	expectedDuration := uint64(r.totalParts) * 50
	elapsed := clock.Elapsed(r.startTime, now)
	halfReceived := r.receivedCount*2 >= r.totalParts
	if noProgress && elapsed >= expectedDuration && halfReceived {
		r.phase = InitialComplete
		return true
	}
	return false
}

func (r *Receiver) release() {
	r.phase = Idle
	r.mask = nil
	r.buffer = nil
	r.receivedCount = 0
	r.totalParts = 0
	r.highestPartSeen = 0
}
