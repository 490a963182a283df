// Package block implements the large-payload transfer protocol layered
// on top of MQTT-SN PUBLISH (§4.H Block Sender, §4.I Block Receiver):
// chunking and pacing on the send side, bit-mask reassembly and
// NACK-driven retransmission on the receive side.
package block

import "encoding/binary"

// HeaderSize is the fixed on-the-wire chunk header size.
const HeaderSize = 8

// Header is the fixed 8-byte chunk header (§3 Chunk Header). Unlike the
// rest of the wire codec, chunk headers are little-endian (spec states
// this explicitly as an exception to the wire codec's big-endian rule).
type Header struct {
	BlockID    uint16
	PartNum    uint16 // 1-based
	TotalParts uint16
	DataLen    uint16
}

// Encode writes the header followed by data into a single chunk buffer.
func (h Header) Encode(data []byte) []byte {
	buf := make([]byte, HeaderSize+len(data))
	binary.LittleEndian.PutUint16(buf[0:2], h.BlockID)
	binary.LittleEndian.PutUint16(buf[2:4], h.PartNum)
	binary.LittleEndian.PutUint16(buf[4:6], h.TotalParts)
	binary.LittleEndian.PutUint16(buf[6:8], h.DataLen)
	copy(buf[HeaderSize:], data)
	return buf
}

// DecodeHeader parses the 8-byte header prefix of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrTooShort
	}
	return Header{
		BlockID:    binary.LittleEndian.Uint16(buf[0:2]),
		PartNum:    binary.LittleEndian.Uint16(buf[2:4]),
		TotalParts: binary.LittleEndian.Uint16(buf[4:6]),
		DataLen:    binary.LittleEndian.Uint16(buf[6:8]),
	}, nil
}
