// Package pkt implements the MQTT-SN v1.2 wire codec: framing, length
// rules, and per-message-type encode/decode.
package pkt

import (
	"encoding/binary"
	"fmt"
)

// escapeLength marks a frame whose real length did not fit in one byte.
// The byte is followed by a 2-byte big-endian length (§4.A).
const escapeLength = 0x01

// maxShortFrame is the largest total frame length that can be represented
// by the 1-byte length field.
const maxShortFrame = 255

// Header holds the leading length+type fields common to every MQTT-SN
// frame. It does not itself carry message-specific fields.
type Header struct {
	// Type is the 1-byte message type (§4.A table).
	Type Type
	// Length is the total frame length, including the length field
	// itself (1 byte, or 3 for the escaped form).
	Length int
}

// encodeLengthType writes the length+type prefix for a frame whose body
// (everything after Type) is body bytes long.
func encodeLengthType(typ Type, bodyLen int) ([]byte, error) {
	shortTotal := 2 + bodyLen
	if shortTotal <= maxShortFrame {
		return []byte{byte(shortTotal), byte(typ)}, nil
	}
	longTotal := 4 + bodyLen
	if longTotal > 0xFFFF {
		return nil, fmt.Errorf("pkt: frame too large: %d bytes", longTotal)
	}
	b := make([]byte, 4)
	b[0] = escapeLength
	binary.BigEndian.PutUint16(b[1:3], uint16(longTotal))
	b[3] = byte(typ)
	return b, nil
}

// decodeHeader parses the length+type prefix from raw, returning the
// header and the number of prefix bytes consumed.
func decodeHeader(raw []byte) (Header, int, error) {
	if len(raw) < 2 {
		return Header{}, 0, DecodeError{Kind: TooShort, Reason: "frame shorter than length+type prefix"}
	}
	if raw[0] != escapeLength {
		total := int(raw[0])
		if len(raw) < total {
			return Header{}, 0, DecodeError{Kind: TooShort, Reason: "frame shorter than declared length"}
		}
		return Header{Type: Type(raw[1]), Length: total}, 2, nil
	}
	if len(raw) < 4 {
		return Header{}, 0, DecodeError{Kind: TooShort, Reason: "escaped length header truncated"}
	}
	total := int(binary.BigEndian.Uint16(raw[1:3]))
	if len(raw) < total {
		return Header{}, 0, DecodeError{Kind: TooShort, Reason: "frame shorter than declared (escaped) length"}
	}
	return Header{Type: Type(raw[3]), Length: total}, 4, nil
}

// u16 reads a big-endian 16-bit value (§4.A: all topic-id/message-id
// fields are big-endian; the little-endian block chunk header is decoded
// separately in package block). Wire reads never rely on
// unaligned struct overlays; every multi-byte field goes through this
// helper or putU16.
func u16(b []byte) uint16 {
	return binary.BigEndian.Uint16(b)
}

func putU16(b []byte, v uint16) {
	binary.BigEndian.PutUint16(b, v)
}
