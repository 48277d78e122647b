// Package rtp implements the minimal RTP header marshaling this
// engine needs for its audio egress streams: mono PCM, stereo PCM, and
// Opus, each tagged with the payload type audio.c assigns them.
package rtp

import (
	"encoding/binary"
	"errors"
)

// Payload type values audio.c assigns to this engine's three audio
// egress streams.
const (
	PayloadTypeMonoPCM   = 11
	PayloadTypeStereoPCM = 10
	PayloadTypeOpus      = 20
)

// headerLen is the fixed 12-byte RTP header this engine emits: no
// CSRC list, no header extension.
const headerLen = 12

// version is the only RTP version this engine ever emits or accepts.
const version = 2

// ErrShortHeader is returned by Unmarshal when the buffer is smaller
// than the fixed 12-byte header, or than the CSRC list and header
// extension the header announces.
var ErrShortHeader = errors.New("rtp: buffer shorter than a fixed RTP header")

// ErrUnsupportedVersion is returned by Unmarshal when the RTP version
// field is not 2.
var ErrUnsupportedVersion = errors.New("rtp: unsupported RTP version")

// Header is the fixed, extension-free RTP header used by every
// outbound packet: version/padding/extension/CSRC-count, marker and
// payload type, sequence number, timestamp, and SSRC. Grounded on
// audio.c's struct rtp_header field layout (vpxcc, mpt, seq,
// timestamp, ssrc).
type Header struct {
	Marker         bool
	PayloadType    uint8
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
}

// Marshal appends the wire encoding of h to buf and returns the
// extended slice.
func (h Header) Marshal(buf []byte) []byte {
	var hdr [headerLen]byte
	hdr[0] = version << 6 // padding=0, extension=0, CSRC count=0
	m := byte(0)
	if h.Marker {
		m = 1 << 7
	}
	hdr[1] = m | (h.PayloadType & 0x7f)
	binary.BigEndian.PutUint16(hdr[2:4], h.SequenceNumber)
	binary.BigEndian.PutUint32(hdr[4:8], h.Timestamp)
	binary.BigEndian.PutUint32(hdr[8:12], h.SSRC)
	return append(buf, hdr[:]...)
}

// Unmarshal parses the fixed 12-byte RTP header from the front of buf
// and returns the header plus the payload bytes. Any CSRC list and
// header extension are skipped; their contents are not returned.
func Unmarshal(buf []byte) (Header, []byte, error) {
	if len(buf) < headerLen {
		return Header{}, nil, ErrShortHeader
	}
	v := buf[0] >> 6
	if v != version {
		return Header{}, nil, ErrUnsupportedVersion
	}
	cc := buf[0] & 0x0f
	ext := buf[0]&0x10 != 0

	h := Header{
		Marker:         buf[1]&0x80 != 0,
		PayloadType:    buf[1] & 0x7f,
		SequenceNumber: binary.BigEndian.Uint16(buf[2:4]),
		Timestamp:      binary.BigEndian.Uint32(buf[4:8]),
		SSRC:           binary.BigEndian.Uint32(buf[8:12]),
	}

	payload := buf[headerLen:]
	if len(payload) < 4*int(cc) {
		return Header{}, nil, ErrShortHeader
	}
	payload = payload[4*int(cc):]
	if ext {
		if len(payload) < 4 {
			return Header{}, nil, ErrShortHeader
		}
		extWords := binary.BigEndian.Uint16(payload[2:4])
		if len(payload) < 4+4*int(extWords) {
			return Header{}, nil, ErrShortHeader
		}
		payload = payload[4+4*int(extWords):]
	}
	return h, payload, nil
}
