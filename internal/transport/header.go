// Package transport implements the per-connection framed network layer
// (spec.md §4.9): a single sender goroutine owning the write half, a single
// receiver goroutine owning the read half, fixed-header framing, three send
// modes, heartbeats, and the address registry's server-detect handshake
// barrier.
//
// Grounded on the teacher's internal/rpc (client.go/server.go), which wires
// a gRPC unix-socket connection with a dial/serve shape this package keeps
// for its listener/dial conventions; the framing and send-mode machinery
// itself has no teacher analogue (gRPC hides framing) and is cross-checked
// against original_source's Pegasus network module
// (network/src/send/mod.rs, network/src/receive/decode.rs) for the
// blocking/non-blocking/slab-buffered split and the reentrant decoder
// shape.
package transport

import (
	"encoding/binary"
	"errors"
)

// HeaderSize is the fixed wire size of Header: channel_id(16) +
// sequence(8) + length(4) + flags(4).
const HeaderSize = 16 + 8 + 4 + 4

// Flag bits carried in Header.Flags.
const (
	FlagEnd uint32 = 1 << iota
	FlagHeartbeat
	FlagCancel
)

// Header is the fixed frame header prefixing every payload on a
// connection (spec.md §4.9).
type Header struct {
	ChannelID [16]byte
	Sequence  uint64
	Length    uint32
	Flags     uint32
}

// ErrShortHeader is returned by DecodeHeader when fewer than HeaderSize
// bytes are available.
var ErrShortHeader = errors.New("transport: short header")

// Encode writes h into a freshly allocated HeaderSize-byte buffer.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:16], h.ChannelID[:])
	binary.BigEndian.PutUint64(buf[16:24], h.Sequence)
	binary.BigEndian.PutUint32(buf[24:28], h.Length)
	binary.BigEndian.PutUint32(buf[28:32], h.Flags)
	return buf
}

// DecodeHeader parses a Header from the first HeaderSize bytes of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrShortHeader
	}
	var h Header
	copy(h.ChannelID[:], buf[0:16])
	h.Sequence = binary.BigEndian.Uint64(buf[16:24])
	h.Length = binary.BigEndian.Uint32(buf[24:28])
	h.Flags = binary.BigEndian.Uint32(buf[28:32])
	return h, nil
}

// IsEnd reports whether FlagEnd is set.
func (h Header) IsEnd() bool { return h.Flags&FlagEnd != 0 }

// IsHeartbeat reports whether FlagHeartbeat is set.
func (h Header) IsHeartbeat() bool { return h.Flags&FlagHeartbeat != 0 }

// IsCancel reports whether FlagCancel is set.
func (h Header) IsCancel() bool { return h.Flags&FlagCancel != 0 }

// ChannelIDFor packs a (job_id, channel_index) pair into the 16-byte
// channel id field used on the wire (spec.md §3.5's batch.ID, carried here
// without allocating per-frame).
func ChannelIDFor(jobID uint64, channelIndex uint32) [16]byte {
	var out [16]byte
	binary.BigEndian.PutUint64(out[0:8], jobID)
	binary.BigEndian.PutUint32(out[8:12], channelIndex)
	return out
}
