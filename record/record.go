// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package record defines the wire format shared by producers and consumers
// of the agentbus ring buffer: a fixed 128-byte header, an integrity check,
// and an opaque variable-length payload.
package record

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/hayabusa-cloud/agentbus/errors"
)

const (
	// Magic is the constant header tag: "AGEN" in big-endian byte order.
	// Stored little-endian, the four wire bytes read "NEGA".
	Magic uint32 = 0x4147454E

	// Version is the current wire protocol version.
	Version uint16 = 1

	// HeaderSize is the fixed on-wire header length in bytes.
	HeaderSize = 128

	// MaxPayload is the largest payload a record may carry.
	MaxPayload = 16 << 20 // 16 MiB

	// MaxPriority is the highest valid priority class.
	MaxPriority = 5

	// MaxTargets is the number of entries target_agents may carry.
	MaxTargets = 16

	// FlagExtendedMetadata marks bit 15 of the flags field: the reserved
	// region carries producer-private metadata. The core preserves these
	// bytes byte-for-byte but never interprets them.
	FlagExtendedMetadata uint16 = 1 << 15
)

// crc32cTable is the Castagnoli polynomial table. On amd64/arm64 the
// standard library dispatches Update/Checksum calls against this table to
// the hardware CRC32 instruction automatically, so no separate SIMD/ASM
// CRC path is needed here.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// Header is the 128-byte fixed record header, decoded into Go-native types.
type Header struct {
	Magic        uint32
	Version      uint16
	Flags        uint16
	MsgType      uint32
	Priority     uint32
	Timestamp    uint64
	Sequence     uint64
	SourceAgent  uint32
	TargetCount  uint32
	TargetAgents [MaxTargets]uint32
	PayloadLen   uint32
	CRC32        uint32
	Reserved     [16]byte
}

// Fields carries the producer-supplied values needed to build a record.
// Magic, Version and CRC32 are computed by Build and need not be set.
type Fields struct {
	Flags        uint16
	MsgType      uint32
	Priority     uint32
	Timestamp    uint64
	Sequence     uint64
	SourceAgent  uint32
	TargetCount  uint32
	TargetAgents [MaxTargets]uint32
	Reserved     [16]byte
}

// Build encodes fields and payload into a contiguous record: 128-byte
// header followed by payload bytes. Returns InvalidArgument if priority,
// target_count, or payload length violate the wire contract.
func Build(f Fields, payload []byte) ([]byte, error) {
	if f.Priority > MaxPriority {
		return nil, errors.InvalidArgumentf("record: priority %d exceeds max %d", f.Priority, MaxPriority)
	}
	if f.TargetCount > MaxTargets {
		return nil, errors.InvalidArgumentf("record: target_count %d exceeds max %d", f.TargetCount, MaxTargets)
	}
	if len(payload) > MaxPayload {
		return nil, errors.InvalidArgumentf("record: payload_len %d exceeds max %d", len(payload), MaxPayload)
	}

	buf := make([]byte, HeaderSize+len(payload))
	putHeaderFields(buf, f, uint32(len(payload)))
	copy(buf[HeaderSize:], payload)

	// CRC32C covers header[0:104] (magic..target_agents) ++ payload, per
	// the wire contract; payload_len itself is not part of the preimage.
	sum := checksum(buf[:104], payload)
	binary.LittleEndian.PutUint32(buf[108:112], sum)

	return buf, nil
}

// putHeaderFields writes every header field except crc32 (filled by Build
// after the payload is known) into buf[0:HeaderSize].
func putHeaderFields(buf []byte, f Fields, payloadLen uint32) {
	binary.LittleEndian.PutUint32(buf[0:4], Magic)
	binary.LittleEndian.PutUint16(buf[4:6], Version)
	binary.LittleEndian.PutUint16(buf[6:8], f.Flags)
	binary.LittleEndian.PutUint32(buf[8:12], f.MsgType)
	binary.LittleEndian.PutUint32(buf[12:16], f.Priority)
	binary.LittleEndian.PutUint64(buf[16:24], f.Timestamp)
	binary.LittleEndian.PutUint64(buf[24:32], f.Sequence)
	binary.LittleEndian.PutUint32(buf[32:36], f.SourceAgent)
	binary.LittleEndian.PutUint32(buf[36:40], f.TargetCount)
	for i := 0; i < MaxTargets; i++ {
		binary.LittleEndian.PutUint32(buf[40+i*4:44+i*4], f.TargetAgents[i])
	}
	binary.LittleEndian.PutUint32(buf[104:108], payloadLen)
	// buf[108:112] (crc32) is filled in by the caller once the payload is known.
	copy(buf[112:128], f.Reserved[:])
}

// ParseHeader decodes the 128-byte header from the front of b.
// Returns Malformed if b is shorter than HeaderSize, the magic does not
// match, the version is unsupported, or payload_len is inconsistent with
// the remaining bytes of b (when b contains the full record).
func ParseHeader(b []byte) (Header, error) {
	var h Header
	if len(b) < HeaderSize {
		return h, errors.Malformedf("record: short header: %d bytes", len(b))
	}

	h.Magic = binary.LittleEndian.Uint32(b[0:4])
	if h.Magic != Magic {
		return h, errors.Malformedf("record: bad magic %#x", h.Magic)
	}
	h.Version = binary.LittleEndian.Uint16(b[4:6])
	if h.Version == 0 || h.Version > Version {
		return h, errors.Malformedf("record: unsupported version %d", h.Version)
	}
	h.Flags = binary.LittleEndian.Uint16(b[6:8])
	h.MsgType = binary.LittleEndian.Uint32(b[8:12])
	h.Priority = binary.LittleEndian.Uint32(b[12:16])
	if h.Priority > MaxPriority {
		return h, errors.Malformedf("record: bad priority %d", h.Priority)
	}
	h.Timestamp = binary.LittleEndian.Uint64(b[16:24])
	h.Sequence = binary.LittleEndian.Uint64(b[24:32])
	h.SourceAgent = binary.LittleEndian.Uint32(b[32:36])
	h.TargetCount = binary.LittleEndian.Uint32(b[36:40])
	if h.TargetCount > MaxTargets {
		return h, errors.Malformedf("record: bad target_count %d", h.TargetCount)
	}
	for i := 0; i < MaxTargets; i++ {
		h.TargetAgents[i] = binary.LittleEndian.Uint32(b[40+i*4 : 44+i*4])
	}
	h.PayloadLen = binary.LittleEndian.Uint32(b[104:108])
	if h.PayloadLen > MaxPayload {
		return h, errors.Malformedf("record: bad payload_len %d", h.PayloadLen)
	}
	if len(b) != HeaderSize+int(h.PayloadLen) && len(b) != HeaderSize {
		// Full-record callers pass exactly HeaderSize+PayloadLen; header-only
		// callers pass exactly HeaderSize. Anything else is inconsistent.
		return h, errors.Malformedf("record: length %d inconsistent with payload_len %d", len(b), h.PayloadLen)
	}
	h.CRC32 = binary.LittleEndian.Uint32(b[108:112])
	copy(h.Reserved[:], b[112:128])

	return h, nil
}

// VerifyCRC recomputes CRC32C over header[0:104] (magic..target_agents)
// and payload, and compares it against the header's stored value.
func VerifyCRC(h Header, payload []byte) bool {
	var hb [104]byte
	putVerifyHeader(&hb, h)
	return checksum(hb[:], payload) == h.CRC32
}

// putVerifyHeader reconstructs header bytes [0:104] (magic..target_agents,
// excluding payload_len, crc32, and reserved) from a decoded Header, for
// CRC recomputation.
func putVerifyHeader(hb *[104]byte, h Header) {
	binary.LittleEndian.PutUint32(hb[0:4], h.Magic)
	binary.LittleEndian.PutUint16(hb[4:6], h.Version)
	binary.LittleEndian.PutUint16(hb[6:8], h.Flags)
	binary.LittleEndian.PutUint32(hb[8:12], h.MsgType)
	binary.LittleEndian.PutUint32(hb[12:16], h.Priority)
	binary.LittleEndian.PutUint64(hb[16:24], h.Timestamp)
	binary.LittleEndian.PutUint64(hb[24:32], h.Sequence)
	binary.LittleEndian.PutUint32(hb[32:36], h.SourceAgent)
	binary.LittleEndian.PutUint32(hb[36:40], h.TargetCount)
	for i := 0; i < MaxTargets; i++ {
		binary.LittleEndian.PutUint32(hb[40+i*4:44+i*4], h.TargetAgents[i])
	}
}

// checksum computes CRC32C over headPrefix ++ payload.
func checksum(headPrefix, payload []byte) uint32 {
	c := crc32.Update(0, crc32cTable, headPrefix)
	c = crc32.Update(c, crc32cTable, payload)
	return c
}
