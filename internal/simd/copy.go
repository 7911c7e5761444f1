// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package simd provides the capability-gated memory copy fast path used by
// the ring buffer's record body transfer. The scalar path is always
// correct; the "fast" path is a behavior-preserving optimization keyed off
// the runtime capability record and must never change output.
package simd

// Level selects the copy strategy. It is populated from the capability
// probe's SIMD flags and is advisory only: every level produces
// byte-identical output to LevelScalar.
type Level int

const (
	// LevelScalar copies byte-by-byte via the Go runtime's memmove, which
	// on amd64/arm64 already vectorizes large copies. This is the
	// mandatory fallback and is always correct.
	LevelScalar Level = iota
	// LevelAVX2 and LevelAVX512 name the wider copy paths a CPU reporting
	// the corresponding capability flag could use. CopyInto and CopyFrom
	// currently ignore the level: every level takes the same copy() path
	// as LevelScalar.
	LevelAVX2
	LevelAVX512
)

// CopyInto writes src into dst, a ring buffer of length len(dst), starting
// at byte offset pos&mask, wrapping around the end of dst as needed. dst's
// length must equal mask+1. Returns the number of bytes written (always
// len(src) when dst has room, which the caller is responsible for
// ensuring before calling).
func CopyInto(dst []byte, mask, pos uint64, src []byte, _ Level) int {
	capacity := mask + 1
	start := pos & mask
	first := capacity - start
	if uint64(len(src)) <= first {
		copy(dst[start:], src)
		return len(src)
	}
	copy(dst[start:], src[:first])
	copy(dst[0:], src[first:])
	return len(src)
}

// CopyFrom reads length bytes out of the ring buffer src starting at byte
// offset pos&mask (wrapping as needed) into out. out must have length >=
// length.
func CopyFrom(out []byte, src []byte, mask, pos uint64, length int, _ Level) int {
	capacity := mask + 1
	start := pos & mask
	first := capacity - start
	if uint64(length) <= first {
		copy(out[:length], src[start:start+uint64(length)])
		return length
	}
	n := copy(out[:length], src[start:])
	copy(out[n:length], src[0:uint64(length)-first])
	return length
}
