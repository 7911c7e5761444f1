// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package record_test

import (
	"bytes"
	"errors"
	"testing"

	agentbuserrors "github.com/hayabusa-cloud/agentbus/errors"
	"github.com/hayabusa-cloud/agentbus/record"
)

func fields() record.Fields {
	return record.Fields{
		Priority:    2,
		MsgType:     7,
		Timestamp:   123456789,
		Sequence:    1,
		SourceAgent: 42,
		TargetCount: 0,
	}
}

// TestBuildParseRoundTrip: parse_header(build(f, p).header_bytes) == f.
func TestBuildParseRoundTrip(t *testing.T) {
	f := fields()
	payload := bytes.Repeat([]byte{0xAB}, 100)

	rec, err := record.Build(f, payload)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(rec) != record.HeaderSize+len(payload) {
		t.Fatalf("record length: got %d, want %d", len(rec), record.HeaderSize+len(payload))
	}

	h, err := record.ParseHeader(rec)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.Magic != record.Magic {
		t.Errorf("Magic: got %#x, want %#x", h.Magic, record.Magic)
	}
	if h.Priority != f.Priority || h.MsgType != f.MsgType || h.Sequence != f.Sequence ||
		h.SourceAgent != f.SourceAgent || h.Timestamp != f.Timestamp {
		t.Errorf("decoded fields mismatch: got %+v", h)
	}
	if h.PayloadLen != uint32(len(payload)) {
		t.Errorf("PayloadLen: got %d, want %d", h.PayloadLen, len(payload))
	}
}

// TestVerifyCRCRoundTrip: verify_crc(build(f, p)) == true for all valid f, p.
func TestVerifyCRCRoundTrip(t *testing.T) {
	f := fields()
	payload := bytes.Repeat([]byte{0xCD}, 64)

	rec, err := record.Build(f, payload)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	h, err := record.ParseHeader(rec)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if !record.VerifyCRC(h, rec[record.HeaderSize:]) {
		t.Fatal("VerifyCRC: want true for unmodified record")
	}
}

// TestS1RoundTrip is the spec's seed scenario: a 228-byte record
// (128-byte header + 100-byte payload) built and parsed byte-identically.
func TestS1RoundTrip(t *testing.T) {
	f := record.Fields{Priority: 2, Sequence: 1}
	payload := bytes.Repeat([]byte{0xAB}, 100)

	rec, err := record.Build(f, payload)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(rec) != 228 {
		t.Fatalf("record length: got %d, want 228", len(rec))
	}

	h, err := record.ParseHeader(rec)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if !record.VerifyCRC(h, rec[record.HeaderSize:]) {
		t.Fatal("VerifyCRC: want true")
	}
	if !bytes.Equal(rec[record.HeaderSize:], payload) {
		t.Fatal("payload bytes not preserved")
	}
}

// TestS4CRCCorruption: a flipped payload byte still builds successfully
// (CRC is producer-computed) but fails verification on read.
func TestS4CRCCorruption(t *testing.T) {
	f := record.Fields{Priority: 1}
	payload := bytes.Repeat([]byte{0x11}, 32)

	rec, err := record.Build(f, payload)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	rec[record.HeaderSize] ^= 0xFF // flip one payload byte post-build

	h, err := record.ParseHeader(rec)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if record.VerifyCRC(h, rec[record.HeaderSize:]) {
		t.Fatal("VerifyCRC: want false after corruption")
	}
}

func TestBuildInvalidArgument(t *testing.T) {
	tests := []struct {
		name string
		f    record.Fields
		n    int
	}{
		{"priority too high", record.Fields{Priority: 6}, 0},
		{"target_count too high", record.Fields{TargetCount: 17}, 0},
		{"payload too large", record.Fields{}, record.MaxPayload + 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := record.Build(tc.f, make([]byte, tc.n))
			if !errors.Is(err, agentbuserrors.ErrInvalidArgument) {
				t.Fatalf("got %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestParseHeaderMalformed(t *testing.T) {
	good, err := record.Build(fields(), []byte("x"))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	t.Run("short", func(t *testing.T) {
		_, err := record.ParseHeader(good[:10])
		if !errors.Is(err, agentbuserrors.ErrMalformed) {
			t.Fatalf("got %v, want ErrMalformed", err)
		}
	})

	t.Run("bad magic", func(t *testing.T) {
		corrupt := append([]byte(nil), good...)
		corrupt[0] ^= 0xFF
		_, err := record.ParseHeader(corrupt)
		if !errors.Is(err, agentbuserrors.ErrMalformed) {
			t.Fatalf("got %v, want ErrMalformed", err)
		}
	})

	t.Run("bad version", func(t *testing.T) {
		corrupt := append([]byte(nil), good...)
		corrupt[4] = 0xFF
		corrupt[5] = 0xFF
		_, err := record.ParseHeader(corrupt)
		if !errors.Is(err, agentbuserrors.ErrMalformed) {
			t.Fatalf("got %v, want ErrMalformed", err)
		}
	})

	t.Run("length inconsistent", func(t *testing.T) {
		_, err := record.ParseHeader(append(append([]byte(nil), good...), 0, 0, 0))
		if !errors.Is(err, agentbuserrors.ErrMalformed) {
			t.Fatalf("got %v, want ErrMalformed", err)
		}
	})
}

// TestReservedBytesPreserved: the 16-byte reserved/metadata region is
// carried byte-for-byte and never interpreted, per the open question in
// the spec's design notes.
func TestReservedBytesPreserved(t *testing.T) {
	f := fields()
	f.Flags = record.FlagExtendedMetadata
	copy(f.Reserved[:], []byte("deadbeefcafebabe"))

	rec, err := record.Build(f, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	h, err := record.ParseHeader(rec)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if !bytes.Equal(h.Reserved[:], []byte("deadbeefcafebabe")) {
		t.Fatalf("Reserved: got %q", h.Reserved)
	}
	if h.Flags&record.FlagExtendedMetadata == 0 {
		t.Fatal("extended metadata flag not preserved")
	}
}
