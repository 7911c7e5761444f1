// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package capability probes the host's CPU topology, SIMD feature set, NUMA
// layout and hugepage availability once at startup and hands back an
// immutable record. The worker pool uses CoreType to decide pinning and
// backoff strategy; the ring buffer's memory-copy path uses SIMDLevel as an
// advisory hint. Nothing in this package is re-probed at runtime: the record
// is a value, passed down, never a global mutable singleton.
package capability

import "github.com/hayabusa-cloud/agentbus/internal/simd"

// CoreType classifies a logical CPU for scheduling purposes.
type CoreType int

const (
	// CoreUnknown is used when the platform does not expose enough
	// topology information to distinguish performance and efficiency
	// cores. Callers should treat every core as a P-core equivalent.
	CoreUnknown CoreType = iota
	// CorePerformance is an Intel P-core (or, on a non-hybrid part, any
	// core — the distinction only matters once a second class exists).
	CorePerformance
	// CoreEfficiency is an Intel E-core.
	CoreEfficiency
)

func (t CoreType) String() string {
	switch t {
	case CorePerformance:
		return "performance"
	case CoreEfficiency:
		return "efficiency"
	default:
		return "unknown"
	}
}

// CPU describes one logical processor.
type CPU struct {
	ID       int
	Core     CoreType
	NUMANode int // -1 if unknown
}

// Record is the immutable snapshot returned by Probe. Every field is
// populated best-effort: a platform that cannot answer a question reports
// the conservative zero value rather than erroring.
type Record struct {
	CPUs []CPU

	NumPCores int
	NumECores int
	// PCoreIDs and ECoreIDs list the logical CPU ids in each class, in
	// ascending order, for convenience when building a pinning plan.
	PCoreIDs []int
	ECoreIDs []int

	NUMANodes int

	// SIMDLevel is the richest memory-copy fast path the CPU supports,
	// derived from the golang.org/x/sys/cpu feature flags.
	SIMDLevel simd.Level
	// HasAVX2/HasAVX512 mirror SIMDLevel as individual booleans for
	// callers that want to gate on a specific instruction set instead of
	// the ordered Level.
	HasAVX2     bool
	HasAVX512   bool
	HasSSE42    bool // hardware CRC32C; informational, record's hash/crc32 detects it on its own
	HugePages2M bool
	HugePages1G bool

	// HasNPU, HasGNA, and HasGPU are advisory accelerator-presence flags.
	// No probing logic populates them; they always report false. They
	// exist as part of the capability contract for callers that branch on
	// accelerator availability today and can be wired to real detection
	// later without changing the Record shape.
	HasNPU bool
	HasGNA bool
	HasGPU bool
}

// Probe inspects the running host and returns a Record. It never fails:
// detection steps that are unsupported on the current GOOS, or that hit a
// permission error reading procfs/sysfs, degrade to the conservative
// default for that field instead of returning an error.
func Probe() Record {
	r := probePlatform()
	r.SIMDLevel, r.HasAVX2, r.HasAVX512, r.HasSSE42 = probeSIMD()
	return r
}
