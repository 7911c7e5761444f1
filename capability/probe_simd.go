// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package capability

import (
	"golang.org/x/sys/cpu"

	"github.com/hayabusa-cloud/agentbus/internal/simd"
)

// probeSIMD reads the x/sys/cpu feature flags for the running GOARCH.
// golang.org/x/sys/cpu reports all flags false on architectures it does not
// recognize, so this degrades safely on non-x86 hosts.
func probeSIMD() (level simd.Level, avx2, avx512, sse42 bool) {
	avx2 = cpu.X86.HasAVX2
	avx512 = cpu.X86.HasAVX512F && cpu.X86.HasAVX512BW && cpu.X86.HasAVX512VL
	sse42 = cpu.X86.HasSSE42

	switch {
	case avx512:
		level = simd.LevelAVX512
	case avx2:
		level = simd.LevelAVX2
	default:
		level = simd.LevelScalar
	}
	return level, avx2, avx512, sse42
}
