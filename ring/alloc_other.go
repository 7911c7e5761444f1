// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package ring

// allocHugePage is unavailable off Linux; callers always fall back to a
// regular heap allocation.
func allocHugePage(n int) ([]byte, bool) {
	return nil, false
}

// freeHugePage is unreachable off Linux: allocHugePage never succeeds, so
// no class buffer is ever marked huge-page-backed here.
func freeHugePage(b []byte) {}

// bindNUMANode is a no-op off Linux; there is no portable mempolicy
// syscall to steer a []byte's backing pages to a NUMA node.
func bindNUMANode(b []byte, node int) {}
