// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package ring

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// mpolPreferred is Linux's MPOL_PREFERRED mempolicy mode: a soft hint that
// the kernel tries first and falls back from silently. golang.org/x/sys/unix
// exposes the raw SYS_MBIND syscall number but no Mbind wrapper or mode
// constants, so the value is taken directly from linux/mempolicy.h.
const mpolPreferred = 1

// allocHugePage attempts to back an n-byte class buffer with a 2 MiB
// huge page via an anonymous MAP_HUGETLB mapping, then locks it resident
// with Mlock so it can never be swapped out from under the hot path.
// Returns nil, false if the kernel has no huge pages reserved or the
// mapping otherwise fails; callers fall back to a regular heap allocation.
// A failed Mlock (no CAP_IPC_LOCK, or RLIMIT_MEMLOCK too low) is logged
// nowhere and does not undo the mapping: locking is a latency guarantee on
// top of an already-working allocation, not a precondition for using it.
func allocHugePage(n int) ([]byte, bool) {
	b, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_HUGETLB)
	if err != nil {
		return nil, false
	}
	_ = unix.Mlock(b)
	return b, true
}

// freeHugePage unlocks and unmaps a buffer obtained from allocHugePage.
// Best-effort: errors are ignored, matching allocHugePage's own discipline.
func freeHugePage(b []byte) {
	_ = unix.Munlock(b)
	_ = unix.Munmap(b)
}

// bindNUMANode issues a best-effort mbind(2) asking the kernel to satisfy
// future page faults against b's backing pages from node, via
// MPOL_PREFERRED (a hint the kernel ignores rather than honors if node is
// out of memory or doesn't exist — never a hard requirement like
// MPOL_BIND). No high-level wrapper exists in golang.org/x/sys/unix, so
// this issues the raw syscall using the SYS_MBIND number it does export.
// A no-op for already-faulted-in memory unless the caller also requests
// page migration, which this never does: it only steers where pages land
// the first time they're touched, matching a ring buffer's own allocate-
// then-use lifecycle.
func bindNUMANode(b []byte, node int) {
	if len(b) == 0 || node < 0 || node >= 64 {
		return
	}
	nodemask := uint64(1) << uint(node)
	_, _, _ = unix.Syscall6(unix.SYS_MBIND,
		uintptr(unsafe.Pointer(&b[0])), uintptr(len(b)),
		uintptr(mpolPreferred),
		uintptr(unsafe.Pointer(&nodemask)), 64, 0)
}
