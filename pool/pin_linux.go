// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package pool

import "golang.org/x/sys/unix"

// pinToCPU binds the calling OS thread to cpuID. The caller must have
// already called runtime.LockOSThread. Returns an error if the affinity
// syscall fails (insufficient privilege, invalid CPU id); the caller treats
// this as non-fatal.
func pinToCPU(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	return unix.SchedSetaffinity(unix.Gettid(), &set)
}

// pCoreNice and eCoreNice are the scheduling priority hints requested for
// pinned workers: P-core workers ask for a lower (more negative) nice
// value than E-core workers, so the kernel's CFS scheduler favors them
// under contention. Unprivileged processes typically cannot lower nice
// below 0; the Setpriority call below is advisory and its error is ignored.
const (
	pCoreNice = -5
	eCoreNice = 0
)

// setThreadPriority requests a nice value for the calling OS thread based
// on core type. Best-effort: a permission failure (the common case without
// CAP_SYS_NICE) is silently ignored, never surfaced to the caller.
func setThreadPriority(highPriority bool) {
	nice := eCoreNice
	if highPriority {
		nice = pCoreNice
	}
	_ = unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), nice)
}
