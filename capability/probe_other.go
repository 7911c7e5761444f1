// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package capability

import "runtime"

// probePlatform is the portable fallback: every logical CPU is reported as
// CoreUnknown with no NUMA affinity, since the sysfs topology files this
// package reads on Linux do not exist elsewhere. The worker pool treats an
// all-Unknown Record as a single flat pool.
func probePlatform() Record {
	n := runtime.NumCPU()
	cpus := make([]CPU, n)
	for i := range cpus {
		cpus[i] = CPU{ID: i, Core: CoreUnknown, NUMANode: -1}
	}
	return Record{CPUs: cpus}
}
