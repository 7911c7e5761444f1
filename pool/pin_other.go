// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package pool

import "github.com/hayabusa-cloud/agentbus/errors"

// pinToCPU is unsupported outside Linux; SchedSetaffinity has no portable
// equivalent. Workers run unpinned.
func pinToCPU(cpuID int) error {
	return errors.Resourcef("pool: CPU pinning unsupported on this platform")
}

// setThreadPriority is a no-op outside Linux; there is no portable
// equivalent of Setpriority's per-thread nice value.
func setThreadPriority(highPriority bool) {}
