// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package ring

// RaceEnabled is true when the race detector is active. Tests use it to
// scale down iteration counts on the MPSC stress path, which otherwise
// makes the detector's instrumentation dominate wall-clock time.
const RaceEnabled = true
