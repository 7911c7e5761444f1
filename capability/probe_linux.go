// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package capability

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
)

// probePlatform enumerates logical CPUs, classifies them into performance
// and efficiency clusters from /sys cpufreq data, and maps each CPU to its
// NUMA node and hugepage support from sysfs. Every step degrades to the
// single-pool, unknown-NUMA default on read failure rather than erroring:
// this runs once at startup and must never block service readiness on a
// sandboxed or container host that restricts /sys access.
func probePlatform() Record {
	n := runtime.NumCPU()
	maxFreq := make(map[int]int, n)
	for id := 0; id < n; id++ {
		f, err := readSysInt(filepath.Join("/sys/devices/system/cpu", cpuDir(id), "cpufreq/cpuinfo_max_freq"))
		if err == nil {
			maxFreq[id] = f
		}
	}

	cpus := make([]CPU, n)
	for id := range cpus {
		cpus[id] = CPU{ID: id, Core: CoreUnknown, NUMANode: -1}
	}
	classifyCoreTypes(cpus, maxFreq)
	numaNodes := assignNUMANodes(cpus)

	r := Record{CPUs: cpus, NUMANodes: numaNodes}
	for _, c := range cpus {
		switch c.Core {
		case CorePerformance:
			r.NumPCores++
			r.PCoreIDs = append(r.PCoreIDs, c.ID)
		case CoreEfficiency:
			r.NumECores++
			r.ECoreIDs = append(r.ECoreIDs, c.ID)
		}
	}
	r.HugePages2M, r.HugePages1G = probeHugepages()
	return r
}

func cpuDir(id int) string { return "cpu" + strconv.Itoa(id) }

func readSysInt(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(b)))
}

// classifyCoreTypes splits CPUs into performance and efficiency clusters by
// max turbo frequency: on Intel hybrid parts, P-cores report a materially
// higher cpuinfo_max_freq than E-cores. Cores without usable frequency data,
// or a topology with a single frequency cluster (non-hybrid), are left as
// CoreUnknown so the worker pool falls back to a single pool.
func classifyCoreTypes(cpus []CPU, maxFreq map[int]int) {
	if len(maxFreq) < len(cpus) {
		return
	}

	freqs := make([]int, 0, len(maxFreq))
	for _, f := range maxFreq {
		freqs = append(freqs, f)
	}
	sort.Ints(freqs)
	lo, hi := freqs[0], freqs[len(freqs)-1]
	if hi == lo || float64(hi) < float64(lo)*1.1 {
		// Frequencies too close together to represent two distinct core
		// classes; treat as a uniform, non-hybrid part.
		return
	}

	mid := (lo + hi) / 2
	for i := range cpus {
		f, ok := maxFreq[cpus[i].ID]
		if !ok {
			continue
		}
		if f >= mid {
			cpus[i].Core = CorePerformance
		} else {
			cpus[i].Core = CoreEfficiency
		}
	}
}

// assignNUMANodes reads /sys/devices/system/node/node*/cpulist and returns
// the number of nodes discovered. CPUs not covered by any node keep NUMANode
// -1.
func assignNUMANodes(cpus []CPU) int {
	entries, err := os.ReadDir("/sys/devices/system/node")
	if err != nil {
		return 0
	}

	byID := make(map[int]int, len(cpus))
	for i, c := range cpus {
		byID[c.ID] = i
	}

	nodes := 0
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "node") {
			continue
		}
		nodeID, err := strconv.Atoi(strings.TrimPrefix(name, "node"))
		if err != nil {
			continue
		}
		nodes++

		ids, err := readCPUList(filepath.Join("/sys/devices/system/node", name, "cpulist"))
		if err != nil {
			continue
		}
		for _, id := range ids {
			if idx, ok := byID[id]; ok {
				cpus[idx].NUMANode = nodeID
			}
		}
	}
	return nodes
}

// readCPUList parses a Linux CPU list such as "0-3,8,10-11".
func readCPUList(path string) ([]int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ids []int
	for _, part := range strings.Split(strings.TrimSpace(string(b)), ",") {
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			loN, err1 := strconv.Atoi(lo)
			hiN, err2 := strconv.Atoi(hi)
			if err1 != nil || err2 != nil {
				continue
			}
			for i := loN; i <= hiN; i++ {
				ids = append(ids, i)
			}
		} else {
			if v, err := strconv.Atoi(part); err == nil {
				ids = append(ids, v)
			}
		}
	}
	return ids, nil
}

// probeHugepages reports whether the 2 MiB and 1 GiB hugepage pools have any
// pages reserved.
func probeHugepages() (has2M, has1G bool) {
	has2M = hugepagePoolNonEmpty("/sys/kernel/mm/hugepages/hugepages-2048kB/nr_hugepages")
	has1G = hugepagePoolNonEmpty("/sys/kernel/mm/hugepages/hugepages-1048576kB/nr_hugepages")
	return has2M, has1G
}

func hugepagePoolNonEmpty(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return false
	}
	n, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
	return err == nil && n > 0
}
