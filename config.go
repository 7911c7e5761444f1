// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package agentbus

import (
	"go.uber.org/zap"

	"github.com/hayabusa-cloud/agentbus/internal/simd"
)

// config holds Bus construction parameters. Populated by Option values
// applied over defaultConfig in New.
type config struct {
	capacityPerClass int
	multiProducer    bool
	useHugePages     bool
	numaHint         *int
	logger           *zap.Logger
	simdOverride     *simd.Level
}

func defaultConfig() config {
	return config{
		capacityPerClass: 0, // ring.New substitutes its own default
		logger:           zap.NewNop(),
	}
}

// Option configures Bus construction.
type Option func(*config)

// WithCapacityPerClass sets the byte capacity of each priority class's ring
// buffer. Rounded up to the next power of two by the ring package.
func WithCapacityPerClass(n int) Option {
	return func(c *config) { c.capacityPerClass = n }
}

// WithMultiProducer enables the optional MPSC extension on every priority
// class, for deployments with more than one producer goroutine per class.
func WithMultiProducer(enabled bool) Option {
	return func(c *config) { c.multiProducer = enabled }
}

// WithHugePages requests that the ring buffer's class buffers be backed by
// huge page mappings when the host has any reserved (see
// capability.Record.HugePages2M). Falls back silently to a regular
// allocation when unsupported.
func WithHugePages(enabled bool) Option {
	return func(c *config) { c.useHugePages = enabled }
}

// WithNUMAHint prefers pool workers pinned to CPUs on the given NUMA node,
// when the capability probe reports NUMA topology. CPUs on other nodes are
// still included, appended after the hinted node's CPUs, so the pool never
// shrinks below the host's full CPU count. The same node is also passed to
// the ring buffer's own allocation as a best-effort mbind(2) hint, so the
// class buffers' backing pages and the workers draining them land on the
// same node.
func WithNUMAHint(node int) Option {
	return func(c *config) { c.numaHint = &node }
}

// WithLogger attaches a zap logger for advisory diagnostics: records that
// fail header parsing or CRC verification are logged at Warn. Pinning
// failures and callback errors are not logged; they show up only in
// Stats. Nothing logged ever aborts an operation; the logger is purely
// observational.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSIMDLevel overrides the memory-copy fast path the capability probe
// would otherwise select. Mainly useful for tests that want to force the
// scalar path on hardware that supports wider instructions.
func WithSIMDLevel(level simd.Level) Option {
	return func(c *config) { c.simdOverride = &level }
}
