// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package agentbus_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hayabusa-cloud/agentbus"
	"github.com/hayabusa-cloud/agentbus/record"
)

func TestExportPrometheusRegistersCollector(t *testing.T) {
	b, err := agentbus.New(func(record.Header, []byte) error { return nil })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	reg := prometheus.NewRegistry()
	if err := agentbus.ExportPrometheus(reg, b); err != nil {
		t.Fatalf("ExportPrometheus: %v", err)
	}
	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather: %v", err)
	}
}

func TestCollectorExportsWorkerAndRingMetrics(t *testing.T) {
	done := make(chan struct{})
	b, err := agentbus.New(func(record.Header, []byte) error {
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	collector := agentbus.NewCollector(b)

	if err := b.Publish(record.Fields{Priority: 0}, []byte("hello")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Process callback")
	}

	n := testutil.CollectAndCount(collector)
	if n == 0 {
		t.Fatal("CollectAndCount: got 0 metrics, want at least one per ring class and worker")
	}
}

func TestCollectorNeverPanicsBeforeTraffic(t *testing.T) {
	b, err := agentbus.New(func(record.Header, []byte) error { return nil })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	testutil.CollectAndCount(agentbus.NewCollector(b))
}
