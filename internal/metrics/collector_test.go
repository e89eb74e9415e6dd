package metrics

import (
	"sync/atomic"
	"testing"
	"time"
)

type mockStatsProvider struct {
	stats Stats
	calls atomic.Int32
}

func (m *mockStatsProvider) GetStats() Stats {
	m.calls.Add(1)
	return m.stats
}

func TestNewCollector(t *testing.T) {
	provider := &mockStatsProvider{}
	collector := NewCollector(provider, 5*time.Second)

	if collector.statsProvider != provider {
		t.Error("statsProvider not set correctly")
	}
	if collector.interval != 5*time.Second {
		t.Errorf("interval = %v, want 5s", collector.interval)
	}
	if collector.stopChan == nil {
		t.Error("stopChan not initialized")
	}
}

func TestCollectWithNilProvider(t *testing.T) {
	collector := NewCollector(nil, time.Second)

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("collect() panicked with nil provider: %v", r)
		}
	}()

	collector.collect()
}

func TestCollectSetsLibraryGauges(t *testing.T) {
	provider := &mockStatsProvider{
		stats: Stats{
			TotalImages: 5,
			ByStatus:    map[string]int{"success": 3, "requires_manual_entry": 2},
			ByEcosystem: map[string]int{"a1111": 2, "invokeai": 1},
		},
	}

	NewCollector(provider, time.Second).collect()

	if got := gaugeValue(t, LibraryImagesTotal.WithLabelValues("success")); got != 3 {
		t.Errorf("success gauge = %v, want 3", got)
	}
	if got := gaugeValue(t, LibraryImagesTotal.WithLabelValues("requires_manual_entry")); got != 2 {
		t.Errorf("manual entry gauge = %v, want 2", got)
	}
	if got := gaugeValue(t, LibraryImagesByEcosystem.WithLabelValues("a1111")); got != 2 {
		t.Errorf("a1111 gauge = %v, want 2", got)
	}
}

func TestCollectorStartStop(t *testing.T) {
	provider := &mockStatsProvider{}
	collector := NewCollector(provider, 10*time.Millisecond)

	collector.Start()
	time.Sleep(50 * time.Millisecond)
	collector.Stop()

	if provider.calls.Load() < 2 {
		t.Errorf("expected several collection cycles, got %d", provider.calls.Load())
	}
}
