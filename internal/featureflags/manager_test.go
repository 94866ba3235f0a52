package featureflags

import "testing"

func TestDefaults(t *testing.T) {
	m := NewManager("")

	if !m.On(SupplierMockFallback) {
		t.Fatal("mock fallback should default to on")
	}
	if m.On(ScheduledRefresh) {
		t.Fatal("scheduled refresh should default to off")
	}
}

func TestOverridesAndMalformedPairs(t *testing.T) {
	m := NewManager(" bad , supplier_mock_fallback = OFF ,scheduled_refresh=true,=on,x=")

	if m.On(SupplierMockFallback) {
		t.Fatal("override should disable mock fallback")
	}
	if !m.On(ScheduledRefresh) {
		t.Fatal("override should enable scheduled refresh")
	}
	if got := m.String(); got != "feed_cache=on,scheduled_refresh=true,supplier_mock_fallback=off" {
		t.Fatalf("unexpected effective flags: %s", got)
	}
}

func TestPercentageRollout(t *testing.T) {
	m := NewManager("feed_cache=25%,always=100%,never=0%")

	if m.On(FeedCache) {
		t.Fatal("partial rollout must not turn a process-wide flag on")
	}
	if !m.On("always") || !m.Enabled("always", 1) {
		t.Fatal("100% rollout should always be enabled")
	}
	if m.Enabled("never", 1) {
		t.Fatal("0% rollout should always be disabled")
	}

	first := m.Enabled(FeedCache, 42)
	for i := 0; i < 5; i++ {
		if got := m.Enabled(FeedCache, 42); got != first {
			t.Fatal("rollout evaluation must be deterministic per user")
		}
	}
	if m.Enabled(FeedCache, 0) {
		t.Fatal("percentage rollout requires non-zero userID")
	}
}

func TestNilManager(t *testing.T) {
	var m *Manager
	if m.On(SupplierMockFallback) || m.Enabled(SupplierMockFallback, 1) {
		t.Fatal("nil manager should report every flag off")
	}
}

func TestSnapshot(t *testing.T) {
	snap := NewManager("scheduled_refresh=on").Snapshot(7)
	if len(snap) != len(Defaults) {
		t.Fatalf("expected %d flags, got %d", len(Defaults), len(snap))
	}
	if !snap[string(ScheduledRefresh)] {
		t.Fatal("snapshot should reflect overrides")
	}
}
