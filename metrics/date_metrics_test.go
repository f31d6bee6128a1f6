package metrics

import (
	"strings"
	"testing"
)

func TestDateMetricsTimingPairs(t *testing.T) {
	m := NewDateMetrics("2025-11-17")

	m.StartEncode()
	m.EndEncode()
	if m.EncodeStartTime == nil || m.EncodeEndTime == nil {
		t.Fatal("encode timestamps not recorded")
	}
	if m.EncodeDuration < 0 {
		t.Errorf("encode duration negative: %v", m.EncodeDuration)
	}

	// End without a matching start must be a no-op, not a panic.
	m.EndConcat()
	if m.ConcatEndTime != nil {
		t.Error("concat end recorded without a start")
	}
}

func TestDateMetricsSummary(t *testing.T) {
	m := NewDateMetrics("2025-11-17")
	m.StartProbe()
	m.EndProbe()
	m.CountSegment(3, 1, 2)
	m.Finalize()

	summary := m.GetSummary()
	for _, want := range []string{"2025-11-17", "3 built", "1 reused", "2 skipped", "Probing"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
	if strings.Contains(summary, "Upload:") {
		t.Errorf("summary reports an upload that never happened:\n%s", summary)
	}
}

func TestMetricsCollector(t *testing.T) {
	c := NewMetricsCollector()

	first := c.StartDate("2025-11-17")
	second := c.StartDate("2025-11-18")

	if got := c.GetMetrics("2025-11-17"); got != first {
		t.Error("GetMetrics returned a different instance")
	}
	if c.GetMetrics("2025-11-19") != nil {
		t.Error("GetMetrics invented metrics for an unknown date")
	}

	all := c.GetAllMetrics()
	if len(all) != 2 {
		t.Fatalf("GetAllMetrics returned %d entries, want 2", len(all))
	}
	if all["2025-11-18"] != second {
		t.Error("GetAllMetrics lost a date")
	}
}
