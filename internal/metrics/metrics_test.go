package metrics

import (
	"testing"
	"time"
)

func TestNew_StartTimeSet(t *testing.T) {
	before := time.Now()
	m := New()
	after := time.Now()

	if m.startTime.Before(before) || m.startTime.After(after) {
		t.Errorf("startTime %v not in expected range [%v, %v]", m.startTime, before, after)
	}
}

func TestZeroValue_SnapshotSafe(t *testing.T) {
	var m Metrics
	s := m.Snapshot()
	if s.Replay.Requests != 0 {
		t.Errorf("expected 0 replayed requests, got %d", s.Replay.Requests)
	}
}

func TestReplayCounters(t *testing.T) {
	m := New()
	m.RequestsReplayed.Add(10)
	m.RequestsRedirectRecovered.Add(2)
	m.PairsDropped.Add(4)

	s := m.Snapshot()
	if s.Replay.Requests != 10 {
		t.Errorf("Requests: got %d, want 10", s.Replay.Requests)
	}
	if s.Replay.RedirectRecovered != 2 {
		t.Errorf("RedirectRecovered: got %d, want 2", s.Replay.RedirectRecovered)
	}
	if s.Replay.PairsDropped != 4 {
		t.Errorf("PairsDropped: got %d, want 4", s.Replay.PairsDropped)
	}
}

func TestErrorCounters(t *testing.T) {
	m := New()
	m.ErrorsTransport.Add(3)
	m.ErrorsOracleUnused.Add(1)

	s := m.Snapshot()
	if s.Errors.Transport != 3 {
		t.Errorf("Transport errors: got %d, want 3", s.Errors.Transport)
	}
	if s.Errors.OracleUnused != 1 {
		t.Errorf("OracleUnused errors: got %d, want 1", s.Errors.OracleUnused)
	}
}

func TestNonceCounters(t *testing.T) {
	m := New()
	m.NoncesDiscovered.Add(8)
	m.NoncesSubstituted.Add(6)
	m.NoncesUnretrieved.Add(2)

	s := m.Snapshot()
	if s.Nonces.Discovered != 8 {
		t.Errorf("Discovered: got %d, want 8", s.Nonces.Discovered)
	}
	if s.Nonces.Substituted != 6 {
		t.Errorf("Substituted: got %d, want 6", s.Nonces.Substituted)
	}
	if s.Nonces.Unretrieved != 2 {
		t.Errorf("Unretrieved: got %d, want 2", s.Nonces.Unretrieved)
	}
}

func TestPruningCounters(t *testing.T) {
	m := New()
	m.PairsPrunedStatically.Add(5)
	m.PairsPrunedDynamically.Add(3)
	m.DynamicPruneProbes.Add(9)

	s := m.Snapshot()
	if s.Pruning.Static != 5 {
		t.Errorf("Static: got %d, want 5", s.Pruning.Static)
	}
	if s.Pruning.Dynamic != 3 {
		t.Errorf("Dynamic: got %d, want 3", s.Pruning.Dynamic)
	}
	if s.Pruning.Probes != 9 {
		t.Errorf("Probes: got %d, want 9", s.Pruning.Probes)
	}
}

func TestRecordReplayLatency_SingleSample(t *testing.T) {
	m := New()
	m.RecordReplayLatency(100 * time.Millisecond)

	s := m.Snapshot()
	if s.Latency.ReplayMs.Count != 1 {
		t.Errorf("Count: got %d, want 1", s.Latency.ReplayMs.Count)
	}
	// 100ms should be recorded as ~100ms
	if s.Latency.ReplayMs.MinMs < 90 || s.Latency.ReplayMs.MinMs > 110 {
		t.Errorf("MinMs: got %f, want ~100", s.Latency.ReplayMs.MinMs)
	}
}

func TestRecordProbeLatency_MinMaxMean(t *testing.T) {
	m := New()
	m.RecordProbeLatency(50 * time.Millisecond)
	m.RecordProbeLatency(150 * time.Millisecond)
	m.RecordProbeLatency(100 * time.Millisecond)

	s := m.Snapshot()
	ls := s.Latency.ProbeMs
	if ls.Count != 3 {
		t.Errorf("Count: got %d, want 3", ls.Count)
	}
	if ls.MinMs > 60 {
		t.Errorf("MinMs too high: %f", ls.MinMs)
	}
	if ls.MaxMs < 140 {
		t.Errorf("MaxMs too low: %f", ls.MaxMs)
	}
	// mean ~100ms
	if ls.MeanMs < 90 || ls.MeanMs > 110 {
		t.Errorf("MeanMs: got %f, want ~100", ls.MeanMs)
	}
}

func TestSnapshotLatency_EmptyIsZeroValue(t *testing.T) {
	m := New()
	s := m.Snapshot()
	if s.Latency.ReplayMs.Count != 0 {
		t.Errorf("empty replay latency count should be 0")
	}
	if s.Latency.ProbeMs.Count != 0 {
		t.Errorf("empty probe latency count should be 0")
	}
}

func TestSnapshot_UptimePositive(t *testing.T) {
	m := New()
	time.Sleep(5 * time.Millisecond)
	s := m.Snapshot()
	if s.UptimeSecs <= 0 {
		t.Errorf("UptimeSecs should be positive, got %f", s.UptimeSecs)
	}
}

func TestRound2(t *testing.T) {
	cases := []struct {
		input float64
		want  float64
	}{
		{1.236, 1.24},
		{1.234, 1.23},
		{100.0, 100.0},
		{0.0, 0.0},
	}
	for _, c := range cases {
		got := round2(c.input)
		if got != c.want {
			t.Errorf("round2(%f) = %f, want %f", c.input, got, c.want)
		}
	}
}

func TestLatencyStats_Record(t *testing.T) {
	var s latencyStats
	s.record(10)
	s.record(20)
	s.record(15)

	snap := s.snapshot()
	if snap.Count != 3 {
		t.Errorf("Count: got %d, want 3", snap.Count)
	}
	if snap.MinMs != 10 {
		t.Errorf("MinMs: got %f, want 10", snap.MinMs)
	}
	if snap.MaxMs != 20 {
		t.Errorf("MaxMs: got %f, want 20", snap.MaxMs)
	}
	if snap.MeanMs != 15 {
		t.Errorf("MeanMs: got %f, want 15", snap.MeanMs)
	}
}

func TestLatencyStats_Empty(t *testing.T) {
	var s latencyStats
	snap := s.snapshot()
	if snap.Count != 0 || snap.MinMs != 0 || snap.MaxMs != 0 || snap.MeanMs != 0 {
		t.Errorf("empty stats snapshot should be zero, got %+v", snap)
	}
}
