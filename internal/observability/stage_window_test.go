package observability

import "testing"

func TestStageWindowSnapshot(t *testing.T) {
	w := newStageWindow(8)
	w.Observe(StageSynthesis, 500)
	w.Observe(StageSynthesis, 700)
	w.Observe(StageSynthesis, 900)
	w.Observe("", 100)
	w.Observe(StageRouting, -1)
	w.ObserveIndicator("recognition_fallback")
	w.ObserveIndicator("recognition_fallback")
	w.ObserveIndicator("  ")

	snap := w.Snapshot()
	if snap.WindowSize != 8 {
		t.Fatalf("WindowSize = %d, want 8", snap.WindowSize)
	}
	if len(snap.Stages) != 1 {
		t.Fatalf("len(Stages) = %d, want 1", len(snap.Stages))
	}
	s := snap.Stages[0]
	if s.Stage != StageSynthesis {
		t.Fatalf("Stage = %q, want %q", s.Stage, StageSynthesis)
	}
	if s.Samples != 3 || s.LastMS != 900 || s.P50MS != 700 || s.AvgMS != 700 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	if s.P95MS <= 700 || s.P95MS > 900 {
		t.Fatalf("P95MS = %.2f, want (700,900]", s.P95MS)
	}
	if s.TargetP95MS != 3000 {
		t.Fatalf("TargetP95MS = %.2f, want 3000", s.TargetP95MS)
	}
	if len(snap.Indicators) != 1 || snap.Indicators[0].Count != 2 {
		t.Fatalf("Indicators = %+v", snap.Indicators)
	}
}

func TestStageWindowWrapsRing(t *testing.T) {
	w := newStageWindow(2)
	w.Observe(StageRecognition, 1)
	w.Observe(StageRecognition, 2)
	w.Observe(StageRecognition, 30)

	snap := w.Snapshot()
	s := snap.Stages[0]
	if s.Samples != 2 {
		t.Fatalf("Samples = %d, want 2", s.Samples)
	}
	if s.P50MS != 16 {
		t.Fatalf("P50MS = %.2f, want 16", s.P50MS)
	}
	if s.LastMS != 30 {
		t.Fatalf("LastMS = %.2f, want 30", s.LastMS)
	}
}
