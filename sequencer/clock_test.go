package sequencer

import (
	"math/rand/v2"
	"testing"
	"time"
)

func TestTransportInterval(t *testing.T) {
	tests := []struct {
		bpm  int
		want time.Duration
	}{
		{120, 125 * time.Millisecond},
		{60, 250 * time.Millisecond},
		{240, 62500 * time.Microsecond},
		{10, 375 * time.Millisecond}, // clamped to 40
	}
	for _, tt := range tests {
		tr := NewTransport(tt.bpm, 100)
		if got := tr.Interval(); got != tt.want {
			t.Errorf("bpm %d: expected %v, got %v", tt.bpm, tt.want, got)
		}
	}
	if ms := NewTransport(120, 100).IntervalMs(); ms != 125 {
		t.Errorf("Expected 125ms, got %v", ms)
	}
}

func TestTransportAdvanceWraps(t *testing.T) {
	tr := NewTransport(120, 100)
	if tr.CurrentStep() != -1 {
		t.Fatalf("Expected -1 before first tick, got %d", tr.CurrentStep())
	}
	for i := 0; i < 16; i++ {
		tr.Advance(16)
	}
	if tr.CurrentStep() != 15 {
		t.Errorf("Expected 15, got %d", tr.CurrentStep())
	}
	if tr.Advance(16) != 0 {
		t.Error("Expected wrap to 0")
	}
	tr.Rewind()
	if tr.Advance(16) != 0 {
		t.Error("Expected step 0 after rewind")
	}
}

func TestClockFirstTickIsStepZero(t *testing.T) {
	seq, sched, _, rec := newTestSequencer(t, testOptions(), "kick")
	seq.Start()
	sched.Advance(0)
	if len(rec.highlights) != 1 || rec.highlights[0] != [2]int{-1, 0} {
		t.Errorf("Expected highlight -1 -> 0, got %v", rec.highlights)
	}
}

func TestClockTwoRowScenario(t *testing.T) {
	seq, sched, eng, rec := newTestSequencer(t, testOptions(), "kick", "hat")
	for _, s := range []int{0, 4, 8, 12} {
		seq.SetCell(0, s, true)
	}
	seq.SetCell(1, 0, true)

	var highlightAtPlay []int
	eng.onPlay = func(playCall) { highlightAtPlay = append(highlightAtPlay, rec.highlight) }

	seq.Start()
	sched.Advance(2000 * time.Millisecond) // 16 ticks plus the triggers of the last one

	kicks := eng.playsFor(0)
	if len(kicks) != 4 {
		t.Fatalf("Expected 4 kick triggers, got %d", len(kicks))
	}
	hats := eng.playsFor(1)
	if len(hats) != 1 {
		t.Fatalf("Expected 1 hat trigger, got %d", len(hats))
	}

	// steps 4, 8, 12, 0 are triggered by the ticks lighting steps 2, 6, 10, 14
	// and sound one interval later
	want := []time.Duration{375, 875, 1375, 1875}
	for i, p := range kicks {
		if p.at != want[i]*time.Millisecond {
			t.Errorf("kick %d: expected at %v, got %v", i, want[i]*time.Millisecond, p.at)
		}
		if p.maxDur != 500*time.Millisecond || p.fadeIn != DefaultFadeIn {
			t.Errorf("kick %d: unexpected envelope fadeIn=%v max=%v", i, p.fadeIn, p.maxDur)
		}
	}
	if hats[0].at != 1875*time.Millisecond {
		t.Errorf("Expected hat at 1875ms, got %v", hats[0].at)
	}

	// each note sounds while the step before it is lit
	if len(highlightAtPlay) < 4 {
		t.Fatal("missing highlight samples")
	}
	for i, want := range []int{3, 7, 11, 15} {
		if highlightAtPlay[i] != want {
			t.Errorf("play %d: expected highlight %d, got %d", i, want, highlightAtPlay[i])
		}
	}

	if st := seq.Clock().Stats(); st.Ticks != 17 || st.Triggers != 5 {
		t.Errorf("Unexpected stats %+v", st)
	}
}

func TestClockStopCancelsPendingTriggers(t *testing.T) {
	seq, sched, eng, _ := newTestSequencer(t, testOptions(), "kick", "snare", "hat")
	for row := 0; row < 3; row++ {
		seq.SetCell(row, 2, true)
	}
	seq.Start()
	sched.Advance(0)

	if p := seq.Clock().Stats().Pending; p != 3 {
		t.Fatalf("Expected 3 pending triggers, got %d", p)
	}
	seq.Stop()
	if p := seq.Clock().Stats().Pending; p != 0 {
		t.Errorf("Expected no pending triggers after stop, got %d", p)
	}
	if sched.Live() != 0 {
		t.Errorf("Expected no live timers, got %d", sched.Live())
	}

	sched.Advance(time.Second)
	if len(eng.plays) != 0 {
		t.Errorf("Expected no triggers after stop, got %d", len(eng.plays))
	}
	if seq.Transport().Running() {
		t.Error("Expected transport stopped")
	}
}

func TestClockResumeKeepsStep(t *testing.T) {
	seq, sched, _, rec := newTestSequencer(t, testOptions(), "kick")
	seq.Start()
	sched.Advance(250 * time.Millisecond)
	if rec.highlight != 2 {
		t.Fatalf("Expected step 2, got %d", rec.highlight)
	}
	seq.ToggleRun()
	sched.Advance(time.Second)
	if rec.highlight != 2 {
		t.Fatalf("Expected clock to hold at 2, got %d", rec.highlight)
	}
	seq.ToggleRun()
	sched.Advance(0)
	if rec.highlight != 3 {
		t.Errorf("Expected resume at step 3, got %d", rec.highlight)
	}
}

func TestClockStartTwiceIsNoop(t *testing.T) {
	seq, sched, _, rec := newTestSequencer(t, testOptions(), "kick")
	seq.Start()
	seq.Start()
	sched.Advance(0)
	if len(rec.highlights) != 1 {
		t.Errorf("Expected a single tick chain, got %d ticks", len(rec.highlights))
	}
}

func TestClockBPMChangeAppliesNextReschedule(t *testing.T) {
	seq, sched, _, rec := newTestSequencer(t, testOptions(), "kick")
	seq.Start()
	sched.Advance(0)
	seq.SetBPM(60)

	// the tick at 125ms was scheduled before the change
	sched.Advance(125 * time.Millisecond)
	if rec.highlight != 1 {
		t.Fatalf("Expected step 1, got %d", rec.highlight)
	}
	sched.Advance(249 * time.Millisecond)
	if rec.highlight != 1 {
		t.Fatalf("Expected no tick before 250ms, got step %d", rec.highlight)
	}
	sched.Advance(time.Millisecond)
	if rec.highlight != 2 {
		t.Errorf("Expected step 2 after 250ms, got %d", rec.highlight)
	}
}

func TestClockLookaheadZero(t *testing.T) {
	opts := testOptions()
	opts.Lookahead = 0
	seq, sched, eng, _ := newTestSequencer(t, opts, "kick")
	seq.SetCell(0, 0, true)
	seq.Start()
	sched.Advance(125 * time.Millisecond)
	if len(eng.plays) != 1 || eng.plays[0].at != 125*time.Millisecond {
		t.Errorf("Expected step 0 to sound at 125ms, got %+v", eng.plays)
	}
}

func TestClockLookaheadOneSoundsOnItsColumn(t *testing.T) {
	opts := testOptions()
	opts.Lookahead = 1
	seq, sched, eng, rec := newTestSequencer(t, opts, "kick")
	seq.SetCell(0, 4, true)

	var highlightAtPlay []int
	eng.onPlay = func(playCall) { highlightAtPlay = append(highlightAtPlay, rec.highlight) }

	seq.Start()
	sched.Advance(600 * time.Millisecond)
	if len(eng.plays) != 1 || eng.plays[0].at != 500*time.Millisecond {
		t.Fatalf("Expected step 4 to sound at 500ms, got %+v", eng.plays)
	}
	if highlightAtPlay[0] != 4 {
		t.Errorf("Expected step 4 lit when it sounds, got %d", highlightAtPlay[0])
	}
}

func TestClockJitterNeverSchedulesInThePast(t *testing.T) {
	opts := testOptions()
	opts.JitterDivisor = 0.01
	opts.Rand = rand.New(rand.NewPCG(7, 7))
	seq, sched, _, _ := newTestSequencer(t, opts, "kick")
	for s := 0; s < seq.Steps(); s++ {
		seq.SetCell(0, s, true)
	}
	seq.SetVoiceTiming(0, 100)
	seq.Start()
	sched.Advance(time.Second)

	for i, d := range sched.requested {
		if d < 0 {
			t.Fatalf("request %d: negative delay %v", i, d)
		}
	}
	// 9 ticks, each scheduling the next tick and one trigger
	if len(sched.requested) < 18 {
		t.Errorf("Expected at least 18 scheduled callbacks, got %d", len(sched.requested))
	}
}

func TestClockNoJitterWithoutTiming(t *testing.T) {
	seq, sched, eng, _ := newTestSequencer(t, testOptions(), "kick")
	for s := 0; s < seq.Steps(); s++ {
		seq.SetCell(0, s, true)
	}
	seq.Start()
	sched.Advance(time.Second)
	for i, p := range eng.plays {
		if p.at%(125*time.Millisecond) != 0 {
			t.Errorf("play %d off the grid at %v", i, p.at)
		}
	}
}
