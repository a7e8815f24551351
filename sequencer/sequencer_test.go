package sequencer

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestNewRequiresSamples(t *testing.T) {
	_, err := New(newFakeEngine(nil), &fakeScheduler{}, nil, DefaultOptions())
	if !errors.Is(err, ErrNoSamples) {
		t.Errorf("Expected ErrNoSamples, got %v", err)
	}
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	_, err := New(newFakeEngine(nil), &fakeScheduler{}, testSamples("kick", "kick"), DefaultOptions())
	if err == nil {
		t.Error("Expected error for duplicate ids")
	}
}

func TestNewGridShape(t *testing.T) {
	opts := testOptions()
	opts.Steps = 32
	seq, _, _, _ := newTestSequencer(t, opts, "kick", "snare", "hat")
	if seq.Rows() != 3 || seq.Steps() != 32 {
		t.Errorf("Expected 3x32, got %dx%d", seq.Rows(), seq.Steps())
	}
	for row, v := range seq.Voices() {
		if v.Row() != row {
			t.Errorf("voice %s: expected row %d, got %d", v.ID(), row, v.Row())
		}
	}
	if seq.VoiceByID("snare") != seq.Voice(1) {
		t.Error("Expected id lookup to match row order")
	}
}

func TestToggleCellTwiceRestores(t *testing.T) {
	seq, _, _, rec := newTestSequencer(t, testOptions(), "kick")
	if !seq.ToggleCell(0, 3) {
		t.Fatal("Expected cell on after first toggle")
	}
	if seq.ToggleCell(0, 3) {
		t.Fatal("Expected cell off after second toggle")
	}
	if seq.Grid().Active(0, 3) {
		t.Error("Expected grid cell off")
	}
	want := []cellEcho{{0, 3, true}, {0, 3, false}}
	if len(rec.cells) != 2 || rec.cells[0] != want[0] || rec.cells[1] != want[1] {
		t.Errorf("Unexpected echoes %v", rec.cells)
	}
}

func TestToggleCellOutOfRange(t *testing.T) {
	seq, _, _, rec := newTestSequencer(t, testOptions(), "kick")
	seq.ToggleCell(5, 0)
	seq.ToggleCell(0, 16)
	seq.ToggleCell(-1, -1)
	if len(rec.cells) != 0 {
		t.Errorf("Expected no echoes, got %v", rec.cells)
	}
}

func TestToggleCellAuditions(t *testing.T) {
	opts := testOptions()
	opts.AuditionOnToggle = true
	seq, _, eng, _ := newTestSequencer(t, opts, "kick")

	seq.ToggleCell(0, 0)
	if len(eng.plays) != 1 {
		t.Fatalf("Expected audition on toggle-on, got %d plays", len(eng.plays))
	}
	seq.ToggleCell(0, 0)
	if len(eng.plays) != 1 {
		t.Errorf("Expected no audition on toggle-off, got %d plays", len(eng.plays))
	}
}

func TestSetCellEchoesOnlyChanges(t *testing.T) {
	seq, _, _, rec := newTestSequencer(t, testOptions(), "kick")
	seq.SetCell(0, 1, true)
	seq.SetCell(0, 1, true)
	seq.SetCell(0, 1, false)
	if len(rec.cells) != 2 {
		t.Errorf("Expected 2 echoes, got %v", rec.cells)
	}
}

func TestVolumeComposition(t *testing.T) {
	seq, _, eng, rec := newTestSequencer(t, testOptions(), "kick", "hat")

	seq.SetVoiceVolume(0, 0.5)
	seq.SetMasterVolume(80)
	if got := eng.volumes[0]; math.Abs(got-0.4) > 1e-9 {
		t.Errorf("Expected 0.4, got %v", got)
	}
	// master applies to voices that were never touched
	if got := eng.volumes[1]; math.Abs(got-0.8) > 1e-9 {
		t.Errorf("Expected 0.8, got %v", got)
	}

	// the other order gives the same result
	seq.SetMasterVolume(50)
	seq.SetVoiceVolume(0, 0.9)
	if got := eng.volumes[0]; math.Abs(got-0.45) > 1e-9 {
		t.Errorf("Expected 0.45, got %v", got)
	}

	last := rec.params[len(rec.params)-1]
	if last != (paramEcho{0, ParamVolume, 0.9}) {
		t.Errorf("Unexpected echo %+v", last)
	}
	if info := rec.transports[len(rec.transports)-1]; info.MasterVolume != 50 {
		t.Errorf("Expected master 50 echoed, got %d", info.MasterVolume)
	}
}

func TestParamClamping(t *testing.T) {
	seq, _, _, rec := newTestSequencer(t, testOptions(), "kick")
	seq.SetVoiceVolume(0, 5)
	seq.SetVoiceTiming(0, -3)
	seq.SetVoicePitch(0, 40)
	seq.SetBPM(1000)
	seq.SetMasterVolume(-10)

	want := []paramEcho{
		{0, ParamVolume, MaxVoiceVolume},
		{0, ParamTiming, 0},
		{0, ParamPitch, MaxPitch},
	}
	for i, w := range want {
		if rec.params[i] != w {
			t.Errorf("echo %d: expected %+v, got %+v", i, w, rec.params[i])
		}
	}
	info := seq.Transport().Info()
	if info.BPM != MaxBPM || info.MasterVolume != 0 {
		t.Errorf("Unexpected transport %+v", info)
	}
}

func TestPitchReturnToZeroRestoresSource(t *testing.T) {
	seq, _, eng, _ := newTestSequencer(t, testOptions(), "kick")
	v := seq.Voice(0)
	src := v.Buffer()

	if err := seq.SetVoicePitch(0, 5); err != nil {
		t.Fatal(err)
	}
	if v.Buffer() == src {
		t.Fatal("Expected a resampled buffer")
	}
	if v.Buffer().Frames() != 375 {
		t.Errorf("Expected 375 frames, got %d", v.Buffer().Frames())
	}
	if err := seq.SetVoicePitch(0, 0); err != nil {
		t.Fatal(err)
	}
	if v.Buffer() != src {
		t.Error("Expected the original buffer at pitch 0")
	}

	seq.SetVoicePitch(0, 5)
	seq.SetVoicePitch(0, 5)
	if eng.resamples != 1 {
		t.Errorf("Expected 1 resample for repeated pitch, got %d", eng.resamples)
	}
}

func TestPitchFailureIsVoiceLocal(t *testing.T) {
	seq, sched, eng, _ := newTestSequencer(t, testOptions(), "kick", "hat")
	eng.failResample = true

	err := seq.SetVoicePitch(0, 3)
	if !errors.Is(err, ErrUnplayable) {
		t.Fatalf("Expected ErrUnplayable, got %v", err)
	}
	if seq.Voice(0).Playable() {
		t.Error("Expected voice 0 unplayable")
	}

	seq.SetCell(0, 2, true)
	seq.SetCell(1, 2, true)
	seq.Start()
	sched.Advance(200 * time.Millisecond)
	if n := len(eng.playsFor(0)); n != 0 {
		t.Errorf("Expected broken voice silent, got %d plays", n)
	}
	if n := len(eng.playsFor(1)); n != 1 {
		t.Errorf("Expected healthy voice to play once, got %d", n)
	}

	// a later successful pitch change brings the voice back
	eng.failResample = false
	if err := seq.SetVoicePitch(0, 0); err != nil {
		t.Fatalf("Expected recovery at pitch 0, got %v", err)
	}
	if !seq.Voice(0).Playable() {
		t.Error("Expected voice 0 playable again")
	}
}

func TestBrokenSampleLoad(t *testing.T) {
	sched := &fakeScheduler{}
	eng := newFakeEngine(sched)
	eng.failLoad["snare.wav"] = true
	seq, err := New(eng, sched, testSamples("kick", "snare", "hat"), testOptions())
	if err != nil {
		t.Fatalf("Expected broken sample to be voice-local, got %v", err)
	}
	if seq.Voice(1).Playable() || !errors.Is(seq.Voice(1).Err(), ErrUnplayable) {
		t.Error("Expected snare unplayable")
	}

	seq.SetVoiceVolume(1, 0.1)
	seq.Audition(1)
	seq.Voice(1).Stop()
	if eng.volumes[0] != 1 {
		t.Errorf("Broken voice touched another channel: %v", eng.volumes)
	}
	if len(eng.plays) != 0 || len(eng.stops) != 0 {
		t.Error("Expected no engine calls for the broken voice")
	}
	if err := seq.SetVoicePitch(1, 2); !errors.Is(err, ErrUnplayable) {
		t.Errorf("Expected ErrUnplayable, got %v", err)
	}
}

func TestEnvelopeMemoized(t *testing.T) {
	seq, _, eng, _ := newTestSequencer(t, testOptions(), "kick")
	seq.Audition(0)
	seq.SetVoicePitch(0, -12) // twice as long
	seq.Audition(0)

	if len(eng.plays) != 2 {
		t.Fatalf("Expected 2 plays, got %d", len(eng.plays))
	}
	for i, p := range eng.plays {
		if p.maxDur != 500*time.Millisecond {
			t.Errorf("play %d: expected 500ms envelope, got %v", i, p.maxDur)
		}
	}
	if eng.plays[1].buf.Frames() != 1000 {
		t.Errorf("Expected pitched buffer, got %d frames", eng.plays[1].buf.Frames())
	}
}

func TestEnvelopeIgnoresPitchOfFirstPlay(t *testing.T) {
	seq, _, eng, _ := newTestSequencer(t, testOptions(), "kick")
	if err := seq.SetVoicePitch(0, 12); err != nil {
		t.Fatal(err)
	}
	seq.Audition(0)
	if err := seq.SetVoicePitch(0, 0); err != nil {
		t.Fatal(err)
	}
	seq.Audition(0)

	if len(eng.plays) != 2 {
		t.Fatalf("Expected 2 plays, got %d", len(eng.plays))
	}
	if eng.plays[0].buf.Frames() != 250 {
		t.Errorf("Expected octave-up buffer first, got %d frames", eng.plays[0].buf.Frames())
	}
	for i, p := range eng.plays {
		if p.maxDur != 500*time.Millisecond {
			t.Errorf("play %d: expected the source's 500ms envelope, got %v", i, p.maxDur)
		}
	}
	if eng.plays[1].buf.Duration() != 500*time.Millisecond {
		t.Errorf("Expected the unshifted buffer back, got %v", eng.plays[1].buf.Duration())
	}
}

func TestTriggerFadesPreviousHit(t *testing.T) {
	opts := testOptions()
	opts.RetriggerFade = 5 * time.Millisecond
	seq, _, eng, _ := newTestSequencer(t, opts, "kick")

	seq.Voice(0).Trigger()
	if len(eng.fadeouts) != 1 || len(eng.plays) != 1 {
		t.Errorf("Expected fadeout then play, got %d fadeouts %d plays", len(eng.fadeouts), len(eng.plays))
	}
}

func TestClearAllEchoesChangedCells(t *testing.T) {
	seq, _, _, rec := newTestSequencer(t, testOptions(), "kick", "hat")
	seq.SetCell(0, 0, true)
	seq.SetCell(1, 5, true)
	rec.cells = nil

	seq.ClearAll()
	if len(rec.cells) != 2 {
		t.Fatalf("Expected 2 echoes, got %v", rec.cells)
	}
	for _, c := range rec.cells {
		if c.active {
			t.Errorf("Expected cleared cell, got %+v", c)
		}
	}
	if seq.Grid().ActiveCount(0)+seq.Grid().ActiveCount(1) != 0 {
		t.Error("Expected empty grid")
	}
}

func TestRewind(t *testing.T) {
	seq, sched, _, rec := newTestSequencer(t, testOptions(), "kick")
	seq.Start()
	sched.Advance(500 * time.Millisecond)
	seq.Rewind()
	if rec.highlight != -1 {
		t.Errorf("Expected highlight cleared, got %d", rec.highlight)
	}
	sched.Advance(125 * time.Millisecond)
	if rec.highlight != 0 {
		t.Errorf("Expected step 0 after rewind, got %d", rec.highlight)
	}
}

func TestShiftPatternSlot(t *testing.T) {
	seq, _, _, rec := newTestSequencer(t, testOptions(), "kick")
	if got := seq.ShiftPatternSlot(-1); got != 1 {
		t.Errorf("Expected slot to stay at 1, got %d", got)
	}
	if got := seq.ShiftPatternSlot(2); got != 3 {
		t.Errorf("Expected slot 3, got %d", got)
	}
	if info := rec.transports[len(rec.transports)-1]; info.Slot != 3 {
		t.Errorf("Expected slot echo 3, got %d", info.Slot)
	}
}
