package sequencer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go-drum/debug"
)

// VoiceSnapshot is the saved state of one voice
type VoiceSnapshot struct {
	Pattern []bool  `json:"pattern"`
	Timing  float64 `json:"timing"`
	Volume  float64 `json:"volume"` // local fraction, 0-1.2
	Pitch   int     `json:"pitch"`
}

// Snapshot is the on-disk form of a pattern slot
type Snapshot struct {
	Sounds map[string]VoiceSnapshot `json:"sounds"`
	BPM    int                      `json:"bpm"`
	Volume *int                     `json:"volume"` // master, percent; nil keeps the current value
}

const snapshotBase = "drum"

// SnapshotPath returns the file of a slot: drum.json for slot 1, drum_N.json otherwise
func SnapshotPath(dir string, slot int) string {
	if slot <= 1 {
		return filepath.Join(dir, snapshotBase+".json")
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%d.json", snapshotBase, slot))
}

// WriteSnapshot writes snap as indented JSON, creating the directory
func WriteSnapshot(path string, snap *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create save dir: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadSnapshot reads a slot file. A missing file wraps fs.ErrNotExist.
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	snap := &Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return snap, nil
}

// Slots lists the slot numbers that have a file in dir, ascending
func Slots(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var slots []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, snapshotBase) || !strings.HasSuffix(name, ".json") {
			continue
		}
		rest := strings.TrimSuffix(strings.TrimPrefix(name, snapshotBase), ".json")
		if rest == "" {
			slots = append(slots, 1)
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(rest, "_"))
		if err != nil || !strings.HasPrefix(rest, "_") || n < 2 {
			continue
		}
		slots = append(slots, n)
	}
	sort.Ints(slots)
	return slots, nil
}

// Snapshot captures the pattern, voice parameters and transport
func (s *Sequencer) Snapshot() *Snapshot {
	master := s.transport.MasterVolume()
	snap := &Snapshot{
		Sounds: make(map[string]VoiceSnapshot, len(s.voices)),
		BPM:    s.transport.BPM(),
		Volume: &master,
	}
	for row, v := range s.voices {
		snap.Sounds[v.ID()] = VoiceSnapshot{
			Pattern: s.grid.Row(row),
			Timing:  v.Timing(),
			Volume:  v.Volume(),
			Pitch:   v.Pitch(),
		}
	}
	return snap
}

// Apply restores a snapshot: transport first (a zero bpm or missing volume
// keeps the current value), then per voice timing, volume,
// pitch and pattern. Ids the sequencer does not know are skipped and voices
// missing from the snapshot get an empty row. Pitch failures only affect
// their voice; they are joined into the returned error.
func (s *Sequencer) Apply(snap *Snapshot) error {
	if snap.BPM != 0 {
		s.transport.SetBPM(snap.BPM)
	}
	if snap.Volume != nil {
		s.transport.SetMasterVolume(*snap.Volume)
		for _, v := range s.voices {
			v.ApplyMaster()
		}
	}
	s.transportChanged()

	for id := range snap.Sounds {
		if _, ok := s.byID[id]; !ok {
			debug.Log("save", "skipping unknown sample %q", id)
		}
	}

	var errs []error
	steps := s.grid.Steps()
	for row, v := range s.voices {
		vs, ok := snap.Sounds[v.ID()]
		if ok {
			s.SetVoiceTiming(row, vs.Timing)
			s.SetVoiceVolume(row, vs.Volume)
			if err := s.SetVoicePitch(row, vs.Pitch); err != nil {
				errs = append(errs, err)
			}
		}
		for step := 0; step < steps; step++ {
			active := ok && step < len(vs.Pattern) && vs.Pattern[step]
			s.SetCell(row, step, active)
		}
	}
	return errors.Join(errs...)
}

func (s *Sequencer) slotPath(slot int) string {
	if slot <= 0 {
		slot = s.transport.Slot()
	}
	return SnapshotPath(s.opts.SaveDir, slot)
}

// Save writes the current state to a slot (0 = current slot)
func (s *Sequencer) Save(slot int) error {
	path := s.slotPath(slot)
	if err := WriteSnapshot(path, s.Snapshot()); err != nil {
		return err
	}
	debug.Log("save", "saved %s", path)
	return nil
}

// Load restores a slot (0 = current slot). Nothing changes if the file cannot
// be read or parsed.
func (s *Sequencer) Load(slot int) error {
	path := s.slotPath(slot)
	snap, err := ReadSnapshot(path)
	if err != nil {
		return err
	}
	debug.Log("save", "loading %s", path)
	return s.Apply(snap)
}
