package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"go-drum/audio"
	"go-drum/config"
	"go-drum/debug"
	"go-drum/midi"
	"go-drum/sequencer"
	"go-drum/theme"
	"go-drum/tui"
)

func main() {
	defaultConfig, _ := config.ConfigPath()
	configPath := flag.String("config", defaultConfig, "sample list and settings (YAML)")
	debugLog := flag.Bool("debug", false, "write a debug log to "+debug.DefaultPath())
	midiPort := flag.String("midi", "", "mirror triggers to this MIDI output port")
	flag.Parse()

	if err := run(*configPath, *debugLog, *midiPort); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, debugLog bool, midiPort string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, config.ErrNoSamples) {
			return fmt.Errorf("%s: add at least one entry under sounds", configPath)
		}
		return err
	}
	if midiPort != "" {
		cfg.MIDIOut.Port = midiPort
	}
	if debugLog || cfg.Debug {
		if err := debug.Enable(""); err != nil {
			fmt.Fprintf(os.Stderr, "debug log: %v\n", err)
		}
		defer debug.Disable()
	}
	defer midi.CloseDriver()

	palette, err := theme.LoadOrDefault(cfg.Palette)
	if err != nil {
		debug.Log("theme", "%v, using plasma", err)
	}
	th := theme.New(palette)

	mixer := audio.NewMixer(0, 0)
	out, err := audio.NewOutput(mixer)
	if err != nil {
		if cfg.MIDIOut.Port == "" {
			return err
		}
		debug.Log("audio", "%v, continuing with MIDI only", err)
	} else {
		defer out.Close()
	}

	var engine audio.Engine = mixer
	var drumOut *midi.DrumOut
	if cfg.MIDIOut.Port != "" {
		notes := make(map[string]uint8)
		for _, s := range cfg.Sounds {
			if s.Note > 0 {
				notes[s.Path] = s.Note
			}
		}
		drumOut = midi.NewDrumOut(mixer, midi.DrumOutOptions{
			Port:    cfg.MIDIOut.Port,
			Channel: cfg.MIDIOut.Channel,
			Kit:     cfg.MIDIOut.Kit,
			Notes:   notes,
		})
		engine = drumOut
		go drumOut.Connect()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := sequencer.NewLoop()
	go loop.Run(ctx)

	samples := make([]sequencer.Sample, len(cfg.Sounds))
	for i, s := range cfg.Sounds {
		samples[i] = sequencer.Sample{ID: s.ID, Path: s.Path}
	}
	opts := sequencer.DefaultOptions()
	opts.Steps = cfg.Steps
	opts.BPM = cfg.BPM
	opts.MasterVolume = cfg.Volume()
	opts.Lookahead = cfg.LookaheadSteps()
	opts.JitterDivisor = cfg.JitterDivisor
	opts.FadeIn = time.Duration(cfg.FadeInMs) * time.Millisecond
	opts.RetriggerFade = time.Duration(cfg.RetriggerFadeMs) * time.Millisecond
	opts.AuditionOnToggle = cfg.AuditionEnabled()
	opts.SaveDir = cfg.SaveDir

	var (
		seq   *sequencer.Sequencer
		state *tui.State
	)
	loop.Call(func() {
		seq, err = sequencer.New(engine, loop, samples, opts)
		if err != nil {
			return
		}
		state = tui.NewState(seq)
		seq.SetListener(state)
	})
	if err != nil {
		return err
	}

	if cfg.PrewarmEnabled() {
		go func() {
			start := time.Now()
			if err := seq.Prewarm(ctx); err != nil {
				debug.Log("resample", "prewarm: %v", err)
				return
			}
			debug.Log("resample", "prewarm done in %v: %+v", time.Since(start), seq.Cache().Stats())
		}()
	}

	if cfg.MIDIIn.Port != "" {
		pads, err := midi.OpenPadInput(cfg.MIDIIn.Port)
		if err != nil {
			state.SetStatus(fmt.Sprintf("midi in: %v", err))
		} else {
			defer pads.Close()
			rows := padRows(cfg, seq, drumOut)
			go func() {
				for ev := range pads.Notes() {
					if row, ok := rows[ev.Note]; ok {
						loop.Post(func() { seq.Audition(row) })
					}
				}
			}()
		}
	}

	m := tui.NewModel(loop, seq, state, th)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}

	loop.Call(func() {
		seq.Stop()
		seq.StopVoices()
	})
	cancel()
	<-loop.Done()
	return nil
}

// padRows maps incoming notes to rows using the same notes the mirror sends
func padRows(cfg *config.Config, seq *sequencer.Sequencer, drumOut *midi.DrumOut) map[uint8]int {
	rows := make(map[uint8]int)
	for i, s := range cfg.Sounds {
		note := s.Note
		if drumOut != nil {
			if v := seq.Voice(i); v != nil && v.Playable() {
				note, _ = drumOut.Note(v.Handle())
			}
		}
		if note == 0 {
			note = midi.NoteFor(filepath.Base(s.Path), cfg.MIDIOut.Kit, i)
		}
		if _, taken := rows[note]; !taken {
			rows[note] = i
		}
	}
	return rows
}
