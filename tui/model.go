package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"go-drum/sequencer"
	"go-drum/theme"
	"go-drum/widgets"
)

// Step sizes for the parameter keys
const (
	bpmStep    = 5
	masterStep = 5
	volumeStep = 0.05
	timingStep = 5
)

// Model is the terminal front end. It never touches the sequencer directly:
// every key posts a closure to the loop, and the view draws from State.
type Model struct {
	Loop  *sequencer.Loop
	Seq   *sequencer.Sequencer
	State *State
	Theme *theme.Theme

	row      int
	step     int
	showHelp bool
	quitting bool
}

type UpdateMsg struct{}

func NewModel(loop *sequencer.Loop, seq *sequencer.Sequencer, state *State, th *theme.Theme) Model {
	if th == nil {
		th = theme.New(nil)
	}
	return Model{Loop: loop, Seq: seq, State: state, Theme: th}
}

func ListenForUpdates(state *State) tea.Cmd {
	return func() tea.Msg {
		<-state.UpdateChan
		return UpdateMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return ListenForUpdates(m.State)
}

// post runs fn on the loop; the sequencer is only safe to touch there
func (m Model) post(fn func(seq *sequencer.Sequencer)) {
	seq := m.Seq
	m.Loop.Post(func() { fn(seq) })
}

func (m Model) refreshBroken(seq *sequencer.Sequencer) {
	for _, v := range seq.Voices() {
		m.State.SetBroken(v.Row(), !v.Playable())
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case UpdateMsg:
		return m, ListenForUpdates(m.State)
	}
	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	rows, steps := m.Seq.Rows(), m.Seq.Steps()
	row, step := m.row, m.step

	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		m.Loop.Call(func() {
			m.Seq.Stop()
			m.Seq.StopVoices()
		})
		return m, tea.Quit

	case "h", "left":
		m.step = (m.step - 1 + steps) % steps
	case "l", "right":
		m.step = (m.step + 1) % steps
	case "k", "up":
		m.row = (m.row - 1 + rows) % rows
	case "j", "down":
		m.row = (m.row + 1) % rows

	case " ", "enter":
		m.post(func(seq *sequencer.Sequencer) { seq.ToggleCell(row, step) })
	case "a":
		m.post(func(seq *sequencer.Sequencer) { seq.Audition(row) })

	case "p":
		m.post(func(seq *sequencer.Sequencer) { seq.ToggleRun() })
	case "r":
		m.post(func(seq *sequencer.Sequencer) { seq.Rewind() })

	case "+", "=":
		m.post(func(seq *sequencer.Sequencer) { seq.SetBPM(seq.Transport().BPM() + bpmStep) })
	case "-", "_":
		m.post(func(seq *sequencer.Sequencer) { seq.SetBPM(seq.Transport().BPM() - bpmStep) })
	case "]":
		m.post(func(seq *sequencer.Sequencer) { seq.SetMasterVolume(seq.Transport().MasterVolume() + masterStep) })
	case "[":
		m.post(func(seq *sequencer.Sequencer) { seq.SetMasterVolume(seq.Transport().MasterVolume() - masterStep) })

	case "v":
		m.post(func(seq *sequencer.Sequencer) { seq.SetVoiceVolume(row, seq.Voice(row).Volume()+volumeStep) })
	case "V":
		m.post(func(seq *sequencer.Sequencer) { seq.SetVoiceVolume(row, seq.Voice(row).Volume()-volumeStep) })
	case ".":
		m.post(func(seq *sequencer.Sequencer) { m.shiftPitch(seq, row, 1) })
	case ",":
		m.post(func(seq *sequencer.Sequencer) { m.shiftPitch(seq, row, -1) })
	case "u":
		m.post(func(seq *sequencer.Sequencer) { seq.SetVoiceTiming(row, seq.Voice(row).Timing()+timingStep) })
	case "U":
		m.post(func(seq *sequencer.Sequencer) { seq.SetVoiceTiming(row, seq.Voice(row).Timing()-timingStep) })

	case "s":
		m.post(func(seq *sequencer.Sequencer) {
			slot := seq.Transport().Slot()
			if err := seq.Save(0); err != nil {
				m.State.SetStatus(fmt.Sprintf("save slot %d: %v", slot, err))
				return
			}
			m.State.SetStatus(fmt.Sprintf("saved slot %d", slot))
		})
	case "o":
		m.post(func(seq *sequencer.Sequencer) {
			slot := seq.Transport().Slot()
			err := seq.Load(0)
			m.refreshBroken(seq)
			if err != nil {
				m.State.SetStatus(fmt.Sprintf("load slot %d: %v", slot, err))
				return
			}
			m.State.SetStatus(fmt.Sprintf("loaded slot %d", slot))
		})
	case ">":
		m.post(func(seq *sequencer.Sequencer) { seq.ShiftPatternSlot(1) })
	case "<":
		m.post(func(seq *sequencer.Sequencer) { seq.ShiftPatternSlot(-1) })

	case "c":
		m.post(func(seq *sequencer.Sequencer) { seq.ClearAll() })

	case "?":
		m.showHelp = !m.showHelp
	}
	return m, nil
}

func (m Model) shiftPitch(seq *sequencer.Sequencer, row, delta int) {
	v := seq.Voice(row)
	err := seq.SetVoicePitch(row, v.Pitch()+delta)
	m.State.SetBroken(row, !v.Playable())
	if err != nil {
		m.State.SetStatus(fmt.Sprintf("%s: %v", v.ID(), err))
	}
}

// Cell picks the symbol and color for one grid position
func (m Model) Cell(active, cursor, lit bool) (rune, [3]uint8) {
	sym := m.Theme.Symbols
	switch {
	case cursor && lit:
		return sym.CursorPlayhead, m.Theme.RGB(theme.RoleCursor)
	case cursor && active:
		return sym.CursorActive, m.Theme.RGB(theme.RoleCursor)
	case cursor:
		return sym.CursorEmpty, m.Theme.RGB(theme.RoleCursor)
	case lit && active:
		return sym.StepHit, m.Theme.RGB(theme.RoleSuccess)
	case lit:
		return sym.StepPlayhead, m.Theme.RGB(theme.RoleAccent)
	case active:
		return sym.StepActive, m.Theme.RGB(theme.RoleActive)
	}
	return sym.StepEmpty, m.Theme.RGB(theme.RoleMuted)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	f := m.State.Frame()

	headerStyle := m.Theme.Style(theme.RoleAccent).Bold(true)
	dimStyle := m.Theme.Style(theme.RoleMuted)
	warnStyle := m.Theme.Style(theme.RoleWarning)
	nameStyle := m.Theme.Style(theme.RoleFG)

	playState := "STOP"
	if f.Transport.Running {
		playState = "PLAY"
	}
	step := "--"
	if f.Highlight >= 0 {
		step = fmt.Sprintf("%02d", f.Highlight+1)
	}
	header := headerStyle.Render(fmt.Sprintf("go-drum  %s  %3dbpm  vol:%3d  slot:%d  step:%s",
		playState, f.Transport.BPM, f.Transport.MasterVolume, f.Transport.Slot, step))

	nameWidth := 4
	for _, r := range f.Rows {
		nameWidth = max(nameWidth, len(r.ID))
	}
	nameWidth = min(nameWidth, 16)

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")

	for i, r := range f.Rows {
		marker := " "
		if i == m.row {
			marker = ">"
		}
		name := r.ID
		if len(name) > nameWidth {
			name = name[:nameWidth]
		}
		out.WriteString(marker + " ")
		if r.Broken {
			out.WriteString(warnStyle.Render(fmt.Sprintf("%-*s", nameWidth, name)))
			out.WriteString(" " + widgets.RenderPad(m.Theme.RGB(theme.RoleWarning), m.Theme.Symbols.StepBroken))
		} else {
			out.WriteString(nameStyle.Render(fmt.Sprintf("%-*s", nameWidth, name)))
			hit := f.Highlight >= 0 && f.Highlight < len(r.Cells) && r.Cells[f.Highlight]
			if hit && f.Transport.Running {
				out.WriteString(" " + widgets.RenderPad(m.Theme.RGB(theme.RoleSuccess), m.Theme.Symbols.Solid))
			} else {
				out.WriteString(" " + widgets.RenderPad(m.Theme.RGB(theme.RoleMuted), m.Theme.Symbols.Empty))
			}
		}
		out.WriteString("  ")

		for s, active := range r.Cells {
			if s > 0 && s%sequencer.StepsPerBeat == 0 {
				out.WriteString(" ")
			}
			sym, color := m.Cell(active, i == m.row && s == m.step, s == f.Highlight)
			out.WriteString(widgets.RenderPad(color, sym))
		}

		out.WriteString("  ")
		out.WriteString(widgets.RenderMeter(r.Volume, sequencer.MaxVoiceVolume, 6, m.Theme.RGB(theme.RoleActive)))
		out.WriteString(dimStyle.Render(fmt.Sprintf(" %4.2f  %+3dst  t%3.0f", r.Volume, r.Pitch, r.Timing)))
		out.WriteString("\n")
	}

	if f.Status != "" {
		out.WriteString("\n")
		out.WriteString(warnStyle.Render(f.Status))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	if m.showHelp {
		out.WriteString(dimStyle.Render(widgets.RenderKeyHelp(keyHelp)))
	} else {
		out.WriteString(dimStyle.Render("hjkl:nav  space:toggle  a:audition  p:play  r:rewind  +/-:tempo  s/o:save/load  ?:help  q:quit"))
	}
	return out.String()
}

var keyHelp = []widgets.KeySection{
	{Title: "Grid", Keys: []widgets.KeyBinding{
		{Key: "hjkl/arrows", Desc: "move cursor"},
		{Key: "space", Desc: "toggle step"},
		{Key: "a", Desc: "audition row"},
		{Key: "c", Desc: "clear all steps"},
	}},
	{Title: "Transport", Keys: []widgets.KeyBinding{
		{Key: "p", Desc: "play / stop"},
		{Key: "r", Desc: "rewind"},
		{Key: "+ / -", Desc: "tempo"},
		{Key: "] / [", Desc: "master volume"},
	}},
	{Title: "Voice", Keys: []widgets.KeyBinding{
		{Key: "v / V", Desc: "volume"},
		{Key: ". / ,", Desc: "pitch"},
		{Key: "u / U", Desc: "timing"},
	}},
	{Title: "Patterns", Keys: []widgets.KeyBinding{
		{Key: "s / o", Desc: "save / load slot"},
		{Key: "> / <", Desc: "next / previous slot"},
		{Key: "q", Desc: "quit"},
	}},
}
