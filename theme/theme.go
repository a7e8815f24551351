package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Theme pairs a palette with the glyphs used to draw the grid
type Theme struct {
	Palette *Palette
	Symbols Symbols
}

// Symbols are the glyphs of the drum grid
type Symbols struct {
	Solid rune // row sounds on the lit step
	Empty rune // row is silent on the lit step

	StepEmpty    rune
	StepActive   rune
	StepPlayhead rune // lit step without a hit
	StepHit      rune // lit step with a hit
	StepBroken   rune // row whose sample cannot play

	CursorEmpty    rune
	CursorActive   rune
	CursorPlayhead rune
}

// New builds a theme; a nil palette uses Plasma
func New(palette *Palette) *Theme {
	if palette == nil {
		palette = Plasma()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			Solid:          '■',
			Empty:          '□',
			StepEmpty:      '·',
			StepActive:     '●',
			StepPlayhead:   '▶',
			StepHit:        '◆',
			StepBroken:     'x',
			CursorEmpty:    '○',
			CursorActive:   '◉',
			CursorPlayhead: '▷',
		},
	}
}

// Role is a position on the palette, 0 (darkest) to 1 (brightest)
type Role float64

const (
	RoleBG      Role = 0.0
	RoleMuted   Role = 0.2
	RoleFG      Role = 0.4
	RoleAccent  Role = 0.5
	RoleCursor  Role = 0.6
	RoleActive  Role = 0.7
	RoleWarning Role = 0.8
	RoleSuccess Role = 1.0
)

// RGB returns the raw color of a role, for pads and meters
func (t *Theme) RGB(r Role) RGB {
	return t.Palette.Lookup(float64(r))
}

// Color returns the lipgloss color of a role
func (t *Theme) Color(r Role) lipgloss.Color {
	c := t.RGB(r)
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}

// Style is a plain style with the role as foreground
func (t *Theme) Style(r Role) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Color(r))
}
