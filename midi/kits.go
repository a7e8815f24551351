package midi

import (
	"path/filepath"
	"strings"
)

// DrumKit maps 16 drum slots to MIDI notes
type DrumKit struct {
	Name  string
	Notes [16]uint8
}

// Drum slots shared by every kit
const (
	SlotKick = iota
	SlotSnare
	SlotClosedHH
	SlotOpenHH
	SlotLowTom
	SlotMidTom
	SlotHighTom
	SlotCrash
	SlotRide
	SlotClap
	SlotRimshot
	SlotCowbell
	SlotClave
	SlotMaracas
	SlotLowConga
	SlotHighConga
)

// Kits contains all available drum kit mappings
var Kits = map[string]DrumKit{
	"gm": {
		Name: "General MIDI",
		Notes: [16]uint8{
			36, 38, 42, 46, // kick, snare, closed hh, open hh
			41, 43, 45, // toms
			49, 51, // crash, ride
			39, 37, 56, 75, 70, // clap, rim, cowbell, clave, maracas
			64, 63, // congas
		},
	},
	"rd8": {
		Name: "Behringer RD-8",
		Notes: [16]uint8{
			36, 40, 42, 46, // RD-8 snare is 40, not 38
			45, 48, 50,
			49, 51,
			39, 37, 56, 75, 70,
			64, 63,
		},
	},
	"tr8s": {
		Name: "Roland TR-8S",
		Notes: [16]uint8{
			36, 38, 42, 46,
			41, 43, 45,
			49, 51,
			39, 37, 56, 75, 70,
			62, 63,
		},
	},
	"er1": {
		Name: "Korg ER-1",
		Notes: [16]uint8{
			36, 38, 42, 46, // perc synth 1/2, pcm hats
			40, 41, 43, // perc synth 3/4, audio in 1
			49, 45, // crash, audio in 2
			39, 37, 56, 75, 70, // clap, then unused placeholders
			64, 63,
		},
	},
}

// DefaultKit is the default kit name
const DefaultKit = "gm"

// KitNames returns the list of available kit names
func KitNames() []string {
	return []string{"gm", "rd8", "tr8s", "er1"}
}

// GetKit returns a kit by name, defaulting to GM if not found
func GetKit(name string) DrumKit {
	if kit, ok := Kits[name]; ok {
		return kit
	}
	return Kits[DefaultKit]
}

// slotWords is checked in order, so more specific words come first
var slotWords = []struct {
	words []string
	slot  int
}{
	{[]string{"openhat", "open_hat", "open-hat", "ohh", "oh"}, SlotOpenHH},
	{[]string{"hihat", "hi-hat", "hat", "hh", "ch"}, SlotClosedHH},
	{[]string{"kick", "bassdrum", "bd", "kck"}, SlotKick},
	{[]string{"snare", "sd", "snr"}, SlotSnare},
	{[]string{"clap", "cp"}, SlotClap},
	{[]string{"rim", "rs"}, SlotRimshot},
	{[]string{"lowtom", "low_tom", "lt", "floortom"}, SlotLowTom},
	{[]string{"hightom", "high_tom", "hitom", "ht"}, SlotHighTom},
	{[]string{"tom", "mt"}, SlotMidTom},
	{[]string{"crash", "cy"}, SlotCrash},
	{[]string{"ride", "rc"}, SlotRide},
	{[]string{"cowbell", "cow", "cb"}, SlotCowbell},
	{[]string{"clave", "cl"}, SlotClave},
	{[]string{"maraca", "shaker", "ma"}, SlotMaracas},
	{[]string{"hiconga", "highconga", "hc"}, SlotHighConga},
	{[]string{"conga", "lc"}, SlotLowConga},
}

// GuessSlot picks a drum slot from a sample name like "808_kick.wav".
// Two-letter abbreviations only match whole name tokens.
func GuessSlot(name string) (int, bool) {
	base := strings.ToLower(filepath.Base(name))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	tokens := strings.FieldsFunc(base, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.' || (r >= '0' && r <= '9')
	})
	joined := strings.Join(tokens, "")

	for _, sw := range slotWords {
		for _, w := range sw.words {
			if len(w) <= 2 {
				for _, tok := range tokens {
					if tok == w {
						return sw.slot, true
					}
				}
				continue
			}
			if strings.Contains(joined, strings.NewReplacer("_", "", "-", "").Replace(w)) {
				return sw.slot, true
			}
		}
	}
	return 0, false
}

// NoteFor returns the note a sample should send on kit. Unrecognised names
// fall back to the kit slot at index.
func NoteFor(name, kit string, index int) uint8 {
	k := GetKit(kit)
	if slot, ok := GuessSlot(name); ok {
		return k.Notes[slot]
	}
	return k.Notes[((index%16)+16)%16]
}
