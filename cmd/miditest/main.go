package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-drum/midi"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	defer midi.CloseDriver()

	switch os.Args[1] {
	case "list":
		listPorts()
	case "kit":
		if len(os.Args) < 3 {
			usage()
			return
		}
		kit := midi.DefaultKit
		if len(os.Args) > 3 {
			kit = os.Args[3]
		}
		playKit(os.Args[2], kit)
	case "listen":
		if len(os.Args) < 3 {
			usage()
			return
		}
		listen(os.Args[2])
	case "guess":
		kit := midi.DefaultKit
		for i, name := range os.Args[2:] {
			slot, ok := midi.GuessSlot(name)
			note := midi.NoteFor(name, kit, i)
			if ok {
				fmt.Printf("%-30s slot %2d  note %d\n", name, slot, note)
			} else {
				fmt.Printf("%-30s (index)  note %d\n", name, note)
			}
		}
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                - List all MIDI ports")
	fmt.Println("  kit <port> [kit]    - Play every slot of a drum kit (" + fmt.Sprint(midi.KitNames()) + ")")
	fmt.Println("  listen <port>       - Print pad note-ons")
	fmt.Println("  guess <files...>    - Show the note each sample would send")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	ins, err := midi.InPorts(midi.ScanTimeout)
	if err != nil {
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
		return
	}
	for i, p := range ins {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
	outs, err := midi.OutPorts(midi.ScanTimeout)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, p := range outs {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
}

func playKit(port, kitName string) {
	out, err := midi.FindOutPort(port, midi.ScanTimeout)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		fmt.Printf("Error opening port: %v\n", err)
		return
	}

	kit := midi.GetKit(kitName)
	fmt.Printf("Playing %s on %s (channel 10)\n", kit.Name, out.String())
	for slot, note := range kit.Notes {
		fmt.Printf("  slot %2d: note %d\n", slot, note)
		send(gomidi.NoteOn(9, note, 100))
		time.Sleep(250 * time.Millisecond)
		send(gomidi.NoteOff(9, note))
	}
}

func listen(port string) {
	pads, err := midi.OpenPadInput(port)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer pads.Close()

	fmt.Printf("Listening on %s, Ctrl+C to stop\n", pads.Name())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	for {
		select {
		case ev := <-pads.Notes():
			fmt.Printf("  ch %2d  note %3d  vel %3d\n", ev.Channel+1, ev.Note, ev.Velocity)
		case <-sig:
			return
		}
	}
}
