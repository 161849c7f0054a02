// Package midi echoes committed notes to a MIDI output so edits are
// audible without a round trip to the compute service.
package midi

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// Preview sends short note on/off pairs on a configured out port.
type Preview struct {
	send    func(gomidi.Message) error
	channel uint8
}

// OpenPreview connects to the named output port. An empty name means
// previews are disabled and a nil Preview is returned; nil receivers
// are safe to call.
func OpenPreview(portName string) (*Preview, error) {
	if portName == "" {
		return nil, nil
	}
	out, err := gomidi.FindOutPort(portName)
	if err != nil {
		return nil, fmt.Errorf("preview port %q not found: %w", portName, err)
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("cannot open preview port: %w", err)
	}
	return &Preview{send: send, channel: 0}, nil
}

// PlayNote sounds a pitch for the given duration. The note off is sent
// from a timer goroutine; overlapping previews of the same pitch just
// retrigger.
func (p *Preview) PlayNote(pitch string, dur time.Duration) {
	if p == nil {
		return
	}
	num, ok := NoteNumber(pitch)
	if !ok {
		return
	}
	if p.send(gomidi.NoteOn(p.channel, num, 100)) != nil {
		return
	}
	time.AfterFunc(dur, func() {
		p.send(gomidi.NoteOff(p.channel, num))
	})
}

// Close silences everything.
func (p *Preview) Close() {
	if p == nil {
		return
	}
	for n := 0; n < 128; n++ {
		p.send(gomidi.NoteOff(p.channel, uint8(n)))
	}
	gomidi.CloseDriver()
}

var semitones = map[string]int{
	"C": 0, "C#": 1, "D": 2, "D#": 3, "E": 4, "F": 5,
	"F#": 6, "G": 7, "G#": 8, "A": 9, "A#": 10, "B": 11,
}

// NoteNumber converts a lane pitch name like "C4" to a MIDI note
// number (C4 = 60).
func NoteNumber(pitch string) (uint8, bool) {
	i := strings.IndexAny(pitch, "-0123456789")
	if i <= 0 {
		return 0, false
	}
	semi, ok := semitones[pitch[:i]]
	if !ok {
		return 0, false
	}
	oct, err := strconv.Atoi(pitch[i:])
	if err != nil {
		return 0, false
	}
	n := (oct+1)*12 + semi
	if n < 0 || n > 127 {
		return 0, false
	}
	return uint8(n), true
}
