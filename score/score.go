package score

import "strings"

// Waveform selects the oscillator shape for a synth track.
type Waveform string

const (
	WaveSine     Waveform = "sine"
	WaveSquare   Waveform = "square"
	WaveSaw      Waveform = "saw"
	WaveTriangle Waveform = "triangle"
)

// Waveforms lists the selectable shapes in cycle order.
var Waveforms = []Waveform{WaveSine, WaveSquare, WaveSaw, WaveTriangle}

// TrackKind distinguishes synthesized tracks from sample-playback tracks.
type TrackKind int

const (
	KindSynth TrackKind = iota
	KindSample
)

// NoteEvent is a placed note or chord. Chord events carry multiple
// pitches and are edited as a whole. The interval is [Start, Start+Duration)
// in beats; both values are multiples of Quantum.
type NoteEvent struct {
	Pitches  []string `yaml:"pitches"`
	Start    float64  `yaml:"start"`
	Duration float64  `yaml:"duration"`
}

// Label encodes the pitches in wire form, chord members joined with "+".
func (e NoteEvent) Label() string {
	return strings.Join(e.Pitches, "+")
}

// ParseLabel splits a wire pitch label back into its chord members.
func ParseLabel(label string) []string {
	return strings.Split(label, "+")
}

// End returns the first beat after the event.
func (e NoteEvent) End() float64 {
	return e.Start + e.Duration
}

// HasPitch reports whether the event sounds the given pitch.
func (e NoteEvent) HasPitch(pitch string) bool {
	for _, p := range e.Pitches {
		if p == pitch {
			return true
		}
	}
	return false
}

// Covers reports whether the event is sounding at the given beat.
func (e NoteEvent) Covers(beat float64) bool {
	return beat >= e.Start && beat < e.End()
}

// SynthConfig holds the parameters controlling how a track's audio is
// produced. Sample-playback tracks share one config carrying only the
// sample rate and bpm; the envelope fields stay zero and are never
// serialized for it.
type SynthConfig struct {
	ID         string   `yaml:"id"`
	SampleRate int      `yaml:"sampleRate"`
	BPM        int      `yaml:"bpm"`
	Volume     float64  `yaml:"volume,omitempty"`
	Waveform   Waveform `yaml:"waveform,omitempty"`
	Attack     float64  `yaml:"attack,omitempty"`
	Decay      float64  `yaml:"decay,omitempty"`
	Sustain    float64  `yaml:"sustain,omitempty"`
	Release    float64  `yaml:"release,omitempty"`
}

// Defaults matching the stock patch of the render engine.
const (
	DefaultSampleRate = 44100
	DefaultTempo      = 120
	DefaultVolume     = 0.5
	DefaultAttack     = 0.01
	DefaultDecay      = 0.05
	DefaultSustain    = 0.8
	DefaultRelease    = 0.05
)

// Track is one row of the song: a name, a config reference, its placed
// events and a gain. Sample tracks additionally carry the resolved
// sample path (also recorded in Score.Samples under the track name).
type Track struct {
	Name       string      `yaml:"name"`
	ConfigID   string      `yaml:"configId"`
	Events     []NoteEvent `yaml:"events"`
	Gain       float64     `yaml:"gain"`
	Kind       TrackKind   `yaml:"kind"`
	SamplePath string      `yaml:"samplePath,omitempty"`
}

// Score is the complete song and the unit of synchronization with the
// compute service.
type Score struct {
	Tempo   int               `yaml:"tempo"`
	Tracks  []Track           `yaml:"tracks"`
	Configs []SynthConfig     `yaml:"configs"`
	Samples map[string]string `yaml:"samples,omitempty"`
}

// Config resolves a config id, or nil.
func (s *Score) Config(id string) *SynthConfig {
	for i := range s.Configs {
		if s.Configs[i].ID == id {
			return &s.Configs[i]
		}
	}
	return nil
}

// TrackByName returns the index of the named track, or -1.
func (s *Score) TrackByName(name string) int {
	for i := range s.Tracks {
		if s.Tracks[i].Name == name {
			return i
		}
	}
	return -1
}
