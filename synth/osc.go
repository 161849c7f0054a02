// Package synth renders scores offline: oscillators, ADSR envelopes,
// sample placement and a mono WAV codec. The bundled dev service uses
// it to answer render requests.
package synth

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"gridseq/score"
)

const a4 = 440.0

var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var flatToSharp = map[string]string{
	"DB": "C#", "EB": "D#", "GB": "F#", "AB": "G#", "BB": "A#",
}

var noteRe = regexp.MustCompile(`^([A-Ga-g])([#B]?)(-?\d+)$`)

// NoteFreq converts a pitch name like "C4" or "Eb3" to a frequency in
// Hz, equal temperament around A4 = 440.
func NoteFreq(note string) (float64, error) {
	n := strings.ToUpper(strings.TrimSpace(note))
	m := noteRe.FindStringSubmatch(n)
	if m == nil {
		return 0, fmt.Errorf("bad note format: %s", note)
	}
	name := m[1] + m[2]
	if sharp, ok := flatToSharp[name]; ok {
		name = sharp
	}
	octave, err := strconv.Atoi(m[3])
	if err != nil {
		return 0, fmt.Errorf("bad note format: %s", note)
	}
	idx := -1
	for i, nn := range noteNames {
		if nn == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, fmt.Errorf("bad note format: %s", note)
	}
	semi := idx - 9 + (octave-4)*12 // 9 = index of A
	return a4 * math.Pow(2, float64(semi)/12), nil
}

// ParseNote resolves a wire pitch label: either a note name or a raw
// frequency number.
func ParseNote(label string) (float64, error) {
	if f, err := strconv.ParseFloat(label, 64); err == nil {
		return f, nil
	}
	return NoteFreq(label)
}

// Oscillate produces n samples of the given waveform at freq.
func Oscillate(w score.Waveform, freq float64, n, sampleRate int) []float32 {
	out := make([]float32, n)
	if freq <= 0 {
		return out
	}
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		phase := 2 * math.Pi * freq * t
		var v float64
		switch w {
		case score.WaveSquare:
			if math.Sin(phase) >= 0 {
				v = 1
			} else {
				v = -1
			}
		case score.WaveTriangle:
			v = 2 / math.Pi * math.Asin(math.Sin(phase))
		case score.WaveSaw:
			// Band-limited-ish additive saw, 14 partials.
			for k := 1; k < 15; k++ {
				v += math.Sin(2*math.Pi*float64(k)*freq*t) / float64(k)
			}
			v *= 2 / math.Pi
		default:
			v = math.Sin(phase)
		}
		out[i] = float32(v)
	}
	return out
}

// Envelope produces an n sample ADSR curve. Segment lengths are in
// seconds; the sustain level holds whatever time remains.
func Envelope(n, sampleRate int, attack, decay, sustain, release float64) []float32 {
	env := make([]float32, n)
	for i := range env {
		env[i] = 1
	}
	a := int(attack * float64(sampleRate))
	d := int(decay * float64(sampleRate))
	r := int(release * float64(sampleRate))
	s := n - (a + d + r)
	if s < 0 {
		s = 0
	}

	pos := 0
	for i := 0; i < a && pos < n; i, pos = i+1, pos+1 {
		env[pos] = float32(float64(i) / float64(a))
	}
	for i := 0; i < d && pos < n; i, pos = i+1, pos+1 {
		env[pos] = float32(1 + (sustain-1)*float64(i)/float64(d))
	}
	for i := 0; i < s && pos < n; i, pos = i+1, pos+1 {
		env[pos] = float32(sustain)
	}
	for i := 0; i < r && pos < n; i, pos = i+1, pos+1 {
		if r == 1 {
			env[pos] = float32(sustain)
			continue
		}
		env[pos] = float32(sustain * float64(r-1-i) / float64(r-1))
	}
	return env
}
