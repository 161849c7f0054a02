package synth

import (
	"fmt"

	"gridseq/score"
)

func trackLength(t score.Track, cfg score.SynthConfig) (samples int, spb float64) {
	spb = 60.0 / float64(cfg.BPM)
	var totalBeats float64
	for _, e := range t.Events {
		if e.End() > totalBeats {
			totalBeats = e.End()
		}
	}
	return int(totalBeats * spb * float64(cfg.SampleRate)), spb
}

func normalize(buf []float32, ceiling float32) {
	var mx float32
	for _, v := range buf {
		if v < 0 {
			v = -v
		}
		if v > mx {
			mx = v
		}
	}
	if mx > ceiling {
		for i := range buf {
			buf[i] /= mx
		}
	}
}

// RenderTrack renders one synth track into a mono buffer at the
// config's sample rate: each event sums its chord's oscillators,
// shaped by the config's envelope.
func RenderTrack(t score.Track, cfg score.SynthConfig) ([]float32, error) {
	n, spb := trackLength(t, cfg)
	buf := make([]float32, n)
	sr := cfg.SampleRate

	for _, e := range t.Events {
		en := int(e.Duration * spb * float64(sr))
		if en <= 0 {
			continue
		}
		mix := make([]float32, en)
		for _, pitch := range e.Pitches {
			freq, err := ParseNote(pitch)
			if err != nil {
				return nil, fmt.Errorf("track %q: %w", t.Name, err)
			}
			for i, v := range Oscillate(cfg.Waveform, freq, en, sr) {
				mix[i] += v
			}
		}
		if len(e.Pitches) > 1 {
			for i := range mix {
				mix[i] /= float32(len(e.Pitches))
			}
		}
		env := Envelope(en, sr, cfg.Attack, cfg.Decay, cfg.Sustain, cfg.Release)
		start := int(e.Start * spb * float64(sr))
		for i := 0; i < en && start+i < len(buf); i++ {
			buf[start+i] += mix[i] * env[i] * float32(t.Gain)
		}
	}

	normalize(buf, 0)
	for i := range buf {
		buf[i] *= float32(cfg.Volume)
	}
	return buf, nil
}

// RenderSampleTrack places the sample at each event start. The event's
// pitch and duration are ignored; the sample plays out whole (clipped
// at the track end).
func RenderSampleTrack(t score.Track, cfg score.SynthConfig, sample []float32) []float32 {
	n, spb := trackLength(t, cfg)
	buf := make([]float32, n)
	sr := cfg.SampleRate

	for _, e := range t.Events {
		start := int(e.Start * spb * float64(sr))
		for i := 0; i < len(sample) && start+i < len(buf); i++ {
			buf[start+i] += sample[i] * float32(t.Gain)
		}
	}

	normalize(buf, 0)
	vol := cfg.Volume
	if vol == 0 {
		vol = 1 // the shared sample config carries no volume field
	}
	for i := range buf {
		buf[i] *= float32(vol)
	}
	return buf
}

// Mixdown renders every track and sums them, normalizing only when the
// mix clips. samples maps track names to decoded sample buffers.
func Mixdown(s *score.Score, samples map[string][]float32) ([]float32, error) {
	if len(s.Tracks) == 0 {
		return make([]float32, 1), nil
	}

	var bufs [][]float32
	for _, t := range s.Tracks {
		cfg := s.Config(t.ConfigID)
		if cfg == nil {
			return nil, fmt.Errorf("track %q references unknown config %q", t.Name, t.ConfigID)
		}
		var buf []float32
		if t.Kind == score.KindSample {
			buf = RenderSampleTrack(t, *cfg, samples[t.Name])
		} else {
			var err error
			buf, err = RenderTrack(t, *cfg)
			if err != nil {
				return nil, err
			}
		}
		bufs = append(bufs, buf)
	}

	var n int
	for _, b := range bufs {
		if len(b) > n {
			n = len(b)
		}
	}
	if n == 0 {
		n = 1
	}
	mix := make([]float32, n)
	for _, b := range bufs {
		for i, v := range b {
			mix[i] += v
		}
	}
	normalize(mix, 1)
	return mix, nil
}
