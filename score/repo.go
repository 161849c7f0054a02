package score

import (
	"fmt"

	"github.com/google/uuid"
)

// Repo owns the canonical in-memory song plus the track selection. All
// mutations go through it; validation failures reject the whole
// operation and leave the score untouched.
type Repo struct {
	score    Score
	selected int

	// One shared config for every sample track, created lazily on the
	// first sample track and kept for the life of the repo. Removing a
	// sample track never orphans a per-track config this way.
	sampleCfgID string

	newID func() string
}

// NewRepo creates an empty song at the default tempo.
func NewRepo() *Repo {
	return &Repo{
		score: Score{
			Tempo:   DefaultTempo,
			Samples: map[string]string{},
		},
		selected: -1,
		newID:    uuid.NewString,
	}
}

// Score returns the current song. Callers must not mutate it directly.
func (r *Repo) Score() *Score { return &r.score }

// Selected returns the selected track index, or -1.
func (r *Repo) Selected() int { return r.selected }

// SelectedTrack returns the selected track, or nil.
func (r *Repo) SelectedTrack() *Track {
	if r.selected < 0 || r.selected >= len(r.score.Tracks) {
		return nil
	}
	return &r.score.Tracks[r.selected]
}

// Select moves the selection. Out of range clears it.
func (r *Repo) Select(i int) {
	if i < 0 || i >= len(r.score.Tracks) {
		r.selected = -1
		return
	}
	r.selected = i
}

func (r *Repo) validateName(name string) error {
	if name == "" {
		return fmt.Errorf("track name required")
	}
	if r.score.TrackByName(name) >= 0 {
		return fmt.Errorf("track %q already exists", name)
	}
	return nil
}

// AddSynthTrack creates a synth track with a fresh config of default
// envelope parameters, appends it and selects it.
func (r *Repo) AddSynthTrack(name string) error {
	if err := r.validateName(name); err != nil {
		return err
	}
	cfg := SynthConfig{
		ID:         r.newID(),
		SampleRate: DefaultSampleRate,
		BPM:        r.score.Tempo,
		Volume:     DefaultVolume,
		Waveform:   WaveSine,
		Attack:     DefaultAttack,
		Decay:      DefaultDecay,
		Sustain:    DefaultSustain,
		Release:    DefaultRelease,
	}
	r.score.Configs = append(r.score.Configs, cfg)
	r.score.Tracks = append(r.score.Tracks, Track{
		Name:     name,
		ConfigID: cfg.ID,
		Gain:     1.0,
		Kind:     KindSynth,
	})
	r.selected = len(r.score.Tracks) - 1
	return nil
}

// AddSampleTrack creates a sample-playback track bound to the shared
// sample config, appends it and selects it. The sample reference must
// already be resolved by the caller.
func (r *Repo) AddSampleTrack(name, samplePath string) error {
	if err := r.validateName(name); err != nil {
		return err
	}
	if samplePath == "" {
		return fmt.Errorf("sample reference required")
	}
	if r.sampleCfgID == "" {
		cfg := SynthConfig{
			ID:         r.newID(),
			SampleRate: DefaultSampleRate,
			BPM:        r.score.Tempo,
		}
		r.score.Configs = append(r.score.Configs, cfg)
		r.sampleCfgID = cfg.ID
	}
	r.score.Tracks = append(r.score.Tracks, Track{
		Name:       name,
		ConfigID:   r.sampleCfgID,
		Gain:       1.0,
		Kind:       KindSample,
		SamplePath: samplePath,
	})
	if r.score.Samples == nil {
		r.score.Samples = map[string]string{}
	}
	r.score.Samples[name] = samplePath
	r.selected = len(r.score.Tracks) - 1
	return nil
}

// RemoveTrack drops the track at i. Removing the selected track clears
// the selection; removing a track before it shifts the selection down
// so the same logical track stays selected. Configs are not garbage
// collected (the serializer only emits referenced ones anyway).
func (r *Repo) RemoveTrack(i int) error {
	if i < 0 || i >= len(r.score.Tracks) {
		return fmt.Errorf("no track at index %d", i)
	}
	t := r.score.Tracks[i]
	if t.Kind == KindSample {
		delete(r.score.Samples, t.Name)
	}
	r.score.Tracks = append(r.score.Tracks[:i], r.score.Tracks[i+1:]...)
	switch {
	case r.selected == i:
		r.selected = -1
	case r.selected > i:
		r.selected--
	}
	return nil
}

// SetTrackEvents replaces a track's events wholesale. Precondition: the
// caller keeps events on a shared pitch non-overlapping; the grid
// commit algorithm guarantees this structurally and it is not
// re-validated here.
func (r *Repo) SetTrackEvents(i int, events []NoteEvent) error {
	if i < 0 || i >= len(r.score.Tracks) {
		return fmt.Errorf("no track at index %d", i)
	}
	r.score.Tracks[i].Events = events
	return nil
}

// SetTrackGain sets the gain of the track at i. Gain must not be
// negative.
func (r *Repo) SetTrackGain(i int, gain float64) error {
	if i < 0 || i >= len(r.score.Tracks) {
		return fmt.Errorf("no track at index %d", i)
	}
	if gain < 0 {
		return fmt.Errorf("gain must not be negative")
	}
	r.score.Tracks[i].Gain = gain
	return nil
}

// Numeric synth parameters accepted by SetSynthParam.
var synthParams = map[string]bool{
	"volume":  true,
	"attack":  true,
	"decay":   true,
	"sustain": true,
	"release": true,
}

// SetSynthParam updates one envelope parameter on a config. The shared
// sample config carries no envelope and rejects these updates.
func (r *Repo) SetSynthParam(cfgID, param string, value float64) error {
	cfg := r.score.Config(cfgID)
	if cfg == nil {
		return fmt.Errorf("unknown config %q", cfgID)
	}
	if cfgID == r.sampleCfgID {
		return fmt.Errorf("sample tracks have no synth parameters")
	}
	if !synthParams[param] {
		return fmt.Errorf("unknown synth parameter %q", param)
	}
	if value < 0 {
		return fmt.Errorf("%s must not be negative", param)
	}
	switch param {
	case "volume":
		cfg.Volume = value
	case "attack":
		cfg.Attack = value
	case "decay":
		cfg.Decay = value
	case "sustain":
		cfg.Sustain = value
	case "release":
		cfg.Release = value
	}
	return nil
}

// SetWaveform switches the oscillator shape on a synth config.
func (r *Repo) SetWaveform(cfgID string, w Waveform) error {
	cfg := r.score.Config(cfgID)
	if cfg == nil {
		return fmt.Errorf("unknown config %q", cfgID)
	}
	if cfgID == r.sampleCfgID {
		return fmt.Errorf("sample tracks have no waveform")
	}
	switch w {
	case WaveSine, WaveSquare, WaveSaw, WaveTriangle:
		cfg.Waveform = w
	default:
		return fmt.Errorf("unknown waveform %q", w)
	}
	return nil
}

// SetTempo sets the global bpm and pushes it into every config so the
// serialized song stays consistent.
func (r *Repo) SetTempo(bpm int) error {
	if bpm <= 0 {
		return fmt.Errorf("tempo must be positive")
	}
	r.score.Tempo = bpm
	for i := range r.score.Configs {
		r.score.Configs[i].BPM = bpm
	}
	return nil
}

// SampleConfigID returns the shared sample config id ("" until the
// first sample track exists).
func (r *Repo) SampleConfigID() string { return r.sampleCfgID }

// Replace swaps in a whole new score, as happens when the compute
// service returns a song state. The selection is kept when still in
// range, otherwise cleared. The shared sample config id is re-derived
// from the first surviving sample track.
func (r *Repo) Replace(s Score) {
	if s.Samples == nil {
		s.Samples = map[string]string{}
	}
	r.score = s
	if r.selected >= len(r.score.Tracks) {
		r.selected = -1
	}
	r.sampleCfgID = ""
	for _, t := range r.score.Tracks {
		if t.Kind == KindSample {
			r.sampleCfgID = t.ConfigID
			break
		}
	}
}
