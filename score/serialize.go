package score

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Wire shapes exchanged with the compute service. Field names follow
// the service contract and must not drift.

// SongPayload is the full song state pushed on sync and returned by the
// edit/revert endpoints.
type SongPayload struct {
	Samples      map[string]string `json:"samples"`
	SynthConfigs []ConfigPayload   `json:"SynthConfigs"`
	Tracks       []TrackPayload    `json:"Tracks"`
}

// ConfigPayload carries a synth config. Envelope fields are present
// only for configs referenced by synth tracks; the shared sample
// config serializes just id, sample rate and bpm.
type ConfigPayload struct {
	ID         string   `json:"id"`
	SampleRate int      `json:"sample_rate"`
	BPM        int      `json:"bpm"`
	Volume     *float64 `json:"volume,omitempty"`
	Waveform   *string  `json:"waveform,omitempty"`
	Attack     *float64 `json:"attack,omitempty"`
	Decay      *float64 `json:"decay,omitempty"`
	Sustain    *float64 `json:"sustain,omitempty"`
	Release    *float64 `json:"release,omitempty"`
}

// TrackPayload carries one track. Type is "Track" for synth tracks and
// "WavTrack" for sample playback.
type TrackPayload struct {
	Name   string       `json:"name"`
	CfgID  string       `json:"cfg_id"`
	Events []EventTuple `json:"events"`
	Gain   float64      `json:"gain"`
	Type   string       `json:"type"`
}

const (
	wireTypeSynth  = "Track"
	wireTypeSample = "WavTrack"
)

// EventTuple is the wire form of a note event: a three element array
// [pitchOrChordString, start, duration].
type EventTuple struct {
	Label    string
	Start    float64
	Duration float64
}

func (e EventTuple) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.Label, e.Start, e.Duration})
}

func (e *EventTuple) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("event tuple must have 3 elements, got %d", len(raw))
	}
	// The label is normally a pitch or chord string but the service may
	// emit a raw frequency number.
	if err := json.Unmarshal(raw[0], &e.Label); err != nil {
		var freq float64
		if err := json.Unmarshal(raw[0], &freq); err != nil {
			return fmt.Errorf("event label must be a string or number")
		}
		e.Label = strconv.FormatFloat(freq, 'g', -1, 64)
	}
	if err := json.Unmarshal(raw[1], &e.Start); err != nil {
		return fmt.Errorf("event start: %w", err)
	}
	if err := json.Unmarshal(raw[2], &e.Duration); err != nil {
		return fmt.Errorf("event duration: %w", err)
	}
	return nil
}

// Serialize produces the song's wire representation. Only configs
// referenced by surviving tracks are emitted, in order of first
// reference, and envelope fields are dropped for configs referenced
// solely by sample tracks. The output is deterministic so snapshots
// can be compared byte for byte.
func (s *Score) Serialize() SongPayload {
	p := SongPayload{
		Samples: map[string]string{},
	}
	for name, path := range s.Samples {
		p.Samples[name] = path
	}

	var cfgOrder []string
	seen := map[string]bool{}
	synthRef := map[string]bool{}
	for _, t := range s.Tracks {
		if !seen[t.ConfigID] {
			seen[t.ConfigID] = true
			cfgOrder = append(cfgOrder, t.ConfigID)
		}
		if t.Kind == KindSynth {
			synthRef[t.ConfigID] = true
		}
	}

	p.SynthConfigs = make([]ConfigPayload, 0, len(cfgOrder))
	for _, id := range cfgOrder {
		cfg := s.Config(id)
		if cfg == nil {
			continue
		}
		cp := ConfigPayload{
			ID:         cfg.ID,
			SampleRate: cfg.SampleRate,
			BPM:        cfg.BPM,
		}
		if synthRef[id] {
			vol, atk, dec, sus, rel := cfg.Volume, cfg.Attack, cfg.Decay, cfg.Sustain, cfg.Release
			wave := string(cfg.Waveform)
			cp.Volume = &vol
			cp.Waveform = &wave
			cp.Attack = &atk
			cp.Decay = &dec
			cp.Sustain = &sus
			cp.Release = &rel
		}
		p.SynthConfigs = append(p.SynthConfigs, cp)
	}

	p.Tracks = make([]TrackPayload, 0, len(s.Tracks))
	for _, t := range s.Tracks {
		tp := TrackPayload{
			Name:   t.Name,
			CfgID:  t.ConfigID,
			Events: make([]EventTuple, 0, len(t.Events)),
			Gain:   t.Gain,
			Type:   wireTypeSynth,
		}
		if t.Kind == KindSample {
			tp.Type = wireTypeSample
		}
		for _, e := range t.Events {
			tp.Events = append(tp.Events, EventTuple{Label: e.Label(), Start: e.Start, Duration: e.Duration})
		}
		p.Tracks = append(p.Tracks, tp)
	}
	return p
}

// ParseSong rebuilds a Score from a service payload, validating it
// against the model invariants: non-empty unique track names, resolvable
// cfg_id references, well-formed events, and a sample entry for every
// WavTrack. A payload failing any check is rejected wholesale.
func ParseSong(p SongPayload) (Score, error) {
	s := Score{
		Tempo:   DefaultTempo,
		Samples: map[string]string{},
	}
	for name, path := range p.Samples {
		s.Samples[name] = path
	}

	cfgIDs := map[string]bool{}
	for _, cp := range p.SynthConfigs {
		if cp.ID == "" {
			return Score{}, fmt.Errorf("config with empty id")
		}
		if cfgIDs[cp.ID] {
			return Score{}, fmt.Errorf("duplicate config id %q", cp.ID)
		}
		cfgIDs[cp.ID] = true
		cfg := SynthConfig{
			ID:         cp.ID,
			SampleRate: cp.SampleRate,
			BPM:        cp.BPM,
		}
		if cfg.SampleRate <= 0 {
			cfg.SampleRate = DefaultSampleRate
		}
		if cfg.BPM <= 0 {
			cfg.BPM = DefaultTempo
		}
		if cp.Volume != nil {
			cfg.Volume = *cp.Volume
		}
		if cp.Waveform != nil {
			cfg.Waveform = Waveform(*cp.Waveform)
		}
		if cp.Attack != nil {
			cfg.Attack = *cp.Attack
		}
		if cp.Decay != nil {
			cfg.Decay = *cp.Decay
		}
		if cp.Sustain != nil {
			cfg.Sustain = *cp.Sustain
		}
		if cp.Release != nil {
			cfg.Release = *cp.Release
		}
		s.Configs = append(s.Configs, cfg)
	}
	if len(s.Configs) > 0 {
		s.Tempo = s.Configs[0].BPM
	}

	names := map[string]bool{}
	for _, tp := range p.Tracks {
		if tp.Name == "" {
			return Score{}, fmt.Errorf("track with empty name")
		}
		if names[tp.Name] {
			return Score{}, fmt.Errorf("duplicate track name %q", tp.Name)
		}
		names[tp.Name] = true
		if !cfgIDs[tp.CfgID] {
			return Score{}, fmt.Errorf("track %q references unknown config %q", tp.Name, tp.CfgID)
		}
		if tp.Gain < 0 {
			return Score{}, fmt.Errorf("track %q has negative gain", tp.Name)
		}

		t := Track{
			Name:     tp.Name,
			ConfigID: tp.CfgID,
			Gain:     tp.Gain,
		}
		switch tp.Type {
		case wireTypeSynth:
			t.Kind = KindSynth
		case wireTypeSample:
			t.Kind = KindSample
			path, ok := s.Samples[tp.Name]
			if !ok {
				return Score{}, fmt.Errorf("sample track %q has no sample entry", tp.Name)
			}
			t.SamplePath = path
		default:
			return Score{}, fmt.Errorf("track %q has unknown type %q", tp.Name, tp.Type)
		}

		for _, e := range tp.Events {
			if e.Label == "" {
				return Score{}, fmt.Errorf("track %q has an event with no pitch", tp.Name)
			}
			if e.Start < 0 {
				return Score{}, fmt.Errorf("track %q has an event starting before 0", tp.Name)
			}
			if e.Duration <= 0 {
				return Score{}, fmt.Errorf("track %q has an event with non-positive duration", tp.Name)
			}
			t.Events = append(t.Events, NoteEvent{
				Pitches:  ParseLabel(e.Label),
				Start:    e.Start,
				Duration: e.Duration,
			})
		}
		s.Tracks = append(s.Tracks, t)
	}
	return s, nil
}
