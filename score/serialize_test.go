package score

import (
	"encoding/json"
	"reflect"
	"testing"
)

func testSong(t *testing.T) *Repo {
	t.Helper()
	r := NewRepo()
	if err := r.AddSynthTrack("melody"); err != nil {
		t.Fatal(err)
	}
	if err := r.AddSampleTrack("kick", "/tmp/kick.wav"); err != nil {
		t.Fatal(err)
	}
	r.SetTrackEvents(0, []NoteEvent{
		{Pitches: []string{"C4"}, Start: 2.0, Duration: 1.5},
		{Pitches: []string{"C3", "E3", "G3"}, Start: 0, Duration: 2},
	})
	r.SetTrackEvents(1, []NoteEvent{
		{Pitches: []string{"C2"}, Start: 0, Duration: 2},
	})
	return r
}

func TestSerializeShape(t *testing.T) {
	r := testSong(t)
	p := r.Score().Serialize()

	if len(p.SynthConfigs) != 2 {
		t.Fatalf("expected 2 configs, got %d", len(p.SynthConfigs))
	}
	if len(p.Tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(p.Tracks))
	}
	if p.Samples["kick"] != "/tmp/kick.wav" {
		t.Errorf("samples mapping missing")
	}

	// Configs come out in order of first reference: melody's first.
	synthCfg, sampleCfg := p.SynthConfigs[0], p.SynthConfigs[1]
	if synthCfg.Volume == nil || synthCfg.Waveform == nil || synthCfg.Attack == nil {
		t.Errorf("synth-referenced config must carry envelope fields")
	}
	if sampleCfg.Volume != nil || sampleCfg.Waveform != nil || sampleCfg.Attack != nil {
		t.Errorf("sample-referenced config must omit envelope fields")
	}

	if p.Tracks[0].Type != "Track" || p.Tracks[1].Type != "WavTrack" {
		t.Errorf("wire types wrong: %s %s", p.Tracks[0].Type, p.Tracks[1].Type)
	}
	if p.Tracks[0].Events[1].Label != "C3+E3+G3" {
		t.Errorf("chord label should join with +, got %s", p.Tracks[0].Events[1].Label)
	}
}

func TestSerializeOmitsOrphanConfigs(t *testing.T) {
	r := testSong(t)
	r.RemoveTrack(0) // orphans the melody config

	p := r.Score().Serialize()
	if len(p.SynthConfigs) != 1 {
		t.Fatalf("orphaned config must not be serialized, got %d configs", len(p.SynthConfigs))
	}
	if len(r.Score().Configs) != 2 {
		t.Fatalf("orphaned config should still exist locally")
	}
}

func TestEventTupleJSON(t *testing.T) {
	data, err := json.Marshal(EventTuple{Label: "C4", Start: 2, Duration: 1.5})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `["C4",2,1.5]` {
		t.Fatalf("unexpected tuple encoding: %s", data)
	}

	var e EventTuple
	if err := json.Unmarshal([]byte(`["C3+E3",0.5,2]`), &e); err != nil {
		t.Fatal(err)
	}
	if e.Label != "C3+E3" || e.Start != 0.5 || e.Duration != 2 {
		t.Fatalf("unexpected tuple decode: %+v", e)
	}

	// Raw frequency labels are kept as numbers-in-strings.
	if err := json.Unmarshal([]byte(`[440,0,1]`), &e); err != nil {
		t.Fatal(err)
	}
	if e.Label != "440" {
		t.Fatalf("frequency label mishandled: %q", e.Label)
	}

	if err := json.Unmarshal([]byte(`["C4",2]`), &e); err == nil {
		t.Fatal("short tuple should be rejected")
	}
}

func TestRoundTrip(t *testing.T) {
	r := testSong(t)
	p := r.Score().Serialize()

	// Through JSON and back, as the service would echo it.
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	var echoed SongPayload
	if err := json.Unmarshal(data, &echoed); err != nil {
		t.Fatal(err)
	}

	got, err := ParseSong(echoed)
	if err != nil {
		t.Fatal(err)
	}

	if len(got.Tracks) != 2 || got.Tracks[0].Name != "melody" || got.Tracks[1].Kind != KindSample {
		t.Fatalf("tracks not reproduced: %+v", got.Tracks)
	}
	if !reflect.DeepEqual(got.Tracks[0].Events, r.Score().Tracks[0].Events) {
		t.Errorf("events not reproduced:\n got %+v\nwant %+v", got.Tracks[0].Events, r.Score().Tracks[0].Events)
	}
	if got.Tracks[1].SamplePath != "/tmp/kick.wav" {
		t.Errorf("sample path not restored")
	}

	// Re-serializing the parsed score yields identical bytes: the
	// snapshot comparison in the sync layer depends on this.
	data2, err := json.Marshal(got.Serialize())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(data2) {
		t.Errorf("push-then-identical-pull must be idempotent:\n%s\n%s", data, data2)
	}
}

func TestParseSongRejectsMalformed(t *testing.T) {
	base := func() SongPayload {
		return SongPayload{
			SynthConfigs: []ConfigPayload{{ID: "cfg1", SampleRate: 44100, BPM: 120}},
			Tracks: []TrackPayload{{
				Name: "melody", CfgID: "cfg1", Type: "Track", Gain: 1,
				Events: []EventTuple{{Label: "C4", Start: 0, Duration: 1}},
			}},
		}
	}

	cases := []struct {
		name   string
		mutate func(*SongPayload)
	}{
		{"dangling cfg_id", func(p *SongPayload) { p.Tracks[0].CfgID = "nope" }},
		{"empty track name", func(p *SongPayload) { p.Tracks[0].Name = "" }},
		{"duplicate track name", func(p *SongPayload) { p.Tracks = append(p.Tracks, p.Tracks[0]) }},
		{"unknown track type", func(p *SongPayload) { p.Tracks[0].Type = "Sampler" }},
		{"negative start", func(p *SongPayload) { p.Tracks[0].Events[0].Start = -1 }},
		{"zero duration", func(p *SongPayload) { p.Tracks[0].Events[0].Duration = 0 }},
		{"negative gain", func(p *SongPayload) { p.Tracks[0].Gain = -1 }},
		{"duplicate config id", func(p *SongPayload) { p.SynthConfigs = append(p.SynthConfigs, p.SynthConfigs[0]) }},
		{"empty config id", func(p *SongPayload) { p.SynthConfigs[0].ID = "" }},
		{"wav track without sample", func(p *SongPayload) { p.Tracks[0].Type = "WavTrack" }},
	}
	for _, c := range cases {
		p := base()
		c.mutate(&p)
		if _, err := ParseSong(p); err == nil {
			t.Errorf("%s: should be rejected", c.name)
		}
	}

	if _, err := ParseSong(base()); err != nil {
		t.Fatalf("base payload should parse: %v", err)
	}
}
