package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"gridseq/score"
)

// fakeService records traffic on the sync endpoints and lets tests
// script what the edit and revert endpoints hand back.
type fakeService struct {
	creates  atomic.Int64
	failPush atomic.Bool

	editResp   func() []byte
	revertResp func() []byte

	srv *httptest.Server
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	f := &fakeService{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/create_song":
			f.creates.Add(1)
			if f.failPush.Load() {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte(`{"status":"ok"}`))
		case "/play_song":
			w.Write([]byte("RIFFxxxx"))
		case "/save_song":
			w.Write([]byte(`{"status":"ok"}`))
		case "/llm_edit_song":
			w.Write(f.editResp())
		case "/revert_song":
			w.Write(f.revertResp())
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func newTestSyncer(t *testing.T, f *fakeService) (*Syncer, *score.Repo) {
	t.Helper()
	repo := score.NewRepo()
	if err := repo.AddSynthTrack("melody"); err != nil {
		t.Fatal(err)
	}
	repo.SetTrackEvents(0, []score.NoteEvent{
		{Pitches: []string{"C4"}, Start: 0, Duration: 1},
	})
	client := NewClient(f.srv.URL, 5*time.Second)
	return NewSyncer(repo, client), repo
}

func encodeSong(t *testing.T, sc *score.Score) []byte {
	t.Helper()
	data, err := json.Marshal(sc.Serialize())
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestEnsureCurrentPushesOnce(t *testing.T) {
	f := newFakeService(t)
	s, _ := newTestSyncer(t, f)
	ctx := context.Background()

	if err := s.EnsureCurrent(ctx); err != nil {
		t.Fatal(err)
	}
	if f.creates.Load() != 1 {
		t.Fatalf("first sync should push, got %d pushes", f.creates.Load())
	}
	if s.Dirty() {
		t.Fatal("successful push should clear the dirty flag")
	}

	// Nothing changed: no exchange at all.
	if err := s.EnsureCurrent(ctx); err != nil {
		t.Fatal(err)
	}
	if f.creates.Load() != 1 {
		t.Fatalf("clean sync must not push, got %d pushes", f.creates.Load())
	}
}

func TestDirtyAlwaysPushes(t *testing.T) {
	f := newFakeService(t)
	s, _ := newTestSyncer(t, f)
	ctx := context.Background()

	if err := s.EnsureCurrent(ctx); err != nil {
		t.Fatal(err)
	}

	// The dirty flag forces a push even when the serialized bytes still
	// match the snapshot; only clean AND identical skips the exchange.
	s.MarkDirty()
	if err := s.EnsureCurrent(ctx); err != nil {
		t.Fatal(err)
	}
	if f.creates.Load() != 2 {
		t.Fatalf("dirty song must be pushed, got %d pushes", f.creates.Load())
	}
	if s.Dirty() {
		t.Error("successful push should clear the dirty flag")
	}
}

func TestMutationBurstPushesOnce(t *testing.T) {
	f := newFakeService(t)
	s, repo := newTestSyncer(t, f)
	ctx := context.Background()

	if err := s.EnsureCurrent(ctx); err != nil {
		t.Fatal(err)
	}

	// Several edits, one sync.
	for i := 1; i <= 3; i++ {
		repo.SetTrackEvents(0, []score.NoteEvent{
			{Pitches: []string{"C4"}, Start: float64(i), Duration: 1},
		})
		s.MarkDirty()
	}
	if err := s.EnsureCurrent(ctx); err != nil {
		t.Fatal(err)
	}
	if f.creates.Load() != 2 {
		t.Fatalf("burst should collapse into one push, got %d total", f.creates.Load())
	}
}

func TestFailedPushKeepsDirty(t *testing.T) {
	f := newFakeService(t)
	s, _ := newTestSyncer(t, f)
	ctx := context.Background()

	f.failPush.Store(true)
	if err := s.EnsureCurrent(ctx); err == nil {
		t.Fatal("failed push should surface an error")
	}
	if !s.Dirty() {
		t.Fatal("failed push must leave the syncer dirty")
	}

	// Once the service recovers, the same state goes out.
	f.failPush.Store(false)
	if err := s.EnsureCurrent(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Dirty() {
		t.Error("successful retry should clear the dirty flag")
	}
	if f.creates.Load() != 2 {
		t.Errorf("expected retry push, got %d pushes", f.creates.Load())
	}
}

func TestPlaySyncsFirst(t *testing.T) {
	f := newFakeService(t)
	s, _ := newTestSyncer(t, f)

	wav, err := s.Play(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if string(wav) != "RIFFxxxx" {
		t.Errorf("unexpected render bytes: %q", wav)
	}
	if f.creates.Load() != 1 {
		t.Errorf("play must push the song first, got %d pushes", f.creates.Load())
	}
}

func TestEditAdoptsResponse(t *testing.T) {
	f := newFakeService(t)
	s, repo := newTestSyncer(t, f)
	ctx := context.Background()

	// The service responds with the song transposed.
	edited := *repo.Score()
	edited.Tracks = append([]score.Track(nil), edited.Tracks...)
	edited.Tracks[0].Events = []score.NoteEvent{
		{Pitches: []string{"E4"}, Start: 0, Duration: 1},
	}
	resp := encodeSong(t, &edited)
	f.editResp = func() []byte { return resp }

	if err := s.EditPrompt(ctx, "transpose up a third"); err != nil {
		t.Fatal(err)
	}
	got := repo.Score().Tracks[0].Events[0].Label()
	if got != "E4" {
		t.Fatalf("edit should replace the local song, got %s", got)
	}

	// The adopted state is the new baseline: no push on the next sync.
	before := f.creates.Load()
	if err := s.EnsureCurrent(ctx); err != nil {
		t.Fatal(err)
	}
	if f.creates.Load() != before {
		t.Error("adopted song should match the recomputed snapshot")
	}
}

func TestEditWithoutSamplesKeepsLocal(t *testing.T) {
	f := newFakeService(t)
	s, repo := newTestSyncer(t, f)
	if err := repo.AddSampleTrack("kick", "/tmp/kick.wav"); err != nil {
		t.Fatal(err)
	}

	// Echo the song back without the samples mapping, as the edit
	// endpoint does.
	payload := repo.Score().Serialize()
	payload.Samples = nil
	resp, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	f.editResp = func() []byte { return resp }

	if err := s.EditPrompt(context.Background(), "no-op"); err != nil {
		t.Fatal(err)
	}
	if repo.Score().Samples["kick"] != "/tmp/kick.wav" {
		t.Error("local samples mapping should survive an edit")
	}
}

func TestEditRejectsMalformedResponse(t *testing.T) {
	f := newFakeService(t)
	s, repo := newTestSyncer(t, f)

	// A response referencing a config that does not exist.
	f.editResp = func() []byte {
		return []byte(`{"samples":{},"SynthConfigs":[],"Tracks":[{"name":"x","cfg_id":"ghost","events":[],"gain":1,"type":"Track"}]}`)
	}

	before := repo.Score().Tracks[0].Events[0]
	if err := s.EditPrompt(context.Background(), "break it"); err == nil {
		t.Fatal("malformed song from the service must be rejected")
	}
	after := repo.Score().Tracks[0].Events[0]
	if before.Label() != after.Label() || before.Start != after.Start {
		t.Error("rejected edit must leave the local song untouched")
	}
}

func TestRevertAdoptsServiceState(t *testing.T) {
	f := newFakeService(t)
	s, repo := newTestSyncer(t, f)

	reverted := *repo.Score()
	reverted.Tracks = append([]score.Track(nil), reverted.Tracks...)
	reverted.Tracks[0].Events = nil
	resp := encodeSong(t, &reverted)
	f.revertResp = func() []byte { return resp }

	if err := s.Revert(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(repo.Score().Tracks[0].Events) != 0 {
		t.Error("revert should replace the local song")
	}
	if f.creates.Load() != 0 {
		t.Error("revert must not push the local song first")
	}
}

func TestBusyGuard(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/play_song" {
			close(entered)
			<-unblock
			w.Write([]byte("RIFF"))
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	repo := score.NewRepo()
	if err := repo.AddSynthTrack("melody"); err != nil {
		t.Fatal(err)
	}
	s := NewSyncer(repo, NewClient(srv.URL, 5*time.Second))

	done := make(chan error, 1)
	go func() {
		_, err := s.Play(context.Background())
		done <- err
	}()

	<-entered
	if err := s.EnsureCurrent(context.Background()); err != ErrBusy {
		t.Errorf("expected ErrBusy while a request is in flight, got %v", err)
	}
	close(unblock)
	if err := <-done; err != nil {
		t.Fatalf("play should finish cleanly: %v", err)
	}

	// The slot is free again.
	if err := s.EnsureCurrent(context.Background()); err != nil {
		t.Errorf("busy slot should be released, got %v", err)
	}
}
