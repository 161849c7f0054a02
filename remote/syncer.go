package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"gridseq/debug"
	"gridseq/score"
)

// ErrBusy is returned when a dependent action is already in flight.
// Dependent actions are deliberately serialized so an older response
// can never overwrite a newer edit.
var ErrBusy = fmt.Errorf("a request is already in flight")

// Syncer tracks whether the repo has unsynchronized changes and keeps
// the compute service current before any operation that depends on
// server-side state (playback, persistence, AI edits).
type Syncer struct {
	repo   *score.Repo
	client *Client

	mu       sync.Mutex
	dirty    bool
	snapshot []byte
	busy     bool
}

// NewSyncer wires a syncer over the repo and client. A fresh syncer is
// dirty: nothing has been pushed yet.
func NewSyncer(repo *score.Repo, client *Client) *Syncer {
	return &Syncer{repo: repo, client: client, dirty: true}
}

// MarkDirty records that the repo has changed since the last push.
func (s *Syncer) MarkDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// Dirty reports whether unsynchronized changes exist.
func (s *Syncer) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

func (s *Syncer) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	return nil
}

func (s *Syncer) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func (s *Syncer) serialize() ([]byte, error) {
	data, err := json.Marshal(s.repo.Score().Serialize())
	if err != nil {
		return nil, fmt.Errorf("cannot serialize song: %w", err)
	}
	return data, nil
}

// ensureCurrent pushes the song if needed. When clean and byte-identical
// to the last pushed snapshot no exchange happens at all. On failure
// the snapshot and dirty flag are left untouched, so a failed push is
// never mistaken for success. Caller holds the busy slot.
func (s *Syncer) ensureCurrent(ctx context.Context) error {
	data, err := s.serialize()
	if err != nil {
		return err
	}

	s.mu.Lock()
	clean := !s.dirty && string(data) == string(s.snapshot)
	s.mu.Unlock()
	if clean {
		debug.Log("sync", "up to date, skipping push")
		return nil
	}

	var song score.SongPayload
	if err := json.Unmarshal(data, &song); err != nil {
		return fmt.Errorf("cannot serialize song: %w", err)
	}
	if err := s.client.CreateSong(ctx, song); err != nil {
		return err
	}

	s.mu.Lock()
	s.snapshot = data
	s.dirty = false
	s.mu.Unlock()
	debug.Log("sync", "pushed %d bytes", len(data))
	return nil
}

// EnsureCurrent synchronizes the service with the local song, pushing
// only when something actually changed.
func (s *Syncer) EnsureCurrent(ctx context.Context) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()
	return s.ensureCurrent(ctx)
}

// Play synchronizes and renders the song, returning WAV bytes.
func (s *Syncer) Play(ctx context.Context) ([]byte, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()
	if err := s.ensureCurrent(ctx); err != nil {
		return nil, err
	}
	return s.client.Render(ctx)
}

// Save synchronizes and asks the service to persist the song.
func (s *Syncer) Save(ctx context.Context) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()
	if err := s.ensureCurrent(ctx); err != nil {
		return err
	}
	return s.client.Persist(ctx)
}

// adopt validates a service payload and replaces the repo wholesale.
// The snapshot is recomputed from the local re-serialization of the new
// state rather than taken from the response bytes: the response must be
// a strict superset of what Serialize needs, and anything beyond that
// is dropped on purpose.
func (s *Syncer) adopt(payload score.SongPayload) error {
	if payload.Samples == nil {
		// The edit endpoint omits the samples mapping; the local one
		// still applies.
		payload.Samples = s.repo.Score().Samples
	}
	sc, err := score.ParseSong(payload)
	if err != nil {
		return fmt.Errorf("rejecting song from service: %w", err)
	}
	s.repo.Replace(sc)

	data, err := s.serialize()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.snapshot = data
	s.dirty = false
	s.mu.Unlock()
	return nil
}

// EditPrompt synchronizes, submits the prompt and adopts the edited
// song. A malformed response is rejected and the local song is left
// untouched.
func (s *Syncer) EditPrompt(ctx context.Context, prompt string) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()
	if err := s.ensureCurrent(ctx); err != nil {
		return err
	}
	payload, err := s.client.Edit(ctx, prompt)
	if err != nil {
		return err
	}
	return s.adopt(payload)
}

// Revert replaces the song with the service's last persisted state.
func (s *Syncer) Revert(ctx context.Context) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()
	payload, err := s.client.Revert(ctx)
	if err != nil {
		return err
	}
	return s.adopt(payload)
}
