// Package remote talks to the external compute service and decides
// when the locally held song must be pushed to or replaced from it.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gridseq/debug"
	"gridseq/score"
)

// Client speaks the five fixed endpoints of the compute service.
// Transport details beyond the base URL are deployment configuration.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the service at base.
func NewClient(base string, timeout time.Duration) *Client {
	return &Client{
		base: base,
		http: &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("cannot encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		debug.Log("remote", "%s %s failed: %v", method, path, err)
		return nil, fmt.Errorf("compute service unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cannot read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		debug.Log("remote", "%s %s -> %d", method, path, resp.StatusCode)
		return nil, fmt.Errorf("compute service returned %d for %s", resp.StatusCode, path)
	}
	return data, nil
}

// CreateSong pushes the full song state.
func (c *Client) CreateSong(ctx context.Context, song score.SongPayload) error {
	_, err := c.do(ctx, http.MethodPost, "/create_song", song)
	return err
}

// Render asks the service to render the current song and returns the
// raw WAV bytes.
func (c *Client) Render(ctx context.Context) ([]byte, error) {
	return c.do(ctx, http.MethodPost, "/play_song", nil)
}

// Edit submits a natural-language edit prompt and returns the edited
// song state.
func (c *Client) Edit(ctx context.Context, prompt string) (score.SongPayload, error) {
	data, err := c.do(ctx, http.MethodPost, "/llm_edit_song", map[string]string{"prompt": prompt})
	if err != nil {
		return score.SongPayload{}, err
	}
	var song score.SongPayload
	if err := json.Unmarshal(data, &song); err != nil {
		return score.SongPayload{}, fmt.Errorf("malformed edit response: %w", err)
	}
	return song, nil
}

// Revert fetches the last persisted song state.
func (c *Client) Revert(ctx context.Context) (score.SongPayload, error) {
	data, err := c.do(ctx, http.MethodGet, "/revert_song", nil)
	if err != nil {
		return score.SongPayload{}, err
	}
	var song score.SongPayload
	if err := json.Unmarshal(data, &song); err != nil {
		return score.SongPayload{}, fmt.Errorf("malformed revert response: %w", err)
	}
	return song, nil
}

// Persist asks the service to save its current song state.
func (c *Client) Persist(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/save_song", nil)
	return err
}
