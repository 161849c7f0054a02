// Package audio plays rendered WAV bytes through the system output.
package audio

import (
	"bytes"
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"

	"gridseq/synth"
)

// Player owns one oto context. Contexts are fixed-rate, so renders at
// other rates come out pitch-shifted; the compute service renders at
// 44.1k by default.
type Player struct {
	ctx     *oto.Context
	current *oto.Player
}

const playerSampleRate = 44100

// NewPlayer initializes the audio output.
func NewPlayer() (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   playerSampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("cannot create audio context: %w", err)
	}
	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("audio context not ready")
	}
	return &Player{ctx: ctx}, nil
}

// Play decodes WAV bytes and starts playback, replacing whatever was
// playing before.
func (p *Player) Play(wav []byte) error {
	buf, _, err := synth.DecodeWAV(wav)
	if err != nil {
		return fmt.Errorf("cannot decode rendered audio: %w", err)
	}
	pcm := floatTo16BitLE(buf)

	if p.current != nil {
		p.current.Close()
	}
	p.current = p.ctx.NewPlayer(bytes.NewReader(pcm))
	p.current.Play()
	return nil
}

// Close stops playback.
func (p *Player) Close() error {
	if p.current != nil {
		return p.current.Close()
	}
	return nil
}

func floatTo16BitLE(buf []float32) []byte {
	out := make([]byte, len(buf)*2)
	for i, v := range buf {
		if v > 1 {
			v = 1
		}
		if v < -1 {
			v = -1
		}
		s := int16(v * 32767)
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}
