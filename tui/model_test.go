package tui

import (
	"fmt"
	"testing"

	"gridseq/remote"
)

func TestActionResultStatus(t *testing.T) {
	// A collision with an in-flight request is routine and stays quiet,
	// even when the sentinel arrives wrapped.
	m := Model{}
	next, _ := m.Update(actionDoneMsg{action: "play", err: fmt.Errorf("play: %w", remote.ErrBusy)})
	got := next.(Model)
	if got.status != "" {
		t.Errorf("busy collisions should not surface a status, got %q", got.status)
	}
	if got.busy != "" {
		t.Errorf("busy marker should clear, got %q", got.busy)
	}

	next, _ = m.Update(actionDoneMsg{action: "play", err: fmt.Errorf("service exploded")})
	got = next.(Model)
	if got.status == "" {
		t.Error("real failures should surface a status")
	}
}
