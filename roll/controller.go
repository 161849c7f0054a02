// Package roll turns pointer gestures on the pitch/beat grid into note
// edits on the selected track.
package roll

import (
	"sort"

	"gridseq/score"
)

type gestureState int

const (
	idle gestureState = iota
	dragging
)

// Committed describes a note placed by a finished drag, handed to the
// change callback so callers can preview or log it.
type Committed struct {
	Pitch    string
	Start    float64
	Duration float64
}

// Controller is the note placement state machine. While a drag is
// active the target pitch stays pinned to the lane the press landed on;
// hovering across lanes only moves the beat edge of the preview.
type Controller struct {
	repo *score.Repo

	state      gestureState
	anchorLane int
	anchorCol  int
	currentCol int

	// Called after every committed edit (placement or removal).
	onChange func(*Committed)
}

// New creates a controller over the repo. onChange may be nil.
func New(repo *score.Repo, onChange func(*Committed)) *Controller {
	return &Controller{repo: repo, onChange: onChange}
}

// Dragging reports whether a gesture is in progress.
func (c *Controller) Dragging() bool { return c.state == dragging }

func inGrid(lane, col int) bool {
	return lane >= 0 && lane < score.NumLanes && col >= 0 && col < score.GridSteps
}

// Press starts a drag at the given cell. Ignored when no track is
// selected or the cell is off the grid. Callers must only forward
// primary-button presses.
func (c *Controller) Press(lane, col int) {
	if c.repo.SelectedTrack() == nil || !inGrid(lane, col) {
		return
	}
	c.state = dragging
	c.anchorLane = lane
	c.anchorCol = col
	c.currentCol = col
}

// Hover moves the free edge of the drag preview. The lane component is
// deliberately ignored; only the beat matters.
func (c *Controller) Hover(lane, col int) {
	if c.state != dragging {
		return
	}
	if col < 0 {
		col = 0
	}
	if col >= score.GridSteps {
		col = score.GridSteps - 1
	}
	c.currentCol = col
}

// Release commits the drag: every event on the anchor pitch touching
// the drawn range is removed whole and one new note covering the range
// is inserted. A press-release on a single cell yields a one quantum
// note.
func (c *Controller) Release(lane, col int) {
	if c.state != dragging {
		return
	}
	c.Hover(lane, col)
	c.state = idle

	track := c.repo.SelectedTrack()
	if track == nil {
		return
	}

	pitch := score.PitchLanes[c.anchorLane]
	loCol, hiCol := c.anchorCol, c.currentCol
	if loCol > hiCol {
		loCol, hiCol = hiCol, loCol
	}
	lo := score.BeatAt(loCol)
	duration := score.BeatAt(hiCol) - lo + score.Quantum

	// Replace-on-overlap: anything on this pitch intersecting the new
	// note's interval is subsumed, chords included.
	kept := make([]score.NoteEvent, 0, len(track.Events)+1)
	for _, e := range track.Events {
		if e.HasPitch(pitch) && e.Start < lo+duration && e.End() > lo {
			continue
		}
		kept = append(kept, e)
	}
	kept = append(kept, score.NoteEvent{
		Pitches:  []string{pitch},
		Start:    lo,
		Duration: duration,
	})
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Start < kept[j].Start
	})

	c.repo.SetTrackEvents(c.repo.Selected(), kept)
	if c.onChange != nil {
		c.onChange(&Committed{Pitch: pitch, Start: lo, Duration: duration})
	}
}

// Erase removes any event sounding the cell's pitch at the cell's beat.
// Chord events are removed whole. No-op when nothing covers the cell.
// Independent of drag state.
func (c *Controller) Erase(lane, col int) {
	track := c.repo.SelectedTrack()
	if track == nil || !inGrid(lane, col) {
		return
	}
	pitch := score.PitchLanes[lane]
	beat := score.BeatAt(col)

	kept := make([]score.NoteEvent, 0, len(track.Events))
	removed := false
	for _, e := range track.Events {
		if e.HasPitch(pitch) && e.Covers(beat) {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	if !removed {
		return
	}
	c.repo.SetTrackEvents(c.repo.Selected(), kept)
	if c.onChange != nil {
		c.onChange(nil)
	}
}

// IsNoteStart reports whether an event on the selected track starts in
// this cell on this lane.
func (c *Controller) IsNoteStart(lane, col int) bool {
	track := c.repo.SelectedTrack()
	if track == nil || !inGrid(lane, col) {
		return false
	}
	pitch := score.PitchLanes[lane]
	beat := score.BeatAt(col)
	for _, e := range track.Events {
		if e.HasPitch(pitch) && e.Start == beat {
			return true
		}
	}
	return false
}

// InNoteBody reports whether the cell sits inside an event's tail (not
// its starting cell).
func (c *Controller) InNoteBody(lane, col int) bool {
	track := c.repo.SelectedTrack()
	if track == nil || !inGrid(lane, col) {
		return false
	}
	pitch := score.PitchLanes[lane]
	beat := score.BeatAt(col)
	for _, e := range track.Events {
		if e.HasPitch(pitch) && e.Covers(beat) && e.Start != beat {
			return true
		}
	}
	return false
}

// InPreview reports whether the cell lies inside the live drag preview:
// the anchor lane only, between the anchor and current columns
// inclusive.
func (c *Controller) InPreview(lane, col int) bool {
	if c.state != dragging || lane != c.anchorLane {
		return false
	}
	lo, hi := c.anchorCol, c.currentCol
	if lo > hi {
		lo, hi = hi, lo
	}
	return col >= lo && col <= hi
}
