package score

import "fmt"

// Grid geometry: half-beat columns over a 16 beat horizon.
const (
	Quantum   = 0.5
	GridSteps = 32
	NumLanes  = 48
)

// Note names walking down a chromatic octave.
var noteNamesDesc = []string{"B", "A#", "A", "G#", "G", "F#", "F", "E", "D#", "D", "C#", "C"}

// PitchLanes is the fixed lane catalog: four chromatic octaves ordered
// high to low for display. Lane 0 is B5, lane 47 is C2.
var PitchLanes = makeLanes()

func makeLanes() []string {
	lanes := make([]string, 0, NumLanes)
	for oct := 5; oct >= 2; oct-- {
		for _, n := range noteNamesDesc {
			lanes = append(lanes, fmt.Sprintf("%s%d", n, oct))
		}
	}
	return lanes
}

// BeatAt returns the beat position of a grid column.
func BeatAt(col int) float64 {
	return float64(col) * Quantum
}

// LaneIndex returns the lane holding the given pitch name, or -1.
func LaneIndex(pitch string) int {
	for i, p := range PitchLanes {
		if p == pitch {
			return i
		}
	}
	return -1
}
