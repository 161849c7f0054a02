package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gridseq/score"
	"gridseq/widgets"
)

var (
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	noteStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700"))
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FFFF"))
	selStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF64C8"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var out strings.Builder

	// Header (line 0), blank (line 1), ruler (line 2), then the grid.
	// The mouse hit-test in updateMouse depends on this layout.
	dirtyMark := " "
	if m.syncer.Dirty() {
		dirtyMark = "*"
	}
	busyMark := ""
	if m.busy != "" {
		busyMark = "  [" + m.busy + "]"
	}
	trackName := "(no track)"
	if t := m.repo.SelectedTrack(); t != nil {
		trackName = t.Name
	}
	out.WriteString(headerStyle.Render(fmt.Sprintf("gridseq  %3dbpm  %s%s%s",
		m.repo.Score().Tempo, trackName, dirtyMark, busyMark)))
	out.WriteString("\n\n")

	out.WriteString("     ")
	for col := 0; col < score.GridSteps; col++ {
		if col%2 == 0 {
			out.WriteString(fmt.Sprintf("%-2d", col/2+1))
		} else {
			out.WriteString("  ")
		}
	}
	out.WriteString("\n")

	for lane := 0; lane < score.NumLanes; lane++ {
		out.WriteString(fmt.Sprintf("%-4s ", score.PitchLanes[lane]))
		for col := 0; col < score.GridSteps; col++ {
			var cell string
			switch {
			case m.ctrl.InPreview(lane, col):
				cell = previewStyle.Render("▒ ")
			case m.ctrl.IsNoteStart(lane, col):
				cell = noteStyle.Render("● ")
			case m.ctrl.InNoteBody(lane, col):
				cell = noteStyle.Render("─ ")
			default:
				if col%8 == 0 {
					cell = dimStyle.Render("¦ ")
				} else {
					cell = dimStyle.Render("· ")
				}
			}
			out.WriteString(cell)
		}
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(m.viewTracks())
	out.WriteString("\n")
	out.WriteString(m.viewParams())
	out.WriteString("\n")

	if m.prompt != promptNone {
		out.WriteString(m.viewPrompt())
	} else if m.status != "" {
		style := dimStyle
		if strings.Contains(m.status, "failed") || strings.Contains(m.status, "not found") {
			style = errStyle
		}
		out.WriteString(style.Render(m.status))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(dimStyle.Render(widgets.RenderKeyHelp([]widgets.KeySection{
		{Keys: []widgets.KeyBinding{
			{Key: "drag / rclick", Desc: "place / erase notes"},
			{Key: "a / A / x", Desc: "add synth / add sample / remove track"},
			{Key: "tab", Desc: "select track"},
			{Key: "arrows", Desc: "pick and adjust parameter"},
			{Key: "space s e r", Desc: "play  save  ai-edit  revert"},
			{Key: "W / L", Desc: "write / load local song file"},
			{Key: "q", Desc: "quit"},
		}},
	})))

	return out.String()
}

func (m Model) viewTracks() string {
	var out strings.Builder
	tracks := m.repo.Score().Tracks
	if len(tracks) == 0 {
		out.WriteString(dimStyle.Render("  (no tracks yet - press a)"))
		out.WriteString("\n")
		return out.String()
	}
	for i, t := range tracks {
		kind := "synth"
		if t.Kind == score.KindSample {
			kind = "sample"
		}
		line := fmt.Sprintf("  %-12s %-6s gain:%.1f  %d events", t.Name, kind, t.Gain, len(t.Events))
		if i == m.repo.Selected() {
			line = selStyle.Render("> " + line[2:])
		}
		out.WriteString(line)
		out.WriteString("\n")
	}
	return out.String()
}

func (m Model) viewParams() string {
	track := m.repo.SelectedTrack()
	var cfg *score.SynthConfig
	if track != nil {
		cfg = m.repo.Score().Config(track.ConfigID)
	}

	var out strings.Builder
	for i, p := range paramRows {
		cursor := "  "
		if i == m.paramRow {
			cursor = "> "
		}
		var val string
		switch p {
		case "tempo":
			val = fmt.Sprintf("%d", m.repo.Score().Tempo)
		case "gain":
			if track == nil {
				val = "-"
			} else {
				val = fmt.Sprintf("%.1f", track.Gain)
			}
		default:
			// Envelope rows only apply to synth tracks.
			if track == nil || track.Kind != score.KindSynth || cfg == nil {
				val = "-"
			} else {
				switch p {
				case "volume":
					val = fmt.Sprintf("%.2f", cfg.Volume)
				case "waveform":
					val = string(cfg.Waveform)
				case "attack":
					val = fmt.Sprintf("%.2f", cfg.Attack)
				case "decay":
					val = fmt.Sprintf("%.2f", cfg.Decay)
				case "sustain":
					val = fmt.Sprintf("%.2f", cfg.Sustain)
				case "release":
					val = fmt.Sprintf("%.2f", cfg.Release)
				}
			}
		}
		line := fmt.Sprintf("%s%-9s %s", cursor, p, val)
		if i == m.paramRow {
			line = selStyle.Render(line)
		}
		out.WriteString(line)
		out.WriteString("\n")
	}
	return out.String()
}

func (m Model) viewPrompt() string {
	var label string
	switch m.prompt {
	case promptSynthName:
		label = "New synth track name"
	case promptSampleName:
		label = "New sample track name"
	case promptSamplePath:
		label = "Sample file path"
	case promptEditRequest:
		label = "Describe the change"
	}
	return fmt.Sprintf("%s: %s_\n%s\n", label, m.promptBuffer,
		dimStyle.Render("[enter] confirm  [esc] cancel"))
}
