package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bep/debounce"
	tea "github.com/charmbracelet/bubbletea"

	"gridseq/audio"
	"gridseq/config"
	"gridseq/debug"
	"gridseq/midi"
	"gridseq/remote"
	"gridseq/roll"
	"gridseq/score"
)

// Grid layout constants, shared by View and mouse hit-testing.
const (
	gridTop   = 3 // header, blank, beat ruler
	gridLeft  = 5 // lane label + space
	cellWidth = 2
)

type promptKind int

const (
	promptNone promptKind = iota
	promptSynthName
	promptSampleName
	promptSamplePath
	promptEditRequest
)

// Rows of the parameter pane, adjusted with left/right.
var paramRows = []string{"tempo", "gain", "volume", "waveform", "attack", "decay", "sustain", "release"}

type Model struct {
	repo    *score.Repo
	ctrl    *roll.Controller
	syncer  *remote.Syncer
	player  *audio.Player
	preview *midi.Preview
	cfg     *config.Config

	paramRow int
	status   string
	busy     string // name of the in-flight action, "" when idle

	prompt       promptKind
	promptBuffer string
	sampleName   string // carried between the two sample prompts

	// Background sync: edits are debounced into syncReq and pushed when
	// the user pauses.
	deb     func(func())
	syncReq chan struct{}

	quitting bool
}

type playDoneMsg struct {
	wav []byte
	err error
}

type actionDoneMsg struct {
	action string
	err    error
}

type autoSyncMsg struct{}

// NewModel builds the editor over an empty song.
func NewModel(cfg *config.Config) Model {
	repo := score.NewRepo()
	client := remote.NewClient(cfg.ServiceURL, time.Duration(cfg.RequestTimeoutSec)*time.Second)
	syncer := remote.NewSyncer(repo, client)

	m := Model{
		repo:    repo,
		syncer:  syncer,
		cfg:     cfg,
		deb:     debounce.New(1500 * time.Millisecond),
		syncReq: make(chan struct{}, 1),
	}

	preview, err := midi.OpenPreview(cfg.PreviewPort)
	if err != nil {
		debug.Log("midi", "preview disabled: %v", err)
	}
	m.preview = preview

	player, err := audio.NewPlayer()
	if err != nil {
		debug.Log("audio", "playback unavailable: %v", err)
		m.status = "audio output unavailable"
	}
	m.player = player

	deb, syncReq := m.deb, m.syncReq
	onChange := func(c *roll.Committed) {
		syncer.MarkDirty()
		deb(func() {
			select {
			case syncReq <- struct{}{}:
			default:
			}
		})
		if c != nil {
			spb := 60.0 / float64(repo.Score().Tempo)
			preview.PlayNote(c.Pitch, time.Duration(c.Duration*spb*float64(time.Second)))
		}
	}
	m.ctrl = roll.New(repo, onChange)
	return m
}

// mutated marks the song dirty and schedules a debounced background
// push.
func (m *Model) mutated() {
	m.syncer.MarkDirty()
	m.deb(func() {
		select {
		case m.syncReq <- struct{}{}:
		default:
		}
	})
}

func (m Model) listenSync() tea.Cmd {
	return func() tea.Msg {
		<-m.syncReq
		return autoSyncMsg{}
	}
}

func (m Model) reqContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(m.cfg.RequestTimeoutSec)*time.Second)
}

func (m Model) Init() tea.Cmd {
	return m.listenSync()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.prompt != promptNone {
			return m.updatePrompt(msg)
		}
		return m.updateKey(msg)

	case tea.MouseMsg:
		m.updateMouse(msg)
		return m, nil

	case autoSyncMsg:
		if m.busy != "" || !m.syncer.Dirty() {
			return m, m.listenSync()
		}
		return m, tea.Batch(m.listenSync(), func() tea.Msg {
			ctx, cancel := m.reqContext()
			defer cancel()
			err := m.syncer.EnsureCurrent(ctx)
			return actionDoneMsg{action: "sync", err: err}
		})

	case playDoneMsg:
		m.busy = ""
		if msg.err != nil {
			m.status = fmt.Sprintf("play failed: %v", msg.err)
			return m, nil
		}
		if m.player == nil {
			m.status = "rendered, but audio output unavailable"
			return m, nil
		}
		if err := m.player.Play(msg.wav); err != nil {
			m.status = err.Error()
		} else {
			m.status = "playing"
		}
		return m, nil

	case actionDoneMsg:
		if msg.action != "sync" {
			m.busy = ""
		}
		if msg.err != nil {
			if errors.Is(msg.err, remote.ErrBusy) {
				return m, nil
			}
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
		} else if msg.action != "sync" {
			m.status = msg.action + " done"
		}
		return m, nil
	}

	return m, nil
}

func (m Model) updateMouse(msg tea.MouseMsg) {
	lane := msg.Y - gridTop
	col := (msg.X - gridLeft) / cellWidth

	switch {
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		m.ctrl.Press(lane, col)
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonRight:
		m.ctrl.Erase(lane, col)
	case msg.Action == tea.MouseActionMotion:
		debug.LogEvery(20, "mouse", "hover lane=%d col=%d", lane, col)
		m.ctrl.Hover(lane, col)
	case msg.Action == tea.MouseActionRelease && msg.Button == tea.MouseButtonLeft:
		m.ctrl.Release(lane, col)
	}
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		m.preview.Close()
		return m, tea.Quit

	case "a":
		m.prompt = promptSynthName
		m.promptBuffer = ""
	case "A":
		m.prompt = promptSampleName
		m.promptBuffer = ""
	case "e":
		m.prompt = promptEditRequest
		m.promptBuffer = ""

	case "x":
		sel := m.repo.Selected()
		if sel < 0 {
			m.status = "no track selected"
			break
		}
		name := m.repo.SelectedTrack().Name
		if err := m.repo.RemoveTrack(sel); err != nil {
			m.status = err.Error()
			break
		}
		m.mutated()
		m.status = "removed " + name

	case "tab":
		m.cycleTrack(1)
	case "shift+tab":
		m.cycleTrack(-1)

	case "up":
		if m.paramRow > 0 {
			m.paramRow--
		}
	case "down":
		if m.paramRow < len(paramRows)-1 {
			m.paramRow++
		}
	case "left":
		m.adjustParam(-1)
	case "right":
		m.adjustParam(1)

	case " ":
		return m.startAction("play")
	case "s":
		return m.startAction("save")
	case "r":
		return m.startAction("revert")

	case "W":
		dir, err := m.cfg.SongsPath()
		if err == nil {
			_, err = m.repo.Score().SaveFile(dir)
		}
		if err != nil {
			m.status = fmt.Sprintf("write failed: %v", err)
		} else {
			m.status = "song written"
		}
	case "L":
		m.loadLatestSong()
	}

	return m, nil
}

func (m *Model) cycleTrack(dir int) {
	n := len(m.repo.Score().Tracks)
	if n == 0 {
		return
	}
	sel := m.repo.Selected() + dir
	if sel < 0 {
		sel = n - 1
	}
	if sel >= n {
		sel = 0
	}
	m.repo.Select(sel)
}

// adjustParam applies one left/right step to the selected parameter
// row. Repo validation rejects anything out of range.
func (m *Model) adjustParam(dir int) {
	d := float64(dir)
	var err error
	switch paramRows[m.paramRow] {
	case "tempo":
		err = m.repo.SetTempo(m.repo.Score().Tempo + dir*5)
	case "gain":
		track := m.repo.SelectedTrack()
		if track == nil {
			return
		}
		err = m.repo.SetTrackGain(m.repo.Selected(), track.Gain+d*0.1)
	case "waveform":
		track := m.repo.SelectedTrack()
		if track == nil || track.Kind != score.KindSynth {
			return
		}
		cfg := m.repo.Score().Config(track.ConfigID)
		cur := 0
		for i, w := range score.Waveforms {
			if w == cfg.Waveform {
				cur = i
			}
		}
		next := (cur + dir + len(score.Waveforms)) % len(score.Waveforms)
		err = m.repo.SetWaveform(track.ConfigID, score.Waveforms[next])
	default:
		track := m.repo.SelectedTrack()
		if track == nil || track.Kind != score.KindSynth {
			return
		}
		param := paramRows[m.paramRow]
		cfg := m.repo.Score().Config(track.ConfigID)
		step := 0.01
		if param == "volume" {
			step = 0.05
		}
		cur := map[string]float64{
			"volume":  cfg.Volume,
			"attack":  cfg.Attack,
			"decay":   cfg.Decay,
			"sustain": cfg.Sustain,
			"release": cfg.Release,
		}[param]
		err = m.repo.SetSynthParam(track.ConfigID, param, cur+d*step)
	}
	if err != nil {
		m.status = err.Error()
		return
	}
	m.mutated()
}

// startAction launches a dependent action. The syncer's in-flight guard
// backs this up, but the busy field keeps the UI honest too.
func (m Model) startAction(action string) (tea.Model, tea.Cmd) {
	if m.busy != "" {
		m.status = m.busy + " still running"
		return m, nil
	}
	m.busy = action
	m.status = action + "..."

	switch action {
	case "play":
		return m, func() tea.Msg {
			ctx, cancel := m.reqContext()
			defer cancel()
			wav, err := m.syncer.Play(ctx)
			return playDoneMsg{wav: wav, err: err}
		}
	case "save":
		return m, func() tea.Msg {
			ctx, cancel := m.reqContext()
			defer cancel()
			return actionDoneMsg{action: "save", err: m.syncer.Save(ctx)}
		}
	case "revert":
		return m, func() tea.Msg {
			ctx, cancel := m.reqContext()
			defer cancel()
			return actionDoneMsg{action: "revert", err: m.syncer.Revert(ctx)}
		}
	}
	return m, nil
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.prompt = promptNone
		m.promptBuffer = ""
		return m, nil
	case "enter":
		return m.commitPrompt()
	case "backspace":
		if len(m.promptBuffer) > 0 {
			m.promptBuffer = m.promptBuffer[:len(m.promptBuffer)-1]
		}
		return m, nil
	default:
		if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
			m.promptBuffer += msg.String()
		}
		return m, nil
	}
}

func (m Model) commitPrompt() (tea.Model, tea.Cmd) {
	input := m.promptBuffer
	kind := m.prompt
	m.prompt = promptNone
	m.promptBuffer = ""

	switch kind {
	case promptSynthName:
		if err := m.repo.AddSynthTrack(input); err != nil {
			m.status = err.Error()
			break
		}
		m.mutated()
		m.status = "added " + input

	case promptSampleName:
		if input == "" {
			m.status = "track name required"
			break
		}
		m.sampleName = input
		m.prompt = promptSamplePath
		m.promptBuffer = ""

	case promptSamplePath:
		path := input
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		// Sample references must resolve before the track is addable.
		if _, err := os.Stat(path); err != nil {
			m.status = fmt.Sprintf("sample not found: %s", path)
			break
		}
		if err := m.repo.AddSampleTrack(m.sampleName, path); err != nil {
			m.status = err.Error()
			break
		}
		m.mutated()
		m.status = "added " + m.sampleName

	case promptEditRequest:
		if input == "" {
			break
		}
		if m.busy != "" {
			m.status = m.busy + " still running"
			break
		}
		m.busy = "edit"
		m.status = "edit..."
		prompt := input
		return m, func() tea.Msg {
			ctx, cancel := m.reqContext()
			defer cancel()
			return actionDoneMsg{action: "edit", err: m.syncer.EditPrompt(ctx, prompt)}
		}
	}

	return m, nil
}

// loadLatestSong replaces the song with the newest local song file.
func (m *Model) loadLatestSong() {
	dir, err := m.cfg.SongsPath()
	if err != nil {
		m.status = err.Error()
		return
	}
	songs, err := score.ListSongs(dir)
	if err != nil {
		m.status = err.Error()
		return
	}
	if len(songs) == 0 {
		m.status = "no saved songs"
		return
	}
	s, err := score.LoadFile(filepath.Join(dir, songs[0].Filename))
	if err != nil {
		m.status = err.Error()
		return
	}
	m.repo.Replace(s)
	m.mutated()
	m.status = "loaded " + songs[0].Filename
}
