package score

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Local song files: timestamped YAML snapshots of the whole score,
// independent of the compute service's persistence.

// SongInfo describes one saved song file.
type SongInfo struct {
	Filename  string
	Timestamp time.Time
}

// SaveFile writes the score to dir as a timestamped YAML file and
// returns the path written.
func (s *Score) SaveFile(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("cannot marshal song: %w", err)
	}
	path := filepath.Join(dir, time.Now().Format("2006-01-02_15-04-05")+".yml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// LoadFile reads a YAML song file.
func LoadFile(path string) (Score, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Score{}, err
	}
	var s Score
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Score{}, fmt.Errorf("cannot parse song file: %w", err)
	}
	if s.Tempo <= 0 {
		s.Tempo = DefaultTempo
	}
	if s.Samples == nil {
		s.Samples = map[string]string{}
	}
	return s, nil
}

// ListSongs returns saved song files in dir, newest first.
func ListSongs(dir string) ([]SongInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SongInfo{}, nil
		}
		return nil, err
	}

	var songs []SongInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yml") {
			continue
		}
		base := strings.TrimSuffix(entry.Name(), ".yml")
		ts, err := time.Parse("2006-01-02_15-04-05", base)
		if err != nil {
			continue
		}
		songs = append(songs, SongInfo{Filename: entry.Name(), Timestamp: ts})
	}

	sort.Slice(songs, func(i, j int) bool {
		return songs[i].Timestamp.After(songs[j].Timestamp)
	})
	return songs, nil
}
