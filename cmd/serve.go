package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"gridseq/score"
	"gridseq/synth"
)

// A development stand-in for the compute service: it implements the
// five endpoints of the sync contract against an in-memory song
// history and renders audio with the local synth engine. Useful for
// working on the editor without the real backend.

var (
	servePort     int
	serveSavePath string
)

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 5050, "port to listen on")
	serveCmd.Flags().StringVar(&serveSavePath, "save-path", "recent_song_info.json", "where save_song writes the song")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run a local compute service",
	Run: func(cmd *cobra.Command, args []string) {
		srv := newComputeServer(serveSavePath)
		addr := fmt.Sprintf(":%d", servePort)
		fmt.Printf("compute service listening on %s\n", addr)
		log.Fatal(http.ListenAndServe(addr, srv.Handler()))
	},
}

type computeServer struct {
	mu       sync.Mutex
	history  []score.Score
	savePath string

	// Decoded sample buffers, keyed by path.
	sampleCache map[string][]float32
}

func newComputeServer(savePath string) *computeServer {
	return &computeServer{
		savePath:    savePath,
		sampleCache: map[string][]float32{},
	}
}

// Handler builds the router with permissive CORS, matching what a
// browser-hosted editor needs.
func (s *computeServer) Handler() http.Handler {
	r := mux.NewRouter().StrictSlash(true)
	r.HandleFunc("/create_song", s.handleCreate).Methods("POST")
	r.HandleFunc("/play_song", s.handlePlay).Methods("POST")
	r.HandleFunc("/save_song", s.handleSave).Methods("POST")
	r.HandleFunc("/revert_song", s.handleRevert).Methods("GET")
	r.HandleFunc("/llm_edit_song", s.handleEdit).Methods("POST")
	return cors.Default().Handler(r)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *computeServer) current() (*score.Score, bool) {
	if len(s.history) == 0 {
		return nil, false
	}
	return &s.history[len(s.history)-1], true
}

func (s *computeServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload score.SongPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "malformed song: "+err.Error())
		return
	}
	sc, err := score.ParseSong(payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	s.history = append(s.history, sc)
	s.mu.Unlock()
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *computeServer) loadSamples(sc *score.Score) (map[string][]float32, error) {
	out := map[string][]float32{}
	for name, path := range sc.Samples {
		if buf, ok := s.sampleCache[path]; ok {
			out[name] = buf
			continue
		}
		buf, _, err := synth.LoadWAV(path)
		if err != nil {
			return nil, fmt.Errorf("sample %q: %w", name, err)
		}
		s.sampleCache[path] = buf
		out[name] = buf
	}
	return out, nil
}

func (s *computeServer) handlePlay(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.current()
	if !ok {
		writeError(w, http.StatusBadRequest, "no song loaded")
		return
	}
	samples, err := s.loadSamples(sc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mix, err := synth.Mixdown(sc, samples)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rate := score.DefaultSampleRate
	if len(sc.Configs) > 0 && sc.Configs[0].SampleRate > 0 {
		rate = sc.Configs[0].SampleRate
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Write(synth.EncodeWAV(mix, rate))
}

func (s *computeServer) handleSave(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.current()
	if !ok {
		writeError(w, http.StatusBadRequest, "no song loaded")
		return
	}
	data, err := json.MarshalIndent(sc.Serialize(), "", "  ")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := os.WriteFile(s.savePath, data, 0644); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *computeServer) handleRevert(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) > 1 {
		s.history = s.history[:len(s.history)-1]
	}
	sc, ok := s.current()
	if !ok {
		writeError(w, http.StatusBadRequest, "no song loaded")
		return
	}
	json.NewEncoder(w).Encode(sc.Serialize())
}

func (s *computeServer) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.current()
	if !ok {
		writeError(w, http.StatusBadRequest, "no song loaded")
		return
	}
	// The dev service has no language model behind it; it versions the
	// song and echoes it back unchanged.
	s.history = append(s.history, *sc)
	json.NewEncoder(w).Encode(sc.Serialize())
}
