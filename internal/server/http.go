package server

import (
	"encoding/json"
	"net/http"

	"github.com/zeusync/lockstep/internal/core/cosmos"
)

type statusPlayer struct {
	ID      uint32 `json:"id"`
	Name    string `json:"name"`
	Faction string `json:"faction"`
	Score   int32  `json:"score"`
	Kills   uint32 `json:"kills"`
	Deaths  uint32 `json:"deaths"`
}

type status struct {
	Session  string         `json:"session"`
	Step     uint64         `json:"step"`
	Round    uint32         `json:"round"`
	Paused   bool           `json:"paused"`
	Entities int            `json:"entities"`
	Players  []statusPlayer `json:"players"`
}

type chatLine struct {
	Kind    uint8  `json:"kind"`
	Author  uint32 `json:"author,omitempty"`
	Subject uint32 `json:"subject,omitempty"`
	Text    string `json:"text"`
}

type readiness struct {
	Step uint64 `json:"step"`
}

// StatusHandler serves /status with the last published world, /ready with
// just its step and /chat with recent server chat. It only reads through the
// handoff.
func (s *Server) StatusHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/chat", s.handleChat)
	return mux
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	step, ok := s.handoff.Step()
	if !ok {
		http.Error(w, "not running", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, readiness{Step: step})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	out := status{Session: s.session.String()}
	ok := s.View(func(c *cosmos.Cosmos) {
		out.Step = c.Step()
		out.Round = c.Round()
		out.Paused = c.Paused()
		out.Entities = c.EntityCount()
		for _, p := range c.Players() {
			out.Players = append(out.Players, statusPlayer{
				ID:      uint32(p.ID),
				Name:    p.Name,
				Faction: p.Faction.String(),
				Score:   p.Score,
				Kills:   p.Kills,
				Deaths:  p.Deaths,
			})
		}
	})
	if !ok {
		http.Error(w, "not running", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, out)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	lines := s.chat.Get()
	out := make([]chatLine, len(lines))
	for i, l := range lines {
		out[i] = chatLine{Kind: uint8(l.Kind), Author: uint32(l.Author), Subject: uint32(l.Subject), Text: l.Text}
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
