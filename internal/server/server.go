// Package server exposes the lobby over HTTP and the live match over a
// websocket. Clients authenticate every socket with the seat token minted at
// join time; all in-match input is turned into bus actions.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"

	"github.com/junh-oh/landrush/internal/board"
	"github.com/junh-oh/landrush/internal/dispatch"
	"github.com/junh-oh/landrush/internal/models"
	"github.com/junh-oh/landrush/internal/prompt"
	"github.com/junh-oh/landrush/internal/store"
	"github.com/junh-oh/landrush/internal/transport"
)

// Server wires the lobby and socket endpoints to the game engines.
type Server struct {
	store     store.Store
	bus       dispatch.Bus
	broker    *prompt.Broker
	catalog   *board.Catalog
	hub       *Hub
	jwtSecret string
	log       *logrus.Entry
}

func New(st store.Store, bus dispatch.Bus, broker *prompt.Broker, catalog *board.Catalog, hub *Hub, jwtSecret string, log *logrus.Logger) *Server {
	return &Server{
		store:     st,
		bus:       bus,
		broker:    broker,
		catalog:   catalog,
		hub:       hub,
		jwtSecret: jwtSecret,
		log:       log.WithField("component", "server"),
	}
}

// Handler returns the HTTP routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /boards", s.handleBoards)
	mux.HandleFunc("POST /matches", s.handleCreate)
	mux.HandleFunc("GET /matches/{id}", s.handleGetMatch)
	mux.HandleFunc("POST /matches/{id}/join", s.handleJoin)
	mux.HandleFunc("POST /matches/{id}/start", s.handleStart)
	mux.HandleFunc("GET /ws", s.handleSocket)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleBoards(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"boards": s.catalog.Names()})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Board string `json:"board"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	match, err := s.createMatch(r.Context(), req.Board)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, match)
}

func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	match, err := s.store.Match(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if match == nil {
		writeError(w, http.StatusNotFound, errors.New("match not found"))
		return
	}
	writeJSON(w, http.StatusOK, match)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		AI   bool   `json:"ai"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}
	match, player, err := s.joinMatch(r.Context(), r.PathValue("id"), req.Name, req.AI)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp := map[string]any{"match": match, "player": player}
	if !player.AI {
		token, err := s.issueToken(player.ID, match.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		resp["token"] = token
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	match, err := s.startMatch(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

// clientMessage is the inbound socket frame.
type clientMessage struct {
	Type     string        `json:"type"`
	PromptID string        `json:"promptId,omitempty"`
	Answer   models.Answer `json:"answer,omitempty"`
}

// handleSocket upgrades the connection, authenticates the seat token from
// the query string and pumps client input into the bus.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	playerID, err := s.parseToken(r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, errors.New("invalid token"))
		return
	}
	player, err := s.store.Player(r.Context(), playerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if player == nil {
		writeError(w, http.StatusUnauthorized, errors.New("unknown player"))
		return
	}

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("websocket accept failed")
		return
	}
	log := s.log.WithFields(logrus.Fields{"player": player.ID, "match": player.MatchID})
	log.Info("player connected")

	if old := s.hub.attach(player.ID, c); old != nil {
		_ = old.Close(websocket.StatusPolicyViolation, "replaced by newer connection")
	}
	defer func() {
		s.hub.detach(player.ID, c)
		_ = c.CloseNow()
		log.Info("player disconnected")
	}()

	s.pushState(r.Context(), player)

	for {
		var msg clientMessage
		if err := wsjson.Read(r.Context(), c, &msg); err != nil {
			return
		}
		if err := s.handleClientMessage(r.Context(), player, msg); err != nil {
			log.WithError(err).WithField("type", msg.Type).Error("handling client message")
		}
	}
}

// pushState replays the current match, player and pending prompt to a
// freshly connected client.
func (s *Server) pushState(ctx context.Context, player *models.Player) {
	match, err := s.store.Match(ctx, player.MatchID)
	if err != nil || match == nil {
		return
	}
	s.hub.Emit(player.ID, transport.EventMatch, match)
	s.broadcastPlayers(ctx, match)
	p, err := s.store.Prompt(ctx, models.PromptID(match.ID, player.ID))
	if err == nil && p != nil {
		s.hub.Emit(player.ID, transport.EventNewPrompt, p)
	}
}

func (s *Server) handleClientMessage(ctx context.Context, player *models.Player, msg clientMessage) error {
	switch msg.Type {
	case "roll":
		return s.bus.Publish(ctx, playTrigger(player.MatchID, player.ID, false))
	case "answer":
		return s.broker.Answer(ctx, player.ID, msg.PromptID, msg.Answer)
	case "force-unlock":
		return s.bus.Publish(ctx, playTrigger(player.MatchID, player.ID, true))
	default:
		s.log.WithField("type", msg.Type).Debug("unknown client message type, dropping")
		return nil
	}
}
