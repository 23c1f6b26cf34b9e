package server

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/junh-oh/landrush/internal/dispatch"
	"github.com/junh-oh/landrush/internal/models"
	"github.com/junh-oh/landrush/internal/transport"
	"github.com/junh-oh/landrush/internal/turn"
)

const maxSeats = 4

// createMatch opens a lobby on the named board.
func (s *Server) createMatch(ctx context.Context, boardName string) (*models.Match, error) {
	def, ok := s.catalog.Board(boardName)
	if !ok {
		return nil, fmt.Errorf("unknown board %q", boardName)
	}
	match := &models.Match{
		ID:          uuid.NewString(),
		BoardName:   def.Name,
		PlayerOrder: make([]string, maxSeats),
		Tiles:       def.NewTiles(),
		State:       models.StateLobby,
		Open:        true,
	}
	if err := s.store.PutMatch(ctx, match); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"match": match.ID, "board": def.Name}).Info("match created")
	return match, nil
}

// joinMatch seats a new player in the first empty seat of an open lobby.
func (s *Server) joinMatch(ctx context.Context, matchID, name string, ai bool) (*models.Match, *models.Player, error) {
	match, err := s.store.Match(ctx, matchID)
	if err != nil {
		return nil, nil, err
	}
	if match == nil {
		return nil, nil, fmt.Errorf("unknown match %q", matchID)
	}
	if !match.Open || match.State != models.StateLobby {
		return nil, nil, fmt.Errorf("match %q is not accepting players", matchID)
	}
	seat := -1
	for i, id := range match.PlayerOrder {
		if id == "" {
			seat = i
			break
		}
	}
	if seat < 0 {
		return nil, nil, fmt.Errorf("match %q is full", matchID)
	}
	def, ok := s.catalog.Board(match.BoardName)
	if !ok {
		return nil, nil, fmt.Errorf("match %q references unknown board", matchID)
	}

	player := &models.Player{
		ID:      uuid.NewString(),
		MatchID: match.ID,
		Name:    name,
		AI:      ai,
		State:   models.PlayerState{Money: def.StartMoney},
	}
	if err := s.store.PutPlayer(ctx, player); err != nil {
		return nil, nil, err
	}
	match.PlayerOrder[seat] = player.ID
	if err := s.store.PutMatch(ctx, match); err != nil {
		return nil, nil, err
	}
	s.broadcastPlayers(ctx, match)
	transport.Broadcast(s.hub, match, transport.EventMatch, match)
	return match, player, nil
}

// startMatch closes the lobby and hands the turn to the first seat. An AI
// first seat is triggered immediately.
func (s *Server) startMatch(ctx context.Context, matchID string) (*models.Match, error) {
	match, err := s.store.Match(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, fmt.Errorf("unknown match %q", matchID)
	}
	if match.State != models.StateLobby {
		return nil, fmt.Errorf("match %q already started", matchID)
	}
	seats := match.Seats()
	if len(seats) < 2 {
		return nil, fmt.Errorf("match %q needs at least two players", matchID)
	}

	first, err := s.store.Player(ctx, seats[0])
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, fmt.Errorf("match %q has a vacant first seat", matchID)
	}
	first.State.Turn = true
	if err := s.store.PutPlayer(ctx, first); err != nil {
		return nil, err
	}
	match.Open = false
	match.State = models.StateIdle
	if err := s.store.PutMatch(ctx, match); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"match": match.ID, "players": len(seats)}).Info("match started")
	s.broadcastPlayers(ctx, match)
	transport.Broadcast(s.hub, match, transport.EventMatch, match)

	if first.AI {
		return match, s.bus.Publish(ctx, playTrigger(match.ID, first.ID, false))
	}
	return match, nil
}

// playTrigger builds the bus message that advances a match one phase.
func playTrigger(matchID, playerID string, forceUnlock bool) *dispatch.Message {
	return dispatch.NewMessage(matchID, turn.ActionPlay).
		With(turn.ActionPlay, turn.PlayBody{PlayerID: playerID, ForceUnlock: forceUnlock}, "")
}

func (s *Server) broadcastPlayers(ctx context.Context, match *models.Match) {
	players := make([]*models.Player, 0, len(match.PlayerOrder))
	for _, id := range match.Seats() {
		p, err := s.store.Player(ctx, id)
		if err != nil || p == nil {
			continue
		}
		players = append(players, p)
	}
	transport.Broadcast(s.hub, match, transport.EventPlayers, players)
}
