package turn

import (
	"context"
	"math"
	"time"

	"github.com/junh-oh/landrush/internal/board"
	"github.com/junh-oh/landrush/internal/dispatch"
	"github.com/junh-oh/landrush/internal/ledger"
	"github.com/junh-oh/landrush/internal/models"
	"github.com/junh-oh/landrush/internal/transport"
)

func (e *Engine) def(match *models.Match) (*board.Definition, bool) {
	d, ok := e.catalog.Board(match.BoardName)
	if !ok {
		e.log.WithField("board", match.BoardName).Error("match references unknown board")
	}
	return d, ok
}

// startTurn runs the pre-roll tile effect. Only the world tour tile has one:
// standing on it at turn start offers a paid relocation that overrides the
// dice walk.
func (e *Engine) startTurn(ctx context.Context, match *models.Match, player *models.Player, msg *dispatch.Message) error {
	if err := e.lock(ctx, match, models.StateStartTurn); err != nil {
		return err
	}
	def, ok := e.def(match)
	if !ok {
		return e.unlock(ctx, match)
	}
	tile := &match.Tiles[player.State.Position]
	if tile.Type == models.TileWorldTour && def.WorldTourCost > 0 && player.State.Money >= def.WorldTourCost {
		if err := e.unlock(ctx, match); err != nil {
			return err
		}
		return e.broker.Publish(ctx, match.ID, player.ID, FactoryWorldTour, nil, e.replay(match, player, msg))
	}
	return e.unlockAndContinue(ctx, match, player, msg)
}

// rollDice broadcasts the decelerating fake-roll series, then commits the
// real roll. Frame intervals shrink by the acceleration factor and are
// computed once so the whole animation fits the configured duration.
func (e *Engine) rollDice(ctx context.Context, match *models.Match, player *models.Player, msg *dispatch.Message) error {
	if err := e.lock(ctx, match, models.StateRollingDice); err != nil {
		return err
	}
	n := e.opts.RollFrames
	a := e.opts.RollAccel
	base := float64(e.opts.RollDuration) * (a - 1) / (math.Pow(a, float64(n)) - 1)
	for k := n - 1; k >= 0; k-- {
		d1, d2 := e.roll()
		transport.Broadcast(e.notifier, match, transport.EventDiceRoll,
			transport.DiceRoll{Dice: [2]int{d1, d2}})
		e.delay(ctx, time.Duration(base*math.Pow(a, float64(k))))
	}
	d1, d2 := e.roll()
	match.LastDice = [2]int{d1, d2}
	transport.Broadcast(e.notifier, match, transport.EventDiceRoll,
		transport.DiceRoll{Dice: match.LastDice, Final: true})
	return e.unlockAndContinue(ctx, match, player, msg)
}

// playing resolves prison rules and the dice streak, then records the walk
// distance for the move phase.
func (e *Engine) playing(ctx context.Context, match *models.Match, player *models.Player, msg *dispatch.Message) error {
	if err := e.lock(ctx, match, models.StatePlaying); err != nil {
		return err
	}
	def, ok := e.def(match)
	if !ok {
		return e.unlock(ctx, match)
	}
	d1, d2 := match.LastDice[0], match.LastDice[1]
	doubles := d1 == d2

	if player.State.Prison > 0 {
		if !doubles {
			player.State.Prison--
			if err := e.store.PutPlayer(ctx, player); err != nil {
				return err
			}
			e.notifier.Emit(player.ID, transport.EventNotice, "No doubles. You stay in prison.")
			return e.cutToEnd(ctx, match, player, msg)
		}
		player.State.Prison = 0
		player.State.Doubles = 0
		player.State.WalkDistance = d1 + d2
		player.State.CustomWalk = false
		if err := e.store.PutPlayer(ctx, player); err != nil {
			return err
		}
		e.notifier.Emit(player.ID, transport.EventNotice, "Doubles! You are free.")
		return e.unlockAndContinue(ctx, match, player, msg)
	}

	if doubles {
		player.State.Doubles++
	} else {
		player.State.Doubles = 0
	}
	if player.State.Doubles >= 3 {
		e.sendToPrison(def, player)
		if err := e.store.PutPlayer(ctx, player); err != nil {
			return err
		}
		e.notifyAll(match, player.Name+" rolled three doubles and goes to prison.")
		return e.cutToEnd(ctx, match, player, msg)
	}
	if doubles {
		player.State.PlayAgain = true
	}
	walk := d1 + d2
	if player.State.CustomWalk {
		walk = player.State.WalkDistance
		player.State.CustomWalk = false
	}
	player.State.WalkDistance = walk
	if err := e.store.PutPlayer(ctx, player); err != nil {
		return err
	}
	return e.unlockAndContinue(ctx, match, player, msg)
}

// cutToEnd skips the move/land phases when the turn dies early (prison
// stay, triple doubles). The next trigger runs endTurn.
func (e *Engine) cutToEnd(ctx context.Context, match *models.Match, player *models.Player, msg *dispatch.Message) error {
	match.State = models.StateLanding
	return e.unlockAndContinue(ctx, match, player, msg)
}

// sendToPrison moves the player to the prison tile and starts the sentence.
func (e *Engine) sendToPrison(def *board.Definition, player *models.Player) {
	if idx := def.FindIndex(models.TilePrison); idx >= 0 {
		player.State.Position = idx
	}
	player.State.Prison = def.PrisonTerm
	player.State.Doubles = 0
	player.State.PlayAgain = false
	player.State.CustomWalk = false
}

// moving advances one tile at a time toward the target, paying the salary
// whenever Start is crossed or landed on.
func (e *Engine) moving(ctx context.Context, match *models.Match, player *models.Player, msg *dispatch.Message) error {
	if err := e.lock(ctx, match, models.StateMoving); err != nil {
		return err
	}
	def, ok := e.def(match)
	if !ok {
		return e.unlock(ctx, match)
	}
	steps := player.State.WalkDistance
	for i := 0; i < steps; i++ {
		player.State.Position = (player.State.Position + 1) % len(match.Tiles)
		if player.State.Position == 0 {
			player.State.Money += def.Salary
			ledger.BroadcastDelta(e.notifier, match, player, def.Salary, "Start")
		}
		if err := e.store.PutPlayer(ctx, player); err != nil {
			return err
		}
		e.broadcastPlayers(ctx, match)
		e.delay(ctx, e.opts.StepDelay)
	}
	return e.unlockAndContinue(ctx, match, player, msg)
}

// endTurn is the IDLE hand-off: repeat the turn when earned, otherwise pass
// it to the next non-lost seat. AI seats are auto-triggered; an AI-only
// match is paused instead of looping forever.
func (e *Engine) endTurn(ctx context.Context, match *models.Match, player *models.Player, msg *dispatch.Message) error {
	if player.State.PlayAgain && !player.Lost() {
		player.State.PlayAgain = false
		if err := e.store.PutPlayer(ctx, player); err != nil {
			return err
		}
		match.State = models.StateIdle
		match.Locked = false
		if err := e.store.PutMatch(ctx, match); err != nil {
			return err
		}
		e.broadcastPlayers(ctx, match)
		transport.Broadcast(e.notifier, match, transport.EventMatch, match)
		if player.AI {
			return e.bus.Publish(ctx, e.replay(match, player, msg))
		}
		return nil
	}

	player.State.Turn = false
	player.State.Doubles = 0
	if err := e.store.PutPlayer(ctx, player); err != nil {
		return err
	}
	match.State = models.StateIdle
	match.Locked = false
	if err := e.store.PutMatch(ctx, match); err != nil {
		return err
	}

	next, err := e.nextSeat(ctx, match, player.ID)
	if err != nil {
		return err
	}
	if next == nil {
		e.log.WithField("match", match.ID).Warn("no seat left to hand the turn to")
		e.broadcastPlayers(ctx, match)
		return nil
	}
	next.State.Turn = true
	if err := e.store.PutPlayer(ctx, next); err != nil {
		return err
	}
	e.broadcastPlayers(ctx, match)
	transport.Broadcast(e.notifier, match, transport.EventMatch, match)

	if next.AI {
		human, err := e.humanRemains(ctx, match)
		if err != nil {
			return err
		}
		if !human {
			e.notifyAll(match, "Only AI players remain. The match is paused.")
			return nil
		}
		return e.bus.Publish(ctx, e.replay(match, next, msg))
	}
	return nil
}

// nextSeat finds the next occupied, non-lost seat after the current
// player's, wrapping around. Returns nil when nobody else can play.
func (e *Engine) nextSeat(ctx context.Context, match *models.Match, currentID string) (*models.Player, error) {
	seat := match.SeatIndex(currentID)
	if seat < 0 {
		seat = 0
	}
	n := len(match.PlayerOrder)
	for i := 1; i <= n; i++ {
		id := match.PlayerOrder[(seat+i)%n]
		if id == "" || id == currentID {
			continue
		}
		p, err := e.store.Player(ctx, id)
		if err != nil {
			return nil, err
		}
		if p == nil || p.Lost() {
			continue
		}
		return p, nil
	}
	return nil, nil
}

// humanRemains reports whether any seated, non-lost human is in the match.
func (e *Engine) humanRemains(ctx context.Context, match *models.Match) (bool, error) {
	for _, id := range match.Seats() {
		p, err := e.store.Player(ctx, id)
		if err != nil {
			return false, err
		}
		if p != nil && !p.AI && !p.Lost() {
			return true, nil
		}
	}
	return false, nil
}
