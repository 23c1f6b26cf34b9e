package turn

import (
	"context"

	"github.com/junh-oh/landrush/internal/board"
	"github.com/junh-oh/landrush/internal/dispatch"
	"github.com/junh-oh/landrush/internal/ledger"
	"github.com/junh-oh/landrush/internal/models"
	"github.com/junh-oh/landrush/internal/transport"
)

// landing dispatches the tile-type-specific landing rule for the tile the
// player stopped on. Several rules suspend into a prompt or hand off to the
// ledger saga; the continuation always re-enters play.
func (e *Engine) landing(ctx context.Context, match *models.Match, player *models.Player, msg *dispatch.Message) error {
	if err := e.lock(ctx, match, models.StateLanding); err != nil {
		return err
	}
	def, ok := e.def(match)
	if !ok {
		return e.unlock(ctx, match)
	}
	idx := player.State.Position
	tile := &match.Tiles[idx]

	switch tile.Type {
	case models.TileStart, models.TilePrison, models.TileWorldTour:
		// Start pays on arrival during the move phase; prison is just
		// visiting; world tour acts at the start of the next turn.
		return e.unlockAndContinue(ctx, match, player, msg)

	case models.TilePolice:
		e.sendToPrison(def, player)
		if err := e.store.PutPlayer(ctx, player); err != nil {
			return err
		}
		e.notifyAll(match, player.Name+" was sent to prison.")
		e.broadcastPlayers(ctx, match)
		return e.unlockAndContinue(ctx, match, player, msg)

	case models.TileTax:
		amount := ledger.TaxAmount(player.State.Money,
			board.OwnedValue(match.Tiles, player.ID), tile.TaxRate)
		if amount <= 0 {
			return e.unlockAndContinue(ctx, match, player, msg)
		}
		if err := e.unlock(ctx, match); err != nil {
			return err
		}
		return e.bus.Publish(ctx, chainDeduct(match.ID, e.replay(match, player, msg), ledger.DeltaBody{
			PlayerID:  player.ID,
			Amount:    -amount,
			Origin:    tile.Name,
			Broadcast: true,
		}))

	case models.TileChance:
		card := e.randIntn(len(chanceDeck))
		if err := e.unlock(ctx, match); err != nil {
			return err
		}
		return e.broker.Publish(ctx, match.ID, player.ID, FactoryChance,
			chanceArgs{Card: card}, e.replay(match, player, msg))

	case models.TileDeed:
		switch {
		case tile.Owner == "":
			return e.offerBuy(ctx, match, player, idx, msg)
		case tile.Owner == player.ID:
			return e.offerImprove(ctx, match, player, idx, msg)
		default:
			return e.payOwner(ctx, match, player, tile.Owner, board.Rent(match.Tiles, idx), msg)
		}

	case models.TileRailroad:
		switch {
		case tile.Owner == "":
			return e.offerBuy(ctx, match, player, idx, msg)
		case tile.Owner == player.ID:
			return e.unlockAndContinue(ctx, match, player, msg)
		default:
			return e.payOwner(ctx, match, player, tile.Owner, board.Rent(match.Tiles, idx), msg)
		}

	case models.TileCompany:
		switch {
		case tile.Owner == "":
			return e.offerBuy(ctx, match, player, idx, msg)
		case tile.Owner == player.ID:
			return e.unlockAndContinue(ctx, match, player, msg)
		default:
			fee := tile.Multiplier * (match.LastDice[0] + match.LastDice[1])
			if tile.WorldCup {
				fee *= 2
			}
			return e.payOwner(ctx, match, player, tile.Owner, fee, msg)
		}

	case models.TileWorldCup:
		if len(ownedDeeds(match.Tiles, player.ID)) == 0 {
			return e.unlockAndContinue(ctx, match, player, msg)
		}
		if err := e.unlock(ctx, match); err != nil {
			return err
		}
		return e.broker.Publish(ctx, match.ID, player.ID, FactoryWorldCupHost,
			nil, e.replay(match, player, msg))
	}
	return e.unlockAndContinue(ctx, match, player, msg)
}

// offerBuy prompts an affordable purchase of an unowned tile.
func (e *Engine) offerBuy(ctx context.Context, match *models.Match, player *models.Player, idx int, msg *dispatch.Message) error {
	tile := &match.Tiles[idx]
	if player.State.Money < tile.Price {
		return e.unlockAndContinue(ctx, match, player, msg)
	}
	if err := e.unlock(ctx, match); err != nil {
		return err
	}
	return e.broker.Publish(ctx, match.ID, player.ID, FactoryBuy,
		tileArgs{TileIdx: idx}, e.replay(match, player, msg))
}

// offerImprove prompts building one level on the player's own deed.
func (e *Engine) offerImprove(ctx context.Context, match *models.Match, player *models.Player, idx int, msg *dispatch.Message) error {
	tile := &match.Tiles[idx]
	if tile.Level >= tile.MaxLevel() || player.State.Money < tile.BuildingCost {
		return e.unlockAndContinue(ctx, match, player, msg)
	}
	if err := e.unlock(ctx, match); err != nil {
		return err
	}
	return e.broker.Publish(ctx, match.ID, player.ID, FactoryImprove,
		tileArgs{TileIdx: idx}, e.replay(match, player, msg))
}

// payOwner defers a rent/fee payment through the transfer saga.
func (e *Engine) payOwner(ctx context.Context, match *models.Match, player *models.Player, owner string, amount int, msg *dispatch.Message) error {
	if amount <= 0 || owner == player.ID {
		return e.unlockAndContinue(ctx, match, player, msg)
	}
	if err := e.unlock(ctx, match); err != nil {
		return err
	}
	replay := e.replay(match, player, msg)
	m := replay.Clone()
	m.Action = ledger.ActionTransfer
	m.With(ledger.ActionTransfer, ledger.TransferBody{
		From:   player.ID,
		To:     owner,
		Amount: amount,
	}, ActionPlay)
	return e.bus.Publish(ctx, m)
}

// chainDeduct builds a deduct message that continues into the given resume
// action when the delta settles.
func chainDeduct(matchID string, resume *dispatch.Message, body ledger.DeltaBody) *dispatch.Message {
	return chainDelta(matchID, resume, ledger.ActionDeduct, body)
}

// chainCredit is chainDeduct for positive deltas.
func chainCredit(matchID string, resume *dispatch.Message, body ledger.DeltaBody) *dispatch.Message {
	return chainDelta(matchID, resume, ledger.ActionCredit, body)
}

func chainDelta(matchID string, resume *dispatch.Message, action string, body ledger.DeltaBody) *dispatch.Message {
	if resume == nil {
		return dispatch.NewMessage(matchID, action).With(action, body, "")
	}
	m := resume.Clone()
	m.Action = action
	m.With(action, body, resume.Action)
	return m
}

// ownedDeeds lists deed tile indexes held by the player.
func ownedDeeds(tiles []models.Tile, owner string) []int {
	var idxs []int
	for i := range tiles {
		if tiles[i].Type == models.TileDeed && tiles[i].Owner == owner {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

// broadcastMatch pushes the full match record to every seat.
func (e *Engine) broadcastMatch(match *models.Match) {
	transport.Broadcast(e.notifier, match, transport.EventMatch, match)
}
