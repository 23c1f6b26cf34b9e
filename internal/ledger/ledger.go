// Package ledger moves money. Every delta goes through the apply saga:
// overdrafts suspend into a forced-liquidation prompt, shortfalls resolve
// into bankruptcy, and the last solvent player triggers the win action.
package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/junh-oh/landrush/internal/board"
	"github.com/junh-oh/landrush/internal/dispatch"
	"github.com/junh-oh/landrush/internal/models"
	"github.com/junh-oh/landrush/internal/prompt"
	"github.com/junh-oh/landrush/internal/store"
	"github.com/junh-oh/landrush/internal/transport"
)

// Action names owned by the ledger. Deduct and credit share one handler;
// the split name keeps saga tables readable.
const (
	ActionDeduct   = "deduct"
	ActionCredit   = "credit"
	ActionTransfer = "transfer"
	ActionWin      = "win"

	FactoryLiquidate = "liquidate"
)

// DeltaBody is the payload of deduct/credit: a signed money delta for one
// player. Inherit marks a credit whose amount is filled from the actual
// amount its upstream debit managed to move.
type DeltaBody struct {
	PlayerID  string `json:"playerId"`
	Amount    int    `json:"amount"`
	Origin    string `json:"origin,omitempty"`
	Broadcast bool   `json:"broadcast,omitempty"`
	Inherit   bool   `json:"inherit,omitempty"`
}

// TransferBody moves money between two players.
type TransferBody struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int    `json:"amount"`
}

// WinBody declares the match winner.
type WinBody struct {
	PlayerID string `json:"playerId"`
}

// Archiver persists a finished match record. Nil-safe collaborator.
type Archiver interface {
	ArchiveMatch(ctx context.Context, m *models.Match, players []*models.Player, winner string) error
}

// Engine is the ledger's handler set.
type Engine struct {
	store    store.Store
	bus      dispatch.Bus
	notifier transport.Notifier
	broker   *prompt.Broker
	archive  Archiver
	matchTTL time.Duration
	log      *logrus.Entry
}

// New creates the ledger engine. archive may be nil.
func New(st store.Store, bus dispatch.Bus, n transport.Notifier, broker *prompt.Broker, archive Archiver, matchTTL time.Duration, log *logrus.Logger) *Engine {
	return &Engine{
		store:    st,
		bus:      bus,
		notifier: n,
		broker:   broker,
		archive:  archive,
		matchTTL: matchTTL,
		log:      log.WithField("component", "ledger"),
	}
}

// Register wires the ledger's actions and the liquidation prompt factory.
func (e *Engine) Register(r *dispatch.Router) {
	r.Register(ActionDeduct, dispatch.HandlerFunc(e.handleDelta))
	r.Register(ActionCredit, dispatch.HandlerFunc(e.handleDelta))
	r.Register(ActionTransfer, dispatch.HandlerFunc(e.handleTransfer))
	r.Register(ActionWin, dispatch.HandlerFunc(e.handleWin))
	e.broker.RegisterFactory(FactoryLiquidate, &liquidateFactory{e: e})
}

// TaxAmount is the taxable debit: a rate over cash plus total owned property
// value, rounded up.
func TaxAmount(money, ownedValue int, rate float64) int {
	return int(math.Ceil(float64(money+ownedValue) * rate))
}

// handleDelta applies a signed money delta to one player. While the delta
// would leave the player below zero and they still own property, the saga
// suspends into the liquidation prompt; its answer sells one tile and
// republishes this same message, looping until funds suffice or nothing is
// left to sell.
func (e *Engine) handleDelta(ctx context.Context, msg *dispatch.Message) error {
	var body DeltaBody
	if err := msg.Decode(&body); err != nil {
		e.log.WithError(err).Debug("undecodable delta body, dropping")
		return nil
	}
	player, err := e.store.Player(ctx, body.PlayerID)
	if err != nil {
		return err
	}
	match, err := e.store.Match(ctx, msg.MatchID)
	if err != nil {
		return err
	}
	if player == nil || match == nil {
		e.log.WithFields(logrus.Fields{"player": body.PlayerID, "match": msg.MatchID}).
			Debug("delta for unknown player or match, dropping")
		return nil
	}

	if body.Amount < 0 && player.State.Money+body.Amount < 0 &&
		len(board.OwnedIndexes(match.Tiles, player.ID)) > 0 {
		// Suspend: the liquidation answer republishes this exact message.
		return e.broker.Publish(ctx, match.ID, player.ID, FactoryLiquidate, nil, msg)
	}

	moved := body.Amount
	player.State.Money += body.Amount
	bankrupt := false
	if player.State.Money < 0 {
		moved = body.Amount - player.State.Money
		player.State.Money = 0
		player.State.Victory = models.VictoryLost
		bankrupt = true
	}
	if err := e.store.PutPlayer(ctx, player); err != nil {
		return err
	}

	if bankrupt {
		e.log.WithFields(logrus.Fields{"player": player.ID, "match": match.ID}).Info("player bankrupt")
	} else if body.Broadcast && moved != 0 {
		BroadcastDelta(e.notifier, match, player, moved, body.Origin)
	}

	// Continuation first: a transfer's credit must still land even when the
	// debit bankrupted the payer.
	if next := e.withMoved(msg.Next(), moved); next != nil {
		if err := e.bus.Publish(ctx, next); err != nil {
			return err
		}
	}

	if bankrupt {
		return e.afterBankruptcy(ctx, match, player)
	}
	return nil
}

// withMoved fills an Inherit-flagged continuation delta with the actual
// amount the current step moved, negated so a debit feeds a credit.
func (e *Engine) withMoved(next *dispatch.Message, moved int) *dispatch.Message {
	if next == nil {
		return nil
	}
	step, ok := next.Step()
	if !ok {
		return next
	}
	var body DeltaBody
	if err := next.Decode(&body); err != nil || !body.Inherit {
		return next
	}
	body.Amount = -moved
	body.Inherit = false
	next.With(next.Action, body, step.Callback)
	return next
}

// afterBankruptcy broadcasts the loss and, when exactly one solvent player
// remains, declares the winner.
func (e *Engine) afterBankruptcy(ctx context.Context, match *models.Match, lost *models.Player) error {
	var survivor string
	survivors := 0
	for _, id := range match.Seats() {
		p, err := e.store.Player(ctx, id)
		if err != nil {
			return err
		}
		if p == nil || p.Lost() {
			continue
		}
		survivor = p.ID
		survivors++
	}
	if survivors == 1 {
		win := dispatch.NewMessage(match.ID, ActionWin).
			With(ActionWin, WinBody{PlayerID: survivor}, "")
		return e.bus.Publish(ctx, win)
	}
	for _, id := range match.Seats() {
		if id == lost.ID {
			e.notifier.Emit(id, transport.EventNotice, "You went bankrupt.")
		} else {
			e.notifier.Emit(id, transport.EventNotice, fmt.Sprintf("%s went bankrupt.", lost.Name))
		}
	}
	return nil
}

// BroadcastDelta emits the transaction notice for a completed delta, first
// person to the affected player and third person to everyone else.
func BroadcastDelta(n transport.Notifier, match *models.Match, player *models.Player, moved int, origin string) {
	verb, prep := "got", "from"
	amount := moved
	if moved < 0 {
		verb, prep = "lost", "to"
		amount = -moved
	}
	for _, id := range match.Seats() {
		var text string
		if id == player.ID {
			text = fmt.Sprintf("You just %s %d %s %s", verb, amount, prep, origin)
		} else {
			text = fmt.Sprintf("%s just %s %d %s %s", player.Name, verb, amount, prep, origin)
		}
		n.Emit(id, transport.EventNotice, text)
	}
}

// handleTransfer is exactly two chained deltas: debit the payer, then credit
// the recipient with whatever the debit actually produced. The payer-side
// notice is suppressed when the recipient has already lost.
func (e *Engine) handleTransfer(ctx context.Context, msg *dispatch.Message) error {
	var body TransferBody
	if err := msg.Decode(&body); err != nil {
		e.log.WithError(err).Debug("undecodable transfer body, dropping")
		return nil
	}
	from, err := e.store.Player(ctx, body.From)
	if err != nil {
		return err
	}
	to, err := e.store.Player(ctx, body.To)
	if err != nil {
		return err
	}
	if from == nil || to == nil {
		e.log.WithFields(logrus.Fields{"from": body.From, "to": body.To}).
			Debug("transfer with unknown party, dropping")
		return nil
	}

	step, _ := msg.Step()
	chain := msg.At(ActionDeduct)
	chain.With(ActionDeduct, DeltaBody{
		PlayerID:  from.ID,
		Amount:    -body.Amount,
		Origin:    to.Name,
		Broadcast: !to.Lost(),
	}, ActionCredit)
	chain.With(ActionCredit, DeltaBody{
		PlayerID:  to.ID,
		Origin:    from.Name,
		Broadcast: true,
		Inherit:   true,
	}, step.Callback)
	return e.bus.Publish(ctx, chain)
}

// handleWin ends the match: winner marked won, every other seat lost, state
// OVER, archive written, TTL armed.
func (e *Engine) handleWin(ctx context.Context, msg *dispatch.Message) error {
	var body WinBody
	if err := msg.Decode(&body); err != nil {
		e.log.WithError(err).Debug("undecodable win body, dropping")
		return nil
	}
	match, err := e.store.Match(ctx, msg.MatchID)
	if err != nil {
		return err
	}
	if match == nil || match.State == models.StateOver {
		return nil
	}
	match.State = models.StateOver
	match.Locked = false
	match.Open = false
	if err := e.store.PutMatch(ctx, match); err != nil {
		return err
	}

	var winner *models.Player
	players := make([]*models.Player, 0, len(match.PlayerOrder))
	for _, id := range match.Seats() {
		p, err := e.store.Player(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			continue
		}
		if p.ID == body.PlayerID {
			p.State.Victory = models.VictoryWon
			winner = p
		} else if !p.Lost() {
			p.State.Victory = models.VictoryLost
		}
		p.State.Turn = false
		if err := e.store.PutPlayer(ctx, p); err != nil {
			return err
		}
		players = append(players, p)
	}

	name := body.PlayerID
	if winner != nil {
		name = winner.Name
	}
	e.log.WithFields(logrus.Fields{"match": match.ID, "winner": body.PlayerID}).Info("match over")
	transport.Broadcast(e.notifier, match, transport.EventMatch, match)
	for _, id := range match.Seats() {
		if id == body.PlayerID {
			e.notifier.Emit(id, transport.EventNotice, "You won the match!")
		} else {
			e.notifier.Emit(id, transport.EventNotice, fmt.Sprintf("%s won the match.", name))
		}
	}

	if e.archive != nil {
		if err := e.archive.ArchiveMatch(ctx, match, players, body.PlayerID); err != nil {
			e.log.WithError(err).Error("archiving finished match")
		}
	}
	return e.store.ExpireMatch(ctx, match.ID, e.matchTTL)
}
