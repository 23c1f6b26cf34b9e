// Package turn advances a match through its ordered phases. Each play
// trigger moves one phase; the handler re-reads everything it needs from the
// store so redelivered messages and forceUnlock recoveries are safe.
package turn

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/junh-oh/landrush/internal/board"
	"github.com/junh-oh/landrush/internal/dispatch"
	"github.com/junh-oh/landrush/internal/models"
	"github.com/junh-oh/landrush/internal/prompt"
	"github.com/junh-oh/landrush/internal/store"
	"github.com/junh-oh/landrush/internal/transport"
)

// ActionPlay is the turn machine's bus entry point.
const ActionPlay = "play"

// PlayBody triggers one phase advance for the named player.
type PlayBody struct {
	PlayerID    string `json:"playerId"`
	ForceUnlock bool   `json:"forceUnlock,omitempty"` // operator escape hatch for stuck matches
}

// Delayer paces the cosmetic animation waits. Tests inject a zero delayer;
// the delays are never correctness-relevant.
type Delayer func(ctx context.Context, d time.Duration)

// SleepDelayer waits for d or until ctx is done.
func SleepDelayer(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Options tune the animation pacing.
type Options struct {
	RollFrames   int           // fake rolls broadcast before the committed roll
	RollDuration time.Duration // total animation time across all frames
	RollAccel    float64       // per-frame interval shrink factor
	StepDelay    time.Duration // pause between movement steps
}

// DefaultOptions matches the client's animation timing.
func DefaultOptions() Options {
	return Options{
		RollFrames:   8,
		RollDuration: 1500 * time.Millisecond,
		RollAccel:    1.6,
		StepDelay:    250 * time.Millisecond,
	}
}

// Engine drives the per-match turn cycle.
type Engine struct {
	store    store.Store
	bus      dispatch.Bus
	notifier transport.Notifier
	broker   *prompt.Broker
	catalog  *board.Catalog
	opts     Options
	delay    Delayer
	log      *logrus.Entry

	mu  sync.Mutex
	rnd *rand.Rand
}

// New creates the turn engine. delay may be nil for real-time pacing.
func New(st store.Store, bus dispatch.Bus, n transport.Notifier, broker *prompt.Broker, catalog *board.Catalog, opts Options, delay Delayer, seed int64, log *logrus.Logger) *Engine {
	if delay == nil {
		delay = SleepDelayer
	}
	if opts.RollFrames <= 0 {
		opts.RollFrames = 1
	}
	if opts.RollAccel <= 1 {
		opts.RollAccel = 1.0001
	}
	return &Engine{
		store:    st,
		bus:      bus,
		notifier: n,
		broker:   broker,
		catalog:  catalog,
		opts:     opts,
		delay:    delay,
		rnd:      rand.New(rand.NewSource(seed)),
		log:      log.WithField("component", "turn"),
	}
}

// Register wires the play action and the turn machine's prompt factories.
func (e *Engine) Register(r *dispatch.Router) {
	r.Register(ActionPlay, dispatch.HandlerFunc(e.handlePlay))
	e.broker.RegisterFactory(FactoryBuy, &buyFactory{e: e})
	e.broker.RegisterFactory(FactoryImprove, &improveFactory{e: e})
	e.broker.RegisterFactory(FactoryChance, &chanceFactory{e: e})
	e.broker.RegisterFactory(FactoryWorldTour, &worldTourFactory{e: e})
	e.broker.RegisterFactory(FactoryWorldTourDest, &worldTourDestFactory{e: e})
	e.broker.RegisterFactory(FactoryWorldCupHost, &worldCupHostFactory{e: e})
}

func (e *Engine) roll() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rnd.Intn(6) + 1, e.rnd.Intn(6) + 1
}

func (e *Engine) randIntn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rnd.Intn(n)
}

// handlePlay advances the match by exactly one phase. Triggers for locked
// matches or from players not holding the turn are dropped unless the
// operator forceUnlock override is set.
func (e *Engine) handlePlay(ctx context.Context, msg *dispatch.Message) error {
	var body PlayBody
	if err := msg.Decode(&body); err != nil {
		e.log.WithError(err).Debug("undecodable play body, dropping")
		return nil
	}
	match, err := e.store.Match(ctx, msg.MatchID)
	if err != nil {
		return err
	}
	player, err := e.store.Player(ctx, body.PlayerID)
	if err != nil {
		return err
	}
	if match == nil || player == nil || player.MatchID != match.ID {
		e.log.WithFields(logrus.Fields{"match": msg.MatchID, "player": body.PlayerID}).
			Debug("play for unknown match or player, dropping")
		return nil
	}
	if match.State == models.StateOver || match.State == models.StateLobby {
		return nil
	}
	if match.Locked && !body.ForceUnlock {
		e.log.WithField("match", match.ID).Debug("match locked, dropping trigger")
		return nil
	}
	if !player.State.Turn && !body.ForceUnlock {
		e.log.WithFields(logrus.Fields{"match": match.ID, "player": player.ID}).
			Debug("player does not hold the turn, dropping trigger")
		return nil
	}

	switch match.State {
	case models.StateIdle:
		return e.startTurn(ctx, match, player, msg)
	case models.StateStartTurn:
		return e.rollDice(ctx, match, player, msg)
	case models.StateRollingDice:
		return e.playing(ctx, match, player, msg)
	case models.StatePlaying:
		return e.moving(ctx, match, player, msg)
	case models.StateMoving:
		return e.landing(ctx, match, player, msg)
	case models.StateLanding:
		return e.endTurn(ctx, match, player, msg)
	}
	return nil
}

// lock moves the match into the phase and marks it mid-flight.
func (e *Engine) lock(ctx context.Context, match *models.Match, state models.MatchState) error {
	match.State = state
	match.Locked = true
	return e.store.PutMatch(ctx, match)
}

// unlock clears the mid-flight flag without re-triggering; used when a
// prompt is pending and its answer will resume the cycle.
func (e *Engine) unlock(ctx context.Context, match *models.Match) error {
	match.Locked = false
	return e.store.PutMatch(ctx, match)
}

// unlockAndContinue clears the mid-flight flag and republishes the play
// trigger so the next phase runs.
func (e *Engine) unlockAndContinue(ctx context.Context, match *models.Match, player *models.Player, msg *dispatch.Message) error {
	if err := e.unlock(ctx, match); err != nil {
		return err
	}
	return e.bus.Publish(ctx, e.replay(match, player, msg))
}

// replay rebuilds the play trigger for the same player, dropping any
// one-shot forceUnlock flag.
func (e *Engine) replay(match *models.Match, player *models.Player, msg *dispatch.Message) *dispatch.Message {
	step := ""
	if msg != nil {
		if s, ok := msg.Actions[ActionPlay]; ok {
			step = s.Callback
		}
	}
	return dispatch.NewMessage(match.ID, ActionPlay).
		With(ActionPlay, PlayBody{PlayerID: player.ID}, step)
}

// broadcastPlayers pushes every seated player's state to all seats.
func (e *Engine) broadcastPlayers(ctx context.Context, match *models.Match) {
	players := make([]*models.Player, 0, len(match.PlayerOrder))
	for _, id := range match.Seats() {
		p, err := e.store.Player(ctx, id)
		if err != nil || p == nil {
			continue
		}
		players = append(players, p)
	}
	transport.Broadcast(e.notifier, match, transport.EventPlayers, players)
}

func (e *Engine) notifyAll(match *models.Match, text string) {
	transport.Broadcast(e.notifier, match, transport.EventNotice, text)
}
