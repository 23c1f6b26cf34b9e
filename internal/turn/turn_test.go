package turn

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junh-oh/landrush/internal/ai"
	"github.com/junh-oh/landrush/internal/board"
	"github.com/junh-oh/landrush/internal/dispatch"
	"github.com/junh-oh/landrush/internal/ledger"
	"github.com/junh-oh/landrush/internal/models"
	"github.com/junh-oh/landrush/internal/prompt"
	"github.com/junh-oh/landrush/internal/store"
	"github.com/junh-oh/landrush/internal/transport"
)

type emitted struct {
	PlayerID string
	Event    transport.Event
	Payload  any
}

type recorder struct {
	mu     sync.Mutex
	events []emitted
}

func (r *recorder) Emit(playerID string, event transport.Event, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, emitted{playerID, event, payload})
}

func (r *recorder) notices(playerID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.PlayerID == playerID && e.Event == transport.EventNotice {
			if s, ok := e.Payload.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

type fixture struct {
	store    *store.Memory
	bus      *dispatch.MemoryBus
	notifier *recorder
	broker   *prompt.Broker
	catalog  *board.Catalog
	engine   *Engine
}

func newFixture(t *testing.T, answerer prompt.Answerer) *fixture {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	catalog, err := board.Load(log)
	require.NoError(t, err)

	fx := &fixture{store: store.NewMemory(), notifier: &recorder{}, catalog: catalog}
	router := dispatch.NewRouter(log)
	fx.bus = dispatch.NewMemoryBus(router, log)

	env := &prompt.Env{Store: fx.store, Bus: fx.bus, Notifier: fx.notifier, Catalog: catalog}
	fx.broker = prompt.New(env, answerer, log)
	fx.broker.Register(router)

	ledger.New(fx.store, fx.bus, fx.notifier, fx.broker, nil, time.Hour, log).Register(router)

	noDelay := func(context.Context, time.Duration) {}
	fx.engine = New(fx.store, fx.bus, fx.notifier, fx.broker, catalog, DefaultOptions(), noDelay, 1, log)
	fx.engine.Register(router)
	return fx
}

// newMatch seats the players on the classic board with the first player
// holding the turn.
func (fx *fixture) newMatch(t *testing.T, playerIDs ...string) *models.Match {
	t.Helper()
	ctx := context.Background()
	def, ok := fx.catalog.Board("classic")
	require.True(t, ok)

	match := &models.Match{
		ID:          "m1",
		BoardName:   "classic",
		PlayerOrder: playerIDs,
		Tiles:       def.NewTiles(),
		State:       models.StateIdle,
	}
	require.NoError(t, fx.store.PutMatch(ctx, match))
	for i, id := range playerIDs {
		require.NoError(t, fx.store.PutPlayer(ctx, &models.Player{
			ID: id, MatchID: "m1", Name: id,
			State: models.PlayerState{Money: def.StartMoney, Turn: i == 0},
		}))
	}
	return match
}

func (fx *fixture) play(t *testing.T, playerID string) {
	t.Helper()
	msg := dispatch.NewMessage("m1", ActionPlay).
		With(ActionPlay, PlayBody{PlayerID: playerID}, "")
	require.NoError(t, fx.bus.Publish(context.Background(), msg))
}

func (fx *fixture) player(t *testing.T, id string) *models.Player {
	t.Helper()
	p, err := fx.store.Player(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func (fx *fixture) match(t *testing.T) *models.Match {
	t.Helper()
	m, err := fx.store.Match(context.Background(), "m1")
	require.NoError(t, err)
	require.NotNil(t, m)
	return m
}

func (fx *fixture) prompt(t *testing.T, playerID string) *models.Prompt {
	t.Helper()
	p, err := fx.store.Prompt(context.Background(), models.PromptID("m1", playerID))
	require.NoError(t, err)
	return p
}

func (fx *fixture) answer(t *testing.T, playerID string, ans models.Answer) {
	t.Helper()
	err := fx.broker.Answer(context.Background(), playerID, models.PromptID("m1", playerID), ans)
	require.NoError(t, err)
}

// atPhase rewrites the match so the next play trigger enters the given
// phase with a chosen dice result already committed.
func (fx *fixture) atPhase(t *testing.T, state models.MatchState, dice [2]int) {
	t.Helper()
	m := fx.match(t)
	m.State = state
	m.LastDice = dice
	require.NoError(t, fx.store.PutMatch(context.Background(), m))
}

func (fx *fixture) placePlayer(t *testing.T, id string, mutate func(p *models.Player)) {
	t.Helper()
	p := fx.player(t, id)
	mutate(p)
	require.NoError(t, fx.store.PutPlayer(context.Background(), p))
}

func TestBuyUnownedRailroad(t *testing.T) {
	fx := newFixture(t, ai.NewScripted())
	fx.newMatch(t, "p1", "p2")
	// 1+3 from Start lands on West Line.
	fx.atPhase(t, models.StateRollingDice, [2]int{1, 3})

	fx.play(t, "p1")

	p := fx.prompt(t, "p1")
	require.NotNil(t, p, "buy offer pending")
	assert.Equal(t, models.PromptConfirm, p.Type)
	assert.Equal(t, FactoryBuy, p.Factory)
	assert.False(t, fx.match(t).Locked)

	fx.answer(t, "p1", models.Answer{OK: true})

	m := fx.match(t)
	assert.Equal(t, "p1", m.Tiles[4].Owner)
	assert.Equal(t, 1, m.Tiles[4].Level)
	assert.Equal(t, models.StateIdle, m.State, "turn completed after the purchase")
	assert.Equal(t, 1800, fx.player(t, "p1").State.Money)
	assert.False(t, fx.player(t, "p1").State.Turn)
	assert.True(t, fx.player(t, "p2").State.Turn)
}

func TestDeclineBuyEndsTurn(t *testing.T) {
	fx := newFixture(t, ai.NewScripted())
	fx.newMatch(t, "p1", "p2")
	fx.atPhase(t, models.StateRollingDice, [2]int{1, 3})

	fx.play(t, "p1")
	fx.answer(t, "p1", models.Answer{OK: false})

	m := fx.match(t)
	assert.Empty(t, m.Tiles[4].Owner)
	assert.Equal(t, models.StateIdle, m.State)
	assert.Equal(t, 2000, fx.player(t, "p1").State.Money)
	assert.True(t, fx.player(t, "p2").State.Turn)
}

func TestLandingPaysRent(t *testing.T) {
	fx := newFixture(t, ai.NewScripted())
	m := fx.newMatch(t, "p1", "p2")
	m.Tiles[4].Owner = "p2"
	m.Tiles[4].Level = 1
	require.NoError(t, fx.store.PutMatch(context.Background(), m))
	fx.atPhase(t, models.StateRollingDice, [2]int{1, 3})

	fx.play(t, "p1")

	assert.Equal(t, 1975, fx.player(t, "p1").State.Money)
	assert.Equal(t, 2025, fx.player(t, "p2").State.Money)
	assert.Equal(t, models.StateIdle, fx.match(t).State)
	assert.True(t, fx.player(t, "p2").State.Turn)
}

func TestLandingOwnRailroadIsFree(t *testing.T) {
	fx := newFixture(t, ai.NewScripted())
	m := fx.newMatch(t, "p1", "p2")
	m.Tiles[4].Owner = "p1"
	m.Tiles[4].Level = 1
	require.NoError(t, fx.store.PutMatch(context.Background(), m))
	fx.atPhase(t, models.StateRollingDice, [2]int{1, 3})

	fx.play(t, "p1")

	assert.Equal(t, 2000, fx.player(t, "p1").State.Money)
	assert.Equal(t, models.StateIdle, fx.match(t).State)
}

func TestTaxLanding(t *testing.T) {
	fx := newFixture(t, ai.NewScripted())
	fx.newMatch(t, "p1", "p2")
	fx.placePlayer(t, "p1", func(p *models.Player) { p.State.Position = 1 })
	// 1+3 from Lisbon lands on Income Tax.
	fx.atPhase(t, models.StateRollingDice, [2]int{1, 3})

	fx.play(t, "p1")

	assert.Equal(t, 1800, fx.player(t, "p1").State.Money, "10% of cash")
	assert.Equal(t, models.StateIdle, fx.match(t).State)
	assert.True(t, fx.player(t, "p2").State.Turn)
}

func TestSalaryOnPassingStart(t *testing.T) {
	fx := newFixture(t, ai.NewScripted())
	fx.newMatch(t, "p1", "p2")
	fx.placePlayer(t, "p1", func(p *models.Player) { p.State.Position = 22 })
	// 1+2 wraps past Start onto Lisbon.
	fx.atPhase(t, models.StateRollingDice, [2]int{1, 2})

	fx.play(t, "p1")

	p1 := fx.player(t, "p1")
	assert.Equal(t, 1, p1.State.Position)
	assert.Equal(t, 2200, p1.State.Money, "salary collected while passing Start")
	require.NotNil(t, fx.prompt(t, "p1"), "Lisbon buy offer pending")
}

func TestPrisonStayWithoutDoubles(t *testing.T) {
	fx := newFixture(t, ai.NewScripted())
	fx.newMatch(t, "p1", "p2")
	fx.placePlayer(t, "p1", func(p *models.Player) {
		p.State.Position = 6
		p.State.Prison = 2
	})
	fx.atPhase(t, models.StateRollingDice, [2]int{1, 2})

	fx.play(t, "p1")

	p1 := fx.player(t, "p1")
	assert.Equal(t, 1, p1.State.Prison)
	assert.Equal(t, 6, p1.State.Position, "no movement while imprisoned")
	assert.Equal(t, models.StateIdle, fx.match(t).State)
	assert.True(t, fx.player(t, "p2").State.Turn)
	assert.Contains(t, fx.notifier.notices("p1"), "No doubles. You stay in prison.")
}

func TestPrisonDoublesFrees(t *testing.T) {
	fx := newFixture(t, ai.NewScripted())
	fx.newMatch(t, "p1", "p2")
	fx.placePlayer(t, "p1", func(p *models.Player) {
		p.State.Position = 6
		p.State.Prison = 2
	})
	// Doubles free the player and walk 4 onto North Line.
	fx.atPhase(t, models.StateRollingDice, [2]int{2, 2})

	fx.play(t, "p1")

	p1 := fx.player(t, "p1")
	assert.Zero(t, p1.State.Prison)
	assert.Equal(t, 10, p1.State.Position)
	assert.False(t, p1.State.PlayAgain, "prison doubles do not earn a repeat turn")
	require.NotNil(t, fx.prompt(t, "p1"), "landed on an unowned railroad")
}

func TestTripleDoublesSendsToPrison(t *testing.T) {
	fx := newFixture(t, ai.NewScripted())
	fx.newMatch(t, "p1", "p2")
	fx.placePlayer(t, "p1", func(p *models.Player) { p.State.Doubles = 2 })
	fx.atPhase(t, models.StateRollingDice, [2]int{3, 3})

	fx.play(t, "p1")

	p1 := fx.player(t, "p1")
	assert.Equal(t, 6, p1.State.Position)
	assert.Equal(t, 2, p1.State.Prison)
	assert.Zero(t, p1.State.Doubles)
	assert.False(t, p1.State.PlayAgain)
	assert.True(t, fx.player(t, "p2").State.Turn)
}

func TestDoublesEarnAnotherTurn(t *testing.T) {
	fx := newFixture(t, ai.NewScripted())
	fx.newMatch(t, "p1", "p2")
	fx.placePlayer(t, "p1", func(p *models.Player) { p.State.Position = 2 })
	// 2+2 from Madrid lands on the prison tile, visiting only.
	fx.atPhase(t, models.StateRollingDice, [2]int{2, 2})

	fx.play(t, "p1")

	p1 := fx.player(t, "p1")
	assert.Equal(t, 6, p1.State.Position)
	assert.Zero(t, p1.State.Prison)
	assert.True(t, p1.State.Turn, "doubles keep the turn")
	assert.False(t, p1.State.PlayAgain, "consumed by the repeat")
	assert.False(t, fx.player(t, "p2").State.Turn)
	assert.Equal(t, models.StateIdle, fx.match(t).State)
}

func TestPoliceSendsToPrison(t *testing.T) {
	fx := newFixture(t, ai.NewScripted())
	fx.newMatch(t, "p1", "p2")
	fx.placePlayer(t, "p1", func(p *models.Player) { p.State.Position = 14 })
	// 1+3 from Istanbul lands on Police.
	fx.atPhase(t, models.StateRollingDice, [2]int{1, 3})

	fx.play(t, "p1")

	p1 := fx.player(t, "p1")
	assert.Equal(t, 6, p1.State.Position)
	assert.Equal(t, 2, p1.State.Prison)
	assert.Contains(t, fx.notifier.notices("p2"), "p1 was sent to prison.")
	assert.Equal(t, models.StateIdle, fx.match(t).State)
}

func TestEndTurnSkipsLostPlayers(t *testing.T) {
	fx := newFixture(t, ai.NewScripted())
	fx.newMatch(t, "p1", "p2", "p3")
	fx.placePlayer(t, "p2", func(p *models.Player) { p.State.Victory = models.VictoryLost })
	fx.atPhase(t, models.StateLanding, [2]int{1, 2})

	fx.play(t, "p1")

	assert.False(t, fx.player(t, "p1").State.Turn)
	assert.False(t, fx.player(t, "p2").State.Turn)
	assert.True(t, fx.player(t, "p3").State.Turn)
}

func TestLockedMatchDropsTrigger(t *testing.T) {
	fx := newFixture(t, ai.NewScripted())
	m := fx.newMatch(t, "p1", "p2")
	m.State = models.StateLanding
	m.Locked = true
	require.NoError(t, fx.store.PutMatch(context.Background(), m))

	fx.play(t, "p1")
	assert.Equal(t, models.StateLanding, fx.match(t).State)
	assert.True(t, fx.match(t).Locked)

	// The operator override runs the stuck phase.
	msg := dispatch.NewMessage("m1", ActionPlay).
		With(ActionPlay, PlayBody{PlayerID: "p1", ForceUnlock: true}, "")
	require.NoError(t, fx.bus.Publish(context.Background(), msg))
	assert.Equal(t, models.StateIdle, fx.match(t).State)
	assert.False(t, fx.match(t).Locked)
}

func TestTriggerFromWrongPlayerDropped(t *testing.T) {
	fx := newFixture(t, ai.NewScripted())
	fx.newMatch(t, "p1", "p2")
	fx.atPhase(t, models.StateLanding, [2]int{1, 2})

	fx.play(t, "p2")
	assert.Equal(t, models.StateLanding, fx.match(t).State)
	assert.True(t, fx.player(t, "p1").State.Turn)
}

func TestWorldTourRelocation(t *testing.T) {
	fx := newFixture(t, ai.NewScripted())
	fx.newMatch(t, "p1", "p2")
	fx.placePlayer(t, "p1", func(p *models.Player) { p.State.Position = 12 })

	fx.play(t, "p1")

	p := fx.prompt(t, "p1")
	require.NotNil(t, p)
	assert.Equal(t, FactoryWorldTour, p.Factory)
	assert.Equal(t, models.PromptConfirm, p.Type)

	fx.answer(t, "p1", models.Answer{OK: true})
	p = fx.prompt(t, "p1")
	require.NotNil(t, p)
	assert.Equal(t, FactoryWorldTourDest, p.Factory)
	assert.Equal(t, models.PromptSelect, p.Type)
	require.NotEmpty(t, p.Options)
	assert.Equal(t, "Lisbon", p.Options[0])

	fx.answer(t, "p1", models.Answer{Index: 0})

	p1 := fx.player(t, "p1")
	assert.Equal(t, 1, p1.State.Position, "walked to the chosen deed")
	// 100 fare paid, 200 salary collected passing Start on the way.
	assert.Equal(t, 2100, p1.State.Money)
	require.NotNil(t, fx.prompt(t, "p1"), "arrival resolves the tile normally")
	assert.Equal(t, FactoryBuy, fx.prompt(t, "p1").Factory)
}

func TestWorldTourDeclinedRollsNormally(t *testing.T) {
	fx := newFixture(t, ai.NewScripted())
	fx.newMatch(t, "p1", "p2")
	fx.placePlayer(t, "p1", func(p *models.Player) { p.State.Position = 12 })

	fx.play(t, "p1")
	fx.answer(t, "p1", models.Answer{OK: false})

	p1 := fx.player(t, "p1")
	assert.NotEqual(t, 12, p1.State.Position, "dice walk happened")
	assert.False(t, p1.State.CustomWalk)
}

func TestWorldCupHosting(t *testing.T) {
	fx := newFixture(t, ai.NewScripted())
	m := fx.newMatch(t, "p1", "p2")
	m.Tiles[1].Owner = "p1"
	m.Tiles[1].Level = 1
	m.Tiles[2].WorldCup = true // previous host
	require.NoError(t, fx.store.PutMatch(context.Background(), m))
	fx.placePlayer(t, "p1", func(p *models.Player) { p.State.Position = 13 })
	// 1+3 from Cairo lands on World Cup.
	fx.atPhase(t, models.StateRollingDice, [2]int{1, 3})

	fx.play(t, "p1")

	p := fx.prompt(t, "p1")
	require.NotNil(t, p)
	assert.Equal(t, FactoryWorldCupHost, p.Factory)
	assert.Equal(t, []string{"Lisbon"}, p.Options)

	fx.answer(t, "p1", models.Answer{Index: 0})

	m = fx.match(t)
	assert.True(t, m.Tiles[1].WorldCup)
	assert.False(t, m.Tiles[2].WorldCup, "marker moves, never duplicates")
	assert.Equal(t, models.StateIdle, m.State)
}

func TestCompanyFeeScalesWithDice(t *testing.T) {
	fx := newFixture(t, ai.NewScripted())
	m := fx.newMatch(t, "p1", "p2")
	m.Tiles[9].Owner = "p2"
	m.Tiles[9].Level = 1
	require.NoError(t, fx.store.PutMatch(context.Background(), m))
	fx.placePlayer(t, "p1", func(p *models.Player) { p.State.Position = 5 })
	// 1+3 from Income Tax lands on Power Company; fee 8 per pip.
	fx.atPhase(t, models.StateRollingDice, [2]int{1, 3})

	fx.play(t, "p1")

	assert.Equal(t, 2000-8*4, fx.player(t, "p1").State.Money)
	assert.Equal(t, 2000+8*4, fx.player(t, "p2").State.Money)
}

func TestImproveOwnDeed(t *testing.T) {
	fx := newFixture(t, ai.NewScripted())
	m := fx.newMatch(t, "p1", "p2")
	m.Tiles[1].Owner = "p1"
	m.Tiles[1].Level = 1
	require.NoError(t, fx.store.PutMatch(context.Background(), m))
	// 1+3 from Chance wraps past Start onto Lisbon.
	fx.placePlayer(t, "p1", func(p *models.Player) { p.State.Position = 21 })
	fx.atPhase(t, models.StateRollingDice, [2]int{1, 3})

	fx.play(t, "p1")

	p := fx.prompt(t, "p1")
	require.NotNil(t, p)
	assert.Equal(t, FactoryImprove, p.Factory)

	fx.answer(t, "p1", models.Answer{OK: true})

	m = fx.match(t)
	assert.Equal(t, 2, m.Tiles[1].Level)
	// 200 salary for passing Start minus the 50 building cost.
	assert.Equal(t, 2150, fx.player(t, "p1").State.Money)
	assert.Equal(t, models.StateIdle, m.State)
}

func TestBuyCompletingFourMonopoliesWins(t *testing.T) {
	fx := newFixture(t, ai.NewScripted())
	m := fx.newMatch(t, "p1", "p2")
	for _, idx := range []int{1, 2, 7, 8, 13, 14, 19} {
		m.Tiles[idx].Owner = "p1"
		m.Tiles[idx].Level = 1
	}
	require.NoError(t, fx.store.PutMatch(context.Background(), m))
	fx.placePlayer(t, "p1", func(p *models.Player) { p.State.Position = 16 })
	// 1+3 from Tokyo lands on London, completing the fourth color group.
	fx.atPhase(t, models.StateRollingDice, [2]int{1, 3})

	fx.play(t, "p1")
	fx.answer(t, "p1", models.Answer{OK: true})

	m = fx.match(t)
	assert.Equal(t, models.StateOver, m.State)
	assert.Equal(t, models.VictoryWon, fx.player(t, "p1").State.Victory)
	assert.Equal(t, models.VictoryLost, fx.player(t, "p2").State.Victory)
}

func TestAIOnlyMatchPauses(t *testing.T) {
	fx := newFixture(t, ai.NewScripted(models.Answer{OK: false}))
	fx.newMatch(t, "p1", "p2")
	ctx := context.Background()
	for _, id := range []string{"p1", "p2"} {
		p := fx.player(t, id)
		p.AI = true
		require.NoError(t, fx.store.PutPlayer(ctx, p))
	}
	fx.atPhase(t, models.StateLanding, [2]int{1, 2})

	fx.play(t, "p1")

	assert.True(t, fx.player(t, "p2").State.Turn)
	assert.Contains(t, fx.notifier.notices("p1"), "Only AI players remain. The match is paused.")
	assert.Equal(t, models.StateIdle, fx.match(t).State)
}

func TestAITurnRunsToCompletion(t *testing.T) {
	// Declining every offer keeps the AI turn free of side effects beyond
	// movement, whatever the dice say.
	fx := newFixture(t, ai.NewScripted(models.Answer{OK: false, Index: 0}))
	fx.newMatch(t, "p1", "p2")
	ctx := context.Background()
	p2 := fx.player(t, "p2")
	p2.AI = true
	require.NoError(t, fx.store.PutPlayer(ctx, p2))
	fx.atPhase(t, models.StateLanding, [2]int{1, 2})

	// p1 ends the turn; p2 is AI and must run a full turn unattended,
	// handing the turn back to the human.
	fx.play(t, "p1")

	assert.Equal(t, models.StateIdle, fx.match(t).State)
	assert.True(t, fx.player(t, "p1").State.Turn)
	assert.False(t, fx.player(t, "p2").State.Turn)
}
