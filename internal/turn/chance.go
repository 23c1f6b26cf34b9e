package turn

import (
	"context"
	"encoding/json"

	"github.com/junh-oh/landrush/internal/dispatch"
	"github.com/junh-oh/landrush/internal/ledger"
	"github.com/junh-oh/landrush/internal/models"
	"github.com/junh-oh/landrush/internal/prompt"
	"github.com/junh-oh/landrush/internal/transport"
)

type chanceEffect int

const (
	chanceGain chanceEffect = iota
	chanceLose
	chanceAdvanceStart
	chancePrison
	chancePlayAgain
)

type chanceCard struct {
	Text   string
	Effect chanceEffect
	Amount int
}

// chanceDeck is the fixed card pool; a landing draws one index uniformly.
var chanceDeck = []chanceCard{
	{Text: "Your startup got acquired. Collect 200.", Effect: chanceGain, Amount: 200},
	{Text: "Tax refund arrives. Collect 100.", Effect: chanceGain, Amount: 100},
	{Text: "You won a local lottery. Collect 50.", Effect: chanceGain, Amount: 50},
	{Text: "Speeding fine. Pay 100.", Effect: chanceLose, Amount: 100},
	{Text: "Your roof leaks. Pay 150 in repairs.", Effect: chanceLose, Amount: 150},
	{Text: "A tailwind carries you straight to Start.", Effect: chanceAdvanceStart},
	{Text: "Caught fare dodging. Go directly to prison.", Effect: chancePrison},
	{Text: "Lucky streak! Take another turn.", Effect: chancePlayAgain},
}

// chanceFactory shows the drawn card and applies its effect on dismissal.
// Money effects go through the ledger saga so liquidation and bankruptcy
// rules hold for cards too.
type chanceFactory struct{ e *Engine }

func (f *chanceFactory) Build(ctx context.Context, env *prompt.Env, p *models.Prompt) (bool, error) {
	var args chanceArgs
	if err := json.Unmarshal(p.Args, &args); err != nil {
		return false, nil
	}
	if args.Card < 0 || args.Card >= len(chanceDeck) {
		return false, nil
	}
	p.Type = models.PromptAlert
	p.Message = chanceDeck[args.Card].Text
	return true, nil
}

func (f *chanceFactory) OnAnswer(ctx context.Context, env *prompt.Env, p *models.Prompt, ans models.Answer) (*dispatch.Message, error) {
	resume := prompt.ResumeMessage(p)
	var args chanceArgs
	if err := json.Unmarshal(p.Args, &args); err != nil {
		return resume, nil
	}
	if args.Card < 0 || args.Card >= len(chanceDeck) {
		return resume, nil
	}
	card := chanceDeck[args.Card]

	match, err := env.Store.Match(ctx, p.MatchID)
	if err != nil {
		return nil, err
	}
	player, err := env.Store.Player(ctx, p.PlayerID)
	if err != nil {
		return nil, err
	}
	if match == nil || player == nil {
		return nil, nil
	}

	switch card.Effect {
	case chanceGain:
		return chainCredit(match.ID, resume, ledger.DeltaBody{
			PlayerID:  player.ID,
			Amount:    card.Amount,
			Origin:    "Chance",
			Broadcast: true,
		}), nil

	case chanceLose:
		return chainDeduct(match.ID, resume, ledger.DeltaBody{
			PlayerID:  player.ID,
			Amount:    -card.Amount,
			Origin:    "Chance",
			Broadcast: true,
		}), nil

	case chanceAdvanceStart:
		def, ok := env.Catalog.Board(match.BoardName)
		if !ok {
			return resume, nil
		}
		player.State.Position = 0
		player.State.Money += def.Salary
		if err := env.Store.PutPlayer(ctx, player); err != nil {
			return nil, err
		}
		ledger.BroadcastDelta(env.Notifier, match, player, def.Salary, "Start")
		f.e.broadcastPlayers(ctx, match)
		return resume, nil

	case chancePrison:
		def, ok := env.Catalog.Board(match.BoardName)
		if !ok {
			return resume, nil
		}
		f.e.sendToPrison(def, player)
		if err := env.Store.PutPlayer(ctx, player); err != nil {
			return nil, err
		}
		f.e.notifyAll(match, player.Name+" was sent to prison.")
		f.e.broadcastPlayers(ctx, match)
		return resume, nil

	case chancePlayAgain:
		player.State.PlayAgain = true
		if err := env.Store.PutPlayer(ctx, player); err != nil {
			return nil, err
		}
		env.Notifier.Emit(player.ID, transport.EventNotice, "You get another turn.")
		return resume, nil
	}
	return resume, nil
}
