package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/junh-oh/landrush/internal/board"
	"github.com/junh-oh/landrush/internal/dispatch"
	"github.com/junh-oh/landrush/internal/models"
	"github.com/junh-oh/landrush/internal/prompt"
	"github.com/junh-oh/landrush/internal/transport"
)

// liquidateArgs maps the prompt's option list back to tile indexes.
type liquidateArgs struct {
	TileIdxs []int `json:"tileIdxs"`
}

// liquidateFactory asks an overdrawn player which property to sell. Each
// answer sells exactly one tile and republishes the suspended delta, so the
// loop strictly shrinks the owned-property set and terminates.
type liquidateFactory struct {
	e *Engine
}

func (f *liquidateFactory) Build(ctx context.Context, env *prompt.Env, p *models.Prompt) (bool, error) {
	match, err := env.Store.Match(ctx, p.MatchID)
	if err != nil {
		return false, err
	}
	if match == nil {
		return false, nil
	}
	owned := board.OwnedIndexes(match.Tiles, p.PlayerID)
	if len(owned) == 0 {
		return false, nil
	}
	options := make([]string, len(owned))
	for i, idx := range owned {
		t := &match.Tiles[idx]
		options[i] = fmt.Sprintf("%s (%d)", t.Name, board.TileValue(t))
	}
	raw, err := json.Marshal(liquidateArgs{TileIdxs: owned})
	if err != nil {
		return false, err
	}
	p.Type = models.PromptSelect
	p.Message = "You are short on cash. Choose a property to sell."
	p.Options = options
	p.Args = raw
	return true, nil
}

func (f *liquidateFactory) OnAnswer(ctx context.Context, env *prompt.Env, p *models.Prompt, ans models.Answer) (*dispatch.Message, error) {
	resume := prompt.ResumeMessage(p)
	var args liquidateArgs
	if err := json.Unmarshal(p.Args, &args); err != nil {
		return resume, nil
	}
	if ans.Index < 0 || ans.Index >= len(args.TileIdxs) {
		// Out-of-range pick: let the suspended delta re-prompt.
		return resume, nil
	}
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

	tile := &match.Tiles[args.TileIdxs[ans.Index]]
	if tile.Owner != player.ID {
		// World changed while the prompt was outstanding; the redelivered
		// delta rebuilds the prompt from current state.
		return resume, nil
	}
	value := board.TileValue(tile)
	tile.Owner = ""
	tile.Level = 0
	if tile.Type == models.TileRailroad {
		board.RecountRailroads(match.Tiles, player.ID)
	}
	player.State.Money += value
	if err := env.Store.PutMatch(ctx, match); err != nil {
		return nil, err
	}
	if err := env.Store.PutPlayer(ctx, player); err != nil {
		return nil, err
	}

	env.Notifier.Emit(player.ID, transport.EventNotice,
		fmt.Sprintf("You sold %s for %d", tile.Name, value))
	transport.Broadcast(env.Notifier, match, transport.EventMatch, match)
	return resume, nil
}
