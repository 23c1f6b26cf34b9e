package turn

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/junh-oh/landrush/internal/board"
	"github.com/junh-oh/landrush/internal/dispatch"
	"github.com/junh-oh/landrush/internal/ledger"
	"github.com/junh-oh/landrush/internal/models"
	"github.com/junh-oh/landrush/internal/prompt"
	"github.com/junh-oh/landrush/internal/transport"
)

// Prompt factory names owned by the turn machine.
const (
	FactoryBuy           = "buy"
	FactoryImprove       = "improve"
	FactoryChance        = "chance"
	FactoryWorldTour     = "worldtour"
	FactoryWorldTourDest = "worldtour-dest"
	FactoryWorldCupHost  = "worldcup-host"
)

// winMonopolies is the number of complete color groups that ends the match.
const winMonopolies = 4

type tileArgs struct {
	TileIdx int `json:"tileIdx"`
}

type selectArgs struct {
	TileIdxs []int `json:"tileIdxs"`
}

type chanceArgs struct {
	Card int `json:"card"`
}

// winMessage builds the win action for a player who completed enough
// monopolies.
func winMessage(matchID, playerID string) *dispatch.Message {
	return dispatch.NewMessage(matchID, ledger.ActionWin).
		With(ledger.ActionWin, ledger.WinBody{PlayerID: playerID}, "")
}

// buyFactory confirms the purchase of an unowned tile. The answer re-reads
// the world before committing: a stale yes against a tile someone else now
// owns is a no-op resume.
type buyFactory struct{ e *Engine }

func (f *buyFactory) Build(ctx context.Context, env *prompt.Env, p *models.Prompt) (bool, error) {
	var args tileArgs
	if err := json.Unmarshal(p.Args, &args); err != nil {
		return false, nil
	}
	match, err := env.Store.Match(ctx, p.MatchID)
	if err != nil {
		return false, err
	}
	player, err := env.Store.Player(ctx, p.PlayerID)
	if err != nil {
		return false, err
	}
	if match == nil || player == nil || args.TileIdx < 0 || args.TileIdx >= len(match.Tiles) {
		return false, nil
	}
	tile := &match.Tiles[args.TileIdx]
	if !tile.Ownable() || tile.Owner != "" || player.State.Money < tile.Price {
		return false, nil
	}
	p.Type = models.PromptConfirm
	p.Message = fmt.Sprintf("Buy %s for %d?", tile.Name, tile.Price)
	return true, nil
}

func (f *buyFactory) OnAnswer(ctx context.Context, env *prompt.Env, p *models.Prompt, ans models.Answer) (*dispatch.Message, error) {
	resume := prompt.ResumeMessage(p)
	if !ans.OK {
		return resume, nil
	}
	var args tileArgs
	if err := json.Unmarshal(p.Args, &args); err != nil {
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
	tile := &match.Tiles[args.TileIdx]
	if tile.Owner != "" || player.State.Money < tile.Price {
		return resume, nil
	}

	tile.Owner = player.ID
	tile.Level = 1
	if tile.Type == models.TileRailroad {
		board.RecountRailroads(match.Tiles, player.ID)
	}
	if err := env.Store.PutMatch(ctx, match); err != nil {
		return nil, err
	}
	env.Notifier.Emit(player.ID, transport.EventNotice, fmt.Sprintf("You bought %s.", tile.Name))
	f.e.broadcastMatch(match)

	if tile.Type == models.TileDeed && board.MonopolyCount(match.Tiles, player.ID) >= winMonopolies {
		return winMessage(match.ID, player.ID), nil
	}
	return chainDeduct(match.ID, resume, ledger.DeltaBody{
		PlayerID:  player.ID,
		Amount:    -tile.Price,
		Origin:    tile.Name,
		Broadcast: true,
	}), nil
}

// improveFactory confirms building one level on the player's own deed.
type improveFactory struct{ e *Engine }

func (f *improveFactory) Build(ctx context.Context, env *prompt.Env, p *models.Prompt) (bool, error) {
	var args tileArgs
	if err := json.Unmarshal(p.Args, &args); err != nil {
		return false, nil
	}
	match, err := env.Store.Match(ctx, p.MatchID)
	if err != nil {
		return false, err
	}
	player, err := env.Store.Player(ctx, p.PlayerID)
	if err != nil {
		return false, err
	}
	if match == nil || player == nil || args.TileIdx < 0 || args.TileIdx >= len(match.Tiles) {
		return false, nil
	}
	tile := &match.Tiles[args.TileIdx]
	if tile.Owner != p.PlayerID || tile.Level >= tile.MaxLevel() || player.State.Money < tile.BuildingCost {
		return false, nil
	}
	p.Type = models.PromptConfirm
	p.Message = fmt.Sprintf("Build on %s for %d?", tile.Name, tile.BuildingCost)
	return true, nil
}

func (f *improveFactory) OnAnswer(ctx context.Context, env *prompt.Env, p *models.Prompt, ans models.Answer) (*dispatch.Message, error) {
	resume := prompt.ResumeMessage(p)
	if !ans.OK {
		return resume, nil
	}
	var args tileArgs
	if err := json.Unmarshal(p.Args, &args); err != nil {
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
	tile := &match.Tiles[args.TileIdx]
	if tile.Owner != player.ID || tile.Level >= tile.MaxLevel() || player.State.Money < tile.BuildingCost {
		return resume, nil
	}
	tile.Level++
	if err := env.Store.PutMatch(ctx, match); err != nil {
		return nil, err
	}
	env.Notifier.Emit(player.ID, transport.EventNotice,
		fmt.Sprintf("%s upgraded to level %d.", tile.Name, tile.Level))
	f.e.broadcastMatch(match)
	return chainDeduct(match.ID, resume, ledger.DeltaBody{
		PlayerID:  player.ID,
		Amount:    -tile.BuildingCost,
		Origin:    tile.Name,
		Broadcast: true,
	}), nil
}

// worldTourFactory confirms paying for the relocation; a yes chains into
// the destination pick.
type worldTourFactory struct{ e *Engine }

func (f *worldTourFactory) Build(ctx context.Context, env *prompt.Env, p *models.Prompt) (bool, error) {
	match, err := env.Store.Match(ctx, p.MatchID)
	if err != nil {
		return false, err
	}
	player, err := env.Store.Player(ctx, p.PlayerID)
	if err != nil {
		return false, err
	}
	if match == nil || player == nil {
		return false, nil
	}
	def, ok := env.Catalog.Board(match.BoardName)
	if !ok || def.WorldTourCost <= 0 || player.State.Money < def.WorldTourCost {
		return false, nil
	}
	p.Type = models.PromptConfirm
	p.Message = fmt.Sprintf("Pay %d to go on a world tour?", def.WorldTourCost)
	return true, nil
}

func (f *worldTourFactory) OnAnswer(ctx context.Context, env *prompt.Env, p *models.Prompt, ans models.Answer) (*dispatch.Message, error) {
	resume := prompt.ResumeMessage(p)
	if !ans.OK {
		return resume, nil
	}
	if err := env.Broker.Publish(ctx, p.MatchID, p.PlayerID, FactoryWorldTourDest, nil, resume); err != nil {
		return nil, err
	}
	return nil, nil
}

// worldTourDestFactory picks the relocation target among deeds not owned by
// an opponent, sets the walk override, and charges the fare.
type worldTourDestFactory struct{ e *Engine }

func (f *worldTourDestFactory) Build(ctx context.Context, env *prompt.Env, p *models.Prompt) (bool, error) {
	match, err := env.Store.Match(ctx, p.MatchID)
	if err != nil {
		return false, err
	}
	if match == nil {
		return false, nil
	}
	var idxs []int
	var options []string
	for i := range match.Tiles {
		t := &match.Tiles[i]
		if t.Type != models.TileDeed {
			continue
		}
		if t.Owner != "" && t.Owner != p.PlayerID {
			continue
		}
		idxs = append(idxs, i)
		options = append(options, t.Name)
	}
	if len(idxs) == 0 {
		return false, nil
	}
	raw, err := json.Marshal(selectArgs{TileIdxs: idxs})
	if err != nil {
		return false, err
	}
	p.Type = models.PromptSelect
	p.Message = "Choose your destination."
	p.Options = options
	p.Args = raw
	return true, nil
}

func (f *worldTourDestFactory) OnAnswer(ctx context.Context, env *prompt.Env, p *models.Prompt, ans models.Answer) (*dispatch.Message, error) {
	resume := prompt.ResumeMessage(p)
	var args selectArgs
	if err := json.Unmarshal(p.Args, &args); err != nil {
		return resume, nil
	}
	if ans.Index < 0 || ans.Index >= len(args.TileIdxs) {
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
	def, ok := env.Catalog.Board(match.BoardName)
	if !ok {
		return resume, nil
	}

	dest := args.TileIdxs[ans.Index]
	offset := (dest - player.State.Position + len(match.Tiles)) % len(match.Tiles)
	if offset > 0 {
		player.State.WalkDistance = offset
		player.State.CustomWalk = true
		if err := env.Store.PutPlayer(ctx, player); err != nil {
			return nil, err
		}
	}
	return chainDeduct(match.ID, resume, ledger.DeltaBody{
		PlayerID:  player.ID,
		Amount:    -def.WorldTourCost,
		Origin:    "World Tour",
		Broadcast: true,
	}), nil
}

// worldCupHostFactory moves the single board-wide world cup marker onto one
// of the player's own cities.
type worldCupHostFactory struct{ e *Engine }

func (f *worldCupHostFactory) Build(ctx context.Context, env *prompt.Env, p *models.Prompt) (bool, error) {
	match, err := env.Store.Match(ctx, p.MatchID)
	if err != nil {
		return false, err
	}
	if match == nil {
		return false, nil
	}
	idxs := ownedDeeds(match.Tiles, p.PlayerID)
	if len(idxs) == 0 {
		return false, nil
	}
	options := make([]string, len(idxs))
	for i, idx := range idxs {
		options[i] = match.Tiles[idx].Name
	}
	raw, err := json.Marshal(selectArgs{TileIdxs: idxs})
	if err != nil {
		return false, err
	}
	p.Type = models.PromptSelect
	p.Message = "Choose a city to host the World Cup."
	p.Options = options
	p.Args = raw
	return true, nil
}

func (f *worldCupHostFactory) OnAnswer(ctx context.Context, env *prompt.Env, p *models.Prompt, ans models.Answer) (*dispatch.Message, error) {
	resume := prompt.ResumeMessage(p)
	var args selectArgs
	if err := json.Unmarshal(p.Args, &args); err != nil {
		return resume, nil
	}
	if ans.Index < 0 || ans.Index >= len(args.TileIdxs) {
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
	idx := args.TileIdxs[ans.Index]
	tile := &match.Tiles[idx]
	if tile.Owner != player.ID {
		return resume, nil
	}
	for i := range match.Tiles {
		match.Tiles[i].WorldCup = false
	}
	tile.WorldCup = true
	if err := env.Store.PutMatch(ctx, match); err != nil {
		return nil, err
	}
	f.e.broadcastMatch(match)
	f.e.notifyAll(match, fmt.Sprintf("%s brings the World Cup to %s!", player.Name, tile.Name))
	return resume, nil
}
