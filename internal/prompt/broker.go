// Package prompt issues questions to exactly one player and suspends the
// surrounding saga until an answer arrives, from a human client or the AI
// stand-in. Per player there is at most one outstanding prompt: a second
// publish rebuilds the pending prompt in place.
package prompt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/junh-oh/landrush/internal/board"
	"github.com/junh-oh/landrush/internal/dispatch"
	"github.com/junh-oh/landrush/internal/models"
	"github.com/junh-oh/landrush/internal/store"
	"github.com/junh-oh/landrush/internal/transport"
)

// Env bundles the collaborators a factory may touch while building a prompt
// or applying its answer.
type Env struct {
	Store    store.Store
	Bus      dispatch.Bus
	Notifier transport.Notifier
	Catalog  *board.Catalog
	Broker   *Broker
	Log      *logrus.Entry
}

// Factory builds one kind of question and applies its answer.
//
// Build fills Type/Message/Options from current world state and reports
// whether the question still applies; a false return means no prompt is
// created and the suspended flow resumes immediately. OnAnswer performs the
// state mutation implied by the answer and returns the action message to
// republish, usually the prompt's stored resume (nil to republish nothing).
type Factory interface {
	Build(ctx context.Context, env *Env, p *models.Prompt) (bool, error)
	OnAnswer(ctx context.Context, env *Env, p *models.Prompt, ans models.Answer) (*dispatch.Message, error)
}

// Answerer is the AI collaborator: given a prompt, produce an answer with no
// further game-state access.
type Answerer interface {
	Answer(p *models.Prompt) models.Answer
}

// Broker stores, delivers and resolves prompts.
type Broker struct {
	env       *Env
	ai        Answerer
	factories map[string]Factory
	log       *logrus.Entry
}

// New creates a broker and wires itself into the env so factories can chain
// follow-up prompts.
func New(env *Env, ai Answerer, log *logrus.Logger) *Broker {
	b := &Broker{
		env:       env,
		ai:        ai,
		factories: make(map[string]Factory),
		log:       log.WithField("component", "prompt"),
	}
	env.Broker = b
	env.Log = b.log
	return b
}

// RegisterFactory binds a factory name. Names are part of stored prompts, so
// they must stay stable across deploys.
func (b *Broker) RegisterFactory(name string, f Factory) {
	b.factories[name] = f
}

// Publish asks the player the named question and suspends the saga carried
// by resume until the answer arrives. AI seats are answered inline. If the
// player cannot be asked (unknown player, question no longer applies) the
// resume action is republished so turn progress never depends on a prompt
// existing.
func (b *Broker) Publish(ctx context.Context, matchID, playerID, factory string, args any, resume *dispatch.Message) error {
	f, ok := b.factories[factory]
	if !ok {
		b.log.WithField("factory", factory).Error("unknown prompt factory")
		return b.resume(ctx, resume)
	}
	player, err := b.env.Store.Player(ctx, playerID)
	if err != nil {
		return err
	}
	if player == nil {
		b.log.WithField("player", playerID).Debug("prompt for unknown player, resuming")
		return b.resume(ctx, resume)
	}

	p := &models.Prompt{
		ID:       models.PromptID(matchID, playerID),
		MatchID:  matchID,
		PlayerID: playerID,
		Factory:  factory,
	}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("encode prompt args: %w", err)
		}
		p.Args = raw
	}
	if resume != nil {
		raw, err := json.Marshal(resume)
		if err != nil {
			return fmt.Errorf("encode prompt resume: %w", err)
		}
		p.Resume = raw
	}

	applies, err := f.Build(ctx, b.env, p)
	if err != nil {
		return err
	}
	existing, err := b.env.Store.Prompt(ctx, p.ID)
	if err != nil {
		return err
	}
	if !applies {
		if existing != nil {
			if err := b.env.Store.DeletePrompt(ctx, p.ID); err != nil {
				return err
			}
		}
		return b.resume(ctx, resume)
	}
	if err := b.env.Store.PutPrompt(ctx, p); err != nil {
		return err
	}

	if player.AI {
		return b.Answer(ctx, playerID, p.ID, b.ai.Answer(p))
	}

	event := transport.EventNewPrompt
	if existing != nil {
		event = transport.EventUpdatePrompt
	}
	b.env.Notifier.Emit(playerID, event, p)
	return nil
}

// Answer resolves the stored prompt: deletes it, applies the factory's
// mutation and republishes the returned continuation. Stale or mismatched
// answers are dropped silently.
func (b *Broker) Answer(ctx context.Context, playerID, promptID string, ans models.Answer) error {
	p, err := b.env.Store.Prompt(ctx, promptID)
	if err != nil {
		return err
	}
	if p == nil || p.PlayerID != playerID {
		b.log.WithFields(logrus.Fields{"player": playerID, "prompt": promptID}).
			Debug("answer for absent prompt, dropping")
		return nil
	}
	if err := b.env.Store.DeletePrompt(ctx, promptID); err != nil {
		return err
	}
	f, ok := b.factories[p.Factory]
	if !ok {
		b.log.WithField("factory", p.Factory).Error("stored prompt names unknown factory, dropping")
		return nil
	}
	next, err := f.OnAnswer(ctx, b.env, p, ans)
	if err != nil {
		return err
	}
	return b.resume(ctx, next)
}

func (b *Broker) resume(ctx context.Context, msg *dispatch.Message) error {
	if msg == nil {
		return nil
	}
	return b.env.Bus.Publish(ctx, msg)
}

// ResumeMessage decodes a prompt's stored resume action, or nil.
func ResumeMessage(p *models.Prompt) *dispatch.Message {
	if len(p.Resume) == 0 {
		return nil
	}
	var m dispatch.Message
	if err := json.Unmarshal(p.Resume, &m); err != nil {
		return nil
	}
	return &m
}

// Action is the bus entry point for saga-style prompt issuance: a handler
// publishes a "prompt" action whose callback carries the resume step.
const Action = "prompt"

// Body is the payload of the prompt action.
type Body struct {
	PlayerID string          `json:"playerId"`
	Factory  string          `json:"factory"`
	Args     json.RawMessage `json:"args,omitempty"`
}

// Register wires the prompt action into the router.
func (b *Broker) Register(r *dispatch.Router) {
	r.Register(Action, dispatch.HandlerFunc(b.handlePrompt))
}

func (b *Broker) handlePrompt(ctx context.Context, msg *dispatch.Message) error {
	var body Body
	if err := msg.Decode(&body); err != nil {
		b.log.WithError(err).Debug("undecodable prompt action, dropping")
		return nil
	}
	var args any
	if len(body.Args) > 0 {
		args = body.Args
	}
	return b.Publish(ctx, msg.MatchID, body.PlayerID, body.Factory, args, msg.Next())
}
