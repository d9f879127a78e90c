package agecontext

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-chat-sync/internal/domain/conversation"
	"github.com/janhq/jan-chat-sync/internal/utils/platformerrors"
)

// Prompter asks the user for an age. ok is false when the user cancels.
type Prompter interface {
	PromptAge(ctx context.Context, hint string) (input string, ok bool, err error)
}

// Preferences stores the remembered default age.
type Preferences interface {
	DefaultAge(ctx context.Context) (int, bool, error)
	SetDefaultAge(ctx context.Context, age int) error
}

// ConversationUpdater attaches an age context to a conversation server side.
type ConversationUpdater interface {
	UpdateConversation(ctx context.Context, id string, req conversation.UpdateConversationRequest) (*conversation.Conversation, error)
}

var initialHint = fmt.Sprintf("Age context for this conversation (%d-%d)", conversation.MinAgeContext, conversation.MaxAgeContext)

// Resolver guarantees an age context before a send or create goes out.
type Resolver struct {
	prefs    Preferences
	prompter Prompter
	store    conversation.Store
	updater  ConversationUpdater
	log      zerolog.Logger
}

func NewResolver(prefs Preferences, prompter Prompter, store conversation.Store, updater ConversationUpdater, log zerolog.Logger) *Resolver {
	return &Resolver{
		prefs:    prefs,
		prompter: prompter,
		store:    store,
		updater:  updater,
		log:      log.With().Str("component", "age-resolver").Logger(),
	}
}

// Resolve returns the conversation's age, else the remembered default, else
// prompts until a valid value is entered. Cancelling yields AgeRequired.
func (r *Resolver) Resolve(ctx context.Context, conv *conversation.Conversation) (int, error) {
	if age := conv.Age(); conversation.ValidAgeContext(age) {
		return age, nil
	}

	age, ok, err := r.prefs.DefaultAge(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to read default age, prompting instead")
	} else if ok && conversation.ValidAgeContext(age) {
		return age, nil
	}

	age, err = r.prompt(ctx)
	if err != nil {
		return 0, err
	}
	r.remember(ctx, age)
	return age, nil
}

func (r *Resolver) prompt(ctx context.Context) (int, error) {
	if r.prompter == nil {
		return 0, ageRequired(ctx, "no age context available")
	}
	hint := initialHint
	for {
		if err := ctx.Err(); err != nil {
			return 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "age prompt aborted")
		}
		input, ok, err := r.prompter.PromptAge(ctx, hint)
		if err != nil {
			return 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "age prompt failed")
		}
		if !ok {
			return 0, ageRequired(ctx, "age context is required to continue")
		}
		age, err := ParseAge(ctx, input)
		if err != nil {
			hint = platformerrors.UserMessage(err)
			continue
		}
		return age, nil
	}
}

// remember persists the default and attaches the age to an empty active conversation.
// Both steps are best effort: the age travels with each request anyway.
func (r *Resolver) remember(ctx context.Context, age int) {
	if err := r.prefs.SetDefaultAge(ctx, age); err != nil {
		r.log.Warn().Err(err).Int("age", age).Msg("failed to persist default age")
	}

	active := r.store.ActiveConversation()
	if active == nil || active.IsProvisional() || !active.AgeContextEditable() || r.updater == nil {
		return
	}
	if _, err := r.updater.UpdateConversation(ctx, active.ID, conversation.UpdateConversationRequest{AgeContext: &age}); err != nil {
		r.log.Warn().Err(err).Str("conversation_id", active.ID).Msg("failed to attach age context")
		return
	}
	_, _ = r.store.UpdateActiveConversation(func(c *conversation.Conversation) error {
		if c.ID == active.ID {
			a := age
			c.AgeContext = &a
		}
		return nil
	})
	r.log.Debug().Str("conversation_id", active.ID).Int("age", age).Msg("age context attached")
}

// ParseAge validates free-form input as an age context.
func ParseAge(ctx context.Context, input string) (int, error) {
	age, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return 0, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"age must be a whole number", err, "2c3d4e5f-6a7b-4c8d-9e0f-1a2b3c4d5e6f")
	}
	if err := conversation.ValidateAge(ctx, age); err != nil {
		return 0, err
	}
	return age, nil
}

func ageRequired(ctx context.Context, message string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeAgeRequired,
		message, nil, "3d4e5f6a-7b8c-4d9e-8f1a-2b3c4d5e6f7a")
}
