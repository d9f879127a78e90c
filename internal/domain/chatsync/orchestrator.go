package chatsync

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-chat-sync/internal/domain/conversation"
	"github.com/janhq/jan-chat-sync/internal/domain/ui"
	"github.com/janhq/jan-chat-sync/internal/utils/idgen"
	"github.com/janhq/jan-chat-sync/internal/utils/platformerrors"
)

// AgeResolver supplies the age context for a conversation, prompting if needed.
type AgeResolver interface {
	Resolve(ctx context.Context, conv *conversation.Conversation) (int, error)
}

// SendResult describes a committed send.
type SendResult struct {
	Seq            uint64
	ConversationID string
	Response       string
	Created        bool
	Conversation   *conversation.Conversation
}

// Orchestrator runs send and regenerate with optimistic placeholders.
type Orchestrator struct {
	gateway     conversation.Gateway
	store       conversation.Store
	coordinator *Coordinator
	resolver    AgeResolver
	navigator   ui.Navigator
	journal     *Journal
	locks       *ConversationLocks
	log         zerolog.Logger
	now         func() time.Time
}

func NewOrchestrator(
	gateway conversation.Gateway,
	store conversation.Store,
	coordinator *Coordinator,
	resolver AgeResolver,
	navigator ui.Navigator,
	journal *Journal,
	locks *ConversationLocks,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		gateway:     gateway,
		store:       store,
		coordinator: coordinator,
		resolver:    resolver,
		navigator:   navigator,
		journal:     journal,
		locks:       locks,
		log:         log.With().Str("component", "message-orchestrator").Logger(),
		now:         time.Now,
	}
}

// Journal exposes the operation record.
func (o *Orchestrator) Journal() *Journal {
	return o.journal
}

// lookup returns the best local copy of a conversation: the active one, then its summary.
func lookup(store conversation.Store, id string) *conversation.Conversation {
	if id == "" {
		return nil
	}
	if active := store.ActiveConversation(); active != nil && active.ID == id {
		return active
	}
	if summary, ok := store.Conversation(id); ok {
		return summary
	}
	return nil
}

// placement remembers where the provisional pair went so it can be undone.
type placement struct {
	correlationID string
	// placeholderID is set when the pair lives in a conversation we swapped in.
	placeholderID string
	previous      *conversation.Conversation
}

// SendMessage appends a provisional user/bot pair, sends, then reconciles with
// the server or removes the pair. An empty conversationID starts a new conversation.
func (o *Orchestrator) SendMessage(ctx context.Context, content, conversationID string) (*SendResult, error) {
	if err := conversation.ValidateContent(ctx, content); err != nil {
		return nil, err
	}
	if conversationID != "" {
		if err := conversation.ValidateServerID(ctx, "conversation", conversationID); err != nil {
			return nil, err
		}
	}

	unlock, err := o.locks.Lock(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	age, err := o.resolver.Resolve(ctx, lookup(o.store, conversationID))
	if err != nil {
		return nil, err
	}

	now := o.now()
	correlationID, err := idgen.GenerateCorrelationID(now)
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
			"failed to generate correlation id", err, "5b6c7d8e-9f0a-4b1c-8d2e-3f4a5b6c7d8e")
	}

	seq := o.journal.Begin(OperationSend, conversationID, correlationID)
	place := o.placeProvisional(conversationID, correlationID, content, age, now)
	o.journal.Advance(o.log, seq, StatePending, nil)

	log := o.log.With().Uint64("seq", seq).Str("correlation_id", correlationID).Str("conversation_id", conversationID).Logger()
	log.Debug().Msg("send pending")

	result, err := o.gateway.SendChat(ctx, conversation.ChatRequest{
		Message:        content,
		Age:            age,
		ConversationID: conversationID,
	})
	if err != nil {
		o.rollbackProvisional(place)
		o.journal.Advance(o.log, seq, StateRolledBack, err)
		log.Warn().Err(err).Msg("send rolled back")
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to send message")
	}

	o.coordinator.Invalidate("send")
	if _, err := o.coordinator.FetchConversations(ctx, ScopeChat, true); err != nil {
		log.Warn().Err(err).Msg("conversation list refresh after send failed")
	}

	expected := conversationID
	if place.placeholderID != "" {
		expected = place.placeholderID
	}
	fresh, err := o.coordinator.Reconcile(ctx, result.ConversationID, expected)
	if err != nil {
		// The server accepted the message; keep the pair and fill in the answer we got back.
		log.Warn().Err(err).Msg("reconcile after send failed, keeping local copy")
		o.settleProvisional(place, result)
	}
	o.journal.Advance(o.log, seq, StateCommitted, nil)

	created := conversationID == ""
	if created && o.navigator != nil {
		o.navigator.Navigate(ui.ConversationRoute(result.ConversationID))
	}
	log.Info().Str("server_conversation_id", result.ConversationID).Bool("created", created).Msg("send committed")

	return &SendResult{
		Seq:            seq,
		ConversationID: result.ConversationID,
		Response:       result.Response,
		Created:        created,
		Conversation:   fresh,
	}, nil
}

// placeProvisional makes the pending pair visible before the request goes out.
func (o *Orchestrator) placeProvisional(conversationID, correlationID, content string, age int, now time.Time) placement {
	userMsg, botMsg := conversation.NewProvisionalPair(correlationID, content, now)
	place := placement{correlationID: correlationID}

	if conversationID != "" {
		found, err := o.store.UpdateActiveConversation(func(c *conversation.Conversation) error {
			if c.ID != conversationID {
				return errActiveMoved
			}
			c.Messages = append(c.Messages, userMsg, botMsg)
			return nil
		})
		if found && err == nil {
			return place
		}
	}

	// No matching active conversation: swap in a placeholder holding the pair.
	place.previous = o.store.ActiveConversation()
	var holder *conversation.Conversation
	if conversationID == "" {
		holder = conversation.NewProvisionalConversation(correlationID, age, now)
	} else {
		holder = lookup(o.store, conversationID)
		if holder == nil {
			holder = &conversation.Conversation{ID: conversationID}
		}
		// Keep the real id out of the active slot so rollback is a clean swap.
		holder.ID = correlationID
	}
	holder.Messages = append(holder.Messages, userMsg, botMsg)
	place.placeholderID = holder.ID
	o.store.SetActiveConversation(holder)
	return place
}

func (o *Orchestrator) rollbackProvisional(place placement) {
	if place.placeholderID != "" {
		if !o.store.ReplaceActiveIf(place.placeholderID, place.previous) {
			o.log.Debug().Str("correlation_id", place.correlationID).Msg("placeholder no longer active, nothing to restore")
		}
		return
	}
	_, _ = o.store.UpdateActiveConversation(func(c *conversation.Conversation) error {
		if c.RemoveByCorrelation(place.correlationID) == 0 {
			return errActiveMoved
		}
		return nil
	})
}

// settleProvisional turns the pending bot turn into the returned answer when
// the server copy could not be loaded.
func (o *Orchestrator) settleProvisional(place placement, result *conversation.ChatResult) {
	_, _ = o.store.UpdateActiveConversation(func(c *conversation.Conversation) error {
		changed := false
		for i := range c.Messages {
			msg := &c.Messages[i]
			if msg.CorrelationID != place.correlationID || msg.Role != conversation.RoleBot {
				continue
			}
			msg.Content = result.Response
			msg.Versions = []string{result.Response}
			msg.CurrentVersion = 1
			msg.IsRegenerating = false
			changed = true
		}
		if !changed {
			return errActiveMoved
		}
		return nil
	})
}

// RegenerateResponse clears the bot message locally, asks the server for a new
// version, then re-syncs. Failures also re-sync so the original text comes back
// from the server; if that fails too the local snapshot is restored.
func (o *Orchestrator) RegenerateResponse(ctx context.Context, messageID, conversationID string, age int) error {
	if err := conversation.ValidateServerID(ctx, "message", messageID); err != nil {
		return err
	}
	if err := conversation.ValidateServerID(ctx, "conversation", conversationID); err != nil {
		return err
	}

	unlock, err := o.locks.Lock(ctx, conversationID)
	if err != nil {
		return err
	}
	defer unlock()

	if !conversation.ValidAgeContext(age) {
		if age, err = o.resolver.Resolve(ctx, lookup(o.store, conversationID)); err != nil {
			return err
		}
	}

	var snapshot *conversation.Message
	if active := o.store.ActiveConversation(); active != nil && active.ID == conversationID {
		msg := active.FindMessage(messageID)
		if msg == nil {
			return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
				"message not found in conversation", nil, "6c7d8e9f-0a1b-4c2d-9e3f-4a5b6c7d8e9f")
		}
		if msg.Role != conversation.RoleBot {
			return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
				"only assistant messages can be regenerated", nil, "7d8e9f0a-1b2c-4d3e-8f4a-5b6c7d8e9f0a")
		}
		cp := msg.Clone()
		snapshot = &cp
	}

	seq := o.journal.Begin(OperationRegenerate, conversationID, "")
	if snapshot != nil {
		o.patchMessage(conversationID, messageID, func(m *conversation.Message) {
			m.IsRegenerating = true
			m.Content = ""
		})
	}
	o.journal.Advance(o.log, seq, StatePending, nil)

	callErr := o.gateway.RegenerateMessage(ctx, messageID, conversation.RegenerateRequest{
		ConversationID: conversationID,
		Age:            age,
	})

	_, syncErr := o.coordinator.Reconcile(ctx, conversationID, conversationID)
	if syncErr != nil && snapshot != nil {
		restored := *snapshot
		o.patchMessage(conversationID, messageID, func(m *conversation.Message) { *m = restored })
	}

	if callErr != nil {
		o.journal.Advance(o.log, seq, StateRolledBack, callErr)
		o.log.Warn().Err(callErr).Uint64("seq", seq).Str("message_id", messageID).Msg("regenerate rolled back")
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, callErr, "failed to regenerate response")
	}
	o.journal.Advance(o.log, seq, StateCommitted, nil)
	if syncErr != nil {
		o.log.Warn().Err(syncErr).Str("conversation_id", conversationID).Msg("regenerated but could not reload conversation")
	}
	return nil
}

// patchMessage edits one message of the active conversation when it is still conversationID.
func (o *Orchestrator) patchMessage(conversationID, messageID string, fn func(m *conversation.Message)) {
	patchActiveMessage(o.store, conversationID, messageID, fn)
}

func patchActiveMessage(store conversation.Store, conversationID, messageID string, fn func(m *conversation.Message)) {
	_, _ = store.UpdateActiveConversation(func(c *conversation.Conversation) error {
		if c.ID != conversationID {
			return errActiveMoved
		}
		msg := c.FindMessage(messageID)
		if msg == nil {
			return errActiveMoved
		}
		fn(msg)
		return nil
	})
}
