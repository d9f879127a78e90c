package chatsync

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-chat-sync/internal/domain/conversation"
	"github.com/janhq/jan-chat-sync/internal/utils/platformerrors"
)

// Editor changes message version history: edit, switch version, cascade delete.
type Editor struct {
	gateway     conversation.Gateway
	store       conversation.Store
	coordinator *Coordinator
	resolver    AgeResolver
	journal     *Journal
	locks       *ConversationLocks
	log         zerolog.Logger
}

func NewEditor(
	gateway conversation.Gateway,
	store conversation.Store,
	coordinator *Coordinator,
	resolver AgeResolver,
	journal *Journal,
	locks *ConversationLocks,
	log zerolog.Logger,
) *Editor {
	return &Editor{
		gateway:     gateway,
		store:       store,
		coordinator: coordinator,
		resolver:    resolver,
		journal:     journal,
		locks:       locks,
		log:         log.With().Str("component", "message-editor").Logger(),
	}
}

func validateMessageTarget(ctx context.Context, messageID, conversationID string) error {
	if err := conversation.ValidateServerID(ctx, "message", messageID); err != nil {
		return err
	}
	return conversation.ValidateServerID(ctx, "conversation", conversationID)
}

// EditMessage shows the new content immediately, submits it as a new version,
// and re-syncs either way so the server's version history wins.
func (e *Editor) EditMessage(ctx context.Context, messageID, conversationID, newContent string) error {
	if err := conversation.ValidateContent(ctx, newContent); err != nil {
		return err
	}
	if err := validateMessageTarget(ctx, messageID, conversationID); err != nil {
		return err
	}

	unlock, err := e.locks.Lock(ctx, conversationID)
	if err != nil {
		return err
	}
	defer unlock()

	age, err := e.resolver.Resolve(ctx, lookup(e.store, conversationID))
	if err != nil {
		return err
	}

	var snapshot *conversation.Message
	if active := e.store.ActiveConversation(); active != nil && active.ID == conversationID {
		if msg := active.FindMessage(messageID); msg != nil {
			cp := msg.Clone()
			snapshot = &cp
		}
	}

	seq := e.journal.Begin(OperationEdit, conversationID, "")
	if snapshot != nil {
		patchActiveMessage(e.store, conversationID, messageID, func(m *conversation.Message) {
			m.Content = newContent
			m.IsEditing = true
		})
	}
	e.journal.Advance(e.log, seq, StatePending, nil)

	callErr := e.gateway.EditMessage(ctx, messageID, conversation.EditMessageRequest{
		Content:        newContent,
		ConversationID: conversationID,
		Age:            age,
	})

	_, syncErr := e.coordinator.Reconcile(ctx, conversationID, conversationID)
	if syncErr != nil && snapshot != nil {
		restored := *snapshot
		if callErr == nil {
			// Accepted but not reloaded: keep the new text, drop the editing marker.
			restored.Content = newContent
		}
		patchActiveMessage(e.store, conversationID, messageID, func(m *conversation.Message) { *m = restored })
	}

	if callErr != nil {
		e.journal.Advance(e.log, seq, StateRolledBack, callErr)
		e.log.Warn().Err(callErr).Uint64("seq", seq).Str("message_id", messageID).Msg("edit rolled back")
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, callErr, "failed to edit message")
	}
	e.journal.Advance(e.log, seq, StateCommitted, nil)
	return nil
}

// SwitchMessageVersion forwards the choice without touching local state; the
// server owns range checking and its rejection is returned as is.
func (e *Editor) SwitchMessageVersion(ctx context.Context, messageID, conversationID string, version int) error {
	if err := validateMessageTarget(ctx, messageID, conversationID); err != nil {
		return err
	}

	unlock, err := e.locks.Lock(ctx, conversationID)
	if err != nil {
		return err
	}
	defer unlock()

	seq := e.journal.Begin(OperationSwitchVersion, conversationID, "")
	e.journal.Advance(e.log, seq, StatePending, nil)

	if err := e.gateway.SwitchMessageVersion(ctx, messageID, version, conversation.SwitchVersionRequest{ConversationID: conversationID}); err != nil {
		e.journal.Advance(e.log, seq, StateRolledBack, err)
		e.log.Warn().Err(err).Str("message_id", messageID).Int("version", version).Msg("version switch rejected")
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, fmt.Sprintf("failed to switch to version %d", version))
	}
	e.journal.Advance(e.log, seq, StateCommitted, nil)

	if _, err := e.coordinator.Reconcile(ctx, conversationID, conversationID); err != nil {
		e.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("switched version but could not reload conversation")
	}
	return nil
}

// CascadePlan is the decision to delete a message and everything after it.
type CascadePlan struct {
	ConversationID string
	MessageID      string
	Index          int
	Removed        []string
	Remaining      int
}

// Question is the confirmation prompt for the plan.
func (p CascadePlan) Question() string {
	if len(p.Removed) <= 1 {
		return "Delete this message?"
	}
	return fmt.Sprintf("Delete this message and the %d messages after it?", len(p.Removed)-1)
}

// PlanCascadeDelete works out which messages a cascade delete removes. It has no side effects.
func PlanCascadeDelete(ctx context.Context, conv *conversation.Conversation, messageID string) (CascadePlan, error) {
	if conv == nil {
		return CascadePlan{}, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
			"conversation not loaded", nil, "8e9f0a1b-2c3d-4e4f-9a5b-6c7d8e9f0a1b")
	}
	idx := conv.IndexOfMessage(messageID)
	if idx < 0 {
		return CascadePlan{}, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
			"message not found in conversation", nil, "9f0a1b2c-3d4e-4f5a-8b6c-7d8e9f0a1b2c")
	}
	removed := make([]string, 0, len(conv.Messages)-idx)
	for _, msg := range conv.Messages[idx:] {
		removed = append(removed, msg.ID)
	}
	return CascadePlan{
		ConversationID: conv.ID,
		MessageID:      messageID,
		Index:          idx,
		Removed:        removed,
		Remaining:      idx,
	}, nil
}

// DeleteMessageAndFollowing deletes the message and every later one. Nothing is
// removed locally before the server confirms; the result comes from a re-sync.
func (e *Editor) DeleteMessageAndFollowing(ctx context.Context, messageID, conversationID string) error {
	if err := validateMessageTarget(ctx, messageID, conversationID); err != nil {
		return err
	}

	unlock, err := e.locks.Lock(ctx, conversationID)
	if err != nil {
		return err
	}
	defer unlock()

	seq := e.journal.Begin(OperationDeleteMessage, conversationID, "")
	e.journal.Advance(e.log, seq, StatePending, nil)

	if err := e.gateway.DeleteMessage(ctx, messageID, conversation.DeleteMessageRequest{ConversationID: conversationID}); err != nil {
		e.journal.Advance(e.log, seq, StateRolledBack, err)
		e.log.Warn().Err(err).Str("message_id", messageID).Msg("cascade delete failed")
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete message")
	}
	e.journal.Advance(e.log, seq, StateCommitted, nil)
	e.coordinator.Invalidate("delete_message")

	if _, err := e.coordinator.Reconcile(ctx, conversationID, conversationID); err != nil {
		e.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("deleted but could not reload conversation")
	}
	return nil
}
