package chatsync

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-chat-sync/internal/domain/conversation"
	"github.com/janhq/jan-chat-sync/internal/utils/platformerrors"
)

const defaultConversationTitle = "New conversation"

// ConversationService mutates the server-side conversation set. Every success
// invalidates the list caches.
type ConversationService struct {
	gateway     conversation.Gateway
	store       conversation.Store
	coordinator *Coordinator
	resolver    AgeResolver
	log         zerolog.Logger
}

func NewConversationService(gateway conversation.Gateway, store conversation.Store, coordinator *Coordinator, resolver AgeResolver, log zerolog.Logger) *ConversationService {
	return &ConversationService{
		gateway:     gateway,
		store:       store,
		coordinator: coordinator,
		resolver:    resolver,
		log:         log.With().Str("component", "conversation-service").Logger(),
	}
}

// Create makes an empty conversation. A nil age is resolved first.
func (s *ConversationService) Create(ctx context.Context, title string, age *int) (*conversation.Conversation, error) {
	if strings.TrimSpace(title) == "" {
		title = defaultConversationTitle
	}
	if age == nil {
		resolved, err := s.resolver.Resolve(ctx, nil)
		if err != nil {
			return nil, err
		}
		age = &resolved
	}
	req := conversation.CreateConversationRequest{Title: title, AgeContext: age}
	if err := conversation.ValidateRequest(ctx, req); err != nil {
		return nil, err
	}

	created, err := s.gateway.CreateConversation(ctx, req)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create conversation")
	}
	created.Normalize()
	s.store.UpsertConversations([]conversation.Conversation{*created})
	s.coordinator.Invalidate("create")
	s.log.Info().Str("conversation_id", created.ID).Msg("conversation created")
	return created, nil
}

// Rename changes the title.
func (s *ConversationService) Rename(ctx context.Context, id, title string) (*conversation.Conversation, error) {
	if err := conversation.ValidateServerID(ctx, "conversation", id); err != nil {
		return nil, err
	}
	req := conversation.UpdateConversationRequest{Title: &title}
	if err := conversation.ValidateRequest(ctx, req); err != nil {
		return nil, err
	}
	updated, err := s.gateway.UpdateConversation(ctx, id, req)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to rename conversation")
	}
	s.applyUpdate(updated, func(c *conversation.Conversation) { c.Title = updated.Title })
	s.coordinator.Invalidate("rename")
	return updated, nil
}

// UpdateAgeContext attaches an age to a conversation that has no messages yet.
// Conversations with messages are refused locally without a request.
func (s *ConversationService) UpdateAgeContext(ctx context.Context, id string, age int) (*conversation.Conversation, error) {
	if err := conversation.ValidateServerID(ctx, "conversation", id); err != nil {
		return nil, err
	}
	if err := conversation.ValidateAge(ctx, age); err != nil {
		return nil, err
	}

	current := s.store.ActiveConversation()
	if current == nil || current.ID != id {
		loaded, err := s.gateway.GetConversation(ctx, id)
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load conversation")
		}
		current = loaded
	}
	if !current.AgeContextEditable() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
			"age context cannot change once the conversation has messages", nil, "0a1b2c3d-4e5f-4a6b-9c7d-8e9f0a1b2c3d")
	}

	updated, err := s.gateway.UpdateConversation(ctx, id, conversation.UpdateConversationRequest{AgeContext: &age})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update age context")
	}
	s.applyUpdate(updated, func(c *conversation.Conversation) {
		a := age
		c.AgeContext = &a
	})
	s.coordinator.Invalidate("age_context")
	return updated, nil
}

// applyUpdate folds a server update into the summary and, when open, the active conversation.
func (s *ConversationService) applyUpdate(updated *conversation.Conversation, patch func(c *conversation.Conversation)) {
	if updated == nil {
		return
	}
	if summary, ok := s.store.Conversation(updated.ID); ok {
		patch(summary)
		s.store.UpsertConversations([]conversation.Conversation{*summary})
	} else {
		s.store.UpsertConversations([]conversation.Conversation{*updated})
	}
	_, _ = s.store.UpdateActiveConversation(func(c *conversation.Conversation) error {
		if c.ID != updated.ID {
			return errActiveMoved
		}
		patch(c)
		return nil
	})
}

// Archive hides a conversation from the default lists and closes it if open.
func (s *ConversationService) Archive(ctx context.Context, id string) error {
	return s.setArchived(ctx, id, true)
}

// Unarchive restores a conversation to the default lists.
func (s *ConversationService) Unarchive(ctx context.Context, id string) error {
	return s.setArchived(ctx, id, false)
}

func (s *ConversationService) setArchived(ctx context.Context, id string, archived bool) error {
	if err := conversation.ValidateServerID(ctx, "conversation", id); err != nil {
		return err
	}
	var err error
	if archived {
		err = s.gateway.ArchiveConversation(ctx, id)
	} else {
		err = s.gateway.UnarchiveConversation(ctx, id)
	}
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, fmt.Sprintf("failed to set archived=%t", archived))
	}

	summary, ok := s.store.Conversation(id)
	if !ok {
		// Opened by detail without a list fetch: derive the summary from the active copy.
		if active := s.store.ActiveConversation(); active != nil && active.ID == id {
			cp := active.Summary()
			summary, ok = &cp, true
		}
	}
	if ok {
		summary.IsArchived = archived
		s.store.UpsertConversations([]conversation.Conversation{*summary})
	}
	if archived {
		s.store.ReplaceActiveIf(id, nil)
		s.coordinator.Invalidate("archive")
	} else {
		s.coordinator.Invalidate("unarchive")
	}
	return nil
}

// Delete removes a conversation and closes it if open.
func (s *ConversationService) Delete(ctx context.Context, id string) error {
	if err := conversation.ValidateServerID(ctx, "conversation", id); err != nil {
		return err
	}
	if err := s.gateway.DeleteConversation(ctx, id); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete conversation")
	}
	s.store.RemoveConversations(id)
	s.coordinator.Invalidate("delete")
	s.log.Info().Str("conversation_id", id).Msg("conversation deleted")
	return nil
}

// BulkDeletePlan is the decision to delete several conversations at once.
type BulkDeletePlan struct {
	IDs            []string
	Titles         []string
	ActiveIncluded bool
}

// Question is the confirmation prompt for the plan.
func (p BulkDeletePlan) Question() string {
	if len(p.IDs) == 1 {
		return fmt.Sprintf("Delete conversation %q?", p.Titles[0])
	}
	return fmt.Sprintf("Delete %d conversations?", len(p.IDs))
}

// PlanBulkDelete dedupes ids and describes what a bulk delete would remove.
func (s *ConversationService) PlanBulkDelete(ctx context.Context, ids []string) (BulkDeletePlan, error) {
	seen := make(map[string]struct{}, len(ids))
	var plan BulkDeletePlan
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		plan.IDs = append(plan.IDs, id)
		title := id
		if summary, ok := s.store.Conversation(id); ok && summary.Title != "" {
			title = summary.Title
		}
		plan.Titles = append(plan.Titles, title)
	}
	if err := conversation.ValidateRequest(ctx, conversation.BulkDeleteRequest{ConversationIDs: plan.IDs}); err != nil {
		return BulkDeletePlan{}, err
	}
	if active := s.store.ActiveConversation(); active != nil {
		_, plan.ActiveIncluded = seen[active.ID]
	}
	return plan, nil
}

// BulkDelete executes a plan in a single request.
func (s *ConversationService) BulkDelete(ctx context.Context, plan BulkDeletePlan) error {
	req := conversation.BulkDeleteRequest{ConversationIDs: plan.IDs}
	if err := conversation.ValidateRequest(ctx, req); err != nil {
		return err
	}
	if err := s.gateway.BulkDeleteConversations(ctx, req); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete conversations")
	}
	s.store.RemoveConversations(plan.IDs...)
	s.coordinator.Invalidate("bulk_delete")
	s.log.Info().Int("count", len(plan.IDs)).Msg("conversations deleted")
	return nil
}
