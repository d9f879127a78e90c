package chatsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/janhq/jan-chat-sync/internal/domain/conversation"
	"github.com/janhq/jan-chat-sync/internal/utils/platformerrors"
)

// SessionGuard fails when no signed-in session is available.
type SessionGuard interface {
	RequireSession(ctx context.Context) error
}

// CoordinatorOptions tunes list caching.
type CoordinatorOptions struct {
	// TTL after which a loaded scope is refetched; zero disables expiry.
	TTL      time.Duration
	PageSize int
	// MaxPages bounds pagination against a misbehaving backend.
	MaxPages int
	Now      func() time.Time
}

const (
	defaultPageSize = 50
	defaultMaxPages = 100
)

var errActiveMoved = errors.New("active conversation changed")

// Coordinator decides when conversation lists are refetched and owns detail fetches.
type Coordinator struct {
	gateway  conversation.Gateway
	store    conversation.Store
	guard    SessionGuard
	observer Observer
	opts     CoordinatorOptions
	log      zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	entries map[Scope]*cacheEntry
	group   singleflight.Group
}

func NewCoordinator(gateway conversation.Gateway, store conversation.Store, guard SessionGuard, observer Observer, opts CoordinatorOptions, log zerolog.Logger) *Coordinator {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = defaultMaxPages
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if observer == nil {
		observer = NopObserver{}
	}
	entries := make(map[Scope]*cacheEntry, 3)
	for _, s := range AllScopes() {
		entries[s] = &cacheEntry{}
	}
	return &Coordinator{
		gateway:  gateway,
		store:    store,
		guard:    guard,
		observer: observer,
		opts:     opts,
		log:      log.With().Str("component", "sync-coordinator").Logger(),
		now:      opts.Now,
		entries:  entries,
	}
}

func (c *Coordinator) entry(scope Scope) (*cacheEntry, error) {
	e, ok := c.entries[scope]
	if !ok {
		return nil, fmt.Errorf("unknown scope %q", scope)
	}
	return e, nil
}

// FetchConversations returns the scope's list. A loaded, unexpired scope is served
// from cache unless force is set. Concurrent fetches of one scope share a request.
func (c *Coordinator) FetchConversations(ctx context.Context, scope Scope, force bool) ([]conversation.Conversation, error) {
	if c.guard != nil {
		if err := c.guard.RequireSession(ctx); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	e, err := c.entry(scope)
	if err != nil {
		c.mu.Unlock()
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			err.Error(), nil, "4a5b6c7d-8e9f-4a0b-9c1d-2e3f4a5b6c7d")
	}
	if !force && e.fresh(c.now(), c.opts.TTL) {
		ids := append([]string(nil), e.ids...)
		c.mu.Unlock()
		c.observer.CacheLookup(scope, true)
		return c.store.Conversations(ids), nil
	}
	generation := e.generation
	c.mu.Unlock()
	c.observer.CacheLookup(scope, false)

	key := fmt.Sprintf("%s/%d", scope, generation)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		// Shared by every joined caller, so no single caller's cancellation aborts it.
		return c.load(context.WithoutCancel(ctx), scope, e, generation)
	})

	select {
	case <-ctx.Done():
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, ctx.Err(), "stopped waiting for conversation list")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return c.store.Conversations(res.Val.([]string)), nil
	}
}

// load fetches the scope and records the result on the entry only while the
// entry is still the generation the fetch started from.
func (c *Coordinator) load(ctx context.Context, scope Scope, e *cacheEntry, generation uint64) ([]string, error) {
	list, err := c.fetchAll(ctx, scope)

	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.entries[scope] == e && e.generation == generation
	if err != nil {
		if current {
			e.ids = nil
			e.loaded = false
		}
		c.log.Warn().Err(err).Str("scope", string(scope)).Bool("stale", !current).Msg("conversation list fetch failed")
		return nil, err
	}

	ids := make([]string, len(list))
	for i := range list {
		ids[i] = list[i].ID
	}
	if current {
		e.ids = ids
		e.fetchedAt = c.now()
		e.loaded = true
	}
	c.log.Debug().Str("scope", string(scope)).Int("count", len(ids)).Bool("stale", !current).Msg("conversation list fetched")
	return ids, nil
}

func (c *Coordinator) fetchAll(ctx context.Context, scope Scope) ([]conversation.Conversation, error) {
	var all []conversation.Conversation
	for page := 1; page <= c.opts.MaxPages; page++ {
		res, err := c.gateway.ListConversations(ctx, conversation.ListOptions{
			IncludeArchived: scope.IncludesArchived(),
			Page:            page,
			PerPage:         c.opts.PageSize,
		})
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list conversations")
		}
		all = append(all, res.Conversations...)
		if len(res.Conversations) == 0 || page >= res.Pagination.Pages || len(res.Conversations) < c.opts.PageSize {
			break
		}
	}
	for i := range all {
		all[i].Normalize()
	}
	c.store.UpsertConversations(all)
	return all, nil
}

// Cached returns the scope's last known list without touching the network.
func (c *Coordinator) Cached(scope Scope) []conversation.Conversation {
	c.mu.Lock()
	e, err := c.entry(scope)
	if err != nil {
		c.mu.Unlock()
		return nil
	}
	ids := append([]string(nil), e.ids...)
	c.mu.Unlock()
	return c.store.Conversations(ids)
}

// Invalidate marks every scope stale. Every mutation of the server-side
// conversation set calls this before returning.
func (c *Coordinator) Invalidate(reason string) {
	c.mu.Lock()
	for _, e := range c.entries {
		e.loaded = false
		e.generation++
	}
	c.mu.Unlock()
	c.observer.CacheInvalidated(reason)
	c.log.Debug().Str("reason", reason).Msg("conversation caches invalidated")
}

// Reset forgets every scope, used on sign-out.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	for scope, e := range c.entries {
		c.entries[scope] = &cacheEntry{generation: e.generation + 1}
	}
	c.mu.Unlock()
	c.observer.CacheInvalidated("reset")
}

// States reports cache bookkeeping for every scope.
func (c *Coordinator) States() []ScopeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ScopeState, 0, len(c.entries))
	for _, scope := range AllScopes() {
		e := c.entries[scope]
		out = append(out, ScopeState{Scope: scope, Loaded: e.loaded, FetchedAt: e.fetchedAt, Count: len(e.ids)})
	}
	return out
}

// ExpiredScopes lists loaded scopes whose TTL has elapsed.
func (c *Coordinator) ExpiredScopes() []Scope {
	if c.opts.TTL <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	var out []Scope
	for _, scope := range AllScopes() {
		e := c.entries[scope]
		if e.loaded && !e.fresh(now, c.opts.TTL) {
			out = append(out, scope)
		}
	}
	return out
}

// FetchConversationDetail always hits the network and makes the result the
// active conversation. On failure the active conversation is left untouched
// and (nil, err) is returned.
func (c *Coordinator) FetchConversationDetail(ctx context.Context, id string) (*conversation.Conversation, error) {
	fresh, err := c.loadDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store.SetActiveConversation(fresh)
	return fresh.Clone(), nil
}

// Reconcile fetches id and replaces the active conversation only while it is
// still expectedID or id itself, so a late completion never hijacks another view.
func (c *Coordinator) Reconcile(ctx context.Context, id, expectedID string) (*conversation.Conversation, error) {
	fresh, err := c.loadDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.store.ReplaceActiveIf(expectedID, fresh) {
		return fresh.Clone(), nil
	}
	if expectedID != id && c.store.ReplaceActiveIf(id, fresh) {
		return fresh.Clone(), nil
	}
	c.log.Debug().Str("conversation_id", id).Err(errActiveMoved).Msg("skipping reconcile of inactive conversation")
	return fresh.Clone(), nil
}

func (c *Coordinator) loadDetail(ctx context.Context, id string) (*conversation.Conversation, error) {
	if err := conversation.ValidateServerID(ctx, "conversation", id); err != nil {
		return nil, err
	}
	if c.guard != nil {
		if err := c.guard.RequireSession(ctx); err != nil {
			return nil, err
		}
	}
	fresh, err := c.gateway.GetConversation(ctx, id)
	if err != nil {
		c.log.Warn().Err(err).Str("conversation_id", id).Msg("conversation detail fetch failed")
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load conversation")
	}
	fresh.Normalize()
	return fresh, nil
}
