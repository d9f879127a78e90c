package chatsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/janhq/jan-chat-sync/internal/domain/conversation"
)

// Refresher keeps loaded caches and the open conversation fresh in the background:
// - scopes whose TTL expired are refetched in parallel
// - the active conversation is reloaded unless an operation holds its lock
type Refresher struct {
	coordinator *Coordinator
	store       conversation.Store
	locks       *ConversationLocks
	interval    time.Duration
	log         zerolog.Logger
	instrument  JobWrapper
	done        chan struct{}
	wg          sync.WaitGroup
	startOnce   sync.Once
	stopOnce    sync.Once
}

func NewRefresher(coordinator *Coordinator, store conversation.Store, locks *ConversationLocks, interval time.Duration, log zerolog.Logger) *Refresher {
	return &Refresher{
		coordinator: coordinator,
		store:       store,
		locks:       locks,
		interval:    interval,
		log:         log.With().Str("component", "cache-refresher").Logger(),
		done:        make(chan struct{}),
	}
}

// JobWrapper runs one named background job, typically inside a trace span.
type JobWrapper func(ctx context.Context, jobType string, fn func(context.Context) error) error

// WithInstrumentation wraps every refresh cycle started by the loop.
func (r *Refresher) WithInstrumentation(wrap JobWrapper) *Refresher {
	r.instrument = wrap
	return r
}

// Start begins the refresh loop in background.
// Safe to call multiple times - only the first call starts the refresher.
func (r *Refresher) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go r.run(ctx)
		r.log.Info().Dur("interval", r.interval).Msg("cache refresher started")
	})
}

// Stop gracefully shuts down the refresher.
// Safe to call multiple times - only the first call stops the refresher.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
		r.log.Info().Msg("cache refresher stopped")
	})
}

func (r *Refresher) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Debug().Msg("context cancelled, shutting down refresher")
			return
		case <-r.done:
			r.log.Debug().Msg("done signal received, shutting down refresher")
			return
		case <-ticker.C:
			if r.instrument != nil {
				_ = r.instrument(ctx, "cache_refresh", r.refresh)
			} else {
				r.Refresh(ctx)
			}
		}
	}
}

// Refresh runs one cycle. Errors are logged; the next tick retries.
func (r *Refresher) Refresh(ctx context.Context) {
	_ = r.refresh(ctx)
}

func (r *Refresher) refresh(ctx context.Context) error {
	var scopeErr error
	expired := r.coordinator.ExpiredScopes()
	if len(expired) > 0 {
		// Scopes succeed or fail independently; one failure must not cancel the others.
		var g errgroup.Group
		for _, scope := range expired {
			scope := scope
			g.Go(func() error {
				_, err := r.coordinator.FetchConversations(ctx, scope, true)
				return err
			})
		}
		if scopeErr = g.Wait(); scopeErr != nil {
			r.log.Warn().Err(scopeErr).Int("scopes", len(expired)).Msg("scope refresh failed")
		} else {
			r.log.Debug().Int("scopes", len(expired)).Msg("expired scopes refreshed")
		}
	}

	active := r.store.ActiveConversation()
	if active == nil || active.IsProvisional() {
		return scopeErr
	}
	unlock, ok := r.locks.TryLock(active.ID)
	if !ok {
		r.log.Debug().Str("conversation_id", active.ID).Msg("operation in flight, skipping detail refresh")
		return scopeErr
	}
	defer unlock()
	_, err := r.coordinator.Reconcile(ctx, active.ID, active.ID)
	if err != nil {
		r.log.Warn().Err(err).Str("conversation_id", active.ID).Msg("active conversation refresh failed")
	}
	return errors.Join(scopeErr, err)
}
