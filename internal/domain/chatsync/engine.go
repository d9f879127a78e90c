package chatsync

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-chat-sync/internal/domain/conversation"
	"github.com/janhq/jan-chat-sync/internal/domain/ui"
)

// Engine bundles the synchronization components that share one store, one
// journal and one set of conversation locks.
type Engine struct {
	Coordinator   *Coordinator
	Orchestrator  *Orchestrator
	Editor        *Editor
	Conversations *ConversationService
	Journal       *Journal
	Locks         *ConversationLocks
}

// EngineDeps are the ports the engine is built from.
type EngineDeps struct {
	Gateway   conversation.Gateway
	Store     conversation.Store
	Guard     SessionGuard
	Resolver  AgeResolver
	Navigator ui.Navigator
	Observer  Observer
	Options   CoordinatorOptions
}

func NewEngine(deps EngineDeps, log zerolog.Logger) *Engine {
	journal := NewJournal(deps.Observer)
	locks := NewConversationLocks()
	coordinator := NewCoordinator(deps.Gateway, deps.Store, deps.Guard, deps.Observer, deps.Options, log)
	return &Engine{
		Coordinator:   coordinator,
		Orchestrator:  NewOrchestrator(deps.Gateway, deps.Store, coordinator, deps.Resolver, deps.Navigator, journal, locks, log),
		Editor:        NewEditor(deps.Gateway, deps.Store, coordinator, deps.Resolver, journal, locks, log),
		Conversations: NewConversationService(deps.Gateway, deps.Store, coordinator, deps.Resolver, log),
		Journal:       journal,
		Locks:         locks,
	}
}

// NewRefresher builds a background refresher sharing the engine's locks.
func (e *Engine) NewRefresher(store conversation.Store, interval time.Duration, log zerolog.Logger) *Refresher {
	return NewRefresher(e.Coordinator, store, e.Locks, interval, log)
}
