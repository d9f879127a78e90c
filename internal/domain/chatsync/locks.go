package chatsync

import (
	"context"
	"sync"

	"github.com/janhq/jan-chat-sync/internal/utils/platformerrors"
)

// ConversationLocks serializes operations per conversation id. The empty key
// covers sends that create a new conversation.
type ConversationLocks struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

func NewConversationLocks() *ConversationLocks {
	return &ConversationLocks{slots: make(map[string]*lockSlot)}
}

func (l *ConversationLocks) acquireSlot(key string) *lockSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	return slot
}

func (l *ConversationLocks) releaseSlot(key string, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}

// Lock waits for the key or for ctx to end. The returned func unlocks.
func (l *ConversationLocks) Lock(ctx context.Context, key string) (func(), error) {
	slot := l.acquireSlot(key)
	select {
	case slot.ch <- struct{}{}:
		return l.unlocker(key, slot), nil
	case <-ctx.Done():
		l.releaseSlot(key, slot)
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, ctx.Err(), "waiting for conversation lock")
	}
}

// TryLock takes the key only if it is free.
func (l *ConversationLocks) TryLock(key string) (func(), bool) {
	slot := l.acquireSlot(key)
	select {
	case slot.ch <- struct{}{}:
		return l.unlocker(key, slot), true
	default:
		l.releaseSlot(key, slot)
		return nil, false
	}
}

func (l *ConversationLocks) unlocker(key string, slot *lockSlot) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.releaseSlot(key, slot)
		})
	}
}
