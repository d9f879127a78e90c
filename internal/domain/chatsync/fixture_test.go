package chatsync_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/janhq/jan-chat-sync/internal/domain/chatsync"
	"github.com/janhq/jan-chat-sync/internal/domain/conversation"
	"github.com/janhq/jan-chat-sync/internal/infrastructure/store"
	"github.com/janhq/jan-chat-sync/internal/testhelpers"
	"github.com/janhq/jan-chat-sync/internal/utils/idgen"
	"github.com/janhq/jan-chat-sync/internal/utils/platformerrors"
)

type staticAge struct {
	age int
	err error
}

func (s staticAge) Resolve(_ context.Context, conv *conversation.Conversation) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	if age := conv.Age(); conversation.ValidAgeContext(age) {
		return age, nil
	}
	return s.age, nil
}

type allowAll struct{}

func (allowAll) RequireSession(context.Context) error { return nil }

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	backend   *testhelpers.FakeBackend
	store     *store.MemoryStore
	navigator *testhelpers.RecordingNavigator
	clock     *manualClock
	engine    *chatsync.Engine
}

type fixtureOption func(*chatsync.EngineDeps)

func withResolver(r chatsync.AgeResolver) fixtureOption {
	return func(d *chatsync.EngineDeps) { d.Resolver = r }
}

func withOptions(opts chatsync.CoordinatorOptions) fixtureOption {
	return func(d *chatsync.EngineDeps) {
		now := d.Options.Now
		d.Options = opts
		d.Options.Now = now
	}
}

func withGuard(g chatsync.SessionGuard) fixtureOption {
	return func(d *chatsync.EngineDeps) { d.Guard = g }
}

func withObserver(o chatsync.Observer) fixtureOption {
	return func(d *chatsync.EngineDeps) { d.Observer = o }
}

type recordingObserver struct {
	mu            sync.Mutex
	hits, misses  int
	invalidations []string
	transitions   []string
}

func (r *recordingObserver) CacheLookup(_ chatsync.Scope, hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func (r *recordingObserver) CacheInvalidated(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidations = append(r.invalidations, reason)
}

func (r *recordingObserver) OperationTransition(kind chatsync.OperationKind, from, to chatsync.OperationState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, string(kind)+":"+string(from)+"->"+string(to))
}

func (r *recordingObserver) Invalidations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.invalidations...)
}

func newFixture(opts ...fixtureOption) *fixture {
	f := &fixture{
		backend:   testhelpers.NewFakeBackend(),
		store:     store.NewMemoryStore(zerolog.Nop()),
		navigator: &testhelpers.RecordingNavigator{},
		clock:     &manualClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)},
	}
	deps := chatsync.EngineDeps{
		Gateway:   f.backend,
		Store:     f.store,
		Guard:     allowAll{},
		Resolver:  staticAge{age: 8},
		Navigator: f.navigator,
		Options:   chatsync.CoordinatorOptions{Now: f.clock.Now},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f.engine = chatsync.NewEngine(deps, zerolog.Nop())
	return f
}

func intPtr(v int) *int { return &v }

func msg(id string, role conversation.Role, versions ...string) conversation.Message {
	return conversation.Message{
		ID:             id,
		Role:           role,
		Content:        versions[len(versions)-1],
		Versions:       versions,
		CurrentVersion: len(versions),
	}
}

// seedActive stores conv server side and opens it locally.
func (f *fixture) seedActive(t *testing.T, conv conversation.Conversation) {
	t.Helper()
	f.backend.Seed(conv)
	_, err := f.engine.Coordinator.FetchConversationDetail(context.Background(), conv.ID)
	require.NoError(t, err)
}

func activeMessages(t *testing.T, s conversation.Store) []conversation.Message {
	t.Helper()
	active := s.ActiveConversation()
	require.NotNil(t, active)
	return active.Messages
}

func hasProvisional(conv *conversation.Conversation) bool {
	if conv == nil {
		return false
	}
	for _, m := range conv.Messages {
		if idgen.IsProvisional(m.ID) {
			return true
		}
	}
	return false
}

func assertNoProvisionalSent(t *testing.T, b *testhelpers.FakeBackend) {
	t.Helper()
	for _, id := range b.SentIDs() {
		require.False(t, idgen.IsProvisional(id), "provisional id %s reached the backend", id)
	}
}

func isType(err error, errorType platformerrors.ErrorType) bool {
	return platformerrors.IsErrorType(err, errorType)
}
