package chatsync_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/jan-chat-sync/internal/domain/chatsync"
	"github.com/janhq/jan-chat-sync/internal/domain/conversation"
	"github.com/janhq/jan-chat-sync/internal/testhelpers"
	"github.com/janhq/jan-chat-sync/internal/utils/platformerrors"
)

func seedConversations(f *fixture, n int) {
	for i := 1; i <= n; i++ {
		f.backend.Seed(conversation.Conversation{
			ID:        fmt.Sprintf("conv_%d", i),
			Title:     fmt.Sprintf("Conversation %d", i),
			UpdatedAt: time.Date(2025, 1, i, 0, 0, 0, 0, time.UTC),
		})
	}
}

func TestFetchConversations_CacheHit(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	seedConversations(f, 3)

	first, err := f.engine.Coordinator.FetchConversations(ctx, chatsync.ScopeChat, false)
	require.NoError(t, err)
	require.Len(t, first, 3)

	second, err := f.engine.Coordinator.FetchConversations(ctx, chatsync.ScopeChat, false)
	require.NoError(t, err)

	assert.Equal(t, 1, f.backend.Calls(testhelpers.MethodList))
	assert.Equal(t, first, second)
}

func TestFetchConversations_ForceRefetches(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	seedConversations(f, 2)

	_, err := f.engine.Coordinator.FetchConversations(ctx, chatsync.ScopeChat, false)
	require.NoError(t, err)
	_, err = f.engine.Coordinator.FetchConversations(ctx, chatsync.ScopeChat, true)
	require.NoError(t, err)

	assert.Equal(t, 2, f.backend.Calls(testhelpers.MethodList))
}

func TestFetchConversations_ScopesAreIndependent(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	seedConversations(f, 2)
	require.NoError(t, f.backend.ArchiveConversation(ctx, "conv_1"))

	chat, err := f.engine.Coordinator.FetchConversations(ctx, chatsync.ScopeChat, false)
	require.NoError(t, err)
	history, err := f.engine.Coordinator.FetchConversations(ctx, chatsync.ScopeHistory, false)
	require.NoError(t, err)

	assert.Len(t, chat, 1)
	assert.Len(t, history, 2, "history lists archived conversations")
	assert.Equal(t, 2, f.backend.Calls(testhelpers.MethodList))
}

func TestFetchConversations_FailureClearsAndRetries(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	seedConversations(f, 2)

	_, err := f.engine.Coordinator.FetchConversations(ctx, chatsync.ScopeSidebar, false)
	require.NoError(t, err)

	f.backend.FailNext(testhelpers.MethodList, testhelpers.NetworkError())
	list, err := f.engine.Coordinator.FetchConversations(ctx, chatsync.ScopeSidebar, true)
	require.Error(t, err)
	assert.True(t, isType(err, platformerrors.ErrorTypeNetwork))
	assert.Nil(t, list)
	assert.Empty(t, f.engine.Coordinator.Cached(chatsync.ScopeSidebar))

	list, err = f.engine.Coordinator.FetchConversations(ctx, chatsync.ScopeSidebar, false)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 3, f.backend.Calls(testhelpers.MethodList))
}

func TestFetchConversations_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(withOptions(chatsync.CoordinatorOptions{TTL: time.Minute}))
	seedConversations(f, 1)

	_, err := f.engine.Coordinator.FetchConversations(ctx, chatsync.ScopeChat, false)
	require.NoError(t, err)

	f.clock.Advance(30 * time.Second)
	_, err = f.engine.Coordinator.FetchConversations(ctx, chatsync.ScopeChat, false)
	require.NoError(t, err)
	assert.Equal(t, 1, f.backend.Calls(testhelpers.MethodList))
	assert.Empty(t, f.engine.Coordinator.ExpiredScopes())

	f.clock.Advance(31 * time.Second)
	assert.Equal(t, []chatsync.Scope{chatsync.ScopeChat}, f.engine.Coordinator.ExpiredScopes())
	_, err = f.engine.Coordinator.FetchConversations(ctx, chatsync.ScopeChat, false)
	require.NoError(t, err)
	assert.Equal(t, 2, f.backend.Calls(testhelpers.MethodList))
}

func TestFetchConversations_Paginates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(withOptions(chatsync.CoordinatorOptions{PageSize: 2}))
	seedConversations(f, 5)

	list, err := f.engine.Coordinator.FetchConversations(ctx, chatsync.ScopeChat, false)
	require.NoError(t, err)
	assert.Len(t, list, 5)
	assert.Equal(t, 3, f.backend.Calls(testhelpers.MethodList))
	assert.Equal(t, "conv_5", list[0].ID, "most recently updated first")
}

func TestFetchConversations_ConcurrentCallsShareOneRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	seedConversations(f, 2)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.backend.BeforeCall(func(method string) {
		if method != testhelpers.MethodList {
			return
		}
		once.Do(func() { close(entered) })
		<-release
	})

	const callers = 5
	var wg sync.WaitGroup
	results := make([][]conversation.Conversation, callers)
	errs := make([]error, callers)
	start := func(i int) {
		defer wg.Done()
		results[i], errs[i] = f.engine.Coordinator.FetchConversations(ctx, chatsync.ScopeChat, false)
	}

	wg.Add(callers)
	go start(0)
	<-entered
	for i := 1; i < callers; i++ {
		go start(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, f.backend.Calls(testhelpers.MethodList))
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Len(t, results[i], 2)
	}
}

func TestFetchConversations_InvalidationDuringFetchKeepsScopeStale(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	seedConversations(f, 1)

	f.backend.BeforeCall(func(method string) {
		if method == testhelpers.MethodList {
			f.engine.Coordinator.Invalidate("test")
		}
	})
	list, err := f.engine.Coordinator.FetchConversations(ctx, chatsync.ScopeChat, false)
	require.NoError(t, err)
	assert.Len(t, list, 1, "the caller still gets what was fetched")

	for _, st := range f.engine.Coordinator.States() {
		if st.Scope == chatsync.ScopeChat {
			assert.False(t, st.Loaded)
			assert.Zero(t, st.Count, "a result from an older generation is not recorded")
		}
	}
}

func TestFetchConversations_StaleFailureKeepsNewerResult(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	seedConversations(f, 2)

	entered := make(chan struct{})
	release := make(chan struct{})
	var first sync.Once
	f.backend.BeforeCall(func(method string) {
		if method != testhelpers.MethodList {
			return
		}
		blocked := false
		first.Do(func() { blocked = true })
		if blocked {
			close(entered)
			<-release
		}
	})

	staleErr := make(chan error, 1)
	go func() {
		_, err := f.engine.Coordinator.FetchConversations(ctx, chatsync.ScopeChat, false)
		staleErr <- err
	}()
	<-entered

	f.engine.Coordinator.Invalidate("test")
	list, err := f.engine.Coordinator.FetchConversations(ctx, chatsync.ScopeChat, false)
	require.NoError(t, err)
	require.Len(t, list, 2)

	f.backend.FailNext(testhelpers.MethodList, testhelpers.NetworkError())
	close(release)
	require.Error(t, <-staleErr)

	assert.True(t, scopeLoaded(f, chatsync.ScopeChat))
	assert.Len(t, f.engine.Coordinator.Cached(chatsync.ScopeChat), 2)
}

func TestFetchConversations_JoinedCallerSurvivesFirstCallerCancel(t *testing.T) {
	f := newFixture()
	seedConversations(f, 2)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.backend.BeforeCall(func(method string) {
		if method != testhelpers.MethodList {
			return
		}
		once.Do(func() { close(entered) })
		<-release
	})

	firstCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.engine.Coordinator.FetchConversations(firstCtx, chatsync.ScopeChat, false)
		firstErr <- err
	}()
	<-entered

	type result struct {
		list []conversation.Conversation
		err  error
	}
	second := make(chan result, 1)
	go func() {
		list, err := f.engine.Coordinator.FetchConversations(context.Background(), chatsync.ScopeChat, false)
		second <- result{list: list, err: err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(release)
	res := <-second
	require.NoError(t, res.err)
	assert.Len(t, res.list, 2)
	assert.Equal(t, 1, f.backend.Calls(testhelpers.MethodList))
	assert.True(t, scopeLoaded(f, chatsync.ScopeChat))
}

func TestFetchConversations_RequiresSession(t *testing.T) {
	ctx := context.Background()
	authErr := platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeAuthRequired, "sign in required", nil, "")
	f := newFixture(withGuard(denyAll{err: authErr}))

	_, err := f.engine.Coordinator.FetchConversations(ctx, chatsync.ScopeChat, false)
	assert.True(t, isType(err, platformerrors.ErrorTypeAuthRequired))
	assert.Zero(t, f.backend.Calls(testhelpers.MethodList))
}

type denyAll struct{ err error }

func (d denyAll) RequireSession(context.Context) error { return d.err }

func TestFetchConversations_UnknownScope(t *testing.T) {
	f := newFixture()
	_, err := f.engine.Coordinator.FetchConversations(context.Background(), chatsync.Scope("admin"), false)
	assert.True(t, isType(err, platformerrors.ErrorTypeValidation))
}

func TestFetchConversationDetail_AlwaysHitsNetwork(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.backend.Seed(conversation.Conversation{ID: "conv_1", Messages: []conversation.Message{{ID: "msg_1", Role: conversation.RoleUser, Content: "hi"}}})

	for i := 0; i < 2; i++ {
		conv, err := f.engine.Coordinator.FetchConversationDetail(ctx, "conv_1")
		require.NoError(t, err)
		require.NotNil(t, conv)
	}
	assert.Equal(t, 2, f.backend.Calls(testhelpers.MethodGet))

	active := f.store.ActiveConversation()
	require.NotNil(t, active)
	assert.Equal(t, []string{"hi"}, active.Messages[0].Versions, "normalized on arrival")
	assert.Equal(t, 1, active.Messages[0].CurrentVersion)
}

func TestFetchConversationDetail_FailureLeavesActiveUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedActive(t, conversation.Conversation{ID: "conv_1", Title: "kept"})

	conv, err := f.engine.Coordinator.FetchConversationDetail(ctx, "conv_missing")
	assert.Nil(t, conv)
	assert.True(t, isType(err, platformerrors.ErrorTypeNotFound))
	assert.Equal(t, "kept", f.store.ActiveConversation().Title)

	conv, err = f.engine.Coordinator.FetchConversationDetail(ctx, "tmp_1_abcdefgh")
	assert.Nil(t, conv)
	assert.True(t, isType(err, platformerrors.ErrorTypeValidation))
	assertNoProvisionalSent(t, f.backend)
}

func TestReconcile_DoesNotHijackAnotherView(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.backend.Seed(conversation.Conversation{ID: "conv_1", Title: "background"})
	f.seedActive(t, conversation.Conversation{ID: "conv_2", Title: "open"})

	fresh, err := f.engine.Coordinator.Reconcile(ctx, "conv_1", "conv_1")
	require.NoError(t, err)
	assert.Equal(t, "background", fresh.Title)
	assert.Equal(t, "conv_2", f.store.ActiveConversation().ID)
}
