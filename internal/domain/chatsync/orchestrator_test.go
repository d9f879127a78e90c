package chatsync_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/jan-chat-sync/internal/domain/chatsync"
	"github.com/janhq/jan-chat-sync/internal/domain/conversation"
	"github.com/janhq/jan-chat-sync/internal/domain/ui"
	"github.com/janhq/jan-chat-sync/internal/testhelpers"
	"github.com/janhq/jan-chat-sync/internal/utils/platformerrors"
)

func chatConversation(id string) conversation.Conversation {
	return conversation.Conversation{
		ID:         id,
		Title:      "Homework help",
		AgeContext: intPtr(10),
		Messages: []conversation.Message{
			msg(id+"_u1", conversation.RoleUser, "what is a noun?"),
			msg(id+"_b1", conversation.RoleBot, "a naming word"),
		},
	}
}

func TestSendMessage_ExistingConversation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedActive(t, chatConversation("conv_a"))

	res, err := f.engine.Orchestrator.SendMessage(ctx, "and a verb?", "conv_a")
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, "conv_a", res.ConversationID)
	assert.Equal(t, `answer to "and a verb?" for age 10`, res.Response)

	messages := activeMessages(t, f.store)
	require.Len(t, messages, 4)
	assert.Equal(t, "and a verb?", messages[2].Content)
	assert.Equal(t, res.Response, messages[3].Content)
	assert.False(t, hasProvisional(f.store.ActiveConversation()))
	assert.Empty(t, f.navigator.Routes(), "no navigation for an existing conversation")

	op, ok := f.engine.Journal.Get(res.Seq)
	require.True(t, ok)
	assert.Equal(t, chatsync.StateCommitted, op.State)
	assertNoProvisionalSent(t, f.backend)
}

func TestSendMessage_PendingPairVisibleDuringRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedActive(t, chatConversation("conv_a"))

	var during []conversation.Message
	var pending []chatsync.Operation
	f.backend.BeforeCall(func(method string) {
		if method == testhelpers.MethodSendChat {
			during = f.store.ActiveConversation().Messages
			pending = f.engine.Journal.Pending()
		}
	})

	_, err := f.engine.Orchestrator.SendMessage(ctx, "hello", "conv_a")
	require.NoError(t, err)

	require.Len(t, during, 4)
	assert.True(t, during[2].IsProvisional())
	assert.Equal(t, "hello", during[2].Content)
	assert.True(t, during[3].IsProvisional())
	assert.True(t, during[3].IsRegenerating)
	assert.Equal(t, during[2].CorrelationID, during[3].CorrelationID)

	require.Len(t, pending, 1)
	assert.Equal(t, chatsync.StatePending, pending[0].State)
	assert.Equal(t, during[2].CorrelationID, pending[0].CorrelationID)
	assert.Empty(t, f.engine.Journal.Pending())
}

func TestSendMessage_FailureRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedActive(t, chatConversation("conv_a"))
	_, err := f.engine.Coordinator.FetchConversations(ctx, chatsync.ScopeChat, false)
	require.NoError(t, err)
	before := activeMessages(t, f.store)

	f.backend.FailNext(testhelpers.MethodSendChat, testhelpers.NetworkError())
	res, err := f.engine.Orchestrator.SendMessage(ctx, "hello", "conv_a")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, isType(err, platformerrors.ErrorTypeNetwork))

	assert.Equal(t, before, activeMessages(t, f.store))
	for _, st := range f.engine.Coordinator.States() {
		if st.Scope == chatsync.ScopeChat {
			assert.True(t, st.Loaded, "a failed send does not invalidate")
		}
	}
	assert.Equal(t, 1, f.backend.Calls(testhelpers.MethodList))

	ops := f.engine.Journal.Operations()
	require.Len(t, ops, 1)
	assert.Equal(t, chatsync.StateRolledBack, ops[0].State)
	assert.Error(t, ops[0].Err)
}

func TestSendMessage_NewConversation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	res, err := f.engine.Orchestrator.SendMessage(ctx, "tell me about whales", "")
	require.NoError(t, err)
	assert.True(t, res.Created)
	require.NotEmpty(t, res.ConversationID)

	active := f.store.ActiveConversation()
	require.NotNil(t, active)
	assert.Equal(t, res.ConversationID, active.ID)
	assert.Len(t, active.Messages, 2)
	assert.Equal(t, 8, active.Age())
	assert.False(t, hasProvisional(active))

	assert.Equal(t, []ui.Route{ui.ConversationRoute(res.ConversationID)}, f.navigator.Routes())

	list := f.engine.Coordinator.Cached(chatsync.ScopeChat)
	require.Len(t, list, 1)
	assert.Equal(t, res.ConversationID, list[0].ID)
}

func TestSendMessage_NewConversationFailureRestoresPreviousView(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedActive(t, chatConversation("conv_a"))

	f.backend.FailNext(testhelpers.MethodSendChat, testhelpers.NetworkError())
	_, err := f.engine.Orchestrator.SendMessage(ctx, "new topic", "")
	require.Error(t, err)

	active := f.store.ActiveConversation()
	require.NotNil(t, active)
	assert.Equal(t, "conv_a", active.ID)
	assert.Len(t, active.Messages, 2)
	assert.Empty(t, f.navigator.Routes())
}

func TestSendMessage_AgeRequiredAborts(t *testing.T) {
	ctx := context.Background()
	ageErr := platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeAgeRequired, "age context required", nil, "")
	f := newFixture(withResolver(staticAge{err: ageErr}))

	_, err := f.engine.Orchestrator.SendMessage(ctx, "hi", "")
	assert.True(t, isType(err, platformerrors.ErrorTypeAgeRequired))
	assert.Zero(t, f.backend.Calls(testhelpers.MethodSendChat))
	assert.Nil(t, f.store.ActiveConversation())
	assert.Empty(t, f.engine.Journal.Operations())
}

func TestSendMessage_RejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	tests := []struct {
		name           string
		content        string
		conversationID string
	}{
		{"blank content", "   ", "conv_a"},
		{"provisional conversation", "hi", "tmp_1700000000000_abcdefgh"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Orchestrator.SendMessage(ctx, tt.content, tt.conversationID)
			assert.True(t, isType(err, platformerrors.ErrorTypeValidation))
		})
	}
	assert.Zero(t, f.backend.Calls(testhelpers.MethodSendChat))
	assertNoProvisionalSent(t, f.backend)
}

func TestSendMessage_SameConversationIsSerialized(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedActive(t, chatConversation("conv_a"))

	var inflight, maxInflight int32
	f.backend.BeforeCall(func(method string) {
		if method != testhelpers.MethodSendChat {
			return
		}
		n := atomic.AddInt32(&inflight, 1)
		for {
			m := atomic.LoadInt32(&maxInflight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInflight, m, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
	})

	var wg sync.WaitGroup
	for _, text := range []string{"first", "second", "third"} {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			_, err := f.engine.Orchestrator.SendMessage(ctx, text, "conv_a")
			assert.NoError(t, err)
		}(text)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInflight))
	messages := activeMessages(t, f.store)
	assert.Len(t, messages, 8)
	assert.False(t, hasProvisional(f.store.ActiveConversation()))
}

// Sends to different conversations are not serialized against each other. Both
// stay pending at once, and the send whose conversation is not open swaps a
// placeholder into the single active slot, hiding the other send's pending pair
// until both complete.
func TestSendMessage_DifferentConversationsInterleave(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.backend.Seed(chatConversation("conv_b"))
	f.seedActive(t, chatConversation("conv_a"))

	gates := []chan struct{}{make(chan struct{}), make(chan struct{})}
	entered := make(chan int, 2)
	var sends atomic.Int32
	f.backend.BeforeCall(func(method string) {
		if method != testhelpers.MethodSendChat {
			return
		}
		i := int(sends.Add(1)) - 1
		entered <- i
		<-gates[i]
	})

	doneA := make(chan error, 1)
	go func() {
		_, err := f.engine.Orchestrator.SendMessage(ctx, "for a", "conv_a")
		doneA <- err
	}()
	require.Equal(t, 0, <-entered)

	pendingA := activeMessages(t, f.store)
	require.Len(t, pendingA, 4)
	assert.Equal(t, "for a", pendingA[2].Content)
	assert.True(t, pendingA[3].IsRegenerating)

	doneB := make(chan error, 1)
	go func() {
		_, err := f.engine.Orchestrator.SendMessage(ctx, "for b", "conv_b")
		doneB <- err
	}()
	require.Equal(t, 1, <-entered)

	pending := f.engine.Journal.Pending()
	require.Len(t, pending, 2, "both sends are pending at the same time")
	assert.Equal(t, "conv_a", pending[0].ConversationID)
	assert.Equal(t, "conv_b", pending[1].ConversationID)

	// The active slot now holds conv_b's placeholder; conv_a's pending pair is out of view.
	placeholder := f.store.ActiveConversation()
	require.NotNil(t, placeholder)
	assert.True(t, placeholder.IsProvisional())
	assert.Equal(t, pending[1].CorrelationID, placeholder.ID)
	// conv_b was never listed, so the placeholder carries only its own pending pair.
	require.Len(t, placeholder.Messages, 2)
	assert.Equal(t, "for b", placeholder.Messages[0].Content)
	assert.True(t, placeholder.Messages[1].IsRegenerating)
	for _, m := range placeholder.Messages {
		assert.NotEqual(t, "for a", m.Content)
	}

	close(gates[0])
	require.NoError(t, <-doneA)
	assert.Equal(t, placeholder.ID, f.store.ActiveConversation().ID, "conv_a completing does not replace the other view")

	close(gates[1])
	require.NoError(t, <-doneB)

	active := f.store.ActiveConversation()
	require.NotNil(t, active)
	assert.Equal(t, "conv_b", active.ID)
	assert.Len(t, active.Messages, 4)
	assert.False(t, hasProvisional(active))
	assert.Empty(t, f.engine.Journal.Pending())

	stored, ok := f.backend.Stored("conv_a")
	require.True(t, ok)
	assert.Len(t, stored.Messages, 4)
}

func TestSendMessage_LateCompletionDoesNotHijackView(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.backend.Seed(chatConversation("conv_b"))
	f.seedActive(t, chatConversation("conv_a"))

	entered := make(chan struct{})
	release := make(chan struct{})
	f.backend.BeforeCall(func(method string) {
		if method == testhelpers.MethodSendChat {
			close(entered)
			<-release
		}
	})

	done := make(chan error, 1)
	go func() {
		_, err := f.engine.Orchestrator.SendMessage(ctx, "still there?", "conv_a")
		done <- err
	}()

	<-entered
	_, err := f.engine.Coordinator.FetchConversationDetail(ctx, "conv_b")
	require.NoError(t, err)
	close(release)
	require.NoError(t, <-done)

	active := f.store.ActiveConversation()
	require.NotNil(t, active)
	assert.Equal(t, "conv_b", active.ID)
	assert.Len(t, active.Messages, 2)
	assert.False(t, hasProvisional(active))

	stored, ok := f.backend.Stored("conv_a")
	require.True(t, ok)
	assert.Len(t, stored.Messages, 4)
}

func TestRegenerateResponse_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedActive(t, chatConversation("conv_a"))

	var during *conversation.Message
	f.backend.BeforeCall(func(method string) {
		if method == testhelpers.MethodRegenerate {
			m := f.store.ActiveConversation().FindMessage("conv_a_b1")
			cp := m.Clone()
			during = &cp
		}
	})

	require.NoError(t, f.engine.Orchestrator.RegenerateResponse(ctx, "conv_a_b1", "conv_a", 10))

	require.NotNil(t, during)
	assert.True(t, during.IsRegenerating)
	assert.Empty(t, during.Content)

	bot := f.store.ActiveConversation().FindMessage("conv_a_b1")
	require.NotNil(t, bot)
	assert.Equal(t, "regenerated answer 2 for age 10", bot.Content)
	assert.Equal(t, 2, bot.TotalVersions())
	assert.Equal(t, 2, bot.CurrentVersion)
	assert.False(t, bot.IsRegenerating)
}

func TestRegenerateResponse_FailureResyncsFromServer(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedActive(t, chatConversation("conv_a"))

	f.backend.FailNext(testhelpers.MethodRegenerate, testhelpers.NetworkError())
	err := f.engine.Orchestrator.RegenerateResponse(ctx, "conv_a_b1", "conv_a", 10)
	require.Error(t, err)

	bot := f.store.ActiveConversation().FindMessage("conv_a_b1")
	assert.Equal(t, "a naming word", bot.Content)
	assert.False(t, bot.IsRegenerating)
	assert.Equal(t, 2, f.backend.Calls(testhelpers.MethodGet), "open plus resync")

	ops := f.engine.Journal.Operations()
	require.Len(t, ops, 1)
	assert.Equal(t, chatsync.StateRolledBack, ops[0].State)
}

func TestRegenerateResponse_RestoresSnapshotWhenResyncFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedActive(t, chatConversation("conv_a"))

	f.backend.FailNext(testhelpers.MethodRegenerate, testhelpers.NetworkError())
	f.backend.FailNext(testhelpers.MethodGet, testhelpers.NetworkError())
	require.Error(t, f.engine.Orchestrator.RegenerateResponse(ctx, "conv_a_b1", "conv_a", 10))

	bot := f.store.ActiveConversation().FindMessage("conv_a_b1")
	assert.Equal(t, "a naming word", bot.Content)
	assert.False(t, bot.IsRegenerating)
	assert.Equal(t, []string{"a naming word"}, bot.Versions)
}

func TestRegenerateResponse_RejectsUserMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedActive(t, chatConversation("conv_a"))

	err := f.engine.Orchestrator.RegenerateResponse(ctx, "conv_a_u1", "conv_a", 10)
	assert.True(t, isType(err, platformerrors.ErrorTypeValidation))
	assert.Zero(t, f.backend.Calls(testhelpers.MethodRegenerate))
}

func TestRegenerateResponse_ResolvesMissingAge(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.seedActive(t, chatConversation("conv_a"))

	require.NoError(t, f.engine.Orchestrator.RegenerateResponse(ctx, "conv_a_b1", "conv_a", 0))
	bot := f.store.ActiveConversation().FindMessage("conv_a_b1")
	assert.Equal(t, "regenerated answer 2 for age 10", bot.Content, "conversation age is used")
}
