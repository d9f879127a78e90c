package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/jan-chat-sync/internal/testhelpers"
	"github.com/janhq/jan-chat-sync/internal/utils/platformerrors"
)

type cliResult struct {
	out string
	err string
}

func newCLI(t *testing.T) (*testhelpers.HTTPBackend, func(args ...string) (cliResult, error)) {
	t.Helper()
	server := testhelpers.NewHTTPBackend(testhelpers.NewFakeBackend(), "secret-token")
	t.Cleanup(server.Close)

	t.Setenv("API_BASE_URL", server.URL)
	t.Setenv("STATE_FILE", filepath.Join(t.TempDir(), "state.db"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("METRICS_ADDR", "")
	t.Setenv("CHATSYNC_CONFIG_FILE", "")

	run := func(args ...string) (cliResult, error) {
		var out, errOut bytes.Buffer
		cmd := newRootCmd()
		cmd.SetArgs(args)
		cmd.SetIn(strings.NewReader(""))
		cmd.SetOut(&out)
		cmd.SetErr(&errOut)
		err := cmd.Execute()
		return cliResult{out: out.String(), err: errOut.String()}, err
	}
	return server, run
}

func TestCLI_ConversationWorkflow(t *testing.T) {
	server, run := newCLI(t)

	res, err := run("login", "--token", "secret-token")
	require.NoError(t, err)
	assert.Contains(t, res.err, "signed in as Test User")

	res, err = run("whoami")
	require.NoError(t, err)
	assert.Contains(t, res.out, "test@example.com")

	res, err = run("conversations", "create", "--title", "Grammar", "--age", "9")
	require.NoError(t, err)
	assert.Contains(t, res.err, "created conv_1 (age 9)")

	res, err = run("chat", "send", "-c", "conv_1", "what", "is", "a", "noun?")
	require.NoError(t, err)
	assert.Contains(t, res.out, `answer to "what is a noun?" for age 9`)

	res, err = run("conversations", "list", "--scope", "history")
	require.NoError(t, err)
	assert.Contains(t, res.out, "Grammar")

	res, err = run("messages", "edit", "conv_1", "msg_2", "what", "is", "a", "verb?")
	require.NoError(t, err)
	assert.Contains(t, res.out, "what is a verb?")
	assert.Contains(t, res.out, "version 2/2")

	res, err = run("messages", "switch", "conv_1", "msg_2", "1")
	require.NoError(t, err)
	assert.Contains(t, res.out, "version 1/2")

	_, err = run("--yes", "messages", "delete", "conv_1", "msg_3")
	require.NoError(t, err)
	stored, ok := server.Backend.Stored("conv_1")
	require.True(t, ok)
	assert.Len(t, stored.Messages, 1)

	_, err = run("conversations", "rename", "conv_1", "Parts of speech")
	require.NoError(t, err)
	_, err = run("conversations", "archive", "conv_1")
	require.NoError(t, err)
	stored, _ = server.Backend.Stored("conv_1")
	assert.True(t, stored.IsArchived)
	assert.Equal(t, "Parts of speech", stored.Title)

	_, err = run("--yes", "conversations", "delete", "conv_1")
	require.NoError(t, err)
	_, ok = server.Backend.Stored("conv_1")
	assert.False(t, ok)
}

func TestCLI_AgeLockedAfterFirstMessage(t *testing.T) {
	_, run := newCLI(t)
	_, err := run("login", "--token", "secret-token")
	require.NoError(t, err)
	_, err = run("conversations", "create", "--title", "Science", "--age", "11")
	require.NoError(t, err)
	_, err = run("chat", "send", "-c", "conv_1", "why is the sky blue?")
	require.NoError(t, err)

	res, err := run("conversations", "age", "conv_1", "5")
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict))
	assert.NotEmpty(t, res.err, "reported through the notifier")
}

func TestCLI_LogoutRequiresNewSession(t *testing.T) {
	_, run := newCLI(t)
	_, err := run("login", "--token", "secret-token")
	require.NoError(t, err)

	_, err = run("logout")
	require.NoError(t, err)

	res, err := run("conversations", "list")
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeAuthRequired))
	assert.Contains(t, res.err, "/signin")
}

func TestCLI_RejectedTokenSignsOut(t *testing.T) {
	_, run := newCLI(t)
	_, err := run("login", "--token", "wrong-token")
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeAuthRequired))

	_, err = run("whoami")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeAuthRequired), "no token was kept")
}

func TestCLI_ConfigSchema(t *testing.T) {
	_, run := newCLI(t)
	res, err := run("config", "schema")
	require.NoError(t, err)
	assert.Contains(t, res.out, "api_base_url")

	res, err = run("--api-url", "http://example.test/api", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, res.out, "http://example.test/api")
}
