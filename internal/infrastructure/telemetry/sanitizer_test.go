package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePIILevel(t *testing.T) {
	tests := []struct {
		input string
		want  PIILevel
	}{
		{"none", PIILevelNone},
		{" FULL ", PIILevelFull},
		{"hashed", PIILevelHashed},
		{"", PIILevelHashed},
		{"everything", PIILevelHashed},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePIILevel(tt.input))
		})
	}
}

func TestSanitizeContent_None(t *testing.T) {
	s := NewSanitizer(PIILevelNone, "salt")
	assert.Equal(t, "[REDACTED]", s.SanitizeContent("my email is kid@example.com"))
	assert.Empty(t, s.SanitizeContent(""))
}

func TestSanitizeContent_Full(t *testing.T) {
	s := NewSanitizer(PIILevelFull, "salt")
	input := "my email is kid@example.com"
	assert.Equal(t, input, s.SanitizeContent(input))
	assert.Equal(t, "header Bearer [REDACTED]", s.SanitizeContent("header Bearer eyJhbGciOi.abc.def"))
}

func TestSanitizeContent_Hashed(t *testing.T) {
	s := NewSanitizer(PIILevelHashed, "salt")

	tests := []struct {
		name     string
		input    string
		contains string
		absent   string
	}{
		{"email", "write to kid@example.com", "[EMAIL:", "kid@example.com"},
		{"phone", "call 555-123-4567 now", "[PHONE:", "555-123-4567"},
		{"card", "card 4111 1111 1111 1111", "[CC:REDACTED]", "4111"},
		{"ip", "server 192.168.1.20", "[IP:", "192.168.1.20"},
		{"token", "Authorization: Bearer abc.def.ghi", "Bearer [REDACTED]", "abc.def.ghi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := s.SanitizeContent(tt.input)
			assert.Contains(t, out, tt.contains)
			assert.NotContains(t, out, tt.absent)
		})
	}

	assert.Equal(t, "what is a noun?", s.SanitizeContent("what is a noun?"), "plain text is kept")
}

func TestSanitizeContent_HashIsStablePerSalt(t *testing.T) {
	a := NewSanitizer(PIILevelHashed, "one")
	b := NewSanitizer(PIILevelHashed, "two")
	input := "kid@example.com"

	assert.Equal(t, a.SanitizeContent(input), a.SanitizeContent(input))
	assert.NotEqual(t, a.SanitizeContent(input), b.SanitizeContent(input))
}

func TestSanitizeUserID(t *testing.T) {
	assert.Equal(t, "[REDACTED]", NewSanitizer(PIILevelNone, "s").SanitizeUserID("user_1"))
	assert.Equal(t, "user_1", NewSanitizer(PIILevelFull, "s").SanitizeUserID("user_1"))
	hashed := NewSanitizer(PIILevelHashed, "s").SanitizeUserID("user_1")
	assert.Len(t, hashed, 8)
	assert.Empty(t, NewSanitizer(PIILevelHashed, "s").SanitizeUserID(""))
}

func TestSanitizeFields(t *testing.T) {
	s := NewSanitizer(PIILevelNone, "salt")
	body := map[string]any{
		"success":         true,
		"conversation_id": "conv_1",
		"response":        "secret answer",
		"messages": []any{
			map[string]any{"id": "msg_1", "role": "user", "content": "hi"},
		},
	}

	out, ok := s.SanitizeFields(body).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "conv_1", out["conversation_id"])
	assert.Equal(t, "[REDACTED]", out["response"])

	msgs := out["messages"].([]any)
	first := msgs[0].(map[string]any)
	assert.Equal(t, "msg_1", first["id"])
	assert.Equal(t, "user", first["role"])
	assert.Equal(t, "[REDACTED]", first["content"])
	assert.Equal(t, "secret answer", body["response"], "input is not mutated")
}
