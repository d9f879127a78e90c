package testhelpers

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/janhq/jan-chat-sync/internal/domain/ui"
)

// RecordingNavigator remembers every route it was asked to show.
type RecordingNavigator struct {
	mu     sync.Mutex
	routes []ui.Route
}

func (n *RecordingNavigator) Navigate(route ui.Route) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

func (n *RecordingNavigator) Routes() []ui.Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ui.Route(nil), n.routes...)
}

// RecordingNotifier collects toasts.
type RecordingNotifier struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (n *RecordingNotifier) Info(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, message)
}

func (n *RecordingNotifier) Error(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, message)
}

func (n *RecordingNotifier) Errors() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.errors...)
}

func (n *RecordingNotifier) Infos() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.infos...)
}

// StaticConfirmer answers every question the same way.
type StaticConfirmer struct {
	Answer    bool
	Questions []string
}

func (c *StaticConfirmer) Confirm(_ context.Context, question string) (bool, error) {
	c.Questions = append(c.Questions, question)
	return c.Answer, nil
}

// ScriptedPrompter replays canned answers to age prompts. An exhausted script cancels.
type ScriptedPrompter struct {
	Answers []string
	Hints   []string
}

func (p *ScriptedPrompter) PromptAge(_ context.Context, hint string) (string, bool, error) {
	p.Hints = append(p.Hints, hint)
	if len(p.Answers) == 0 {
		return "", false, nil
	}
	answer := p.Answers[0]
	p.Answers = p.Answers[1:]
	return answer, true, nil
}

// Token builds an unsigned-looking HS256 JWT expiring at exp.
func Token(exp time.Time) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user_1",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		panic(err)
	}
	return signed
}
