package tui

import (
	"fmt"
	"io"
	"sync"

	"github.com/janhq/jan-chat-sync/internal/domain/ui"
)

// Notifier prints toasts as styled lines.
type Notifier struct {
	mu     sync.Mutex
	out    io.Writer
	styles Styles
}

func NewNotifier(out io.Writer) *Notifier {
	return &Notifier{out: out, styles: DefaultStyles()}
}

func (n *Notifier) Info(message string) {
	n.print(n.styles.Info.Render("✓ " + message))
}

func (n *Notifier) Error(message string) {
	n.print(n.styles.Error.Render("✗ " + message))
}

func (n *Notifier) print(line string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.out, line)
}

// Navigator prints route changes and remembers the current screen.
type Navigator struct {
	mu      sync.Mutex
	out     io.Writer
	styles  Styles
	current ui.Route
}

func NewNavigator(out io.Writer) *Navigator {
	return &Navigator{out: out, styles: DefaultStyles(), current: ui.RouteChat}
}

func (n *Navigator) Navigate(route ui.Route) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if route == n.current {
		return
	}
	n.current = route
	fmt.Fprintf(n.out, "%s %s\n", n.styles.Hint.Render("now viewing"), n.styles.Route.Render(string(route)))
}

// Current returns the last route navigated to.
func (n *Navigator) Current() ui.Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

var (
	_ ui.Notifier  = (*Notifier)(nil)
	_ ui.Navigator = (*Navigator)(nil)
)
