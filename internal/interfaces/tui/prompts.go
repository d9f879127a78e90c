package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/janhq/jan-chat-sync/internal/domain/agecontext"
	"github.com/janhq/jan-chat-sync/internal/domain/ui"
	"github.com/janhq/jan-chat-sync/internal/utils/platformerrors"
)

// ===============================================
// Age prompt
// ===============================================

type ageModel struct {
	input     textinput.Model
	hint      string
	styles    Styles
	submitted bool
	cancelled bool
}

func newAgeModel(hint string, styles Styles) ageModel {
	input := textinput.New()
	input.Placeholder = "8"
	input.CharLimit = 3
	input.Width = 4
	input.Focus()
	return ageModel{input: input, hint: hint, styles: styles}
}

func (m ageModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m ageModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.submitted = true
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m ageModel) View() string {
	if m.submitted || m.cancelled {
		return ""
	}
	return fmt.Sprintf("%s\n%s\n%s\n",
		m.styles.Question.Render(m.hint),
		m.input.View(),
		m.styles.Hint.Render("enter to confirm, esc to cancel"))
}

// ===============================================
// Confirmation prompt
// ===============================================

type confirmModel struct {
	question string
	styles   Styles
	answered bool
	answer   bool
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch strings.ToLower(key.String()) {
	case "y":
		m.answered, m.answer = true, true
		return m, tea.Quit
	case "n", "esc", "ctrl+c", "enter":
		m.answered, m.answer = true, false
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.answered {
		return ""
	}
	return fmt.Sprintf("%s %s\n", m.styles.Question.Render(m.question), m.styles.Hint.Render("[y/N]"))
}

// ===============================================
// Prompts
// ===============================================

// Prompts runs interactive bubbletea prompts on a terminal.
type Prompts struct {
	in        io.Reader
	out       io.Writer
	styles    Styles
	assumeYes bool
}

// NewPrompts creates prompts reading from in and drawing on out.
// With assumeYes every confirmation is approved without asking.
func NewPrompts(in io.Reader, out io.Writer, assumeYes bool) *Prompts {
	return &Prompts{in: in, out: out, styles: DefaultStyles(), assumeYes: assumeYes}
}

// PromptAge asks for an age; ok is false when the user cancels.
func (p *Prompts) PromptAge(ctx context.Context, hint string) (string, bool, error) {
	final, err := p.run(ctx, newAgeModel(hint, p.styles))
	if err != nil {
		return "", false, err
	}
	m := final.(ageModel)
	if m.cancelled {
		return "", false, nil
	}
	return strings.TrimSpace(m.input.Value()), true, nil
}

// Confirm asks a yes/no question; anything but yes declines.
func (p *Prompts) Confirm(ctx context.Context, question string) (bool, error) {
	if p.assumeYes {
		return true, nil
	}
	final, err := p.run(ctx, confirmModel{question: question, styles: p.styles})
	if err != nil {
		return false, err
	}
	return final.(confirmModel).answer, nil
}

func (p *Prompts) run(ctx context.Context, model tea.Model) (tea.Model, error) {
	program := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithInput(p.in),
		tea.WithOutput(p.out),
		tea.WithoutSignalHandler(),
	)
	final, err := program.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerInterface, ctx.Err(), "prompt aborted")
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInterface, platformerrors.ErrorTypeInternal,
			"terminal prompt failed", err, "7c8d9e0f-1a2b-4c3d-9e5f-6a7b8c9d0e1f")
	}
	return final, nil
}

var (
	_ agecontext.Prompter = (*Prompts)(nil)
	_ ui.Confirmer        = (*Prompts)(nil)
)
