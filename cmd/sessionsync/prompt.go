package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/GriffinCanCode/sessionsync/internal/domain/resolver"
)

// promptModel asks for a session id on one line.
type promptModel struct {
	input    textinput.Model
	value    string
	canceled bool
	done     bool
}

func newPromptModel() promptModel {
	ti := textinput.New()
	ti.Placeholder = "session id"
	ti.Prompt = "│ "
	ti.CharLimit = 128
	ti.Width = 40
	ti.Focus()
	return promptModel{input: ti}
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.value = strings.TrimSpace(m.input.Value())
			m.done = true
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			m.canceled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.done || m.canceled {
		return ""
	}
	return fmt.Sprintf("Enter the session id to load:\n%s\n(enter to load, esc to cancel)\n", m.input.View())
}

// terminalPrompter asks for a session id interactively.
type terminalPrompter struct {
	in  io.Reader
	out io.Writer
}

func newTerminalPrompter(in io.Reader, out io.Writer) *terminalPrompter {
	return &terminalPrompter{in: in, out: out}
}

// PromptSessionID returns the entered id, or resolver.ErrOperationCanceled
// when the prompt is dismissed.
func (p *terminalPrompter) PromptSessionID(ctx context.Context) (string, error) {
	program := tea.NewProgram(newPromptModel(),
		tea.WithContext(ctx),
		tea.WithInput(p.in),
		tea.WithOutput(p.out),
	)

	final, err := program.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
			return "", resolver.ErrOperationCanceled
		}
		return "", fmt.Errorf("session prompt failed: %w", err)
	}

	m, ok := final.(promptModel)
	if !ok || m.canceled {
		return "", resolver.ErrOperationCanceled
	}
	return m.value, nil
}
