package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/nicktill/renderscope/pkg/analyzer"
)

type selectorModel struct {
	question string
	cursor   int
	choices  []string
	choice   string
}

func (m selectorModel) Init() tea.Cmd {
	return nil
}

func (m selectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit

		case "enter":
			m.choice = m.choices[m.cursor]
			return m, tea.Quit

		case "down", "j":
			m.cursor++
			if m.cursor >= len(m.choices) {
				m.cursor = 0
			}

		case "up", "k":
			m.cursor--
			if m.cursor < 0 {
				m.cursor = len(m.choices) - 1
			}

		case "home", "g":
			m.cursor = 0

		case "end", "G":
			m.cursor = len(m.choices) - 1
		}
	}
	return m, nil
}

func (m selectorModel) View() string {
	var sb strings.Builder
	sb.WriteString(m.question + "\n\n")

	for i, choice := range m.choices {
		cursor := "  "
		if m.cursor == i {
			cursor = color.CyanString("> ")
		}
		sb.WriteString(fmt.Sprintf("%s%s\n", cursor, choice))
	}

	sb.WriteString("\n(Use arrow keys to navigate, enter to select, q to quit)\n")
	return sb.String()
}

// Prompt is an analyzer.Selector. On a terminal it shows a bubbletea list;
// otherwise it reads one line naming the component or its 1-based number,
// so the analyzer can be driven from a pipe.
type Prompt struct {
	In  io.Reader // default os.Stdin
	Out io.Writer // default os.Stdout
}

// Select presents choices and returns the one picked. Quitting without a
// choice returns analyzer.ErrNoSelection.
func (p Prompt) Select(question string, choices []string) (string, error) {
	if len(choices) == 0 {
		return "", analyzer.ErrNoSelection
	}

	in, out := p.In, p.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}

	if !isTerminal(in) {
		return readChoice(in, out, question, choices)
	}

	program := tea.NewProgram(
		selectorModel{question: question, choices: choices},
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	m, err := program.Run()
	if err != nil {
		return "", fmt.Errorf("component prompt failed: %w", err)
	}

	result := m.(selectorModel).choice
	if result == "" {
		return "", analyzer.ErrNoSelection
	}
	return result, nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// readChoice lists the choices and reads the answer from a single line. A
// name that is not listed is returned as typed.
func readChoice(in io.Reader, out io.Writer, question string, choices []string) (string, error) {
	fmt.Fprintln(out, question)
	for i, c := range choices {
		fmt.Fprintf(out, "  %d) %s\n", i+1, c)
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read choice: %w", err)
	}

	answer := strings.TrimSpace(line)
	if answer == "" {
		return "", analyzer.ErrNoSelection
	}
	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(choices) {
		return choices[n-1], nil
	}
	return answer, nil
}
