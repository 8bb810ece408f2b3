package tui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// DefaultQuantity is used when the answer is empty, not a number or below one.
const DefaultQuantity = 100

const question = "How many emails would you like to analyze? "

// ErrCanceled is returned when the user aborts the prompt with ctrl+c or esc.
var ErrCanceled = errors.New("prompt canceled")

// ParseQuantity reads a leading decimal integer from s. Trailing garbage is
// ignored, so "250 emails" is 250.
func ParseQuantity(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return DefaultQuantity
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil || n < 1 {
		return DefaultQuantity
	}
	return n
}

// PromptQuantity asks how many inbox messages to analyze. A terminal gets a
// bubbletea text input; anything else (pipes, files) is read one line at a
// time.
func PromptQuantity(in io.Reader, out io.Writer) (int, error) {
	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return promptInteractive(in, out)
	}
	return promptLine(in, out)
}

func promptLine(in io.Reader, out io.Writer) (int, error) {
	fmt.Fprint(out, question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("read quantity: %w", err)
	}
	return ParseQuantity(line), nil
}

func promptInteractive(in io.Reader, out io.Writer) (int, error) {
	p := tea.NewProgram(newQuantityModel(), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return 0, fmt.Errorf("run prompt: %w", err)
	}
	m := final.(quantityModel)
	if m.canceled {
		return 0, ErrCanceled
	}
	return ParseQuantity(m.input.Value()), nil
}

type quantityModel struct {
	input    textinput.Model
	done     bool
	canceled bool
}

func newQuantityModel() quantityModel {
	ti := textinput.New()
	ti.Prompt = question
	ti.Placeholder = strconv.Itoa(DefaultQuantity)
	ti.CharLimit = 9
	ti.Focus()
	return quantityModel{input: ti}
}

func (m quantityModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m quantityModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.canceled = true
			return m, tea.Quit
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyRunes:
			if !digits(msg.Runes) {
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func digits(rs []rune) bool {
	for _, r := range rs {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (m quantityModel) View() string {
	if m.done || m.canceled {
		return m.input.View() + "\n"
	}
	return m.input.View() + "\n" + footerStyle.Render("enter: confirm  esc: cancel") + "\n"
}
