// Package tui renders docrag terminal output: the interactive chat and the
// tables printed by list and detail.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/services"
)

// ExitCommand ends an interactive chat when typed as a question.
const ExitCommand = "exit"

const (
	sparklineWidth  = 20
	sparklineHeight = 2
)

// Asker answers questions from documents.
type Asker interface {
	Ask(ctx context.Context, question string, collections []string, limit int) (*services.Answer, error)
}

type exchange struct {
	question string
	answer   *services.Answer
	err      error
}

type answerMsg exchange

// ChatModel is the bubbletea model of an interactive chat session.
type ChatModel struct {
	ctx         context.Context
	asker       Asker
	collections []string
	limit       int

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	history  []exchange
	pending  string
	ready    bool
	quitting bool
}

// NewChatModel creates a chat over collections; nil searches every collection.
func NewChatModel(ctx context.Context, asker Asker, collections []string, limit int) ChatModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or type exit"
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = labelStyle

	return ChatModel{
		ctx:         ctx,
		asker:       asker,
		collections: collections,
		limit:       limit,
		input:       ti,
		viewport:    viewport.New(80, 20),
		spinner:     sp,
	}
}

// Init starts the cursor blink.
func (m ChatModel) Init() tea.Cmd { return textinput.Blink }

// Update handles keys, window resizes and answers.
func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.viewport.Width = max(20, msg.Width-4)
		m.viewport.Height = max(3, msg.Height-6)
		m.viewport.SetContent(m.renderHistory())
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.pending != "" {
				return m, nil
			}
			if strings.EqualFold(q, ExitCommand) {
				m.quitting = true
				return m, tea.Quit
			}
			m.pending = q
			m.input.Reset()
			m.viewport.SetContent(m.renderHistory())
			return m, tea.Batch(m.ask(q), m.spinner.Tick)
		}

	case answerMsg:
		m.history = append(m.history, exchange(msg))
		m.pending = ""
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil

	case spinner.TickMsg:
		if m.pending == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m ChatModel) ask(q string) tea.Cmd {
	return func() tea.Msg {
		ans, err := m.asker.Ask(m.ctx, q, m.collections, m.limit)
		return answerMsg{question: q, answer: ans, err: err}
	}
}

// View renders the conversation and the input line.
func (m ChatModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	scope := "all collections"
	if len(m.collections) > 0 {
		scope = strings.Join(m.collections, ", ")
	}
	status := dimStyle.Render("Searching " + scope + ". Enter to ask, exit to quit.")
	if m.pending != "" {
		status = m.spinner.View() + " " + dimStyle.Render("Thinking about "+fmt.Sprintf("%q", m.pending))
	}

	return headerStyle.Render("docrag chat") + "\n" +
		containerStyle.Render(m.viewport.View()) + "\n" +
		m.input.View() + "\n" +
		status
}

// History returns the finished question and answer pairs.
func (m ChatModel) History() []string {
	out := make([]string, 0, len(m.history))
	for _, ex := range m.history {
		if ex.err != nil {
			out = append(out, ex.question+": "+ex.err.Error())
			continue
		}
		out = append(out, ex.question+": "+ex.answer.Answer)
	}
	return out
}

func (m ChatModel) renderHistory() string {
	if len(m.history) == 0 {
		return dimStyle.Render("No questions yet.")
	}

	var b strings.Builder
	for i, ex := range m.history {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(labelStyle.Render("Q: ") + ex.question + "\n")
		switch {
		case ex.err != nil:
			b.WriteString(errorStyle.Render("error: " + ex.err.Error()))
		case ex.answer.Refused:
			b.WriteString(refusedStyle.Render(ex.answer.Answer))
		default:
			b.WriteString(answerStyle.Render(ex.answer.Answer))
			b.WriteString("\n" + RenderSources(ex.answer.Passages))
		}
	}
	return b.String()
}

// RenderSources lists passage sources with a relevance sparkline.
func RenderSources(passages []retrieval.Passage) string {
	if len(passages) == 0 {
		return ""
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	var b strings.Builder
	for i, p := range passages {
		spark.Push(float64(1 - p.Distance))
		fmt.Fprintf(&b, "%s %s %s\n",
			dimStyle.Render(fmt.Sprintf("[%d]", i+1)),
			p.Metadata.File.Path,
			dimStyle.Render(fmt.Sprintf("(%s, distance %.3f)", p.Collection, p.Distance)),
		)
	}
	spark.Draw()
	b.WriteString(sparklineStyle.Render(spark.View()))
	return b.String()
}
