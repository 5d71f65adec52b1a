// Package tui is an interactive browser for the cached pending revisions
// and their autoreview decisions.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/metalagman/pendingreview/internal/autoreview"
	"github.com/metalagman/pendingreview/internal/report"
	"github.com/metalagman/pendingreview/internal/review"
	"github.com/metalagman/pendingreview/internal/store"
)

// Evaluator is the part of the review service the browser needs.
type Evaluator interface {
	Pending(ctx context.Context, wikiID int64) ([]review.PagePayload, error)
	Evaluate(ctx context.Context, wikiID, pageID int64) (review.AutoreviewResult, error)
}

// Row is one revision with its decision.
type Row struct {
	PageID int64
	Title  string
	User   string
	Result autoreview.RevisionResult
}

type loadedMsg struct{ rows []Row }

type errMsg struct{ err error }

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	traceStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	helpStyle   = lipgloss.NewStyle().Faint(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// Model is the bubbletea model of the browser.
type Model struct {
	ctx       context.Context
	src       Evaluator
	wiki      store.Wiki
	table     table.Model
	rows      []Row
	showTrace bool
	loading   bool
	err       error
}

// New builds the browser for one wiki.
func New(ctx context.Context, src Evaluator, wiki store.Wiki) Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Page", Width: 32},
			{Title: "Rev", Width: 10},
			{Title: "Editor", Width: 20},
			{Title: "Decision", Width: 24},
		}),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	return Model{ctx: ctx, src: src, wiki: wiki, table: t, loading: true}
}

// Run starts the browser and blocks until the user quits.
func Run(ctx context.Context, src Evaluator, wiki store.Wiki) error {
	_, err := tea.NewProgram(New(ctx, src, wiki), tea.WithContext(ctx), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return m.load
}

// load evaluates every cached page of the wiki.
func (m Model) load() tea.Msg {
	pages, err := m.src.Pending(m.ctx, m.wiki.ID)
	if err != nil {
		return errMsg{err}
	}
	var rows []Row
	for _, p := range pages {
		res, err := m.src.Evaluate(m.ctx, m.wiki.ID, p.PageID)
		if err != nil {
			return errMsg{fmt.Errorf("page %d: %w", p.PageID, err)}
		}
		users := make(map[int64]string, len(p.Revisions))
		for _, r := range p.Revisions {
			users[r.RevID] = r.UserName
		}
		for _, r := range res.Results {
			rows = append(rows, Row{PageID: p.PageID, Title: p.Title, User: users[r.RevID], Result: r})
		}
	}
	return loadedMsg{rows}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		m.loading = false
		m.err = nil
		m.rows = msg.rows
		m.table.SetRows(tableRows(msg.rows))
		return m, nil
	case errMsg:
		m.loading = false
		m.err = msg.err
		return m, nil
	case tea.WindowSizeMsg:
		m.table.SetHeight(max(msg.Height-12, 3))
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			m.showTrace = !m.showTrace
			return m, nil
		case "r":
			m.loading = true
			return m, m.load
		}
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func tableRows(rows []Row) []table.Row {
	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, table.Row{
			r.Title,
			strconv.FormatInt(r.Result.RevID, 10),
			r.User,
			r.Result.Decision.Label,
		})
	}
	return out
}

// Selected returns the row under the cursor.
func (m Model) Selected() (Row, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.rows) {
		return Row{}, false
	}
	return m.rows[i], true
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Pending changes on %s (dry-run)", m.wiki.Code)))
	b.WriteString("\n\n")

	switch {
	case m.err != nil:
		b.WriteString(errStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	case m.loading:
		b.WriteString("Evaluating pending revisions...\n")
	case len(m.rows) == 0:
		b.WriteString("No pending revisions. Run refresh first.\n")
	default:
		b.WriteString(m.table.View())
		b.WriteString("\n")
	}

	if row, ok := m.Selected(); ok && m.showTrace && !m.loading {
		b.WriteString(traceStyle.Render(trace(row)))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("↑/↓ move • enter trace • r re-evaluate • q quit"))
	return b.String()
}

func trace(row Row) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s, revision %d\n", row.Title, row.Result.RevID)
	for _, t := range row.Result.Tests {
		fmt.Fprintf(&b, "[%s] %s: %s\n", t.Status, t.Title, t.Message)
	}
	b.WriteString(report.StatusStyle(row.Result.Decision.Status).Render(row.Result.Decision.Label))
	b.WriteString(": " + row.Result.Decision.Reason)
	return b.String()
}
