package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/metalagman/pendingreview/internal/autoreview"
	"github.com/metalagman/pendingreview/internal/review"
	"github.com/metalagman/pendingreview/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvaluator struct {
	pages []review.PagePayload
	err   error
	calls int
}

func (f *fakeEvaluator) Pending(context.Context, int64) ([]review.PagePayload, error) {
	return f.pages, f.err
}

func (f *fakeEvaluator) Evaluate(_ context.Context, _ int64, pageID int64) (review.AutoreviewResult, error) {
	f.calls++
	return review.AutoreviewResult{PageID: pageID, Results: []autoreview.RevisionResult{{
		RevID:    pageID * 10,
		Tests:    []autoreview.TestResult{{ID: autoreview.TestBotUser, Title: "Bot user", Status: autoreview.StatusPassed, Message: "is a bot"}},
		Decision: autoreview.NewDecision(autoreview.DecisionApprove, "The user is recognized as a bot."),
	}}}, nil
}

func newModel(t *testing.T) (Model, *fakeEvaluator) {
	t.Helper()
	f := &fakeEvaluator{pages: []review.PagePayload{
		{PageID: 1, Title: "Espoo", Revisions: []review.RevisionPayload{{RevID: 10, UserName: "Botty"}}},
	}}
	return New(context.Background(), f, store.Wiki{ID: 1, Code: "fi"}), f
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func TestLoad(t *testing.T) {
	t.Parallel()
	m, _ := newModel(t)

	msg := m.Init()()
	loaded, ok := msg.(loadedMsg)
	require.True(t, ok)
	require.Len(t, loaded.rows, 1)
	assert.Equal(t, "Botty", loaded.rows[0].User)

	m, _ = update(t, m, msg)
	view := m.View()
	assert.Contains(t, view, "Espoo")
	assert.Contains(t, view, "Would be auto-approved")
}

func TestEnterTogglesTrace(t *testing.T) {
	t.Parallel()
	m, _ := newModel(t)
	m, _ = update(t, m, m.load())

	assert.NotContains(t, m.View(), "is a bot")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Contains(t, m.View(), "[passed] Bot user: is a bot")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.NotContains(t, m.View(), "is a bot")
}

func TestReevaluate(t *testing.T) {
	t.Parallel()
	m, f := newModel(t)
	m, _ = update(t, m, m.load())
	require.Equal(t, 1, f.calls)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Evaluating")
	_, _ = update(t, m, cmd())
	assert.Equal(t, 2, f.calls)
}

func TestQuit(t *testing.T) {
	t.Parallel()
	m, _ := newModel(t)

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestLoadError(t *testing.T) {
	t.Parallel()
	m, f := newModel(t)
	f.err = errors.New("database is locked")

	m, _ = update(t, m, m.load())
	assert.Contains(t, m.View(), "error: database is locked")
}

func TestEmpty(t *testing.T) {
	t.Parallel()
	m, f := newModel(t)
	f.pages = nil

	m, _ = update(t, m, m.load())
	assert.Contains(t, m.View(), "No pending revisions")
	_, ok := m.Selected()
	assert.False(t, ok)
}
