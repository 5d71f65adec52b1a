package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/metalagman/pendingreview/internal/autoreview"
	"github.com/metalagman/pendingreview/internal/review"
	"github.com/metalagman/pendingreview/internal/run"
	"github.com/metalagman/pendingreview/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() review.AutoreviewResult {
	return review.AutoreviewResult{
		PageID: 7,
		Title:  "Helsinki",
		Mode:   run.ModeDryRun,
		RunID:  "3f2c",
		Results: []autoreview.RevisionResult{
			{
				RevID:    70,
				Tests:    []autoreview.TestResult{{ID: autoreview.TestBotUser, Title: "Bot user", Status: autoreview.StatusPassed, Message: "bot | flag"}},
				Decision: autoreview.NewDecision(autoreview.DecisionApprove, "The user is recognized as a bot."),
			},
			{
				RevID: 71,
				Tests: []autoreview.TestResult{
					{ID: autoreview.TestBotUser, Title: "Bot user", Status: autoreview.StatusFailed},
					{ID: autoreview.TestAutoApprovedGroup, Title: "Auto-approved groups", Status: autoreview.StatusFailed},
					{ID: autoreview.TestBlockingCategories, Title: "Blocking categories", Status: autoreview.StatusFailed},
				},
				Decision: autoreview.NewDecision(autoreview.DecisionBlocked, "The earlier version of the article is in blocking categories."),
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Format{"table": FormatTable, "JSON": FormatJSON, "md": FormatMarkdown, "markdown": FormatMarkdown} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestWriteAutoreview_Table(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteAutoreview(&buf, FormatTable, sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "Helsinki (page 7, dry-run) run 3f2c")
	assert.Contains(t, out, "Would be auto-approved")
	assert.Contains(t, out, "Cannot be auto-approved")
	assert.Contains(t, out, "✗ Blocking categories")
}

func TestWriteAutoreview_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteAutoreview(&buf, FormatJSON, sampleResult()))

	var decoded review.AutoreviewResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, sampleResult(), decoded)
}

func TestAutoreviewMarkdown(t *testing.T) {
	t.Parallel()

	md := AutoreviewMarkdown(sampleResult())
	assert.Contains(t, md, "## Revision 70: Would be auto-approved")
	assert.Contains(t, md, `| Bot user | passed | bot \| flag |`)

	empty := AutoreviewMarkdown(review.AutoreviewResult{Title: "Empty", Mode: run.ModeDryRun})
	assert.Contains(t, empty, "No pending revisions.")
}

func TestWriteAutoreview_Markdown(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteAutoreview(&buf, FormatMarkdown, sampleResult()))
	assert.Contains(t, buf.String(), "Revision 71")
}

func TestListTables(t *testing.T) {
	t.Parallel()

	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	pages := PagesTable([]review.PagePayload{{PageID: 1, Title: "Turku", StableRevID: 5, PendingSince: &since, Revisions: make([]review.RevisionPayload, 2)}})
	assert.Contains(t, pages, "Turku")
	assert.Contains(t, pages, "2024-05-01T00:00:00Z")

	wikis := WikisTable([]store.Wiki{{ID: 1, Code: "fi", Name: "fi.wikipedia", APIEndpoint: "https://fi.wikipedia.org/w/api.php"}})
	assert.Contains(t, wikis, "fi.wikipedia")

	runs := RunsTable([]run.Record{{RunID: "abc", CreatedAt: since, Title: "Turku", Approve: 2}})
	assert.Contains(t, runs, "abc")

	recent := RecentTable([]review.RecentEdit{{Timestamp: since, Type: "edit", Title: "Oulu", User: "A", UserGroups: []string{"sysop", "user"}}})
	assert.Contains(t, recent, "sysop, user")
}
