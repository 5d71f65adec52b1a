// Package report renders review results for the terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/metalagman/pendingreview/internal/autoreview"
	"github.com/metalagman/pendingreview/internal/review"
	"github.com/metalagman/pendingreview/internal/run"
	"github.com/metalagman/pendingreview/internal/store"
)

// Format selects how results are written.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatMarkdown:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown format %q (want table, json or markdown)", s)
	}
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true)

	statusStyles = map[autoreview.DecisionStatus]lipgloss.Style{
		autoreview.DecisionApprove: cellStyle.Foreground(lipgloss.Color("2")),
		autoreview.DecisionBlocked: cellStyle.Foreground(lipgloss.Color("1")),
		autoreview.DecisionManual:  cellStyle.Foreground(lipgloss.Color("3")),
	}
)

// StatusStyle returns the style decisions of status are rendered in.
func StatusStyle(status autoreview.DecisionStatus) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return cellStyle
}

// WriteAutoreview writes an autoreview result in the given format.
func WriteAutoreview(w io.Writer, format Format, res review.AutoreviewResult) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case FormatMarkdown:
		out, err := RenderMarkdown(AutoreviewMarkdown(res))
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	default:
		_, err := fmt.Fprintf(w, "%s\n%s\n", titleStyle.Render(heading(res)), AutoreviewTable(res))
		return err
	}
}

func heading(res review.AutoreviewResult) string {
	h := fmt.Sprintf("%s (page %d, %s)", res.Title, res.PageID, res.Mode)
	if res.RunID != "" {
		h += " run " + res.RunID
	}
	return h
}

// AutoreviewTable renders one row per revision with its decision and the
// last check that ran.
func AutoreviewTable(res review.AutoreviewResult) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("REVID", "DECISION", "REASON", "CHECKS").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && row >= 0 && row < len(res.Results) {
				return StatusStyle(res.Results[row].Decision.Status)
			}
			return cellStyle
		})
	for _, r := range res.Results {
		t.Row(strconv.FormatInt(r.RevID, 10), r.Decision.Label, r.Decision.Reason, checksSummary(r.Tests))
	}
	return t.Render()
}

func checksSummary(tests []autoreview.TestResult) string {
	parts := make([]string, 0, len(tests))
	for _, tr := range tests {
		mark := "✓"
		if tr.Status == autoreview.StatusFailed {
			mark = "✗"
		}
		parts = append(parts, mark+" "+tr.Title)
	}
	return strings.Join(parts, "\n")
}

// AutoreviewMarkdown renders the full trace of every revision as markdown.
func AutoreviewMarkdown(res review.AutoreviewResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", heading(res))
	if len(res.Results) == 0 {
		b.WriteString("No pending revisions.\n")
		return b.String()
	}
	for _, r := range res.Results {
		fmt.Fprintf(&b, "## Revision %d: %s\n\n", r.RevID, r.Decision.Label)
		fmt.Fprintf(&b, "%s\n\n", r.Decision.Reason)
		b.WriteString("| Check | Status | Message |\n|---|---|---|\n")
		for _, tr := range r.Tests {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", tr.Title, tr.Status, escapeCell(tr.Message))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// RenderMarkdown renders markdown for a terminal without assuming colors.
func RenderMarkdown(md string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("notty"),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", fmt.Errorf("markdown renderer: %w", err)
	}
	return r.Render(md)
}

// PagesTable lists cached pages with their pending revision count.
func PagesTable(pages []review.PagePayload) string {
	t := newTable("PAGEID", "TITLE", "STABLE", "PENDING SINCE", "REVISIONS")
	for _, p := range pages {
		since := "-"
		if p.PendingSince != nil {
			since = p.PendingSince.UTC().Format(time.RFC3339)
		}
		t.Row(strconv.FormatInt(p.PageID, 10), p.Title, strconv.FormatInt(p.StableRevID, 10), since, strconv.Itoa(len(p.Revisions)))
	}
	return t.Render()
}

// WikisTable lists the known wikis.
func WikisTable(wikis []store.Wiki) string {
	t := newTable("ID", "CODE", "NAME", "API")
	for _, w := range wikis {
		t.Row(strconv.FormatInt(w.ID, 10), w.Code, w.Name, w.APIEndpoint)
	}
	return t.Render()
}

// RunsTable lists recorded autoreview runs.
func RunsTable(runs []run.Record) string {
	t := newTable("RUN", "CREATED", "PAGE", "APPROVE", "BLOCKED", "MANUAL")
	for _, r := range runs {
		t.Row(r.RunID, r.CreatedAt.UTC().Format(time.RFC3339), r.Title,
			strconv.Itoa(r.Approve), strconv.Itoa(r.Blocked), strconv.Itoa(r.Manual))
	}
	return t.Render()
}

// RecentTable lists recent edits with the editors' groups.
func RecentTable(edits []review.RecentEdit) string {
	t := newTable("TIME", "TYPE", "TITLE", "USER", "GROUPS")
	for _, e := range edits {
		t.Row(e.Timestamp.UTC().Format(time.RFC3339), e.Type, e.Title, e.User, strings.Join(e.UserGroups, ", "))
	}
	return t.Render()
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}
