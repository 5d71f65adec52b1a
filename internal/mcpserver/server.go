// Package mcpserver exposes the review service as Model Context Protocol
// tools.
package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/metalagman/pendingreview/internal/review"
	"github.com/metalagman/pendingreview/internal/store"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// Reviewer is the part of the review service the tools call.
type Reviewer interface {
	Wikis(ctx context.Context) ([]store.Wiki, error)
	WikiByCode(ctx context.Context, code string) (store.Wiki, error)
	Pending(ctx context.Context, wikiID int64) ([]review.PagePayload, error)
	Autoreview(ctx context.Context, wikiID, pageID int64) (review.AutoreviewResult, error)
}

// ListWikisOutput is the result of list_wikis.
type ListWikisOutput struct {
	Wikis []store.Wiki `json:"wikis"`
}

// WikiInput selects a wiki by code.
type WikiInput struct {
	Wiki string `json:"wiki" jsonschema:"wiki language code, for example fi"`
}

// PageSummary is a cached pending page as listed by list_pending_pages.
type PageSummary struct {
	PageID       int64             `json:"pageid"`
	Title        string            `json:"title"`
	StableRevID  int64             `json:"stable_revid"`
	PendingSince string            `json:"pending_since,omitempty"`
	Revisions    []RevisionSummary `json:"revisions"`
}

// RevisionSummary is one pending revision of a listed page.
type RevisionSummary struct {
	RevID     int64  `json:"revid"`
	User      string `json:"user"`
	Timestamp string `json:"timestamp"`
}

// PendingPagesOutput is the result of list_pending_pages.
type PendingPagesOutput struct {
	Wiki  string        `json:"wiki"`
	Pages []PageSummary `json:"pages"`
}

// AutoreviewInput selects a cached page.
type AutoreviewInput struct {
	Wiki   string `json:"wiki" jsonschema:"wiki language code, for example fi"`
	PageID int64  `json:"pageid" jsonschema:"MediaWiki page id of a cached pending page"`
}

// New builds the MCP server with the review tools registered.
func New(reviewer Reviewer, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "pendingreview", Version: version}, nil)
	h := handlers{reviewer: reviewer}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_wikis",
		Description: "List the wikis whose pending changes can be reviewed.",
	}, h.listWikis)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_pending_pages",
		Description: "List the cached pages with pending changes on a wiki.",
	}, h.listPendingPages)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "autoreview_page",
		Description: "Run the dry-run autoreview checks on every pending revision of a cached page.",
	}, h.autoreviewPage)
	return server
}

// Serve runs the server over stdin/stdout until the client disconnects.
func Serve(ctx context.Context, reviewer Reviewer, version string) error {
	log.Info().Msg("serving MCP over stdio")
	return New(reviewer, version).Run(ctx, &mcp.StdioTransport{})
}

type handlers struct {
	reviewer Reviewer
}

func (h handlers) listWikis(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, ListWikisOutput, error) {
	wikis, err := h.reviewer.Wikis(ctx)
	if err != nil {
		return nil, ListWikisOutput{}, err
	}
	if wikis == nil {
		wikis = []store.Wiki{}
	}
	return nil, ListWikisOutput{Wikis: wikis}, nil
}

func (h handlers) listPendingPages(ctx context.Context, _ *mcp.CallToolRequest, in WikiInput) (*mcp.CallToolResult, PendingPagesOutput, error) {
	wiki, err := h.wiki(ctx, in.Wiki)
	if err != nil {
		return nil, PendingPagesOutput{}, err
	}
	pages, err := h.reviewer.Pending(ctx, wiki.ID)
	if err != nil {
		return nil, PendingPagesOutput{}, err
	}
	out := PendingPagesOutput{Wiki: wiki.Code, Pages: make([]PageSummary, 0, len(pages))}
	for _, p := range pages {
		summary := PageSummary{
			PageID:      p.PageID,
			Title:       p.Title,
			StableRevID: p.StableRevID,
			Revisions:   make([]RevisionSummary, 0, len(p.Revisions)),
		}
		if p.PendingSince != nil {
			summary.PendingSince = p.PendingSince.UTC().Format(time.RFC3339)
		}
		for _, r := range p.Revisions {
			summary.Revisions = append(summary.Revisions, RevisionSummary{
				RevID:     r.RevID,
				User:      r.UserName,
				Timestamp: r.Timestamp.UTC().Format(time.RFC3339),
			})
		}
		out.Pages = append(out.Pages, summary)
	}
	return nil, out, nil
}

func (h handlers) autoreviewPage(ctx context.Context, _ *mcp.CallToolRequest, in AutoreviewInput) (*mcp.CallToolResult, review.AutoreviewResult, error) {
	wiki, err := h.wiki(ctx, in.Wiki)
	if err != nil {
		return nil, review.AutoreviewResult{}, err
	}
	res, err := h.reviewer.Autoreview(ctx, wiki.ID, in.PageID)
	if err != nil {
		return nil, review.AutoreviewResult{}, err
	}
	return nil, res, nil
}

func (h handlers) wiki(ctx context.Context, code string) (store.Wiki, error) {
	if code == "" {
		return store.Wiki{}, fmt.Errorf("wiki is required")
	}
	return h.reviewer.WikiByCode(ctx, code)
}
