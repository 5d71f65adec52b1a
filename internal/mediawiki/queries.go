package mediawiki

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ReviewedPage is an entry of list=oldreviewedpages: a page whose latest
// revision is newer than its stable revision.
type ReviewedPage struct {
	PageID       int64
	Title        string
	StableRevID  int64
	PendingSince *time.Time
}

// Revision is a revision returned by prop=revisions.
type Revision struct {
	RevID      int64
	ParentID   *int64
	User       string
	UserID     *int64
	Timestamp  time.Time
	Comment    string
	SHA1       string
	Tags       []string
	Content    string
	Categories []string
}

// User is an entry of list=users.
type User struct {
	Name    string
	Groups  []string
	Blocked bool
	Missing bool
}

// RecentChange is an entry of list=recentchanges.
type RecentChange struct {
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	User      string    `json:"user"`
	Timestamp time.Time `json:"timestamp"`
	Comment   string    `json:"comment"`
	OldRevID  int64     `json:"old_revid"`
	RevID     int64     `json:"revid"`
}

const maxLimit = 500

// OldReviewedPages lists up to limit main-namespace pages with pending
// changes. A non-positive limit returns nothing without a request.
func (c *Client) OldReviewedPages(ctx context.Context, limit int) ([]ReviewedPage, error) {
	if limit <= 0 {
		return nil, nil
	}
	params := url.Values{}
	params.Set("list", "oldreviewedpages")
	params.Set("ornamespace", "0")

	var out []ReviewedPage
	for len(out) < limit {
		params.Set("orlimit", strconv.Itoa(min(limit-len(out), maxLimit)))
		var q struct {
			Pages []struct {
				PageID          int64  `json:"pageid"`
				Title           string `json:"title"`
				RevID           int64  `json:"revid"`
				StableRevID     int64  `json:"stable_revid"`
				PendingSince    string `json:"pending_since"`
				PendingSinceOld string `json:"pendingSince"`
			} `json:"oldreviewedpages"`
		}
		cont, err := c.query(ctx, params, &q)
		if err != nil {
			return nil, fmt.Errorf("list old reviewed pages: %w", err)
		}
		for _, p := range q.Pages {
			page := ReviewedPage{PageID: p.PageID, Title: p.Title, StableRevID: p.StableRevID}
			if page.StableRevID == 0 {
				page.StableRevID = p.RevID
			}
			since := p.PendingSince
			if since == "" {
				since = p.PendingSinceOld
			}
			if ts, err := time.Parse(time.RFC3339, since); err == nil {
				ts = ts.UTC()
				page.PendingSince = &ts
			}
			out = append(out, page)
		}
		if len(cont) == 0 || len(q.Pages) == 0 {
			break
		}
		for k, v := range cont {
			params.Set(k, v)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type apiRevision struct {
	RevID     int64    `json:"revid"`
	ParentID  *int64   `json:"parentid"`
	User      string   `json:"user"`
	UserID    *int64   `json:"userid"`
	Timestamp string   `json:"timestamp"`
	Comment   string   `json:"comment"`
	SHA1      string   `json:"sha1"`
	Tags      []string `json:"tags"`
	Slots     struct {
		Main struct {
			Content *string `json:"content"`
		} `json:"main"`
	} `json:"slots"`
}

type revisionsQuery struct {
	Pages []struct {
		PageID    int64         `json:"pageid"`
		Missing   bool          `json:"missing"`
		Revisions []apiRevision `json:"revisions"`
	} `json:"pages"`
}

// PendingRevisions returns the revisions of a page newer than stableRevID,
// oldest first, with their wikitext and the categories parsed from it.
func (c *Client) PendingRevisions(ctx context.Context, pageID, stableRevID int64) ([]Revision, error) {
	params := url.Values{}
	params.Set("pageids", strconv.FormatInt(pageID, 10))
	params.Set("prop", "revisions")
	params.Set("rvprop", "ids|timestamp|user|userid|comment|sha1|tags|content")
	params.Set("rvslots", "main")
	params.Set("rvdir", "newer")
	params.Set("rvlimit", "50")
	if stableRevID > 0 {
		params.Set("rvstartid", strconv.FormatInt(stableRevID, 10))
	}

	var out []Revision
	for {
		var q revisionsQuery
		cont, err := c.query(ctx, params, &q)
		if err != nil {
			return nil, fmt.Errorf("revisions of page %d: %w", pageID, err)
		}
		if len(q.Pages) == 0 {
			break
		}
		for _, raw := range q.Pages[0].Revisions {
			if raw.RevID <= stableRevID {
				continue
			}
			rev, err := c.convertRevision(raw)
			if err != nil {
				return nil, fmt.Errorf("revisions of page %d: %w", pageID, err)
			}
			out = append(out, rev)
		}
		if len(cont) == 0 {
			break
		}
		for k, v := range cont {
			params.Set(k, v)
		}
	}
	log.Debug().Int64("page_id", pageID).Int("revisions", len(out)).Msg("fetched pending revisions")
	return out, nil
}

func (c *Client) convertRevision(raw apiRevision) (Revision, error) {
	ts, err := time.Parse(time.RFC3339, raw.Timestamp)
	if err != nil {
		return Revision{}, fmt.Errorf("revision %d timestamp: %w", raw.RevID, err)
	}
	rev := Revision{
		RevID:     raw.RevID,
		ParentID:  raw.ParentID,
		User:      raw.User,
		UserID:    raw.UserID,
		Timestamp: ts.UTC(),
		Comment:   raw.Comment,
		SHA1:      raw.SHA1,
		Tags:      raw.Tags,
	}
	if raw.Slots.Main.Content != nil {
		rev.Content = *raw.Slots.Main.Content
	}
	rev.Categories = ParseCategories(rev.Content, c.categoryAliases...)
	return rev, nil
}

// RevisionWikitext returns the main-slot wikitext of one revision. A
// revision without content yields an empty string.
func (c *Client) RevisionWikitext(ctx context.Context, revID int64) (string, error) {
	params := url.Values{}
	params.Set("prop", "revisions")
	params.Set("revids", joinIDs(revID))
	params.Set("rvprop", "content")
	params.Set("rvslots", "main")

	var q revisionsQuery
	if _, err := c.query(ctx, params, &q); err != nil {
		return "", fmt.Errorf("wikitext of revision %d: %w", revID, err)
	}
	for _, page := range q.Pages {
		for _, rev := range page.Revisions {
			if rev.Slots.Main.Content != nil {
				return *rev.Slots.Main.Content, nil
			}
		}
	}
	return "", nil
}

const usersBatch = 50

// Users returns group membership and block state for the named users.
func (c *Client) Users(ctx context.Context, names []string) ([]User, error) {
	var out []User
	for start := 0; start < len(names); start += usersBatch {
		batch := names[start:min(start+usersBatch, len(names))]
		params := url.Values{}
		params.Set("list", "users")
		params.Set("ususers", strings.Join(batch, "|"))
		params.Set("usprop", "groups|blockinfo")

		var q struct {
			Users []struct {
				Name    string   `json:"name"`
				Missing bool     `json:"missing"`
				Invalid bool     `json:"invalid"`
				Groups  []string `json:"groups"`
				BlockID int64    `json:"blockid"`
				Blocked *bool    `json:"blocked"`
			} `json:"users"`
		}
		if _, err := c.query(ctx, params, &q); err != nil {
			return nil, fmt.Errorf("users: %w", err)
		}
		for _, u := range q.Users {
			out = append(out, User{
				Name:    u.Name,
				Groups:  u.Groups,
				Blocked: u.BlockID != 0 || (u.Blocked != nil && *u.Blocked),
				Missing: u.Missing || u.Invalid,
			})
		}
	}
	return out, nil
}

// RecentChanges returns up to limit of the newest changes.
func (c *Client) RecentChanges(ctx context.Context, limit int) ([]RecentChange, error) {
	if limit <= 0 {
		return nil, nil
	}
	params := url.Values{}
	params.Set("list", "recentchanges")
	params.Set("rcprop", "title|timestamp|user|comment|ids")
	params.Set("rclimit", strconv.Itoa(min(limit, maxLimit)))

	var q struct {
		Changes []RecentChange `json:"recentchanges"`
	}
	if _, err := c.query(ctx, params, &q); err != nil {
		return nil, fmt.Errorf("recent changes: %w", err)
	}
	if len(q.Changes) > limit {
		q.Changes = q.Changes[:limit]
	}
	return q.Changes, nil
}
