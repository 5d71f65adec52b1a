package superset

import (
	"fmt"
	"strings"
	"time"

	"github.com/metalagman/pendingreview/internal/autoreview"
)

// PendingQuery returns the replica query listing the revisions newer than
// the stable revision of the limit most recently pending main-namespace
// pages, with editor groups, change tags, page categories and
// recent-changes flags folded into each row.
func PendingQuery(limit int) string {
	return fmt.Sprintf(`select
   page_title,
   page_namespace,
   page_is_redirect,
   fp_page_id,
   fp_pending_since,
   fp_stable,
   rev_id,
   rev_timestamp,
   rev_len,
   rev_parent_id,
   rev_deleted,
   rev_sha1,
   comment_text,
   a.actor_name,
   a.actor_user,
   group_concat(DISTINCT(ctd_name)) as change_tags,
   group_concat(DISTINCT(ug_group)) as user_groups,
   group_concat(DISTINCT(ufg_group)) as user_former_groups,
   group_concat(DISTINCT(cl_to)) as page_categories,
   rc_bot,
   rc_patrolled
from
   (SELECT * FROM flaggedpages ORDER BY fp_pending_since DESC LIMIT %d) as fp,
   revision as r
       LEFT JOIN change_tag ON r.rev_id=ct_rev_id
       LEFT JOIN change_tag_def ON ct_tag_id = ctd_id
       LEFT JOIN recentchanges ON rc_this_oldid = r.rev_id AND rc_source="mw.edit"
   ,
   page as p
       LEFT JOIN categorylinks ON cl_from = page_id,
   comment_revision,
   actor_revision as a
   LEFT JOIN user_groups ON a.actor_user=ug_user
   LEFT JOIN user_former_groups ON a.actor_user=ufg_user
where
   fp_pending_since IS NOT NULL
   AND r.rev_page=fp_page_id
   AND page_id=fp_page_id
   and page_namespace=0
   AND r.rev_id>fp_stable
   AND r.rev_actor=a.actor_id
   AND r.rev_comment_id=comment_id
GROUP BY r.rev_id
ORDER BY fp_pending_since, rev_id DESC
`, limit)
}

// Page is a pending page assembled from query rows.
type Page struct {
	PageID       int64
	Title        string
	StableRevID  int64
	PendingSince *time.Time
	Revisions    []Revision
}

// Revision is one pending revision with its replica metadata.
type Revision struct {
	RevID     int64
	ParentID  *int64
	User      string
	UserID    *int64
	Timestamp time.Time
	Comment   string
	SHA1      string
	Tags      []string
	// Categories of the page as the replicas list them.
	Categories []string
	Metadata   *autoreview.SupersetData
}

// GroupPages assembles rows into pages in first-seen order. Rows without an
// integer page id are skipped; a row without an integer revision id still
// registers its page. Revisions missing a timestamp are stamped with
// fetchedAt.
func GroupPages(rows []Row, fetchedAt time.Time) []Page {
	var pages []Page
	index := map[int64]int{}
	for _, row := range rows {
		pageID := ParseOptionalInt(row["fp_page_id"])
		if pageID == nil {
			continue
		}
		i, ok := index[*pageID]
		if !ok {
			stable := ParseOptionalInt(row["fp_stable"])
			page := Page{
				PageID:       *pageID,
				Title:        strings.ReplaceAll(scalarString(row["page_title"]), "_", " "),
				PendingSince: ParseTimestamp(row["fp_pending_since"]),
			}
			if stable != nil {
				page.StableRevID = *stable
			}
			pages = append(pages, page)
			i = len(pages) - 1
			index[*pageID] = i
		}

		revID := ParseOptionalInt(row["rev_id"])
		if revID == nil {
			continue
		}
		ts := fetchedAt.UTC()
		if parsed := ParseTimestamp(row["rev_timestamp"]); parsed != nil {
			ts = *parsed
		}
		metadata := Metadata(row)
		pages[i].Revisions = append(pages[i].Revisions, Revision{
			RevID:      *revID,
			ParentID:   ParseOptionalInt(row["rev_parent_id"]),
			User:       scalarString(row["actor_name"]),
			UserID:     ParseOptionalInt(row["actor_user"]),
			Timestamp:  ts,
			Comment:    scalarString(row["comment_text"]),
			SHA1:       scalarString(row["rev_sha1"]),
			Tags:       metadata.Tags(),
			Categories: metadata.Categories(),
			Metadata:   metadata,
		})
	}
	return pages
}
