// Package autoreview evaluates pending revisions against a wiki's
// flagged-revisions policy and explains every decision it makes.
package autoreview

import "time"

// TestID identifies one check of the autoreview chain.
type TestID string

const (
	TestBotUser            TestID = "bot-user"
	TestAutoApprovedGroup  TestID = "auto-approved-group"
	TestBlockingCategories TestID = "blocking-categories"
)

// Title returns the human-readable name of the check.
func (id TestID) Title() string {
	switch id {
	case TestBotUser:
		return "Bot user"
	case TestAutoApprovedGroup:
		return "Auto-approved groups"
	case TestBlockingCategories:
		return "Blocking categories"
	default:
		return string(id)
	}
}

// TestStatus is the outcome of a single check.
type TestStatus string

const (
	StatusPassed TestStatus = "passed"
	StatusFailed TestStatus = "failed"
)

// DecisionStatus is the recommended action for a revision.
type DecisionStatus string

const (
	DecisionApprove DecisionStatus = "approve"
	DecisionBlocked DecisionStatus = "blocked"
	DecisionManual  DecisionStatus = "manual"
)

// Label returns the fixed display label for the status.
func (s DecisionStatus) Label() string {
	switch s {
	case DecisionApprove:
		return "Would be auto-approved"
	case DecisionBlocked:
		return "Cannot be auto-approved"
	case DecisionManual:
		return "Requires human review"
	default:
		return string(s)
	}
}

// Revision is a pending revision as seen by the engine.
type Revision struct {
	RevID     int64
	ParentID  *int64
	UserName  string
	Timestamp time.Time
	// Categories of the page version this revision was based on.
	Categories []string
	Superset   *SupersetData
}

// EditorProfile holds what is known about the editor of a revision.
type EditorProfile struct {
	IsBot           bool     `json:"is_bot"`
	IsAutopatrolled bool     `json:"is_autopatrolled"`
	IsAutoreviewed  bool     `json:"is_autoreviewed"`
	Groups          []string `json:"usergroups"`
}

// WikiConfiguration holds the per-wiki rules that influence automatic approvals.
type WikiConfiguration struct {
	AutoApprovedGroups []string `json:"auto_approved_groups"`
	BlockingCategories []string `json:"blocking_categories"`
}

// TestResult is one entry of a revision's trace.
type TestResult struct {
	ID      TestID     `json:"id"`
	Title   string     `json:"title"`
	Status  TestStatus `json:"status"`
	Message string     `json:"message"`
}

// Decision is the aggregated outcome for a revision.
type Decision struct {
	Status DecisionStatus `json:"status"`
	Label  string         `json:"label"`
	Reason string         `json:"reason"`
}

// NewDecision packages a status and reason with the status label.
func NewDecision(status DecisionStatus, reason string) Decision {
	return Decision{Status: status, Label: status.Label(), Reason: reason}
}

// RevisionResult is the evaluation of one revision.
type RevisionResult struct {
	RevID    int64        `json:"revid"`
	Tests    []TestResult `json:"tests"`
	Decision Decision     `json:"decision"`
}
