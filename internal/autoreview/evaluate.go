package autoreview

import (
	"fmt"
	"strings"
)

// Rules are the normalized configuration lookups for one page run.
type Rules struct {
	AutoApprovedGroups Lookup
	BlockingCategories Lookup
}

// NewRules normalizes a wiki configuration.
func NewRules(cfg WikiConfiguration) Rules {
	return Rules{
		AutoApprovedGroups: NewLookup(cfg.AutoApprovedGroups),
		BlockingCategories: NewLookup(cfg.BlockingCategories),
	}
}

// check runs one step of the chain. A non-nil decision ends the evaluation.
type check func(r Rules, rev Revision, profile *EditorProfile) (TestResult, *Decision)

// chain lists the checks that may pass the revision on to the next one, in
// evaluation order. checkBlockingCategories always decides.
var chain = []check{
	checkBotUser,
	checkAutoApprovedGroup,
}

// Evaluate runs the autoreview checks for one revision. The trace holds one
// entry per executed check, in order, ending with the check that decided.
func (r Rules) Evaluate(rev Revision, profile *EditorProfile) RevisionResult {
	tests := make([]TestResult, 0, len(chain)+1)
	for _, c := range chain {
		result, decision := c(r, rev, profile)
		tests = append(tests, result)
		if decision != nil {
			return RevisionResult{RevID: rev.RevID, Tests: tests, Decision: *decision}
		}
	}
	result, decision := checkBlockingCategories(r, rev)
	tests = append(tests, result)
	return RevisionResult{RevID: rev.RevID, Tests: tests, Decision: decision}
}

func checkBotUser(_ Rules, rev Revision, profile *EditorProfile) (TestResult, *Decision) {
	if IsBot(rev, profile) {
		d := NewDecision(DecisionApprove, "The user is recognized as a bot.")
		return passed(TestBotUser, "The edit could be auto-approved because the user is a bot."), &d
	}
	return failed(TestBotUser, "The user is not marked as a bot."), nil
}

// checkAutoApprovedGroup uses the configured groups when there are any and
// falls back to the built-in rights only when the wiki configures none.
func checkAutoApprovedGroup(r Rules, rev Revision, profile *EditorProfile) (TestResult, *Decision) {
	if len(r.AutoApprovedGroups) > 0 {
		matched := MatchedGroups(rev, profile, r.AutoApprovedGroups)
		if len(matched) > 0 {
			d := NewDecision(DecisionApprove, "The user belongs to groups that are auto-approved.")
			return passed(TestAutoApprovedGroup, fmt.Sprintf("The user belongs to groups: %s.", strings.Join(matched, ", "))), &d
		}
		return failed(TestAutoApprovedGroup, "The user does not belong to auto-approved groups."), nil
	}

	rights := DefaultRights(profile)
	if len(rights) > 0 {
		d := NewDecision(DecisionApprove, "The user has default rights that allow auto-approval.")
		return passed(TestAutoApprovedGroup, fmt.Sprintf("The user has default auto-approval rights: %s.", strings.Join(rights, ", "))), &d
	}
	return failed(TestAutoApprovedGroup, "The user does not have default auto-approval rights."), nil
}

func checkBlockingCategories(r Rules, rev Revision) (TestResult, Decision) {
	hits := BlockingCategoryHits(rev, r.BlockingCategories)
	if len(hits) > 0 {
		return failed(TestBlockingCategories, fmt.Sprintf("The previous version belongs to blocking categories: %s.", strings.Join(hits, ", "))),
			NewDecision(DecisionBlocked, "The earlier version of the article is in blocking categories.")
	}
	return passed(TestBlockingCategories, "The previous version is not in blocking categories."),
		NewDecision(DecisionManual, "In dry-run mode the edit would not be approved automatically.")
}

func passed(id TestID, message string) TestResult {
	return TestResult{ID: id, Title: id.Title(), Status: StatusPassed, Message: message}
}

func failed(id TestID, message string) TestResult {
	return TestResult{ID: id, Title: id.Title(), Status: StatusFailed, Message: message}
}
