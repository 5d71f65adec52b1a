package autoreview

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRevision(revID int64) Revision {
	return Revision{
		RevID:     revID,
		UserName:  "Editor",
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEvaluate_BotFromRecentChangesFlag(t *testing.T) {
	t.Parallel()

	rev := testRevision(200)
	rev.Superset = &SupersetData{RCBot: NewFlag(true)}

	got := NewRules(WikiConfiguration{}).Evaluate(rev, nil)

	require.Len(t, got.Tests, 1)
	assert.Equal(t, TestResult{
		ID:      TestBotUser,
		Title:   "Bot user",
		Status:  StatusPassed,
		Message: "The edit could be auto-approved because the user is a bot.",
	}, got.Tests[0])
	assert.Equal(t, Decision{
		Status: DecisionApprove,
		Label:  "Would be auto-approved",
		Reason: "The user is recognized as a bot.",
	}, got.Decision)
}

func TestEvaluate_BotSources(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rev     func() Revision
		profile *EditorProfile
	}{
		{
			name:    "profile flag",
			rev:     func() Revision { return testRevision(1) },
			profile: &EditorProfile{IsBot: true},
		},
		{
			name: "bot group in any casing",
			rev: func() Revision {
				rev := testRevision(1)
				rev.Superset = &SupersetData{UserGroups: StringList{"user", "BOT"}}
				return rev
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := NewRules(WikiConfiguration{AutoApprovedGroups: []string{"sysop"}}).Evaluate(tc.rev(), tc.profile)
			require.Len(t, got.Tests, 1)
			assert.Equal(t, DecisionApprove, got.Decision.Status)
		})
	}
}

func TestEvaluate_ConfiguredGroupMatch(t *testing.T) {
	t.Parallel()

	rev := testRevision(201)
	rev.Superset = &SupersetData{UserGroups: StringList{"Sysop"}}
	profile := &EditorProfile{Groups: []string{"reviewer", "editor"}}
	cfg := WikiConfiguration{AutoApprovedGroups: []string{"sysop", "Reviewer", "REVIEWER"}}

	got := NewRules(cfg).Evaluate(rev, profile)

	require.Len(t, got.Tests, 2)
	assert.Equal(t, StatusFailed, got.Tests[0].Status)
	assert.Equal(t, TestAutoApprovedGroup, got.Tests[1].ID)
	assert.Equal(t, StatusPassed, got.Tests[1].Status)
	assert.Equal(t, "The user belongs to groups: Reviewer, sysop.", got.Tests[1].Message)
	assert.Equal(t, "The user belongs to groups that are auto-approved.", got.Decision.Reason)
}

func TestEvaluate_ConfiguredGroupsReplaceDefaultRights(t *testing.T) {
	t.Parallel()

	profile := &EditorProfile{IsAutopatrolled: true, IsAutoreviewed: true}
	cfg := WikiConfiguration{AutoApprovedGroups: []string{"sysop"}}

	got := NewRules(cfg).Evaluate(testRevision(1), profile)

	require.Len(t, got.Tests, 3)
	assert.Equal(t, "The user does not belong to auto-approved groups.", got.Tests[1].Message)
	assert.Equal(t, DecisionManual, got.Decision.Status)
}

func TestEvaluate_DefaultRightsFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		profile EditorProfile
		message string
	}{
		{"autopatrolled", EditorProfile{IsAutopatrolled: true}, "The user has default auto-approval rights: Autopatrolled."},
		{"autoreviewed", EditorProfile{IsAutoreviewed: true}, "The user has default auto-approval rights: Autoreviewed."},
		{"both", EditorProfile{IsAutopatrolled: true, IsAutoreviewed: true}, "The user has default auto-approval rights: Autopatrolled, Autoreviewed."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			profile := tc.profile
			got := NewRules(WikiConfiguration{}).Evaluate(testRevision(1), &profile)

			require.Len(t, got.Tests, 2)
			assert.Equal(t, TestBotUser, got.Tests[0].ID)
			assert.Equal(t, StatusFailed, got.Tests[0].Status)
			assert.Equal(t, StatusPassed, got.Tests[1].Status)
			assert.Equal(t, tc.message, got.Tests[1].Message)
			assert.Equal(t, NewDecision(DecisionApprove, "The user has default rights that allow auto-approval."), got.Decision)
		})
	}
}

func TestEvaluate_NoDefaultRightsWithoutProfile(t *testing.T) {
	t.Parallel()

	got := NewRules(WikiConfiguration{}).Evaluate(testRevision(1), nil)

	require.Len(t, got.Tests, 3)
	assert.Equal(t, "The user does not have default auto-approval rights.", got.Tests[1].Message)
}

func TestEvaluate_BlockingCategoryCaseInsensitive(t *testing.T) {
	t.Parallel()

	rev := testRevision(202)
	rev.Categories = []string{"secret"}
	cfg := WikiConfiguration{BlockingCategories: []string{"Secret"}}

	got := NewRules(cfg).Evaluate(rev, nil)

	require.Len(t, got.Tests, 3)
	assert.Equal(t, TestBlockingCategories, got.Tests[2].ID)
	assert.Equal(t, StatusFailed, got.Tests[2].Status)
	assert.Equal(t, "The previous version belongs to blocking categories: Secret.", got.Tests[2].Message)
	assert.Equal(t, Decision{
		Status: DecisionBlocked,
		Label:  "Cannot be auto-approved",
		Reason: "The earlier version of the article is in blocking categories.",
	}, got.Decision)
}

func TestEvaluate_BlockingCategoryFromMetadata(t *testing.T) {
	t.Parallel()

	rev := testRevision(202)
	rev.Superset = &SupersetData{PageCategories: StringList{"Living people", "Drafts"}}
	cfg := WikiConfiguration{BlockingCategories: []string{"drafts", "LIVING PEOPLE"}}

	got := NewRules(cfg).Evaluate(rev, nil)

	assert.Equal(t, DecisionBlocked, got.Decision.Status)
	assert.Equal(t, "The previous version belongs to blocking categories: LIVING PEOPLE, drafts.", got.Tests[2].Message)
}

func TestEvaluate_ManualFallthrough(t *testing.T) {
	t.Parallel()

	rev := testRevision(203)
	rev.Categories = []string{"General"}
	rev.Superset = &SupersetData{UserGroups: StringList{"user"}}

	got := NewRules(WikiConfiguration{}).Evaluate(rev, nil)

	require.Len(t, got.Tests, 3)
	assert.Equal(t, StatusPassed, got.Tests[2].Status)
	assert.Equal(t, "The previous version is not in blocking categories.", got.Tests[2].Message)
	assert.Equal(t, Decision{
		Status: DecisionManual,
		Label:  "Requires human review",
		Reason: "In dry-run mode the edit would not be approved automatically.",
	}, got.Decision)
}

func TestEvaluate_ResultJSONShape(t *testing.T) {
	t.Parallel()

	rev := testRevision(7)
	rev.Superset = &SupersetData{RCBot: NewFlag(true)}

	data, err := json.Marshal(NewRules(WikiConfiguration{}).Evaluate(rev, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"revid": 7,
		"tests": [{"id": "bot-user", "title": "Bot user", "status": "passed",
			"message": "The edit could be auto-approved because the user is a bot."}],
		"decision": {"status": "approve", "label": "Would be auto-approved",
			"reason": "The user is recognized as a bot."}
	}`, string(data))
}

func TestEvaluate_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	rev := testRevision(1)
	rev.Categories = []string{"b", "a"}
	rev.Superset = &SupersetData{UserGroups: StringList{"Z", "y"}, PageCategories: StringList{"c"}}
	profile := &EditorProfile{Groups: []string{"q", "p"}}
	cfg := WikiConfiguration{AutoApprovedGroups: []string{"p"}, BlockingCategories: []string{"a"}}

	NewRules(cfg).Evaluate(rev, profile)

	assert.Equal(t, []string{"b", "a"}, rev.Categories)
	assert.Equal(t, StringList{"Z", "y"}, rev.Superset.UserGroups)
	assert.Equal(t, []string{"q", "p"}, profile.Groups)
	assert.Equal(t, []string{"p"}, cfg.AutoApprovedGroups)
}
