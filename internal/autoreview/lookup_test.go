package autoreview

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLookup_FirstSpellingWins(t *testing.T) {
	t.Parallel()

	got := NewLookup([]string{"Sysop", "", "SYSOP", "reviewer", "sysop"})

	assert.Equal(t, Lookup{"sysop": "Sysop", "reviewer": "reviewer"}, got)
}

func TestNewLookup_EmptyInput(t *testing.T) {
	t.Parallel()

	assert.Empty(t, NewLookup(nil))
	assert.Empty(t, NewLookup([]string{"", ""}))
}

func TestNewLookup_Idempotent(t *testing.T) {
	t.Parallel()

	first := NewLookup([]string{"Straße", "STRASSE", "Living people"})
	second := NewLookup(first.Values())

	assert.Equal(t, first, second)
}

func TestFold_UnicodeCaseFolding(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Fold("STRASSE"), Fold("Straße"))
	assert.Equal(t, "bot", Fold("BoT"))
}

func TestLookupMatch_DeduplicatesAndSorts(t *testing.T) {
	t.Parallel()

	lookup := NewLookup([]string{"Beta", "alpha"})

	assert.Equal(t, []string{"Beta", "alpha"}, lookup.match([]string{"ALPHA", "beta", "Alpha", "gamma"}))
	assert.Nil(t, Lookup{}.match([]string{"alpha"}))
}
