package engagement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func qualifiedIDs(t *testing.T, e *Evaluator, in CriteriaInput) []string {
	t.Helper()
	defs, errs := e.Qualified(in)
	require.Empty(t, errs)
	ids := make([]string, 0, len(defs))
	for _, d := range defs {
		ids = append(ids, d.ID)
	}
	return ids
}

func TestCatalogCriteria(t *testing.T) {
	e := MustDefaultEvaluator()
	veteran := int64(400)

	tests := []struct {
		name string
		in   CriteriaInput
		want []string
	}{
		{"nothing yet", CriteriaInput{Level: 1, DaysSinceJoined: veteran}, []string{}},
		{"one petition", CriteriaInput{Level: 1, TotalPetitions: 1, DaysSinceJoined: veteran}, []string{"first-petition"}},
		{"ten petitions", CriteriaInput{Level: 1, TotalPetitions: 10, DaysSinceJoined: veteran}, []string{"first-petition", "petition-master"}},
		{"nine petitions", CriteriaInput{Level: 1, TotalPetitions: 9, DaysSinceJoined: veteran}, []string{"first-petition"}},
		{"fifty votes", CriteriaInput{Level: 1, TotalVotes: 50, DaysSinceJoined: veteran}, []string{"super-voter"}},
		{"forty nine votes", CriteriaInput{Level: 1, TotalVotes: 49, DaysSinceJoined: veteran}, []string{}},
		{"twenty comments", CriteriaInput{Level: 1, TotalComments: 20, DaysSinceJoined: veteran}, []string{"commentator"}},
		{"level five", CriteriaInput{Level: 5, DaysSinceJoined: veteran}, []string{"rising-star"}},
		{"level ten", CriteriaInput{Level: 10, DaysSinceJoined: veteran}, []string{"rising-star", "community-leader"}},
		{"newcomer", CriteriaInput{Level: 1, DaysSinceJoined: 30}, []string{"early-adopter"}},
		{"just past window", CriteriaInput{Level: 1, DaysSinceJoined: 31}, []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ElementsMatch(t, tc.want, qualifiedIDs(t, e, tc.in))
		})
	}
}

func TestNewEvaluatorRejectsBadCriteria(t *testing.T) {
	_, err := NewEvaluator([]BadgeDefinition{{ID: "broken", Criterion: "total_votes >="}})
	assert.Error(t, err)

	_, err = NewEvaluator([]BadgeDefinition{{ID: "not-bool", Criterion: "total_votes + 1"}})
	assert.Error(t, err)

	_, err = NewEvaluator([]BadgeDefinition{{ID: "unknown-var", Criterion: "karma > 3"}})
	assert.Error(t, err)

	_, err = NewEvaluator([]BadgeDefinition{
		{ID: "dup", Criterion: "level >= 1"},
		{ID: "dup", Criterion: "level >= 2"},
	})
	assert.Error(t, err)
}

func TestEvaluatorDefinition(t *testing.T) {
	e := MustDefaultEvaluator()
	def, ok := e.Definition("super-voter")
	require.True(t, ok)
	assert.Equal(t, "Super Voter", def.Name)

	_, ok = e.Definition("nope")
	assert.False(t, ok)
}
