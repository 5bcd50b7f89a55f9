// Package engagement: catalog.go holds the badge catalog.
// Each badge criterion is a CEL expression over the member's counters,
// compiled once at startup.
package engagement

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// BadgeDefinition is one catalog entry.
type BadgeDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Criterion   string `json:"criterion"`
}

// BadgeCatalog is the fixed set of badges.
var BadgeCatalog = []BadgeDefinition{
	{ID: "first-petition", Name: "First Petition", Description: "Created your first petition", Icon: "📝", Criterion: "total_petitions >= 1"},
	{ID: "petition-master", Name: "Petition Master", Description: "Created 10 petitions", Icon: "🏛️", Criterion: "total_petitions >= 10"},
	{ID: "super-voter", Name: "Super Voter", Description: "Voted on 50 petitions", Icon: "🗳️", Criterion: "total_votes >= 50"},
	{ID: "commentator", Name: "Commentator", Description: "Posted 20 comments", Icon: "💬", Criterion: "total_comments >= 20"},
	{ID: "rising-star", Name: "Rising Star", Description: "Reached level 5", Icon: "⭐", Criterion: "level >= 5"},
	{ID: "community-leader", Name: "Community Leader", Description: "Reached level 10", Icon: "👑", Criterion: "level >= 10"},
	{ID: "early-adopter", Name: "Early Adopter", Description: "Active within 30 days of joining", Icon: "🌱", Criterion: "days_since_joined <= 30"},
}

// CriteriaInput is the set of values a criterion may reference.
type CriteriaInput struct {
	TotalPoints     int64
	Level           int
	TotalPetitions  int64
	TotalVotes      int64
	TotalComments   int64
	DaysSinceJoined int64
}

func (in CriteriaInput) activation() map[string]any {
	return map[string]any{
		"total_points":      in.TotalPoints,
		"level":             int64(in.Level),
		"total_petitions":   in.TotalPetitions,
		"total_votes":       in.TotalVotes,
		"total_comments":    in.TotalComments,
		"days_since_joined": in.DaysSinceJoined,
	}
}

type compiledBadge struct {
	def     BadgeDefinition
	program cel.Program
}

// Evaluator checks badge criteria.
type Evaluator struct {
	badges []compiledBadge
	byID   map[string]BadgeDefinition
}

// NewEvaluator compiles every criterion in defs. A criterion that does not
// compile or does not yield a bool fails the whole catalog.
func NewEvaluator(defs []BadgeDefinition) (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("total_points", cel.IntType),
		cel.Variable("level", cel.IntType),
		cel.Variable("total_petitions", cel.IntType),
		cel.Variable("total_votes", cel.IntType),
		cel.Variable("total_comments", cel.IntType),
		cel.Variable("days_since_joined", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("build badge environment: %w", err)
	}

	e := &Evaluator{byID: make(map[string]BadgeDefinition, len(defs))}
	for _, def := range defs {
		if _, dup := e.byID[def.ID]; dup {
			return nil, fmt.Errorf("badge %s: duplicate id", def.ID)
		}
		ast, issues := env.Compile(def.Criterion)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("badge %s: %w", def.ID, issues.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("badge %s: %w", def.ID, err)
		}
		cb := compiledBadge{def: def, program: prg}
		if _, err := cb.eval(CriteriaInput{}); err != nil {
			return nil, err
		}
		e.badges = append(e.badges, cb)
		e.byID[def.ID] = def
	}
	return e, nil
}

// MustDefaultEvaluator compiles BadgeCatalog and panics if it is invalid.
func MustDefaultEvaluator() *Evaluator {
	e, err := NewEvaluator(BadgeCatalog)
	if err != nil {
		panic(err)
	}
	return e
}

func (b compiledBadge) eval(in CriteriaInput) (bool, error) {
	val, _, err := b.program.Eval(in.activation())
	if err != nil {
		return false, fmt.Errorf("badge %s: eval: %w", b.def.ID, err)
	}
	ok, isBool := val.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("badge %s: criterion did not return a bool", b.def.ID)
	}
	return ok, nil
}

// Qualified returns the badges whose criterion holds for in, in catalog order.
// A criterion that fails to evaluate is reported in errs and skipped.
func (e *Evaluator) Qualified(in CriteriaInput) (defs []BadgeDefinition, errs []error) {
	for _, b := range e.badges {
		ok, err := b.eval(in)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			defs = append(defs, b.def)
		}
	}
	return defs, errs
}

// Definition looks a badge up by id.
func (e *Evaluator) Definition(id string) (BadgeDefinition, bool) {
	def, ok := e.byID[id]
	return def, ok
}
