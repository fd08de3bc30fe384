package sigma

// Condition is a node of the boolean detection tree of a rule.
// Implemented by NodeAnd, NodeOr, NodeNot and Selection only; backends are
// expected to type switch over those four and treat anything else as unsupported.
type Condition interface {
	condition()
}

// ValueMatch is a field comparison
// Multiple values are implicitly joined with logical disjunction
type ValueMatch struct {
	Modifier TextPatternModifier
	Values   []string
}

// Selection binds a field to a value match
// Empty Field denotes a keyword selection that is matched against the whole event
type Selection struct {
	Field string
	Match ValueMatch
}

func (Selection) condition() {}

// Keyword reports if selection has no field
func (s Selection) Keyword() bool { return s.Field == "" }

// NewSelection is a helper for building single field selections
func NewSelection(field string, mod TextPatternModifier, values ...string) Selection {
	return Selection{
		Field: field,
		Match: ValueMatch{Modifier: mod, Values: values},
	}
}
