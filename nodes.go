package sigma

// NodeAnd is a list of conditions connected with logical conjunction
type NodeAnd []Condition

func (NodeAnd) condition() {}

// Reduce cleans up unneeded slices
// A conjunction with a single element is that element
func (n NodeAnd) Reduce() Condition {
	if len(n) == 1 {
		return n[0]
	}
	return n
}

// NodeOr is a list of conditions connected with logical disjunction
type NodeOr []Condition

func (NodeOr) condition() {}

// Reduce cleans up unneeded slices
// A disjunction with a single element is that element
func (n NodeOr) Reduce() Condition {
	if len(n) == 1 {
		return n[0]
	}
	return n
}

// NodeNot negates a branch
type NodeNot struct {
	B Condition
}

func (NodeNot) condition() {}

func newNodeNotIfNegated(c Condition, negated bool) Condition {
	if negated {
		return NodeNot{B: c}
	}
	return c
}

// Walk visits every node of the tree in depth-first order
// fn returning false stops descent into the children of that node
func Walk(c Condition, fn func(Condition) bool) {
	if c == nil || !fn(c) {
		return
	}
	switch t := c.(type) {
	case NodeAnd:
		for _, child := range t {
			Walk(child, fn)
		}
	case NodeOr:
		for _, child := range t {
			Walk(child, fn)
		}
	case NodeNot:
		Walk(t.B, fn)
	}
}
