package datadog

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/markuskont/go-sigma-datadog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sel(field string, values ...string) sigma.Selection {
	return sigma.NewSelection(field, sigma.TextPatternNone, values...)
}

func TestCompilePrecedence(t *testing.T) {
	cases := []struct {
		Name     string
		Cond     sigma.Condition
		Expected string
	}{
		{
			Name:     "and chain",
			Cond:     sigma.NodeAnd{sel("a", "1"), sigma.NodeAnd{sel("b", "2"), sel("c", "3")}},
			Expected: "@a:1 AND @b:2 AND @c:3",
		},
		{
			Name:     "or under and",
			Cond:     sigma.NodeAnd{sel("a", "1"), sigma.NodeOr{sel("b", "2"), sel("c", "3")}},
			Expected: "@a:1 AND (@b:2 OR @c:3)",
		},
		{
			Name:     "and under or",
			Cond:     sigma.NodeOr{sigma.NodeAnd{sel("a", "1"), sel("b", "2")}, sel("c", "3")},
			Expected: "@a:1 AND @b:2 OR @c:3",
		},
		{
			Name:     "multi value under and",
			Cond:     sigma.NodeAnd{sel("a", "1", "2"), sel("b", "3")},
			Expected: "(@a:1 OR @a:2) AND @b:3",
		},
		{
			Name:     "multi value under or",
			Cond:     sigma.NodeOr{sel("a", "1", "2"), sel("b", "3")},
			Expected: "@a:1 OR @a:2 OR @b:3",
		},
		{
			Name:     "not atom",
			Cond:     sigma.NodeNot{B: sel("a", "1")},
			Expected: "NOT @a:1",
		},
		{
			Name:     "not and",
			Cond:     sigma.NodeNot{B: sigma.NodeAnd{sel("a", "1"), sel("b", "2")}},
			Expected: "NOT (@a:1 AND @b:2)",
		},
		{
			Name:     "not multi value",
			Cond:     sigma.NodeNot{B: sel("a", "1", "2")},
			Expected: "NOT (@a:1 OR @a:2)",
		},
		{
			Name:     "double not",
			Cond:     sigma.NodeNot{B: sigma.NodeNot{B: sel("a", "1")}},
			Expected: "NOT NOT @a:1",
		},
		{
			Name:     "not inside and",
			Cond:     sigma.NodeAnd{sel("a", "1"), sigma.NodeNot{B: sel("b", "2")}},
			Expected: "@a:1 AND NOT @b:2",
		},
		{
			Name:     "single child passes through",
			Cond:     sigma.NodeAnd{sigma.NodeOr{sel("a", "1"), sel("b", "2")}},
			Expected: "@a:1 OR @b:2",
		},
		{
			Name:     "single child keeps parens under parent",
			Cond:     sigma.NodeAnd{sel("c", "3"), sigma.NodeAnd{sigma.NodeOr{sel("a", "1"), sel("b", "2")}}},
			Expected: "@c:3 AND (@a:1 OR @b:2)",
		},
		{
			Name: "keyword",
			Cond: sigma.NodeAnd{
				sigma.Selection{Match: sigma.ValueMatch{Values: []string{"evil", "bad"}}},
				sel("a", "1"),
			},
			Expected: "(evil OR bad) AND @a:1",
		},
	}
	var c Compiler
	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			out, err := c.Compile(tc.Cond)
			require.NoError(t, err)
			assert.Equal(t, tc.Expected, out)
		})
	}
}

func TestCompileDeterministic(t *testing.T) {
	cond := sigma.NodeOr{
		sigma.NodeAnd{sel("a", "1", "2"), sigma.NodeNot{B: sel("b", "x y")}},
		sigma.NewSelection("c d", sigma.TextPatternContains, `C:\Temp`),
	}
	var c Compiler
	first, err := c.Compile(cond)
	require.NoError(t, err)
	assert.Equal(t, `(@a:1 OR @a:2) AND NOT @b:x y OR @c\ d:*C:\\Temp*`, first)
	for i := 0; i < 100; i++ {
		out, err := c.Compile(cond)
		require.NoError(t, err)
		assert.Equal(t, first, out)
	}
}

type customNode struct {
	sigma.Selection
}

func TestCompileErrors(t *testing.T) {
	cases := []struct {
		Name        string
		Cond        sigma.Condition
		Unsupported bool
	}{
		{Name: "empty and", Cond: sigma.NodeAnd{}},
		{Name: "empty or", Cond: sigma.NodeOr{}},
		{Name: "nil root"},
		{Name: "nil negation", Cond: sigma.NodeNot{}},
		{Name: "nil child", Cond: sigma.NodeAnd{sel("a", "1"), nil}},
		{Name: "no values", Cond: sel("a")},
		{Name: "unknown node", Cond: customNode{Selection: sel("a", "1")}, Unsupported: true},
		{Name: "regex", Cond: sigma.NewSelection("a", sigma.TextPatternRegex, "x"), Unsupported: true},
	}
	var c Compiler
	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			out, err := c.Compile(tc.Cond)
			require.Error(t, err)
			assert.Empty(t, out)
			if tc.Unsupported {
				assert.IsType(t, sigma.ErrUnsupportedFeature{}, err)
			} else {
				assert.IsType(t, sigma.ErrMalformedRule{}, err)
			}
		})
	}
}

// queryNode is a boolean tree where nested groups of the same operator are flattened
type queryNode struct {
	op   string
	kids []queryNode
	term string
}

func (n queryNode) String() string {
	if n.op == "" {
		return n.term
	}
	parts := make([]string, len(n.kids))
	for i, k := range n.kids {
		parts[i] = k.String()
	}
	return n.op + "(" + strings.Join(parts, ", ") + ")"
}

func joinNodes(op string, kids []queryNode) queryNode {
	flat := make([]queryNode, 0, len(kids))
	for _, k := range kids {
		if k.op == op {
			flat = append(flat, k.kids...)
			continue
		}
		flat = append(flat, k)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return queryNode{op: op, kids: flat}
}

func normalize(cond sigma.Condition) queryNode {
	switch v := cond.(type) {
	case sigma.NodeAnd:
		kids := make([]queryNode, 0, len(v))
		for _, child := range v {
			kids = append(kids, normalize(child))
		}
		return joinNodes("AND", kids)
	case sigma.NodeOr:
		kids := make([]queryNode, 0, len(v))
		for _, child := range v {
			kids = append(kids, normalize(child))
		}
		return joinNodes("OR", kids)
	case sigma.NodeNot:
		return queryNode{op: "NOT", kids: []queryNode{normalize(v.B)}}
	case sigma.Selection:
		kids := make([]queryNode, 0, len(v.Match.Values))
		for _, val := range v.Match.Values {
			kids = append(kids, queryNode{term: "@" + v.Field + ":" + val})
		}
		return joinNodes("OR", kids)
	default:
		return queryNode{term: fmt.Sprintf("%T", cond)}
	}
}

// queryParser reads compiled queries back, NOT binds tighter than AND, AND tighter than OR
type queryParser struct {
	tokens []string
	pos    int
}

func parseQuery(q string) (queryNode, error) {
	q = strings.NewReplacer("(", " ( ", ")", " ) ").Replace(q)
	p := &queryParser{tokens: strings.Fields(q)}
	n, err := p.or()
	if err != nil {
		return n, err
	}
	if p.pos != len(p.tokens) {
		return n, fmt.Errorf("trailing token %q at %d", p.tokens[p.pos], p.pos)
	}
	return n, nil
}

func (p *queryParser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *queryParser) or() (queryNode, error)  { return p.binary("OR", p.and) }
func (p *queryParser) and() (queryNode, error) { return p.binary("AND", p.not) }

func (p *queryParser) binary(op string, operand func() (queryNode, error)) (queryNode, error) {
	first, err := operand()
	if err != nil {
		return first, err
	}
	kids := []queryNode{first}
	for p.peek() == op {
		p.pos++
		n, err := operand()
		if err != nil {
			return n, err
		}
		kids = append(kids, n)
	}
	return joinNodes(op, kids), nil
}

func (p *queryParser) not() (queryNode, error) {
	switch tok := p.peek(); tok {
	case "NOT":
		p.pos++
		n, err := p.not()
		if err != nil {
			return n, err
		}
		return queryNode{op: "NOT", kids: []queryNode{n}}, nil
	case "(":
		p.pos++
		n, err := p.or()
		if err != nil {
			return n, err
		}
		if p.peek() != ")" {
			return n, fmt.Errorf("missing closing parenthesis at %d", p.pos)
		}
		p.pos++
		return n, nil
	case "", ")", "AND", "OR":
		return queryNode{}, fmt.Errorf("unexpected token %q at %d", tok, p.pos)
	default:
		p.pos++
		return queryNode{term: tok}, nil
	}
}

func randomCondition(r *rand.Rand, depth int) sigma.Condition {
	if depth == 0 || r.Intn(4) == 0 {
		values := make([]string, 1+r.Intn(3))
		for i := range values {
			values[i] = fmt.Sprintf("v%d", r.Intn(10))
		}
		return sel(fmt.Sprintf("f%d", r.Intn(5)), values...)
	}
	switch r.Intn(3) {
	case 0:
		and := make(sigma.NodeAnd, 1+r.Intn(4))
		for i := range and {
			and[i] = randomCondition(r, depth-1)
		}
		return and
	case 1:
		or := make(sigma.NodeOr, 1+r.Intn(4))
		for i := range or {
			or[i] = randomCondition(r, depth-1)
		}
		return or
	default:
		return sigma.NodeNot{B: randomCondition(r, depth-1)}
	}
}

func TestCompileRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	var c Compiler
	for i := 0; i < 2000; i++ {
		cond := randomCondition(r, 5)
		out, err := c.Compile(cond)
		require.NoError(t, err)

		parsed, err := parseQuery(out)
		require.NoError(t, err, out)
		require.Equal(t, normalize(cond).String(), parsed.String(), "tree %d: %s", i, out)
	}
}

func TestParseQuery(t *testing.T) {
	n, err := parseQuery("@a:1 OR NOT (@b:2 OR @b:3) AND @c:4")
	require.NoError(t, err)
	assert.Equal(t, "OR(@a:1, AND(NOT(OR(@b:2, @b:3)), @c:4))", n.String())

	_, err = parseQuery("(@a:1 AND")
	assert.Error(t, err)
}
