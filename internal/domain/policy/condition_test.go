package policy

import "testing"

func tree() any {
	return map[string]any{
		"process": map[string]any{
			"app_tier": "unsanctioned",
			"pid":      float64(4242),
		},
		"provider": map[string]any{
			"name": "openai",
		},
		"tags": []any{"prod", "agent"},
	}
}

func TestCondition_Equals(t *testing.T) {
	c := Condition{Field: "provider.name", Op: OpEquals, Value: "openai"}
	if !c.Evaluate(tree()) {
		t.Fatalf("expected match")
	}
	c.Value = "anthropic"
	if c.Evaluate(tree()) {
		t.Fatalf("expected no match")
	}
}

func TestCondition_EqualsIgnoreCase(t *testing.T) {
	c := Condition{Field: "provider.name", Op: OpEquals, Value: "OpenAI", IgnoreCase: true}
	if !c.Evaluate(tree()) {
		t.Fatalf("expected case-insensitive match")
	}
}

func TestCondition_Contains(t *testing.T) {
	c := Condition{Field: "process.app_tier", Op: OpContains, Value: "sanction"}
	if !c.Evaluate(tree()) {
		t.Fatalf("expected contains match")
	}
}

func TestCondition_NotContains_MissingFieldIsTrue(t *testing.T) {
	c := Condition{Field: "process.missing", Op: OpNotContain, Value: "x"}
	if !c.Evaluate(tree()) {
		t.Fatalf("not_contains on a missing field should evaluate true")
	}
}

func TestCondition_In(t *testing.T) {
	c := Condition{Field: "provider.name", Op: OpIn, Value: []any{"openai", "anthropic"}}
	if !c.Evaluate(tree()) {
		t.Fatalf("expected in-list match")
	}
}

func TestCondition_NotIn_NonListIsTrue(t *testing.T) {
	c := Condition{Field: "provider.name", Op: OpNotIn, Value: "not-a-list"}
	if !c.Evaluate(tree()) {
		t.Fatalf("not_in against a non-list expected value should evaluate true")
	}
}

func TestCondition_GtGteLtLte(t *testing.T) {
	cases := []struct {
		op Op
		v  any
		ok bool
	}{
		{OpGt, float64(100), true},
		{OpGt, float64(5000), false},
		{OpGte, float64(4242), true},
		{OpLt, float64(5000), true},
		{OpLte, float64(4242), true},
	}
	for _, tc := range cases {
		c := Condition{Field: "process.pid", Op: tc.op, Value: tc.v}
		if got := c.Evaluate(tree()); got != tc.ok {
			t.Errorf("op %s value %v: expected %v got %v", tc.op, tc.v, tc.ok, got)
		}
	}
}

func TestCondition_ExistsNotExists(t *testing.T) {
	if !(Condition{Field: "provider.name", Op: OpExists}).Evaluate(tree()) {
		t.Fatalf("expected exists to be true")
	}
	if !(Condition{Field: "provider.missing", Op: OpNotExists}).Evaluate(tree()) {
		t.Fatalf("expected not_exists to be true")
	}
}

func TestCondition_Matches(t *testing.T) {
	c := Condition{Field: "provider.name", Op: OpMatches, Value: "^open.*$"}
	if !c.Evaluate(tree()) {
		t.Fatalf("expected regex match")
	}
	c.Value = "(["
	if c.Evaluate(tree()) {
		t.Fatalf("an invalid pattern should never match")
	}
}

func TestCondition_AllAnyNot(t *testing.T) {
	all := Condition{All: []Condition{
		{Field: "provider.name", Op: OpEquals, Value: "openai"},
		{Field: "process.app_tier", Op: OpEquals, Value: "unsanctioned"},
	}}
	if !all.Evaluate(tree()) {
		t.Fatalf("expected all() to match")
	}

	any_ := Condition{Any: []Condition{
		{Field: "provider.name", Op: OpEquals, Value: "anthropic"},
		{Field: "provider.name", Op: OpEquals, Value: "openai"},
	}}
	if !any_.Evaluate(tree()) {
		t.Fatalf("expected any() to match")
	}

	not := Condition{Not: &Condition{Field: "provider.name", Op: OpEquals, Value: "anthropic"}}
	if !not.Evaluate(tree()) {
		t.Fatalf("expected not() to match")
	}
}
