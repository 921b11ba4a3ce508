package fieldpath

import "testing"

func TestGet_NestedField(t *testing.T) {
	tree := map[string]any{
		"process": map[string]any{
			"app_tier": "sanctioned",
			"pid":      float64(1234),
		},
	}

	v, ok := Get(tree, "process.app_tier")
	if !ok {
		t.Fatalf("expected field to resolve")
	}
	if v != "sanctioned" {
		t.Fatalf("expected sanctioned, got %v", v)
	}
}

func TestGet_ArrayIndex(t *testing.T) {
	tree := map[string]any{
		"messages": []any{
			map[string]any{"role": "user"},
			map[string]any{"role": "assistant"},
		},
	}

	v, ok := Get(tree, "messages.1.role")
	if !ok || v != "assistant" {
		t.Fatalf("expected assistant, got %v ok=%v", v, ok)
	}
}

func TestGet_MissingField(t *testing.T) {
	tree := map[string]any{"a": map[string]any{"b": "c"}}
	if _, ok := Get(tree, "a.x"); ok {
		t.Fatalf("expected miss on unknown field")
	}
	if _, ok := Get(tree, "a.b.c"); ok {
		t.Fatalf("expected miss when descending into a scalar")
	}
}

func TestWalk_Wildcard(t *testing.T) {
	tree := map[string]any{
		"messages": []any{
			map[string]any{"content": "hello"},
			map[string]any{"content": "world"},
		},
	}

	var seen []string
	changed := Walk(tree, "messages.*.content", func(leaf any) (any, bool) {
		s, _ := leaf.(string)
		seen = append(seen, s)
		return "[redacted]", true
	})
	if !changed {
		t.Fatalf("expected a change")
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 leaves visited, got %d", len(seen))
	}

	msgs := tree["messages"].([]any)
	for i, m := range msgs {
		got := m.(map[string]any)["content"]
		if got != "[redacted]" {
			t.Errorf("message %d not redacted: %v", i, got)
		}
	}
}

func TestWalk_NoMatchLeavesTreeUnchanged(t *testing.T) {
	tree := map[string]any{"a": "b"}
	changed := Walk(tree, "missing.path", func(leaf any) (any, bool) {
		t.Fatalf("fn should never be called for a missing path")
		return nil, false
	})
	if changed {
		t.Fatalf("expected no change")
	}
}

func TestWalkAllStrings_VisitsEveryStringLeaf(t *testing.T) {
	tree := map[string]any{
		"a": "one",
		"b": []any{"two", float64(3), "four"},
		"c": map[string]any{"d": "five"},
	}

	var count int
	WalkAllStrings(tree, func(s string) (string, bool) {
		count++
		return s, false
	})
	if count != 4 {
		t.Fatalf("expected 4 string leaves, got %d", count)
	}
}

func TestToTreeFromTree_RoundTrip(t *testing.T) {
	type inner struct {
		Name string `json:"name"`
	}
	type outer struct {
		Items []inner `json:"items"`
	}

	in := outer{Items: []inner{{Name: "a"}, {Name: "b"}}}
	tree, err := ToTree(in)
	if err != nil {
		t.Fatalf("ToTree: %v", err)
	}

	Walk(tree, "items.*.name", func(leaf any) (any, bool) {
		return "x", true
	})

	var out outer
	if err := FromTree(tree, &out); err != nil {
		t.Fatalf("FromTree: %v", err)
	}
	for i, item := range out.Items {
		if item.Name != "x" {
			t.Errorf("item %d: expected x, got %q", i, item.Name)
		}
	}
}
