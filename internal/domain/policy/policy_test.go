package policy

import (
	"testing"

	"github.com/oisp/sensor/internal/domain/event"
)

func sampleEvent() *event.Event {
	env := event.NewEnvelope(event.TypeAIRequest, event.Source{Collector: "test"})
	env.Process = &event.Process{PID: 100, Comm: "test-agent"}
	return &event.Event{
		Envelope: env,
		AIRequest: &event.AIRequestData{
			RequestID: "req-1",
			Provider:  event.ProviderInfo{Name: "openai"},
			Model:     event.ModelInfo{ID: "gpt-4"},
		},
	}
}

func TestSet_EvaluatesHighestPriorityFirst(t *testing.T) {
	policies := []Policy{
		{ID: "low", Enabled: true, Priority: 1, Condition: Condition{Field: "provider.name", Op: OpEquals, Value: "openai"}, Action: Action{Type: ActionLog}},
		{ID: "high", Enabled: true, Priority: 10, Condition: Condition{Field: "provider.name", Op: OpEquals, Value: "openai"}, Action: Action{Type: ActionBlock, Reason: "blocked by high priority"}},
	}
	set := NewSet(policies, DefaultAllow)

	decision := set.Evaluate(sampleEvent())
	if decision.Matched == nil || decision.Matched.ID != "high" {
		t.Fatalf("expected the higher-priority policy to match, got %+v", decision.Matched)
	}
	if decision.Action.Type != ActionBlock {
		t.Fatalf("expected block action, got %v", decision.Action.Type)
	}
}

func TestSet_SkipsDisabledPolicies(t *testing.T) {
	policies := []Policy{
		{ID: "disabled", Enabled: false, Priority: 10, Condition: Condition{Field: "provider.name", Op: OpEquals, Value: "openai"}, Action: Action{Type: ActionBlock}},
	}
	set := NewSet(policies, DefaultAllow)

	decision := set.Evaluate(sampleEvent())
	if decision.Matched != nil {
		t.Fatalf("disabled policy should never match")
	}
	if decision.Action.Type != ActionAllow {
		t.Fatalf("expected default allow, got %v", decision.Action.Type)
	}
}

func TestSet_DefaultBlockWhenNothingMatches(t *testing.T) {
	set := NewSet(nil, DefaultBlock)
	decision := set.Evaluate(sampleEvent())
	if decision.Action.Type != ActionBlock {
		t.Fatalf("expected default block action, got %v", decision.Action.Type)
	}
}

func TestAction_DerivedSeverity(t *testing.T) {
	cases := []struct {
		action Action
		want   Severity
	}{
		{Action{Type: ActionAllow}, SeverityInfo},
		{Action{Type: ActionLog}, SeverityInfo},
		{Action{Type: ActionRedact}, SeverityWarning},
		{Action{Type: ActionAlert}, SeverityAlert},
		{Action{Type: ActionAlert, AlertSeverity: SeverityCritical}, SeverityCritical},
		{Action{Type: ActionBlock}, SeverityCritical},
	}
	for _, tc := range cases {
		if got := tc.action.DerivedSeverity(); got != tc.want {
			t.Errorf("action %v: expected severity %v, got %v", tc.action.Type, tc.want, got)
		}
	}
}
