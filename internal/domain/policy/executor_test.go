package policy

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/oisp/sensor/internal/domain/event"
)

func requestEventWithEmail() *event.Event {
	env := event.NewEnvelope(event.TypeAIRequest, event.Source{Collector: "test"})
	env.Process = &event.Process{PID: 1, Comm: "agent"}
	return &event.Event{
		Envelope: env,
		AIRequest: &event.AIRequestData{
			RequestID: "req-1",
			Provider:  event.ProviderInfo{Name: "openai"},
			Model:     event.ModelInfo{ID: "gpt-4"},
			Messages: []event.Message{
				{Role: event.RoleUser, Content: event.TextContent("contact me at jane@example.com please")},
			},
		},
	}
}

func TestExecutor_RedactMutatesMatchingField(t *testing.T) {
	ex := NewExecutor("", zap.NewNop())
	ev := requestEventWithEmail()

	action := Action{Type: ActionRedact, Fields: []string{"messages.*.content"}, Patterns: []string{"email"}}
	outcome := ex.Execute(context.Background(), action, ev, "policy-1")

	if !outcome.PassThrough {
		t.Fatalf("redact action should pass the event through")
	}
	if !outcome.Modified {
		t.Fatalf("expected the event to be modified")
	}
	if ev.AIRequest.Messages[0].Content.Text != nil {
		t.Fatalf("expected the text content to be replaced by a redaction marker")
	}
	if ev.AIRequest.Messages[0].Content.Redacted == nil {
		t.Fatalf("expected a redaction marker")
	}
}

func TestExecutor_BlockDoesNotPassThrough(t *testing.T) {
	ex := NewExecutor("", zap.NewNop())
	ev := requestEventWithEmail()

	outcome := ex.Execute(context.Background(), Action{Type: ActionBlock, Reason: "denied"}, ev, "policy-2")
	if outcome.PassThrough {
		t.Fatalf("block action must not pass through")
	}
	if outcome.Reason != "denied" {
		t.Fatalf("expected reason to carry through, got %q", outcome.Reason)
	}
}

func TestExecutor_AllowPassesThroughUnmodified(t *testing.T) {
	ex := NewExecutor("", zap.NewNop())
	ev := requestEventWithEmail()

	outcome := ex.Execute(context.Background(), Action{Type: ActionAllow}, ev, "")
	if !outcome.PassThrough || outcome.Modified {
		t.Fatalf("allow action should pass through unmodified, got %+v", outcome)
	}
}
