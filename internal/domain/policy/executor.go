package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/oisp/sensor/internal/domain/event"
	"github.com/oisp/sensor/internal/domain/fieldpath"
	"github.com/oisp/sensor/internal/domain/redact"
)

func eventTree(ev *event.Event) (any, error) {
	return fieldpath.ToTree(ev)
}

func lookupField(tree any, path string) (any, bool) {
	return fieldpath.Get(tree, path)
}

// Outcome is what executing an Action produced: whether the event survives
// to downstream sinks, whether it was mutated, and any alert payload raised.
type Outcome struct {
	PassThrough bool
	Modified    bool
	Reason      string
	Alert       *Alert
}

// Alert is the payload a matched `alert` action raises.
type Alert struct {
	PolicyID  string
	Severity  Severity
	Message   string
	EventID   string
	Timestamp time.Time
	Event     *event.Event // only set when the action requested include_event
}

// Executor carries out a Decision's Action against the concrete event,
// running redaction through the shared redact package and posting alert
// webhooks over plain HTTP.
type Executor struct {
	webhookURL string
	httpClient *http.Client
	log        *zap.Logger
}

func NewExecutor(webhookURL string, log *zap.Logger) *Executor {
	return &Executor{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		log:        log,
	}
}

// Execute mutates ev in place when the action redacts, and reports the
// pass-through/modified/alert outcome for the caller (dispatcher) to act on.
func (x *Executor) Execute(ctx context.Context, action Action, ev *event.Event, policyID string) Outcome {
	switch action.Type {
	case ActionBlock:
		x.log.Info("policy blocked event",
			zap.String("policy_id", policyID),
			zap.String("reason", action.Reason))
		return Outcome{PassThrough: false, Reason: action.Reason}

	case ActionRedact:
		apiKeys, emails, cards, ssns, phones := redactConfigFromAction(action.Patterns)
		cfg := redact.Config{
			APIKeys: apiKeys, Emails: emails, CreditCards: cards, SSNs: ssns, PhoneNumbers: phones,
		}
		for _, pattern := range action.CustomPatterns {
			cfg.CustomPatterns = append(cfg.CustomPatterns, redact.CustomPattern{Name: "custom", Pattern: pattern})
		}
		r := redact.New(cfg)
		modified, err := r.RedactFields(ev, action.Fields)
		if err != nil {
			x.log.Warn("policy redact action failed", zap.Error(err), zap.String("policy_id", policyID))
			return Outcome{PassThrough: true}
		}
		return Outcome{PassThrough: true, Modified: modified}

	case ActionAlert:
		alert := &Alert{
			PolicyID:  policyID,
			Severity:  action.DerivedSeverity(),
			Message:   action.Message,
			EventID:   ev.EventID,
			Timestamp: time.Now(),
		}
		if action.IncludeEvent {
			alert.Event = ev
		}
		url := action.WebhookURL
		if url == "" {
			url = x.webhookURL
		}
		if url != "" {
			x.sendWebhook(ctx, url, alert)
		}
		return Outcome{PassThrough: true, Alert: alert}

	case ActionLog:
		x.executeLog(action, ev)
		return Outcome{PassThrough: true}

	default: // ActionAllow
		return Outcome{PassThrough: true}
	}
}

func (x *Executor) sendWebhook(ctx context.Context, url string, alert *Alert) {
	body, err := json.Marshal(alert)
	if err != nil {
		x.log.Warn("failed to marshal alert", zap.Error(err))
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		x.log.Warn("failed to build alert webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := x.httpClient.Do(req)
	if err != nil {
		x.log.Warn("alert webhook failed", zap.String("url", url), zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		x.log.Warn("alert webhook returned non-2xx", zap.String("url", url), zap.Int("status", resp.StatusCode))
	}
}

func (x *Executor) executeLog(action Action, ev *event.Event) {
	fields := []zap.Field{zap.String("event_id", ev.EventID), zap.String("event_type", string(ev.EventType))}
	if len(action.IncludeFields) > 0 {
		tree, err := eventTree(ev)
		if err == nil {
			for _, f := range action.IncludeFields {
				if v, ok := lookupField(tree, f); ok {
					fields = append(fields, zap.Any(f, v))
				}
			}
		}
	}
	msg := "[policy log] " + action.Message
	switch action.Level {
	case LogDebug:
		x.log.Debug(msg, fields...)
	case LogWarn:
		x.log.Warn(msg, fields...)
	case LogError:
		x.log.Error(msg, fields...)
	default:
		x.log.Info(msg, fields...)
	}
}
