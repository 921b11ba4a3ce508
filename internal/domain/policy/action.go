package policy

import "strings"

// ActionType enumerates the kinds of action a matched policy can take.
type ActionType string

const (
	ActionAllow  ActionType = "allow"
	ActionBlock  ActionType = "block"
	ActionRedact ActionType = "redact"
	ActionAlert  ActionType = "alert"
	ActionLog    ActionType = "log"
)

// LogLevel is the level a log action emits at.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// Severity is the audit-event severity derived from the action taken.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityAlert    Severity = "alert"
	SeverityCritical Severity = "critical"
)

// Action is the declared effect of a matched policy. Exactly one action kind
// is meaningful per Type; the others are zero-valued.
type Action struct {
	Type ActionType `yaml:"type" json:"type"`

	// Block
	Reason string `yaml:"reason,omitempty" json:"reason,omitempty"`

	// Redact
	Fields         []string `yaml:"fields,omitempty" json:"fields,omitempty"`
	Patterns       []string `yaml:"patterns,omitempty" json:"patterns,omitempty"`
	CustomPatterns []string `yaml:"custom_patterns,omitempty" json:"custom_patterns,omitempty"`
	Replacement    string   `yaml:"replacement,omitempty" json:"replacement,omitempty"`

	// Alert
	AlertSeverity Severity `yaml:"severity,omitempty" json:"severity,omitempty"`
	Message       string   `yaml:"message,omitempty" json:"message,omitempty"`
	WebhookURL    string   `yaml:"webhook_url,omitempty" json:"webhook_url,omitempty"`
	IncludeEvent  bool     `yaml:"include_event,omitempty" json:"include_event,omitempty"`

	// Log
	Level         LogLevel `yaml:"level,omitempty" json:"level,omitempty"`
	IncludeFields []string `yaml:"include_fields,omitempty" json:"include_fields,omitempty"`
}

// DerivedSeverity maps an action onto the audit event severity the spec
// assigns it: allow/log -> Info, redact -> Warning, alert -> Alert (or the
// action's own declared severity when set), block -> Critical.
func (a Action) DerivedSeverity() Severity {
	switch a.Type {
	case ActionRedact:
		return SeverityWarning
	case ActionAlert:
		if a.AlertSeverity != "" {
			return a.AlertSeverity
		}
		return SeverityAlert
	case ActionBlock:
		return SeverityCritical
	default:
		return SeverityInfo
	}
}

// hasPattern reports whether name (or its plural) appears in a redact
// action's pattern list, the way "api_key"/"api_keys" are both accepted.
func hasPattern(patterns []string, name string) bool {
	for _, p := range patterns {
		if p == name || p == name+"s" || p == "all" {
			return true
		}
	}
	return false
}

// redactConfigFromAction turns a redact action's pattern names into the
// boolean toggles the redact package's Config expects.
func redactConfigFromAction(patterns []string) (apiKeys, emails, creditCards, ssns, phones bool) {
	all := false
	for _, p := range patterns {
		if strings.EqualFold(p, "all") {
			all = true
		}
	}
	return all || hasPattern(patterns, "api_key"),
		all || hasPattern(patterns, "email"),
		all || hasPattern(patterns, "credit_card") || hasPattern(patterns, "cc"),
		all || hasPattern(patterns, "ssn"),
		all || hasPattern(patterns, "phone")
}
