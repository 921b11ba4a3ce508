package policy

import (
	"gopkg.in/yaml.v3"

	"github.com/oisp/sensor/internal/domain/event"
	"github.com/oisp/sensor/internal/domain/fieldpath"
)

// Policy is one named, priority-ordered rule: a condition tree plus the
// action to take when it matches.
type Policy struct {
	ID          string    `yaml:"id" json:"id"`
	Name        string    `yaml:"name" json:"name"`
	Enabled     bool      `yaml:"enabled" json:"enabled"`
	Priority    int       `yaml:"priority" json:"priority"` // higher evaluates first
	Condition   Condition `yaml:"condition" json:"condition"`
	Action      Action    `yaml:"action" json:"action"`
}

// UnmarshalYAML defaults Enabled to true when a policy entry omits it.
func (p *Policy) UnmarshalYAML(value *yaml.Node) error {
	type plain Policy
	raw := plain{Enabled: true}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*p = Policy(raw)
	return nil
}

// DefaultAction is the action applied when no enabled policy matches.
type DefaultAction string

const (
	DefaultAllow DefaultAction = "allow"
	DefaultBlock DefaultAction = "block"
	DefaultLog   DefaultAction = "log"
)

// Set is an immutable, priority-sorted collection of policies plus the
// fallback action for the no-match case. A Manager publishes a new Set on
// every successful reload; evaluation never mutates one in place.
type Set struct {
	Policies []Policy
	Default  DefaultAction
}

// NewSet sorts policies by descending priority once, so Evaluate never has
// to re-sort on the hot path.
func NewSet(policies []Policy, def DefaultAction) *Set {
	sorted := make([]Policy, len(policies))
	copy(sorted, policies)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Priority > sorted[j-1].Priority; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	if def == "" {
		def = DefaultAllow
	}
	return &Set{Policies: sorted, Default: def}
}

// Decision is the outcome of evaluating a Set against one event.
type Decision struct {
	Matched    *Policy
	Action     Action
	PassThrough bool
	Modified   bool
	Reason     string
}

// Evaluate walks the ordered policy list and short-circuits on the first
// enabled match. When nothing matches, it synthesizes a decision from the
// Set's configured default action.
func (s *Set) Evaluate(ev *event.Event) Decision {
	tree, err := fieldpath.ToTree(ev)
	if err != nil {
		return Decision{Action: Action{Type: ActionAllow}, PassThrough: true}
	}
	for i := range s.Policies {
		p := &s.Policies[i]
		if !p.Enabled {
			continue
		}
		if p.Condition.Evaluate(tree) {
			return Decision{Matched: p, Action: p.Action}
		}
	}
	return Decision{Action: defaultToAction(s.Default)}
}

func defaultToAction(def DefaultAction) Action {
	switch def {
	case DefaultBlock:
		return Action{Type: ActionBlock, Reason: "no policy matched"}
	case DefaultLog:
		return Action{Type: ActionLog, Message: "no policy matched", Level: LogInfo}
	default:
		return Action{Type: ActionAllow}
	}
}
