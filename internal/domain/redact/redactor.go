package redact

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/oisp/sensor/internal/domain/event"
	"github.com/oisp/sensor/internal/domain/fieldpath"
)

// Redactor applies a built detector set to a canonical event, either over
// every string field (the profile-driven pass run ahead of policy) or over
// an explicit list of field paths (a policy's redact action).
type Redactor struct {
	cfg       Config
	detectors []Detector
}

func New(cfg Config) *Redactor {
	return &Redactor{cfg: cfg, detectors: BuildDetectors(cfg)}
}

// RedactEvent walks every string leaf of ev and replaces any that matches a
// detector, returning whether anything was changed.
func (r *Redactor) RedactEvent(ev *event.Event) (bool, error) {
	tree, err := fieldpath.ToTree(ev)
	if err != nil {
		return false, err
	}
	changed := fieldpath.WalkAllStrings(tree, r.redactLeaf)
	if !changed {
		return false, nil
	}
	var out event.Event
	if err := fieldpath.FromTree(tree, &out); err != nil {
		return false, err
	}
	*ev = out
	return true, nil
}

// RedactFields applies the detector set only to the given dotted field paths
// (which may contain "*" wildcards), as a policy's redact action declares.
func (r *Redactor) RedactFields(ev *event.Event, fields []string) (bool, error) {
	tree, err := fieldpath.ToTree(ev)
	if err != nil {
		return false, err
	}
	changed := false
	for _, field := range fields {
		if fieldpath.Walk(tree, field, func(leaf any) (any, bool) {
			s, ok := leaf.(string)
			if !ok {
				return nil, false
			}
			newVal, did := r.redactLeaf(s)
			if !did {
				return nil, false
			}
			return newVal, true
		}) {
			changed = true
		}
	}
	if !changed {
		return false, nil
	}
	var out event.Event
	if err := fieldpath.FromTree(tree, &out); err != nil {
		return false, err
	}
	*ev = out
	return true, nil
}

// redactLeaf runs every detector over one string value, returning a
// RedactedContent-shaped map when anything matched (as a plain map so it
// round-trips through the generic JSON tree into MessageContent/
// ToolArguments's UnmarshalJSON, which accepts exactly this object shape).
func (r *Redactor) redactLeaf(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	var findings []event.Finding
	var hitNames []string
	for _, d := range r.detectors {
		for _, span := range d.FindAll(s) {
			findings = append(findings, event.Finding{Detector: d.Name, Start: span[0], End: span[1]})
			hitNames = append(hitNames, d.Name)
		}
	}
	if len(findings) == 0 {
		return nil, false
	}

	sum := sha256.Sum256([]byte(s))
	info := event.RedactionInfo{
		Reason:   "policy",
		Detector: hitNames[0],
		Length:   len(s),
		Hash:     hex.EncodeToString(sum[:]),
		Preview:  preview(s),
		Profile:  string(r.cfg.Profile),
		Findings: findings,
	}

	data, err := toMap(info)
	if err != nil {
		return nil, false
	}
	return data, true
}

// preview keeps a short, non-sensitive prefix for audit/debug display.
func preview(s string) string {
	const maxLen = 8
	if len(s) <= maxLen {
		return "***"
	}
	return s[:maxLen] + "***"
}

func toMap(v any) (map[string]any, error) {
	tree, err := fieldpath.ToTree(v)
	if err != nil {
		return nil, err
	}
	m, _ := tree.(map[string]any)
	return m, nil
}
