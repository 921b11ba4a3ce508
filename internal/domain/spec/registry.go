package spec

import (
	"regexp"
	"strings"
	"sync/atomic"
)

// compiledPattern pairs a DomainPattern with its pre-compiled regex so
// lookups never compile on the hot path.
type compiledPattern struct {
	provider string
	re       *regexp.Regexp
}

// Registry indexes a Bundle snapshot for O(1) exact-domain lookup, compiled
// wildcard-domain matching, and longest-prefix API-key classification. A new
// Registry is built and published whenever the Loader publishes a new
// Bundle; readers hold an atomic pointer to the live Registry and never
// lock.
type Registry struct {
	bundle   *Bundle
	patterns []compiledPattern
}

// Snapshot is the atomically-published, immutable pair of (bundle,
// registry) readers use.
type Snapshot struct {
	Bundle   *Bundle
	Registry *Registry
}

// Registries owns the published Snapshot; callers swap it on every reload.
type Registries struct {
	current atomic.Pointer[Snapshot]
}

func (r *Registries) Publish(b *Bundle) {
	r.current.Store(&Snapshot{Bundle: b, Registry: Build(b)})
}

func (r *Registries) Current() *Snapshot {
	return r.current.Load()
}

// Build compiles a Registry from a Bundle's domain patterns. A pattern that
// fails to compile is dropped with no effect on the rest of the registry;
// there is no fatal path here because a registry rebuild must never crash
// the refresh task.
func Build(b *Bundle) *Registry {
	reg := &Registry{bundle: b}
	for _, p := range b.DomainPatterns {
		expr := globToRegex(p.Pattern)
		re, err := regexp.Compile(expr)
		if err != nil {
			continue
		}
		reg.patterns = append(reg.patterns, compiledPattern{provider: p.Provider, re: re})
	}
	return reg
}

// globToRegex turns a "*.example.com"-style glob into an anchored regex.
func globToRegex(glob string) string {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '.':
			b.WriteString(`\.`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteString("$")
	return b.String()
}

// DetectFromDomain resolves a Host header value to a provider id: exact
// index first, then compiled wildcard patterns in declaration order. Empty
// string means no match.
func (r *Registry) DetectFromDomain(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	if provider, ok := r.bundle.DomainIndex[host]; ok {
		return provider
	}
	for _, p := range r.patterns {
		if p.re.MatchString(host) {
			return p.provider
		}
	}
	return ""
}

// IsAIDomain is a cheap pre-filter the Decoder uses before attempting the
// more expensive body parse.
func (r *Registry) IsAIDomain(host string) bool {
	return r.DetectFromDomain(host) != ""
}

// DetectFromKeyPrefix classifies an Authorization/x-api-key value by
// longest matching declared prefix across all providers. Returns
// ("", "") on no match.
func (r *Registry) DetectFromKeyPrefix(key string) (providerID, prefix string) {
	bestLen := -1
	for id, p := range r.bundle.Providers {
		for _, candidate := range p.Auth.KeyPrefixes {
			if strings.HasPrefix(key, candidate) && len(candidate) > bestLen {
				providerID = id
				prefix = candidate
				bestLen = len(candidate)
			}
		}
	}
	return providerID, prefix
}

// PrefixForProvider classifies key against one provider's own declared
// prefixes (longest wins), used once the provider is already known from the
// request's domain so auth classification doesn't need to search globally.
func (r *Registry) PrefixForProvider(providerID, key string) string {
	p, ok := r.bundle.Providers[providerID]
	if !ok {
		return ""
	}
	best := ""
	for _, candidate := range p.Auth.KeyPrefixes {
		if strings.HasPrefix(key, candidate) && len(candidate) > len(best) {
			best = candidate
		}
	}
	return best
}

// Provider returns the ProviderSpec for an id, or ok=false.
func (r *Registry) Provider(id string) (ProviderSpec, bool) {
	p, ok := r.bundle.Providers[id]
	return p, ok
}

// ExtractionRules returns the ExtractionRuleSet for a provider id.
func (r *Registry) ExtractionRules(providerID string) (ExtractionRuleSet, bool) {
	rules, ok := r.bundle.ExtractionRules[providerID]
	return rules, ok
}

// Model looks up the registry entry for "provider/model_id".
func (r *Registry) Model(providerID, modelID string) (ModelSpec, bool) {
	m, ok := r.bundle.Models[providerID+"/"+modelID]
	return m, ok
}

// EstimateCostUSD computes spend from a model's per-1k pricing; nil when
// the model has no cost data.
func (r *Registry) EstimateCostUSD(providerID, modelID string, promptTokens, completionTokens int) *float64 {
	m, ok := r.Model(providerID, modelID)
	if !ok || m.InputCostPer1K == nil || m.OutputCostPer1K == nil {
		return nil
	}
	cost := float64(promptTokens)/1000.0*(*m.InputCostPer1K) + float64(completionTokens)/1000.0*(*m.OutputCostPer1K)
	return &cost
}

// ProviderIDs lists every known provider id.
func (r *Registry) ProviderIDs() []string {
	ids := make([]string, 0, len(r.bundle.Providers))
	for id := range r.bundle.Providers {
		ids = append(ids, id)
	}
	return ids
}

// DisplayName returns a provider's human-readable name, falling back to the
// id itself when unknown.
func (r *Registry) DisplayName(providerID string) string {
	if p, ok := r.bundle.Providers[providerID]; ok {
		return p.DisplayName
	}
	return providerID
}

// IsLocal reports whether a provider is a local/self-hosted model server.
func (r *Registry) IsLocal(providerID string) bool {
	p, ok := r.bundle.Providers[providerID]
	return ok && (p.Type == ProviderLocal || p.Type == ProviderSelfHosted)
}
