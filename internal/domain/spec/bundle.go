// Package spec loads and indexes the versioned catalog of AI providers,
// domains, auth prefixes, extraction rules, and the model registry that
// drives the Decoder's dynamic parsing.
package spec

// Bundle is the top-level document, matching the on-disk JSON shape:
// version, bundle_version, generated_at, source, providers, domain_index,
// domain_patterns, extraction_rules, fingerprints, models, model_stats.
type Bundle struct {
	Schema         string                     `json:"$schema,omitempty"`
	Version        string                     `json:"version"`
	BundleVersion  string                     `json:"bundle_version"`
	GeneratedAt    string                     `json:"generated_at"`
	Source         string                     `json:"source"`
	Providers      map[string]ProviderSpec    `json:"providers"`
	DomainIndex    map[string]string          `json:"domain_index"`
	DomainPatterns []DomainPattern            `json:"domain_patterns"`
	ExtractionRules map[string]ExtractionRuleSet `json:"extraction_rules"`
	Fingerprints   map[string]any             `json:"fingerprints,omitempty"`
	Models         map[string]ModelSpec       `json:"models,omitempty"`
	ModelStats     ModelStats                 `json:"model_stats,omitempty"`
}

// ProviderType distinguishes cloud APIs from locally-hosted model servers.
type ProviderType string

const (
	ProviderCloud      ProviderType = "cloud"
	ProviderLocal      ProviderType = "local"
	ProviderSelfHosted ProviderType = "self_hosted"
)

// ProviderStyle selects which hardcoded structural parser the Decoder uses
// for messages/choices/usage shapes that are too structural for a flat
// JSONPath selector to express cleanly.
type ProviderStyle string

const (
	StyleOpenAI    ProviderStyle = "openai"
	StyleAnthropic ProviderStyle = "anthropic"
	StyleGeneric   ProviderStyle = "generic"
)

// ProviderSpec describes one AI provider.
type ProviderSpec struct {
	ID             string       `json:"id"`
	DisplayName    string       `json:"display_name"`
	Type           ProviderType `json:"type,omitempty"`
	Style          ProviderStyle `json:"style,omitempty"`
	Domains        []string     `json:"domains,omitempty"`
	Features       []string     `json:"features,omitempty"`
	Auth           AuthSpec     `json:"auth,omitempty"`
	LitellmProvider string      `json:"litellm_provider,omitempty"`
}

// AuthSpec describes how a provider authenticates requests.
type AuthSpec struct {
	Type        string   `json:"type,omitempty"`
	Header      string   `json:"header,omitempty"`
	Prefix      string   `json:"prefix,omitempty"`
	KeyPrefixes []string `json:"key_prefixes,omitempty"`
}

// DomainPattern is a wildcard domain rule pre-compiled by the registry into
// a regex at load time.
type DomainPattern struct {
	Pattern  string `json:"pattern"`
	Provider string `json:"provider"`
}

// ExtractionRuleSet is the set of parsing rules for one provider.
type ExtractionRuleSet struct {
	Endpoints      map[string]EndpointRules  `json:"endpoints"`
	ResponseHeaders map[string]string        `json:"response_headers,omitempty"`
}

// EndpointRules describes how to recognize and parse requests to one
// endpoint of a provider's API.
type EndpointRules struct {
	Path               string              `json:"path"`
	Method             string              `json:"method"`
	RequestType        string              `json:"request_type"`
	Streaming          StreamingIndicator  `json:"streaming,omitempty"`
	// RequestExtraction/ResponseExtraction map a canonical field name to a
	// gjson path selector into the request/response JSON body.
	RequestExtraction  map[string]string   `json:"request_extraction,omitempty"`
	ResponseExtraction map[string]string   `json:"response_extraction,omitempty"`
}

// StreamingIndicator can be unmarshaled from a bare boolean ("streaming
// supported") or a structured object naming the request field that flags
// streaming; see UnmarshalJSON.
type StreamingIndicator struct {
	ContentType string          `json:"content_type,omitempty"`
	Indicator   *StreamingCheck `json:"indicator,omitempty"`
}

// StreamingCheck names the request body field whose presence/value marks a
// request as streaming.
type StreamingCheck struct {
	BodyField string `json:"body_field"`
	Value     any    `json:"value"`
}

// ModelSpec is one entry of the model registry, keyed "provider/model_id".
type ModelSpec struct {
	ID              string   `json:"id"`
	LitellmID       string   `json:"litellm_id,omitempty"`
	Provider        string   `json:"provider"`
	Mode            string   `json:"mode,omitempty"`
	ContextWindow   *FlexInt `json:"context_window,omitempty"`
	MaxOutputTokens *FlexInt `json:"max_output_tokens,omitempty"`
	InputCostPer1K  *float64 `json:"input_cost_per_1k,omitempty"`
	OutputCostPer1K *float64 `json:"output_cost_per_1k,omitempty"`
	Deprecated      bool     `json:"deprecated,omitempty"`
}

// ModelStats tracks aggregate usage the bundle publisher computed; the
// sensor only reads it, it never writes back.
type ModelStats struct {
	TotalModels int `json:"total_models,omitempty"`
}
