// Package appregistry classifies the process that originated a captured
// connection against a registry of known application profiles, yielding a
// three-tier identification used by the enrichment chain.
package appregistry

// Tier is the confidence level of an app-identity match.
type Tier string

const (
	TierUnknown    Tier = "unknown"
	TierIdentified Tier = "identified" // name only, no full profile
	TierProfiled   Tier = "profiled"   // full profile matched
)

// MacSignature matches a macOS process by bundle id (including known helper
// bundles) and optionally its code-signing team id.
type MacSignature struct {
	BundleID       string   `yaml:"bundle_id,omitempty"`
	HelperBundles  []string `yaml:"helper_bundles,omitempty"`
	CodeSignTeamID string   `yaml:"codesign_team_id,omitempty"`
}

// PathSignature matches a process by glob over its executable path, used on
// platforms without a bundle/team-id concept (Windows, Linux).
type PathSignature struct {
	PathGlobs []string `yaml:"path_globs,omitempty"`
}

// Signature is the full set of platform-specific identity rules one profile
// may declare; any subset may be populated.
type Signature struct {
	Mac         MacSignature  `yaml:"mac,omitempty"`
	Path        PathSignature `yaml:"path,omitempty"`
	ProcessName string        `yaml:"process_name,omitempty"` // weak match, yields Identified only
}

// TrafficPattern optionally constrains a profile match to requests seen on
// particular destination hosts; unused by the priority ladder itself but
// available to consumers that want to cross-check.
type TrafficPattern struct {
	Hosts []string `yaml:"hosts,omitempty"`
}

// Profile is one known application's identity and metadata, as loaded from
// a single YAML file in the app registry directory (or compiled in as a
// built-in web-app profile).
type Profile struct {
	AppID           string            `yaml:"app_id"`
	Name            string            `yaml:"name"`
	Tier            string            `yaml:"tier,omitempty"` // informational; consumer/agent/browser/etc.
	Signature       Signature         `yaml:"signature"`
	TrafficPatterns []TrafficPattern  `yaml:"traffic_patterns,omitempty"`
	Metadata        map[string]string `yaml:"metadata,omitempty"`
	IsBrowser       bool              `yaml:"is_browser,omitempty"`
	// WebOrigins lists Origin/Referer origins (scheme plus host, e.g.
	// "https://claude.ai") this profile claims when
	// matched as a browser tab's web-app identity rather than a native
	// process identity.
	WebOrigins []string `yaml:"web_origins,omitempty"`
}

// MatchResult is the outcome of classifying one process/request against
// the registry.
type MatchResult struct {
	Tier    Tier
	Profile *Profile // nil unless Tier == TierProfiled or TierIdentified
}
