package appregistry

import (
	"strings"
)

// ProcessIdentity is the subset of process facts the registry matches
// against; callers populate whatever their platform can observe.
type ProcessIdentity struct {
	Exe            string
	ProcessName    string
	BundleID       string
	CodeSignTeamID string
}

// Registry indexes Profiles for process/web-app classification. Built once
// from a directory of YAML profiles plus the compiled-in web-app table, and
// read without locking — callers hold an immutable snapshot the same way
// the Provider Registry does.
type Registry struct {
	apps           map[string]*Profile
	bundleIndex    map[string]string // bundle id -> app_id
	teamIDIndex    map[string]string // team id -> app_id
	pathPatterns   []pathRule
	namePatterns   map[string]string // lowercased process name -> app_id
	webApps        []*Profile
	browserAppIDs  map[string]bool
}

type pathRule struct {
	glob  string
	appID string
}

func NewRegistry() *Registry {
	r := &Registry{
		apps:          make(map[string]*Profile),
		bundleIndex:   make(map[string]string),
		teamIDIndex:   make(map[string]string),
		namePatterns:  make(map[string]string),
		browserAppIDs: make(map[string]bool),
	}
	r.loadBuiltinWebApps()
	return r
}

// AddProfile indexes one profile loaded from the app registry directory.
func (r *Registry) AddProfile(p *Profile) {
	r.apps[p.AppID] = p
	if p.Signature.Mac.BundleID != "" {
		r.bundleIndex[p.Signature.Mac.BundleID] = p.AppID
	}
	for _, helper := range p.Signature.Mac.HelperBundles {
		r.bundleIndex[helper] = p.AppID
	}
	if p.Signature.Mac.CodeSignTeamID != "" {
		r.teamIDIndex[p.Signature.Mac.CodeSignTeamID] = p.AppID
	}
	for _, glob := range p.Signature.Path.PathGlobs {
		r.pathPatterns = append(r.pathPatterns, pathRule{glob: glob, appID: p.AppID})
	}
	if p.Signature.ProcessName != "" {
		r.namePatterns[strings.ToLower(p.Signature.ProcessName)] = p.AppID
	}
	if p.IsBrowser {
		r.browserAppIDs[p.AppID] = true
	}
}

// Match classifies a process identity against the registry following the
// fixed priority: bundle id -> team id -> path pattern -> process name.
// Bundle id, team id, and path matches yield Profiled; process-name match
// alone yields only Identified, since it is the weakest signal.
func (r *Registry) Match(proc ProcessIdentity) MatchResult {
	if proc.BundleID != "" {
		if appID, ok := r.bundleIndex[proc.BundleID]; ok {
			if p, ok := r.apps[appID]; ok {
				return MatchResult{Tier: TierProfiled, Profile: p}
			}
		}
	}
	if proc.CodeSignTeamID != "" {
		if appID, ok := r.teamIDIndex[proc.CodeSignTeamID]; ok {
			if p, ok := r.apps[appID]; ok {
				return MatchResult{Tier: TierProfiled, Profile: p}
			}
		}
	}
	if proc.Exe != "" {
		for _, rule := range r.pathPatterns {
			if globMatch(rule.glob, proc.Exe) {
				if p, ok := r.apps[rule.appID]; ok {
					return MatchResult{Tier: TierProfiled, Profile: p}
				}
			}
		}
	}
	if proc.ProcessName != "" {
		if appID, ok := r.namePatterns[strings.ToLower(proc.ProcessName)]; ok {
			if p, ok := r.apps[appID]; ok {
				return MatchResult{Tier: TierIdentified, Profile: p}
			}
		}
	}
	return MatchResult{Tier: TierUnknown}
}

// IsBrowser reports whether a matched app id is registered as a browser.
func (r *Registry) IsBrowser(appID string) bool {
	return r.browserAppIDs[appID]
}

// MatchWebApp classifies a request's Origin (preferred) or Referer header
// against the compiled web-app table.
func (r *Registry) MatchWebApp(origin, referer string) (*Profile, bool) {
	if origin != "" {
		if p, ok := matchHost(r.webApps, origin); ok {
			return p, true
		}
	}
	if referer != "" {
		if p, ok := matchHost(r.webApps, referer); ok {
			return p, true
		}
	}
	return nil, false
}

func matchHost(profiles []*Profile, raw string) (*Profile, bool) {
	for _, p := range profiles {
		for _, pattern := range p.WebOrigins {
			if hostMatches(raw, pattern) {
				return p, true
			}
		}
	}
	return nil, false
}

// hostMatches compares a raw Origin/Referer header value against a declared
// origin pattern by prefix, so a Referer carrying a path still matches an
// origin-only pattern.
func hostMatches(raw, pattern string) bool {
	return strings.HasPrefix(raw, pattern)
}

// globMatch supports "*" wildcard segments the way the app registry's path
// patterns are authored (e.g. "/Applications/*.app/Contents/MacOS/*").
func globMatch(pattern, path string) bool {
	return globMatchParts(strings.Split(pattern, "*"), path)
}

// globMatchParts checks that path contains each literal segment of the
// pattern (split on "*") in order, anchoring the first segment to the start
// and the last to the end when the pattern doesn't begin/end with "*".
func globMatchParts(parts []string, path string) bool {
	if len(parts) == 0 {
		return true
	}
	if !strings.HasPrefix(path, parts[0]) {
		return false
	}
	rest := path[len(parts[0]):]
	for i := 1; i < len(parts); i++ {
		part := parts[i]
		if part == "" {
			continue
		}
		idx := strings.Index(rest, part)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(part):]
	}
	if last := parts[len(parts)-1]; last != "" {
		return strings.HasSuffix(path, last)
	}
	return true
}
