package decode

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/oisp/sensor/internal/domain/spec"
)

// matchEndpoint finds the EndpointRules whose path pattern matches the
// request path, supporting "{placeholder}" and "{placeholder}:suffix"
// segments. Falls back to the first endpoint whose request_type is "chat"
// when nothing matches, per the decoder's no-match fallback rule.
func matchEndpoint(rules spec.ExtractionRuleSet, path string) (spec.EndpointRules, bool) {
	reqSegs := strings.Split(strings.Trim(path, "/"), "/")

	var fallback spec.EndpointRules
	haveFallback := false

	for _, ep := range rules.Endpoints {
		if pathPatternMatches(ep.Path, reqSegs) {
			return ep, true
		}
		if !haveFallback && ep.RequestType == "chat" {
			fallback = ep
			haveFallback = true
		}
	}
	return fallback, haveFallback
}

func pathPatternMatches(pattern string, reqSegs []string) bool {
	patSegs := strings.Split(strings.Trim(pattern, "/"), "/")
	if len(patSegs) != len(reqSegs) {
		return false
	}
	for i, seg := range patSegs {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			inner := seg[1 : len(seg)-1]
			if idx := strings.IndexByte(inner, ':'); idx >= 0 {
				suffix := inner[idx+1:]
				if !strings.HasSuffix(reqSegs[i], suffix) {
					return false
				}
			}
			continue // placeholder matches anything (with optional suffix check above)
		}
		if seg != reqSegs[i] {
			return false
		}
	}
	return true
}

// extractFields runs each gjson path selector in rules against body,
// returning only the fields that resolved to a value.
func extractFields(body []byte, rules map[string]string) map[string]gjson.Result {
	out := make(map[string]gjson.Result, len(rules))
	json := string(body)
	for field, path := range rules {
		res := gjson.Get(json, path)
		if res.Exists() {
			out[field] = res
		}
	}
	return out
}

// isStreamingRequest evaluates an EndpointRules' StreamingIndicator against
// the parsed request body.
func isStreamingRequest(body []byte, ind spec.StreamingIndicator) bool {
	if ind.Indicator == nil {
		return false
	}
	res := gjson.GetBytes(body, ind.Indicator.BodyField)
	if !res.Exists() {
		return false
	}
	switch v := ind.Indicator.Value.(type) {
	case bool:
		return res.Bool() == v
	case string:
		return res.String() == v
	default:
		return res.Bool()
	}
}

// looksLikeAIPayload is the cheap shape check that rejects requests which
// clearly aren't AI payloads before the more expensive extraction runs.
func looksLikeAIPayload(body []byte) bool {
	if !gjson.ValidBytes(body) {
		return false
	}
	root := gjson.ParseBytes(body)
	return root.IsObject() && (root.Get("model").Exists() || root.Get("messages").Exists() || root.Get("input").Exists())
}
