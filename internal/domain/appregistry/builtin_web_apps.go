package appregistry

// loadBuiltinWebApps compiles in the common AI web-app Origin/Referer
// matches, ported in spirit from the original registry's built-in table so
// browser traffic to these products is recognized without a directory of
// profile files. These entries are reached only through MatchWebApp, from a
// process that already matched a native browser profile (IsBrowser true on
// that profile, loaded separately); they don't need IsBrowser themselves.
func (r *Registry) loadBuiltinWebApps() {
	builtins := []*Profile{
		{
			AppID:      "chatgpt-web",
			Name:       "ChatGPT",
			WebOrigins: []string{"https://chat.openai.com", "https://chatgpt.com"},
		},
		{
			AppID:      "claude-web",
			Name:       "Claude",
			WebOrigins: []string{"https://claude.ai"},
		},
		{
			AppID:      "gemini-web",
			Name:       "Gemini",
			WebOrigins: []string{"https://gemini.google.com"},
		},
		{
			AppID:      "perplexity-web",
			Name:       "Perplexity",
			WebOrigins: []string{"https://www.perplexity.ai", "https://perplexity.ai"},
		},
		{
			AppID:      "poe-web",
			Name:       "Poe",
			WebOrigins: []string{"https://poe.com"},
		},
		{
			AppID:      "huggingface-web",
			Name:       "Hugging Face Chat",
			WebOrigins: []string{"https://huggingface.co"},
		},
	}
	for _, p := range builtins {
		r.webApps = append(r.webApps, p)
		r.apps[p.AppID] = p
	}
}
