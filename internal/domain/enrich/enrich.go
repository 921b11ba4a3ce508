// Package enrich runs the ordered, idempotent enrichment chain over a
// canonical event before redaction/policy: host identity, process-tree
// ancestry, and app/web-app identification.
package enrich

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/oisp/sensor/internal/domain/appregistry"
	"github.com/oisp/sensor/internal/domain/event"
)

// ProcessTree answers ancestor-walk questions for a pid; the real
// implementation reads /proc on Linux or platform equivalents. It is an
// interface so the chain can be tested without a live process table.
type ProcessTree struct {
	// Lookup resolves one pid to its parent pid, comm, and exe path.
	// ok=false means the pid could not be resolved (already exited, or
	// platform unsupported).
	Lookup func(pid int) (ppid int, comm, exe string, ok bool)
}

// Chain runs the host, process-tree, and app enrichers in order.
type Chain struct {
	hostOnce sync.Once
	host     event.Host

	Tree     ProcessTree
	Apps     *appregistry.Registry
	MaxDepth int // ancestor-walk depth cap; defaults to 32
}

func NewChain(tree ProcessTree, apps *appregistry.Registry) *Chain {
	return &Chain{Tree: tree, Apps: apps, MaxDepth: 32}
}

// Enrich mutates ev in place, adding host identity, process ancestry, and
// app classification. It never fails: missing platform data is simply left
// unset, per the enricher chain's idempotent, best-effort contract.
func (c *Chain) Enrich(ev *event.Event) {
	ev.Host = c.hostIdentity()
	if ev.Process != nil {
		c.enrichProcessTree(ev.Process)
		c.enrichApp(ev)
	}
}

// hostIdentity is computed once per process lifetime and cached, since
// hostname/OS/arch never change while the sensor runs.
func (c *Chain) hostIdentity() event.Host {
	c.hostOnce.Do(func() {
		hostname, _ := os.Hostname()
		c.host = event.Host{
			Hostname: hostname,
			DeviceID: deviceID(hostname),
			OS:       runtime.GOOS,
			Arch:     runtime.GOARCH,
		}
	})
	return c.host
}

// deviceID is a stable-enough per-host identifier when no platform keychain
// is available; real deployments may override this with a provisioned id.
func deviceID(hostname string) string {
	if hostname == "" {
		return ""
	}
	return "host-" + strconv.FormatUint(uint64(fnv1a(hostname)), 16)
}

func fnv1a(s string) uint32 {
	const offset32 = 2166136261
	const prime32 = 16777619
	h := uint32(offset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}

// enrichProcessTree walks ancestors up to MaxDepth, filling the ppid chain
// and the owning process's own exe/comm when the caller didn't already set
// them from the capture record.
func (c *Chain) enrichProcessTree(p *event.Process) {
	if c.Tree.Lookup == nil {
		return
	}
	if p.PPID == 0 || p.Exe == "" {
		if ppid, comm, exe, ok := c.Tree.Lookup(p.PID); ok {
			if p.PPID == 0 {
				p.PPID = ppid
			}
			if p.Exe == "" {
				p.Exe = exe
			}
			if p.Comm == "" {
				p.Comm = comm
			}
		}
	}

	ancestors := make([]int, 0, c.MaxDepth)
	pid := p.PPID
	for depth := 0; depth < c.MaxDepth && pid > 1; depth++ {
		ancestors = append(ancestors, pid)
		ppid, _, _, ok := c.Tree.Lookup(pid)
		if !ok || ppid == pid {
			break
		}
		pid = ppid
	}
	if len(ancestors) > 0 {
		p.Ancestors = ancestors
	}
}

// enrichApp matches the owning process against the App Registry using the
// fixed priority ladder, and for browser matches extracts web-app identity
// from Origin/Referer when the event carries ai.request attrs holding
// those headers.
func (c *Chain) enrichApp(ev *event.Event) {
	if c.Apps == nil || ev.Process == nil {
		return
	}
	comm := ev.Process.Comm
	exe := ev.Process.Exe
	result := c.Apps.Match(appregistry.ProcessIdentity{
		Exe:            exe,
		ProcessName:    comm,
		BundleID:       ev.Process.SigningID,
		CodeSignTeamID: "",
	})

	switch result.Tier {
	case appregistry.TierProfiled:
		ev.Process.AppID = result.Profile.AppID
		ev.Process.AppName = result.Profile.Name
		ev.Process.AppTier = string(result.Tier)
		ev.Process.IsBrowser = result.Profile.IsBrowser
	case appregistry.TierIdentified:
		ev.Process.AppName = result.Profile.Name
		ev.Process.AppTier = string(result.Tier)
	default:
		ev.Process.AppTier = string(appregistry.TierUnknown)
	}

	if !ev.Process.IsBrowser || ev.AIRequest == nil {
		return
	}
	origin, _ := ev.Attrs["origin"].(string)
	referer, _ := ev.Attrs["referer"].(string)
	if origin == "" && referer == "" {
		return
	}
	if webApp, ok := c.Apps.MatchWebApp(origin, referer); ok {
		ev.Process.AppID = webApp.AppID
		ev.Process.AppName = webApp.Name
		ev.Process.AppTier = string(appregistry.TierProfiled)
	}
}

// SplitOrigin extracts the scheme+host portion of an Origin/Referer header
// value, trimming any path/query a Referer carries.
func SplitOrigin(raw string) string {
	if idx := strings.Index(raw, "://"); idx >= 0 {
		rest := raw[idx+3:]
		if slash := strings.IndexByte(rest, '/'); slash >= 0 {
			return raw[:idx+3+slash]
		}
	}
	return raw
}
