package discovery

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/sourcecache"
)

// DefaultCacheTTL is how long a process scan is reused.
const DefaultCacheTTL = 30 * time.Second

// Pattern selects processes by command line and extracts their credentials.
type Pattern struct {
	Contains []string       // case-insensitive substrings that must all appear
	Token    *regexp.Regexp // first submatch is the auth token
	PortHint *regexp.Regexp // optional; first submatch is a port
}

type Match struct {
	PID      int
	Token    string
	PortHint int
}

// Target is a matched process with the ports worth probing, hint first.
type Target struct {
	PID   int
	Token string
	Ports []int
}

// FindMatches keeps processes whose command line matches p and carries a
// token. Only the first matching entry per PID is considered.
func FindMatches(procs []Process, p Pattern) []Match {
	var out []Match
	seen := make(map[int]bool)
	for _, proc := range procs {
		if seen[proc.PID] || !containsAll(proc.CmdLine, p.Contains) {
			continue
		}
		seen[proc.PID] = true
		token := firstSubmatch(p.Token, proc.CmdLine)
		if token == "" {
			continue
		}
		m := Match{PID: proc.PID, Token: token}
		if hint := firstSubmatch(p.PortHint, proc.CmdLine); hint != "" {
			if port, err := strconv.Atoi(hint); err == nil && port > 0 && port <= 65535 {
				m.PortHint = port
			}
		}
		out = append(out, m)
	}
	return out
}

// Candidates orders the port hint before the observed listening ports and
// drops duplicates.
func Candidates(hint int, listening []int) []int {
	ports := make([]int, 0, len(listening)+1)
	if hint > 0 {
		ports = append(ports, hint)
	}
	ports = append(ports, lo.Filter(listening, func(p int, _ int) bool { return p > 0 })...)
	return lo.Uniq(ports)
}

type Endpoint struct {
	Scheme string
	Port   int
}

func (e Endpoint) BaseURL() string {
	return fmt.Sprintf("%s://127.0.0.1:%d", e.Scheme, e.Port)
}

var schemes = []string{"https", "http"}

// Probe tries each port over https and then http, returning the first
// endpoint for which try succeeds. When every attempt fails the last error is
// returned as a discovery failure.
func Probe(ctx context.Context, ports []int, try func(context.Context, Endpoint) error) (Endpoint, error) {
	if len(ports) == 0 {
		return Endpoint{}, core.Errorf(core.KindDiscoveryFailed, "no candidate ports")
	}
	var lastErr error
	for _, port := range ports {
		for _, scheme := range schemes {
			if err := ctx.Err(); err != nil {
				return Endpoint{}, core.WrapError(core.KindTimeout, "probe cancelled", err)
			}
			ep := Endpoint{Scheme: scheme, Port: port}
			if err := try(ctx, ep); err != nil {
				lastErr = fmt.Errorf("%s: %w", ep.BaseURL(), err)
				continue
			}
			return ep, nil
		}
	}
	return Endpoint{}, core.WrapError(core.KindDiscoveryFailed, "no candidate port answered", lastErr)
}

// Discoverer finds local processes matching a pattern. Scans are cached for
// the configured TTL; probes are never cached.
type Discoverer struct {
	pattern Pattern
	procs   ProcessLister
	ports   PortLister
	cache   *sourcecache.TTL[[]Target]
}

func NewDiscoverer(p Pattern, procs ProcessLister, ports PortLister, ttl time.Duration, now func() time.Time) *Discoverer {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Discoverer{
		pattern: p,
		procs:   procs,
		ports:   ports,
		cache:   sourcecache.NewTTL[[]Target](ttl, now),
	}
}

// Targets returns the cached scan when it is fresh, otherwise scans again.
// An empty result is cached like any other.
func (d *Discoverer) Targets(ctx context.Context) ([]Target, error) {
	return d.cache.Get(ctx, d.scan)
}

func (d *Discoverer) Invalidate() {
	d.cache.Invalidate()
}

func (d *Discoverer) scan(ctx context.Context) ([]Target, error) {
	procs, err := d.procs.List(ctx)
	if err != nil {
		return nil, core.WrapError(core.KindDiscoveryFailed, "listing processes", err)
	}
	matches := FindMatches(procs, d.pattern)
	targets := make([]Target, 0, len(matches))
	for _, m := range matches {
		var listening []int
		if d.ports != nil {
			listening, err = d.ports.ListeningPorts(ctx, m.PID)
			if err != nil {
				log.Printf("[discovery] listing ports for pid %d: %v", m.PID, err)
			}
		}
		targets = append(targets, Target{PID: m.PID, Token: m.Token, Ports: Candidates(m.PortHint, listening)})
	}
	log.Printf("[discovery] scan found %d of %d processes matching %v", len(targets), len(procs), d.pattern.Contains)
	return targets, nil
}

func containsAll(s string, parts []string) bool {
	lower := strings.ToLower(s)
	for _, p := range parts {
		if !strings.Contains(lower, strings.ToLower(p)) {
			return false
		}
	}
	return true
}

func firstSubmatch(re *regexp.Regexp, s string) string {
	if re == nil {
		return ""
	}
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
