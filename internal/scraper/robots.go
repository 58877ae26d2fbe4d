package scraper

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// robotsAgent is the user-agent token matched against robots.txt groups.
const robotsAgent = "newsblend"

// RobotsPolicy fetches, caches and enforces robots.txt per host. A missing
// or unreachable robots.txt allows everything.
type RobotsPolicy struct {
	agent  string
	client *http.Client
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]*robotsRules
}

// robotsRules are the parsed rules of one host that apply to our agent.
type robotsRules struct {
	allowed    []string
	disallowed []string
	fetchedAt  time.Time
}

// NewRobotsPolicy creates a policy whose rules are refreshed after ttl.
func NewRobotsPolicy(timeout, ttl time.Duration) *RobotsPolicy {
	return &RobotsPolicy{
		agent:  robotsAgent,
		client: &http.Client{Timeout: timeout},
		ttl:    ttl,
		now:    time.Now,
		cache:  make(map[string]*robotsRules),
	}
}

// Allowed reports whether rawURL may be fetched.
func (rp *RobotsPolicy) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}
	rules := rp.rulesFor(ctx, u.Scheme+"://"+u.Host)
	if rules == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return rules.allows(path)
}

func (rp *RobotsPolicy) rulesFor(ctx context.Context, origin string) *robotsRules {
	rp.mu.Lock()
	rules, ok := rp.cache[origin]
	rp.mu.Unlock()
	if ok && (rules == nil || rp.now().Sub(rules.fetchedAt) < rp.ttl) {
		return rules
	}

	rules = rp.fetch(ctx, origin)

	rp.mu.Lock()
	rp.cache[origin] = rules
	rp.mu.Unlock()
	return rules
}

func (rp *RobotsPolicy) fetch(ctx context.Context, origin string) *robotsRules {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	resp, err := rp.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	rules := parseRobots(io.LimitReader(resp.Body, 512*1024), rp.agent)
	rules.fetchedAt = rp.now()
	return rules
}

// parseRobots collects the rules of the groups addressed to agent or to *.
// A group naming agent explicitly replaces the * group.
func parseRobots(r io.Reader, agent string) *robotsRules {
	var (
		star, own       robotsRules
		inStar, inOwn   bool
		ownSeen         bool
		lastWasAgentRow bool
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			if !lastWasAgentRow {
				inStar, inOwn = false, false
			}
			ua := strings.ToLower(value)
			if ua == "*" {
				inStar = true
			} else if strings.Contains(ua, agent) {
				inOwn, ownSeen = true, true
			}
			lastWasAgentRow = true
			continue
		case "allow", "disallow":
			if value == "" {
				break
			}
			for _, g := range []struct {
				in    bool
				rules *robotsRules
			}{{inStar, &star}, {inOwn, &own}} {
				if !g.in {
					continue
				}
				if key == "allow" {
					g.rules.allowed = append(g.rules.allowed, value)
				} else {
					g.rules.disallowed = append(g.rules.disallowed, value)
				}
			}
		}
		lastWasAgentRow = false
	}

	if ownSeen {
		return &own
	}
	return &star
}

// allows applies the longest matching rule; allow wins ties.
func (r *robotsRules) allows(path string) bool {
	best, allowed := -1, true
	for _, p := range r.disallowed {
		if matchRobotsPattern(p, path) && len(p) > best {
			best, allowed = len(p), false
		}
	}
	for _, p := range r.allowed {
		if matchRobotsPattern(p, path) && len(p) >= best {
			best, allowed = len(p), true
		}
	}
	return allowed
}

// matchRobotsPattern matches a path against a robots.txt pattern with *
// wildcards and a $ end anchor.
func matchRobotsPattern(pattern, path string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	pattern = strings.TrimSuffix(pattern, "$")

	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(path, parts[0]) {
		return false
	}
	pos := len(parts[0])
	if len(parts) == 1 {
		return !anchored || pos == len(path)
	}

	last := len(parts) - 1
	for _, part := range parts[1:last] {
		i := strings.Index(path[pos:], part)
		if i < 0 {
			return false
		}
		pos += i + len(part)
	}
	if anchored {
		return strings.HasSuffix(path[pos:], parts[last])
	}
	return strings.Contains(path[pos:], parts[last])
}
