package fetch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// RobotsRules holds the Disallow prefixes of the first matching User-agent block.
// Disallow: /jobs forbids /jobs, /jobs/, /jobs-in-dubai and so on.
type RobotsRules struct {
	disallowPrefixes []string
	allowPrefixes    []string
}

// Allowed reports whether path may be fetched. Nil rules allow everything.
// A longer Allow prefix overrides a shorter Disallow prefix.
func (r *RobotsRules) Allowed(path string) bool {
	if r == nil || len(r.disallowPrefixes) == 0 {
		return true
	}
	path = normalizePath(path)
	longestDisallow := -1
	for _, prefix := range r.disallowPrefixes {
		if strings.HasPrefix(path, prefix) && len(prefix) > longestDisallow {
			longestDisallow = len(prefix)
		}
	}
	if longestDisallow < 0 {
		return true
	}
	for _, prefix := range r.allowPrefixes {
		if strings.HasPrefix(path, prefix) && len(prefix) >= longestDisallow {
			return true
		}
	}
	return false
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		return "/" + p
	}
	return p
}

// ParseRobots returns the rules of the first User-agent block matching
// userAgent exactly or "*".
func ParseRobots(body []byte, userAgent string) *RobotsRules {
	r := &RobotsRules{}
	scanner := bufio.NewScanner(strings.NewReader(string(body)))
	var inMatchingBlock, matched bool
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case "user-agent":
			inMatchingBlock = !matched && (value == "*" || strings.EqualFold(value, userAgent))
			if inMatchingBlock {
				matched = true
			}
		case "disallow":
			if inMatchingBlock && value != "" {
				r.disallowPrefixes = append(r.disallowPrefixes, normalizePath(value))
			}
		case "allow":
			if inMatchingBlock && value != "" {
				r.allowPrefixes = append(r.allowPrefixes, normalizePath(value))
			}
		}
	}
	return r
}

// PathFromURL returns the path component of rawURL, or "" if parsing fails.
func PathFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return normalizePath(u.Path)
}

// fetchRobots retrieves /robots.txt for the URL's origin. Fetching robots.txt
// itself is always allowed.
func fetchRobots(ctx context.Context, client *http.Client, origin *url.URL, userAgent string) ([]byte, error) {
	u := *origin
	u.Path = "/robots.txt"
	u.RawQuery = ""
	u.Fragment = ""
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("robots.txt fetch %s: status %d", u.String(), resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 512<<10))
}

type robotsEntry struct {
	once  sync.Once
	rules *RobotsRules
}

// robotsCache loads robots.txt once per scheme+host.
type robotsCache struct {
	mu      sync.Mutex
	entries map[string]*robotsEntry
	load    func(ctx context.Context, origin *url.URL) (*RobotsRules, error)
	onError func(host string, err error)
}

func (c *robotsCache) rules(ctx context.Context, u *url.URL) *RobotsRules {
	key := strings.ToLower(u.Scheme + "://" + u.Host)
	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		entry = &robotsEntry{}
		c.entries[key] = entry
	}
	c.mu.Unlock()

	entry.once.Do(func() {
		rules, err := c.load(ctx, u)
		if err != nil {
			// Unreachable robots.txt means no restrictions.
			if c.onError != nil {
				c.onError(u.Host, err)
			}
			return
		}
		entry.rules = rules
	})
	return entry.rules
}
