package fetch

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"
)

const defaultConnectTimeout = 10 * time.Second

// proxyPool holds one HTTP client per egress. With no proxies it holds a
// single direct client.
type proxyPool struct {
	proxies []string
	clients []*http.Client
	next    atomic.Uint64
}

func newProxyPool(proxies []string, timeout time.Duration) (*proxyPool, error) {
	p := &proxyPool{}
	if len(proxies) == 0 {
		p.proxies = []string{""}
		p.clients = []*http.Client{buildHTTPClient(nil, timeout)}
		return p, nil
	}
	for _, raw := range proxies {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("fetch: invalid proxy %q", raw)
		}
		p.proxies = append(p.proxies, raw)
		p.clients = append(p.clients, buildHTTPClient(u, timeout))
	}
	return p, nil
}

// buildHTTPClient returns a client with explicit connect and response-header
// timeouts so a hung request releases its fetch slot.
func buildHTTPClient(proxy *url.URL, timeout time.Duration) *http.Client {
	connect := defaultConnectTimeout
	if timeout > 0 && timeout < connect {
		connect = timeout
	}
	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: connect}).DialContext,
		ResponseHeaderTimeout: timeout,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
	}
	if proxy != nil {
		transport.Proxy = http.ProxyURL(proxy)
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// start returns the round-robin index for a new fetch.
func (p *proxyPool) start() int {
	return int((p.next.Add(1) - 1) % uint64(len(p.clients)))
}

func (p *proxyPool) rotate(idx int) int {
	return (idx + 1) % len(p.clients)
}

func (p *proxyPool) client(idx int) *http.Client {
	return p.clients[idx]
}

func (p *proxyPool) label(idx int) string {
	if p.proxies[idx] == "" {
		return "direct"
	}
	return p.proxies[idx]
}

func (p *proxyPool) size() int {
	return len(p.clients)
}
