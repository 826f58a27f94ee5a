package fetch

import (
	"math/rand/v2"
	"net/http"
)

// DefaultUserAgent identifies the scraper when no browser profile is wanted.
const DefaultUserAgent = "RelentlessJobs/1.0 (+https://github.com/relentless-jobs)"

type headerSet struct {
	UserAgent      string
	AcceptLanguage string
}

var defaultHeaderPool = []headerSet{
	{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		AcceptLanguage: "en-US,en;q=0.9",
	},
	{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		AcceptLanguage: "en-GB,en;q=0.9",
	},
	{
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
		AcceptLanguage: "en-US,en;q=0.8,ar;q=0.6",
	},
	{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
		AcceptLanguage: "en-AE,en;q=0.9,ar;q=0.7",
	},
}

type headerPool struct {
	sets []headerSet
	pick func(n int) int
}

// newHeaderPool uses the built-in pool; a non-empty userAgent pins the UA
// while Accept-Language keeps rotating.
func newHeaderPool(userAgent string) *headerPool {
	sets := make([]headerSet, len(defaultHeaderPool))
	copy(sets, defaultHeaderPool)
	if userAgent != "" {
		for i := range sets {
			sets[i].UserAgent = userAgent
		}
	}
	return &headerPool{sets: sets, pick: rand.IntN}
}

func (p *headerPool) apply(req *http.Request) headerSet {
	set := p.sets[p.pick(len(p.sets))]
	req.Header.Set("User-Agent", set.UserAgent)
	req.Header.Set("Accept-Language", set.AcceptLanguage)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	return set
}
