package crawler

import (
	"context"
	"sync"

	"relentless-jobs/internal/models"
)

// Admission is the coordinator's answer to a candidate link.
type Admission int

const (
	Admitted Admission = iota
	Duplicate
	CapReached
)

func (a Admission) String() string {
	switch a {
	case Admitted:
		return "admitted"
	case Duplicate:
		return "duplicate"
	default:
		return "cap_reached"
	}
}

type emitted struct {
	record  models.JobRecord
	ordinal models.Ordinal
}

// coordinator is the single owner of run state: the seen set, cap accounting,
// per-search cursors, anomalies and failures. Workers only call its methods.
//
// The seen set remembers the lowest ordinal that claimed each link. A listing
// admitted by one walker and later offered by an earlier search URL is
// credited to that earlier source, so provenance does not depend on which
// walker fetched first.
//
// Admit reserves a cap slot; Complete turns the slot into an emitted record or
// frees it. While emitted+reserved == cap, callers wait for a reservation to
// resolve, so the cap bounds post-dedup, post-drop records exactly.
type coordinator struct {
	mu        sync.Mutex
	cap       int // 0 = unbounded
	seen      map[string]models.Ordinal // link -> lowest claiming ordinal
	emitted   int
	reserved  int
	changed   chan struct{} // closed and replaced whenever a reservation resolves
	results   []emitted
	searches  []models.SearchSummary
	anomalies []models.Anomaly
	failures  []models.CrawlFailure
}

func newCoordinator(maxItems int, searchURLs []string) *coordinator {
	c := &coordinator{
		cap:     maxItems,
		seen:    make(map[string]models.Ordinal),
		changed: make(chan struct{}),
	}
	for _, u := range searchURLs {
		c.searches = append(c.searches, models.SearchSummary{URL: u, State: models.SearchSeeding})
	}
	return c
}

// Admit checks link against the seen set and the cap. claim is the discovery
// position of the card offering the link. A nil error always comes with a
// decision; a context error means the caller should stop.
func (c *coordinator) Admit(ctx context.Context, link string, claim models.Ordinal) (Admission, error) {
	for {
		c.mu.Lock()
		if owner, ok := c.seen[link]; ok {
			if claim.Less(owner) {
				c.seen[link] = claim
			}
			c.mu.Unlock()
			return Duplicate, nil
		}
		if c.cap > 0 && c.emitted >= c.cap {
			c.mu.Unlock()
			return CapReached, nil
		}
		if c.cap > 0 && c.emitted+c.reserved >= c.cap {
			wait := c.changed
			c.mu.Unlock()
			select {
			case <-ctx.Done():
				return CapReached, ctx.Err()
			case <-wait:
			}
			continue
		}
		c.seen[link] = claim
		c.reserved++
		c.mu.Unlock()
		return Admitted, nil
	}
}

// Complete resolves one reservation. kept=false frees the slot (e.g. the
// listing vanished) without releasing the link from the seen set.
func (c *coordinator) Complete(record models.JobRecord, ordinal models.Ordinal, kept bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reserved--
	if kept {
		c.emitted++
		c.results = append(c.results, emitted{record: record, ordinal: ordinal})
	}
	close(c.changed)
	c.changed = make(chan struct{})
}

// HasCapacity reports whether another record could still be emitted. When the
// only remaining room is held by in-flight reservations it waits for them.
func (c *coordinator) HasCapacity(ctx context.Context) (bool, error) {
	for {
		c.mu.Lock()
		if c.cap <= 0 {
			c.mu.Unlock()
			return true, nil
		}
		if c.emitted >= c.cap {
			c.mu.Unlock()
			return false, nil
		}
		if c.emitted+c.reserved < c.cap {
			c.mu.Unlock()
			return true, nil
		}
		wait := c.changed
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-wait:
		}
	}
}

func (c *coordinator) SetState(search int, state models.SearchState, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searches[search].State = state
	if reason != "" {
		c.searches[search].Reason = reason
	}
}

func (c *coordinator) Fail(search int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searches[search].State = models.SearchFailed
	c.searches[search].Err = err.Error()
}

func (c *coordinator) PageFetched(search int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searches[search].Pages++
}

func (c *coordinator) Anomaly(a ...models.Anomaly) {
	if len(a) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.anomalies = append(c.anomalies, a...)
}

func (c *coordinator) Failure(f models.CrawlFailure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, f)
}

// attributed returns the emitted records credited to the earliest claimant of
// their link. Callers hold c.mu.
func (c *coordinator) attributed() []emitted {
	out := make([]emitted, len(c.results))
	for i, r := range c.results {
		if owner, ok := c.seen[r.record.JobLink]; ok && owner.Less(r.ordinal) &&
			owner.Search >= 0 && owner.Search < len(c.searches) {
			r.ordinal = owner
			r.record.SearchURL = c.searches[owner.Search].URL
		}
		out[i] = r
	}
	return out
}

// Records returns the emitted records in discovery order.
func (c *coordinator) Records() []models.JobRecord {
	c.mu.Lock()
	results := c.attributed()
	c.mu.Unlock()

	sortByOrdinal(results)
	out := make([]models.JobRecord, len(results))
	for i, r := range results {
		out[i] = r.record
	}
	return Dedupe(out)
}

func (c *coordinator) Searches() []models.SearchSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]models.SearchSummary(nil), c.searches...)
	for i := range out {
		out[i].Records = 0
	}
	for _, r := range c.attributed() {
		if r.ordinal.Search >= 0 && r.ordinal.Search < len(out) {
			out[r.ordinal.Search].Records++
		}
	}
	return out
}

func (c *coordinator) Anomalies() []models.Anomaly {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Anomaly(nil), c.anomalies...)
}

func (c *coordinator) Failures() []models.CrawlFailure {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.CrawlFailure(nil), c.failures...)
}
