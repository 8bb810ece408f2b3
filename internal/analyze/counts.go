package analyze

import (
	"sort"

	"inboxdomains/internal/model"
)

// DomainCounts maps domains to occurrence counts and remembers the order in
// which each domain was first seen, which Present uses to break ties.
type DomainCounts struct {
	counts map[string]int
	order  []string
}

func NewDomainCounts() *DomainCounts {
	return &DomainCounts{counts: make(map[string]int)}
}

// Add increments the count for domain.
func (c *DomainCounts) Add(domain string) {
	if _, ok := c.counts[domain]; !ok {
		c.order = append(c.order, domain)
	}
	c.counts[domain]++
}

// Len returns the number of distinct domains.
func (c *DomainCounts) Len() int { return len(c.order) }

// Total returns the sum of all counts.
func (c *DomainCounts) Total() int {
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}

// snapshot returns a copy of the underlying counts.
func (c *DomainCounts) snapshot() map[string]int {
	out := make(map[string]int, len(c.counts))
	for d, n := range c.counts {
		out[d] = n
	}
	return out
}

// Present returns the counts sorted by count descending. Domains with equal
// counts keep the order in which they were first seen.
func Present(c *DomainCounts) []model.DomainCount {
	if c == nil {
		return nil
	}
	out := make([]model.DomainCount, 0, len(c.order))
	for _, d := range c.order {
		out = append(out, model.DomainCount{Domain: d, Count: c.counts[d]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}
