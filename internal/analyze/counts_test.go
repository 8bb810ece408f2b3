package analyze

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"inboxdomains/internal/model"
)

func TestPresent_SortsByCountDescending(t *testing.T) {
	c := NewDomainCounts()
	for _, d := range []string{"a", "b", "c", "b", "a", "b", "b", "b"} {
		c.Add(d)
	}

	got := Present(c)
	want := []model.DomainCount{
		{Domain: "b", Count: 5},
		{Domain: "a", Count: 2},
		{Domain: "c", Count: 1},
	}
	assert.Equal(t, want, got)
}

func TestPresent_TiesKeepFirstSeenOrder(t *testing.T) {
	c := NewDomainCounts()
	for _, d := range []string{"zeta.io", "alpha.io", "mid.io", "alpha.io", "zeta.io", "mid.io", "solo.io"} {
		c.Add(d)
	}

	got := Present(c)
	var domains []string
	for _, dc := range got {
		domains = append(domains, dc.Domain)
	}
	assert.Equal(t, []string{"zeta.io", "alpha.io", "mid.io", "solo.io"}, domains)
}

func TestPresent_Empty(t *testing.T) {
	assert.Empty(t, Present(NewDomainCounts()))
	assert.Nil(t, Present(nil))
}

func TestDomainCounts(t *testing.T) {
	c := NewDomainCounts()
	c.Add("example.com")
	c.Add("example.com")
	c.Add("unknown")

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 3, c.Total())

	m := c.snapshot()
	assert.Equal(t, 2, m["example.com"])
	assert.Zero(t, m["missing.org"])
	m["example.com"] = 99
	assert.Equal(t, 2, c.snapshot()["example.com"], "snapshot returns a copy")
}
