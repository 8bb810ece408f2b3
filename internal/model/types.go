package model

// MessageRef is a provider-assigned message identifier. It carries no
// headers; the From value is fetched separately per message.
type MessageRef struct {
	ID       string
	ThreadID string // Gmail only; empty for other providers
}

// DomainCount is one row of the final report.
type DomainCount struct {
	Domain string `json:"domain" yaml:"domain"`
	Count  int    `json:"count" yaml:"count"`
}

// Progress is sent from the lister and fetcher as the run advances.
type Progress struct {
	Phase string // "list" or "fetch"
	Done  int
	Total int // requested quota while listing, listed refs while fetching
}
