package analyze

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"inboxdomains/internal/model"
	"inboxdomains/internal/util"
)

// DefaultPageCap is the largest page Gmail serves from messages.list.
const DefaultPageCap = 500

// progressEvery controls how often fetch progress is reported.
const progressEvery = 50

// Analyzer lists inbox messages up to a quota, fetches each From header and
// folds the sender domains into DomainCounts. All provider calls are made
// one at a time from the calling goroutine.
type Analyzer struct {
	client   Client
	pageCap  int
	progress func(model.Progress)
	logger   *log.Logger
}

type Option func(*Analyzer)

// WithPageCap overrides the provider page size cap. Values below 1 are ignored.
func WithPageCap(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.pageCap = n
		}
	}
}

// WithProgress registers a callback invoked after every listed page and
// periodically while fetching.
func WithProgress(fn func(model.Progress)) Option {
	return func(a *Analyzer) { a.progress = fn }
}

func WithLogger(l *log.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

func New(client Client, opts ...Option) *Analyzer {
	a := &Analyzer{
		client:  client,
		pageCap: DefaultPageCap,
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Result is the outcome of a complete run.
type Result struct {
	Counts  *DomainCounts
	Listed  int // refs returned by the lister
	Counted int // messages with a From header
	Skipped int // messages without a From header
}

// Run lists up to quota inbox messages and counts their sender domains.
// Any provider failure aborts the run and no partial counts are returned.
func (a *Analyzer) Run(ctx context.Context, quota int) (Result, error) {
	if quota < 1 {
		return Result{}, fmt.Errorf("quota must be positive, got %d", quota)
	}

	refs, err := a.ListMessages(ctx, quota)
	if err != nil {
		return Result{}, err
	}

	res := Result{Listed: len(refs)}
	counts := NewDomainCounts()
	a.report(model.Progress{Phase: "fetch", Done: 0, Total: len(refs)})
	for i, ref := range refs {
		from, ok, err := a.FetchFromHeader(ctx, ref)
		if err != nil {
			return Result{}, err
		}
		if ok {
			counts.Add(util.ExtractDomain(from))
			res.Counted++
		} else {
			res.Skipped++
			a.logger.Debug("no From header", "id", ref.ID)
		}
		if done := i + 1; done%progressEvery == 0 || done == len(refs) {
			a.report(model.Progress{Phase: "fetch", Done: done, Total: len(refs)})
		}
	}
	res.Counts = counts
	return res, nil
}

// ListMessages pages through the inbox until quota refs are accumulated, the
// provider returns an empty page, or there is no continuation token.
func (a *Analyzer) ListMessages(ctx context.Context, quota int) ([]model.MessageRef, error) {
	var refs []model.MessageRef
	pageToken := ""
	for len(refs) < quota {
		want := min(a.pageCap, quota-len(refs))
		page, err := a.client.ListInbox(ctx, pageToken, int64(want))
		if err != nil {
			return nil, &model.TransportError{Op: "list messages", Err: err}
		}
		if len(page.Refs) == 0 {
			break
		}

		// Guard the quota even if the provider ignores maxResults.
		if room := quota - len(refs); len(page.Refs) > room {
			page.Refs = page.Refs[:room]
		}
		refs = append(refs, page.Refs...)
		a.logger.Debug("listed page", "page_size", len(page.Refs), "total", len(refs), "more", page.NextPageToken != "")
		a.report(model.Progress{Phase: "list", Done: len(refs), Total: quota})

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	return refs, nil
}

// FetchFromHeader retrieves the From header of a single message. ok is false
// when the message has none, in which case it should be skipped.
func (a *Analyzer) FetchFromHeader(ctx context.Context, ref model.MessageRef) (string, bool, error) {
	from, ok, err := a.client.FromHeader(ctx, ref.ID)
	if err != nil {
		return "", false, &model.TransportError{Op: "get", MessageID: ref.ID, Err: err}
	}
	if !ok || from == "" {
		return "", false, nil
	}
	return from, true, nil
}

func (a *Analyzer) report(p model.Progress) {
	if a.progress != nil {
		a.progress(p)
	}
}
