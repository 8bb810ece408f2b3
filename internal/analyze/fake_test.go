package analyze

import (
	"context"
	"fmt"
	"strconv"

	"inboxdomains/internal/model"
)

// fakeClient serves a synthetic inbox of total messages ("m0", "m1", ...)
// in pages of at most pageSize. A negative total means unlimited.
type fakeClient struct {
	total    int
	pageSize int
	greedy   bool // ignore maxResults and always return pageSize refs

	emptyPageWithToken bool

	froms   map[string]string // explicit From values; others get a default
	noFrom  map[string]bool
	listErr error
	getErr  map[string]error

	listCalls []int64
	getCalls  []string
}

func (f *fakeClient) ListInbox(_ context.Context, pageToken string, maxResults int64) (Page, error) {
	f.listCalls = append(f.listCalls, maxResults)
	if f.listErr != nil {
		return Page{}, f.listErr
	}
	if f.emptyPageWithToken {
		return Page{NextPageToken: "more"}, nil
	}

	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil {
			return Page{}, fmt.Errorf("bad page token %q", pageToken)
		}
		offset = n
	}

	n := f.pageSize
	if !f.greedy {
		n = min(n, int(maxResults))
	}
	if f.total >= 0 {
		n = min(n, f.total-offset)
	}

	var page Page
	for i := offset; i < offset+n; i++ {
		page.Refs = append(page.Refs, model.MessageRef{ID: fmt.Sprintf("m%d", i)})
	}
	if f.total < 0 || offset+n < f.total {
		page.NextPageToken = strconv.Itoa(offset + n)
	}
	return page, nil
}

func (f *fakeClient) FromHeader(_ context.Context, id string) (string, bool, error) {
	f.getCalls = append(f.getCalls, id)
	if err := f.getErr[id]; err != nil {
		return "", false, err
	}
	if f.noFrom[id] {
		return "", false, nil
	}
	if from, ok := f.froms[id]; ok {
		return from, true, nil
	}
	return fmt.Sprintf("Sender %s <%s@example.com>", id, id), true, nil
}
