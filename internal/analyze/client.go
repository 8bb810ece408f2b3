package analyze

import (
	"context"

	"inboxdomains/internal/model"
)

// Page is one page of an inbox listing.
type Page struct {
	Refs          []model.MessageRef
	NextPageToken string // empty when the listing is exhausted
}

// Client is the narrow provider surface the pipeline needs. Implementations
// scope ListInbox to the inbox folder and must not return more than
// maxResults refs per call.
type Client interface {
	ListInbox(ctx context.Context, pageToken string, maxResults int64) (Page, error)
	// FromHeader returns the raw From header of a message. ok is false when
	// the message has no From header.
	FromHeader(ctx context.Context, id string) (from string, ok bool, err error)
}
