package gmail

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"inboxdomains/internal/analyze"
	"inboxdomains/internal/model"
)

const inboxLabel = "INBOX"

// Client reads the authenticated user's inbox through the Gmail REST API.
type Client struct {
	svc  *gmailv1.Service
	user string
}

// NewClient builds a Gmail client on top of an OAuth-authorized HTTP client.
// Extra options (an alternate endpoint in tests, for instance) are applied
// after the HTTP client.
func NewClient(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := gmailv1.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &Client{svc: svc, user: "me"}, nil
}

// ListInbox returns one page of INBOX message ids.
func (c *Client) ListInbox(ctx context.Context, pageToken string, maxResults int64) (analyze.Page, error) {
	call := c.svc.Users.Messages.List(c.user).
		LabelIds(inboxLabel).
		MaxResults(maxResults).
		Fields("messages(id,threadId)", "nextPageToken").
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Do()
	if err != nil {
		return analyze.Page{}, err
	}

	page := analyze.Page{NextPageToken: resp.NextPageToken}
	for _, m := range resp.Messages {
		if m == nil || m.Id == "" {
			continue
		}
		page.Refs = append(page.Refs, model.MessageRef{ID: m.Id, ThreadID: m.ThreadId})
	}
	return page, nil
}

// FromHeader fetches message metadata restricted to the From header.
func (c *Client) FromHeader(ctx context.Context, id string) (string, bool, error) {
	msg, err := c.svc.Users.Messages.Get(c.user, id).
		Format("metadata").
		MetadataHeaders("From").
		Fields("id", "payload/headers").
		Context(ctx).
		Do()
	if err != nil {
		return "", false, err
	}
	if msg.Payload == nil {
		return "", false, nil
	}
	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, "From") && h.Value != "" {
			return h.Value, true, nil
		}
	}
	return "", false, nil
}

// Account returns the authenticated user's address.
func (c *Client) Account(ctx context.Context) (string, error) {
	p, err := c.svc.Users.GetProfile(c.user).Fields("emailAddress").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return p.EmailAddress, nil
}
