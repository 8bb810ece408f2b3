package imapmail

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"slices"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"

	"inboxdomains/internal/analyze"
	"inboxdomains/internal/model"
)

// Client reads a mailbox over IMAP. It keeps one connection open for the
// whole run; call Close when done. Message ids are UIDs in decimal.
type Client struct {
	host     string
	port     int
	username string
	password string
	useTLS   bool
	mailbox  string
	logger   *log.Logger
	tlsConf  *tls.Config

	conn *imapclient.Client
	uids []imap.UID // newest first, captured by the first ListInbox call
}

// Option configures a Client.
type Option func(*Client)

// WithTLSConfig replaces the default TLS configuration (system roots,
// ServerName set to host). ServerName is filled in when left empty.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *Client) {
		c.tlsConf = cfg
	}
}

// New creates an IMAP client. With useTLS the connection is implicit TLS;
// otherwise STARTTLS is required.
func New(host string, port int, username, password string, useTLS bool, mailbox string, logger *log.Logger, opts ...Option) *Client {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	c := &Client{
		host:     host,
		port:     port,
		username: username,
		password: password,
		useTLS:   useTLS,
		mailbox:  mailbox,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) connect() error {
	if c.conn != nil {
		return nil
	}
	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))
	tlsConf := &tls.Config{}
	if c.tlsConf != nil {
		tlsConf = c.tlsConf.Clone()
	}
	if tlsConf.ServerName == "" {
		tlsConf.ServerName = c.host
	}
	opts := &imapclient.Options{TLSConfig: tlsConf}

	var conn *imapclient.Client
	var err error
	if c.useTLS {
		conn, err = imapclient.DialTLS(addr, opts)
	} else {
		conn, err = imapclient.DialStartTLS(addr, opts)
	}
	if err != nil {
		return fmt.Errorf("imap connect %s: %w", addr, err)
	}

	if err := conn.Login(c.username, c.password).Wait(); err != nil {
		conn.Close()
		return &model.AuthError{Op: "imap login " + c.username, Err: err}
	}
	if _, err := conn.Select(c.mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		_ = conn.Logout().Wait()
		conn.Close()
		return fmt.Errorf("imap select %s: %w", c.mailbox, err)
	}
	c.logger.Debug("imap connected", "addr", addr, "mailbox", c.mailbox)
	c.conn = conn
	return nil
}

// ListInbox pages through the mailbox newest first. The UID list is
// snapshotted when pageToken is empty; later pages are offsets into it.
func (c *Client) ListInbox(ctx context.Context, pageToken string, maxResults int64) (analyze.Page, error) {
	if err := ctx.Err(); err != nil {
		return analyze.Page{}, err
	}
	if err := c.connect(); err != nil {
		return analyze.Page{}, err
	}
	if pageToken == "" || c.uids == nil {
		data, err := c.conn.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
		if err != nil {
			return analyze.Page{}, fmt.Errorf("imap search: %w", err)
		}
		uids := data.AllUIDs()
		slices.SortFunc(uids, func(a, b imap.UID) int {
			switch {
			case a > b:
				return -1
			case a < b:
				return 1
			}
			return 0
		})
		c.uids = uids
		c.logger.Debug("imap search", "messages", len(uids))
	}
	return pageOf(c.uids, pageToken, maxResults)
}

func pageOf(uids []imap.UID, pageToken string, maxResults int64) (analyze.Page, error) {
	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil || n < 0 {
			return analyze.Page{}, fmt.Errorf("invalid page token %q", pageToken)
		}
		offset = n
	}
	if offset >= len(uids) || maxResults < 1 {
		return analyze.Page{}, nil
	}

	end := min(offset+int(maxResults), len(uids))
	page := analyze.Page{Refs: make([]model.MessageRef, 0, end-offset)}
	for _, uid := range uids[offset:end] {
		page.Refs = append(page.Refs, model.MessageRef{ID: strconv.FormatUint(uint64(uid), 10)})
	}
	if end < len(uids) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

// FromHeader peeks BODY[HEADER.FIELDS (FROM)] so the message stays unread.
func (c *Client) FromHeader(ctx context.Context, id string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return "", false, fmt.Errorf("invalid UID %q: %w", id, err)
	}
	if err := c.connect(); err != nil {
		return "", false, err
	}

	section := &imap.FetchItemBodySection{
		Specifier:    imap.PartSpecifierHeader,
		HeaderFields: []string{"From"},
		Peek:         true,
	}
	msgs, err := c.conn.Fetch(imap.UIDSetNum(imap.UID(uid)), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return "", false, fmt.Errorf("imap fetch: %w", err)
	}
	if len(msgs) == 0 {
		return "", false, fmt.Errorf("message UID %d not found", uid)
	}
	from, ok := parseFrom(msgs[0].FindBodySection(section))
	return from, ok, nil
}

// parseFrom reads a raw header block and returns the decoded From value.
func parseFrom(raw []byte) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	hdr, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil && !errors.Is(err, io.EOF) {
		return "", false
	}
	h := mail.Header{Header: message.Header{Header: hdr}}
	from, err := h.Text("From")
	if err != nil {
		// Undecodable charset; the raw value still carries the address.
		from = hdr.Get("From")
	}
	if from == "" {
		return "", false
	}
	return from, true
}

// Close logs out and closes the connection, if one was opened.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	_ = c.conn.Logout().Wait()
	err := c.conn.Close()
	c.conn = nil
	return err
}
