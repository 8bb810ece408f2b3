package gmail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailv1 "google.golang.org/api/gmail/v1"

	"inboxdomains/internal/model"
	"inboxdomains/internal/token"
)

const appName = "Gmail Domain Analyzer"

// NewOAuthConfig returns the OAuth client configuration for read-only Gmail
// access.
func NewOAuthConfig(clientID, clientSecret, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmailv1.GmailReadonlyScope},
	}
}

// Authorizer runs the browser consent flow. It listens on the host and port
// of Config.RedirectURL (port 0 picks a free port and rewrites the redirect),
// accepts one decisive callback, exchanges the code and shuts the listener
// down before returning, whatever the outcome.
type Authorizer struct {
	Config  *oauth2.Config
	Timeout time.Duration
	Out     io.Writer          // consent instructions; defaults to io.Discard
	Open    func(string) error // defaults to OpenBrowser
	Logger  *log.Logger
}

type callbackResult struct {
	tok *oauth2.Token
	err error
}

func (a *Authorizer) Authorize(ctx context.Context) (*oauth2.Token, error) {
	logger := a.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	out := a.Out
	if out == nil {
		out = io.Discard
	}
	open := a.Open
	if open == nil {
		open = OpenBrowser
	}
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	redirect, err := url.Parse(a.Config.RedirectURL)
	if err != nil || redirect.Host == "" {
		if err == nil {
			err = fmt.Errorf("redirect URI %q has no host", a.Config.RedirectURL)
		}
		return nil, &model.AuthError{Op: "parse redirect uri", Err: err}
	}

	ln, err := net.Listen("tcp", listenAddr(redirect))
	if err != nil {
		return nil, &model.AuthError{Op: "listen for redirect", Err: err}
	}

	cfg := *a.Config
	if redirect.Port() == "0" {
		port := ln.Addr().(*net.TCPAddr).Port
		redirect.Host = net.JoinHostPort(redirect.Hostname(), strconv.Itoa(port))
		cfg.RedirectURL = redirect.String()
	}
	callbackPath := redirect.Path
	if callbackPath == "" {
		callbackPath = "/"
	}

	state := uuid.NewString()
	results := make(chan callbackResult, 1)
	var claimed atomic.Bool

	mux := http.NewServeMux()
	srv := &http.Server{
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           mux,
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != callbackPath {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			if !claimed.CompareAndSwap(false, true) {
				http.Error(w, "Authorization already handled", http.StatusGone)
				return
			}
			writePage(w, http.StatusForbidden, failurePage)
			results <- callbackResult{err: fmt.Errorf("consent denied: %s", e)}
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "Missing 'code' parameter", http.StatusBadRequest)
			return
		}
		if !claimed.CompareAndSwap(false, true) {
			http.Error(w, "Authorization already handled", http.StatusGone)
			return
		}
		if q.Get("state") != state {
			writePage(w, http.StatusBadRequest, failurePage)
			results <- callbackResult{err: errors.New("state mismatch in redirect")}
			return
		}
		tok, err := cfg.Exchange(ctx, code)
		if err != nil {
			writePage(w, http.StatusInternalServerError, failurePage)
			results <- callbackResult{err: fmt.Errorf("token exchange: %w", err)}
			return
		}
		writePage(w, http.StatusOK, successPage)
		results <- callbackResult{tok: tok}
	})
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		logger.Debug("redirect listener closed", "addr", ln.Addr().String())
	}()

	authURL := cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
	fmt.Fprintln(out, "\nAuthorize this app by visiting this url:", authURL)
	fmt.Fprintln(out, "\nWhen prompted about unverified app:")
	fmt.Fprintln(out, `1. Click "Advanced"`)
	fmt.Fprintf(out, "2. Click \"Go to %s (unsafe)\"\n", appName)
	fmt.Fprintln(out, `3. Click "Continue" to grant access`)
	fmt.Fprintln(out)
	logger.Debug("waiting for redirect", "redirect_uri", cfg.RedirectURL)
	if err := open(authURL); err != nil {
		logger.Warn("could not open browser; open the URL manually", "err", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, &model.AuthError{Op: "authorize", Err: ctx.Err()}
	case <-timer.C:
		return nil, &model.AuthError{Op: "authorize", Err: fmt.Errorf("no redirect received within %s", timeout)}
	case r := <-results:
		if r.err != nil {
			return nil, &model.AuthError{Op: "authorize", Err: r.err}
		}
		return r.tok, nil
	}
}

// listenAddr maps the redirect URL to a bind address. localhost binds the
// IPv4 loopback explicitly so the listener never ends up on ::1 only.
func listenAddr(redirect *url.URL) string {
	host := redirect.Hostname()
	if host == "localhost" {
		host = "127.0.0.1"
	}
	port := redirect.Port()
	if port == "" {
		port = "80"
		if redirect.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(host, port)
}

const successPage = `<h1>Authorization Successful!</h1>
<p>You can close this window now.</p>`

const failurePage = `<p>Authentication failed! Please check the console.</p>`

func writePage(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintln(w, body)
}

// TokenAuthorizer obtains a fresh token interactively.
type TokenAuthorizer interface {
	Authorize(ctx context.Context) (*oauth2.Token, error)
}

// Authenticate returns an HTTP client authorized for Gmail. A stored token is
// reused when it loads; otherwise authz runs and the new token is saved.
// Refreshed tokens are written back to store.
func Authenticate(ctx context.Context, cfg *oauth2.Config, store token.Store, authz TokenAuthorizer, out io.Writer, logger *log.Logger) (*http.Client, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	tok, err := store.Load()
	if err == nil {
		logger.Debug("using stored token", "location", store.Location())
	} else {
		logger.Info("no usable stored token, starting authorization", "reason", err)
		tok, err = authz.Authorize(ctx)
		if err != nil {
			return nil, err
		}
		if err := store.Save(tok); err != nil {
			return nil, &model.AuthError{Op: "save token", Err: err}
		}
		if out != nil {
			fmt.Fprintln(out, "Token stored in:", store.Location())
		}
	}

	src := token.PersistingSource(cfg.TokenSource(ctx, tok), store, tok, func(err error) {
		logger.Warn("could not persist refreshed token", "err", err)
	})
	return oauth2.NewClient(ctx, src), nil
}
