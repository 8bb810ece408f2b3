package gmail

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"inboxdomains/internal/model"
)

// fakeTokenEndpoint issues a fixed token for code "good-code".
func fakeTokenEndpoint(t *testing.T) (*httptest.Server, func() url.Values) {
	t.Helper()
	var mu sync.Mutex
	var last url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		mu.Lock()
		last = r.PostForm
		mu.Unlock()
		if r.PostForm.Get("code") != "good-code" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "access-xyz",
			"token_type":    "Bearer",
			"refresh_token": "refresh-xyz",
			"expires_in":    3600,
		})
	}))
	t.Cleanup(ts.Close)
	return ts, func() url.Values {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
}

func testConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://127.0.0.1:0/oauth2callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.example.com/auth",
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{"https://www.googleapis.com/auth/gmail.readonly"},
	}
}

// browser plays the user: it follows the consent URL straight back to the
// redirect URI with the given query.
type browser struct {
	query    func(state string) url.Values
	redirect string
	statuses chan int
}

func (b *browser) open(authURL string) error {
	u, err := url.Parse(authURL)
	if err != nil {
		return err
	}
	b.redirect = u.Query().Get("redirect_uri")
	q := b.query(u.Query().Get("state"))
	go func() {
		resp, err := http.Get(b.redirect + "?" + q.Encode())
		if err != nil {
			b.statuses <- -1
			return
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		b.statuses <- resp.StatusCode
	}()
	return nil
}

func TestAuthorize_Success(t *testing.T) {
	tokenSrv, form := fakeTokenEndpoint(t)
	b := &browser{
		query:    func(state string) url.Values { return url.Values{"code": {"good-code"}, "state": {state}} },
		statuses: make(chan int, 1),
	}
	var out strings.Builder
	a := &Authorizer{Config: testConfig(tokenSrv.URL), Timeout: 5 * time.Second, Out: &out, Open: b.open}

	tok, err := a.Authorize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-xyz", tok.AccessToken)
	assert.Equal(t, "refresh-xyz", tok.RefreshToken)
	assert.Equal(t, http.StatusOK, <-b.statuses)

	assert.Contains(t, out.String(), "Authorize this app by visiting this url:")
	assert.Contains(t, out.String(), `Click "Advanced"`)
	assert.Equal(t, b.redirect, form().Get("redirect_uri"), "exchange uses the rewritten redirect")
	assert.NotContains(t, b.redirect, ":0/")

	assertClosed(t, b.redirect)
}

func TestAuthorize_ConsentURL(t *testing.T) {
	tokenSrv, _ := fakeTokenEndpoint(t)
	var captured string
	ctx, cancel := context.WithCancel(context.Background())
	a := &Authorizer{
		Config:  testConfig(tokenSrv.URL),
		Timeout: 5 * time.Second,
		Open: func(u string) error {
			captured = u
			cancel()
			return nil
		},
	}
	_, err := a.Authorize(ctx)
	require.Error(t, err)

	u, err := url.Parse(captured)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "true", q.Get("include_granted_scopes"))
	assert.Equal(t, "https://www.googleapis.com/auth/gmail.readonly", q.Get("scope"))
	assert.Len(t, q.Get("state"), 36)
}

func TestAuthorize_MissingCodeKeepsWaiting(t *testing.T) {
	tokenSrv, _ := fakeTokenEndpoint(t)
	statuses := make(chan int, 2)
	a := &Authorizer{
		Config:  testConfig(tokenSrv.URL),
		Timeout: 5 * time.Second,
		Open: func(authURL string) error {
			u, _ := url.Parse(authURL)
			redirect := u.Query().Get("redirect_uri")
			state := u.Query().Get("state")
			go func() {
				for _, q := range []string{"", "?code=good-code&state=" + state} {
					resp, err := http.Get(redirect + q)
					if err != nil {
						statuses <- -1
						continue
					}
					resp.Body.Close()
					statuses <- resp.StatusCode
				}
			}()
			return nil
		},
	}

	tok, err := a.Authorize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-xyz", tok.AccessToken)
	assert.Equal(t, http.StatusBadRequest, <-statuses)
	assert.Equal(t, http.StatusOK, <-statuses)
}

func TestAuthorize_Failures(t *testing.T) {
	tokenSrv, _ := fakeTokenEndpoint(t)
	tests := []struct {
		name   string
		query  func(state string) url.Values
		status int
	}{
		{"denied", func(string) url.Values { return url.Values{"error": {"access_denied"}} }, http.StatusForbidden},
		{"state mismatch", func(string) url.Values { return url.Values{"code": {"good-code"}, "state": {"forged"}} }, http.StatusBadRequest},
		{"bad code", func(s string) url.Values { return url.Values{"code": {"stale-code"}, "state": {s}} }, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := &browser{query: tc.query, statuses: make(chan int, 1)}
			a := &Authorizer{Config: testConfig(tokenSrv.URL), Timeout: 5 * time.Second, Open: b.open}

			tok, err := a.Authorize(context.Background())
			assert.Nil(t, tok)
			var ae *model.AuthError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tc.status, <-b.statuses)
			assertClosed(t, b.redirect)
		})
	}
}

func TestAuthorize_Timeout(t *testing.T) {
	var redirect string
	a := &Authorizer{
		Config:  testConfig("http://127.0.0.1:1/token"),
		Timeout: 50 * time.Millisecond,
		Open: func(authURL string) error {
			u, _ := url.Parse(authURL)
			redirect = u.Query().Get("redirect_uri")
			return errors.New("no browser here")
		},
	}
	_, err := a.Authorize(context.Background())
	var ae *model.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, err.Error(), "no redirect received")
	assertClosed(t, redirect)
}

func TestAuthorize_BadRedirect(t *testing.T) {
	a := &Authorizer{Config: testConfig("http://127.0.0.1:1/token")}
	a.Config.RedirectURL = "not a url"
	_, err := a.Authorize(context.Background())
	var ae *model.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "parse redirect uri", ae.Op)
}

func TestListenAddr(t *testing.T) {
	tests := map[string]string{
		"http://localhost:3000":            "127.0.0.1:3000",
		"http://127.0.0.1:8080/cb":         "127.0.0.1:8080",
		"http://localhost/oauth2callback":  "127.0.0.1:80",
		"https://localhost/oauth2callback": "127.0.0.1:443",
		"http://[::1]:3000":                "[::1]:3000",
	}
	for in, want := range tests {
		u, err := url.Parse(in)
		require.NoError(t, err)
		assert.Equal(t, want, listenAddr(u), in)
	}
}

// assertClosed checks nothing is listening at the redirect URI any more.
func assertClosed(t *testing.T, redirect string) {
	t.Helper()
	u, err := url.Parse(redirect)
	require.NoError(t, err)
	conn, err := net.DialTimeout("tcp", u.Host, 200*time.Millisecond)
	if err == nil {
		conn.Close()
		t.Fatalf("listener at %s still accepting connections", u.Host)
	}
}
