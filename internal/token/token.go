package token

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
)

// Store persists a single OAuth token. Any Load error means "no usable
// token" and callers should re-authorize.
type Store interface {
	Load() (*oauth2.Token, error)
	Save(tok *oauth2.Token) error
	// Location describes where the token lives, for user-facing messages.
	Location() string
}

// Open returns the store for backend ("file" or "keyring"). path is the
// token file; the keyring's encrypted-file fallback lives next to it.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "file", "":
		return NewFileStore(path), nil
	case "keyring":
		return OpenKeyring(filepath.Join(filepath.Dir(path), "keyring"))
	default:
		return nil, fmt.Errorf("unknown token backend %q", backend)
	}
}

// SeedRefresh saves a token holding only refresh when store has no usable
// token. It reports whether it saved.
func SeedRefresh(store Store, refresh string) (bool, error) {
	if refresh == "" {
		return false, nil
	}
	if _, err := store.Load(); err == nil {
		return false, nil
	}
	if err := store.Save(&oauth2.Token{RefreshToken: refresh}); err != nil {
		return false, err
	}
	return true, nil
}

var errEmptyToken = errors.New("stored token has neither access nor refresh token")

func validate(tok *oauth2.Token) error {
	if tok == nil || (tok.AccessToken == "" && tok.RefreshToken == "") {
		return errEmptyToken
	}
	return nil
}

// PersistingSource wraps src and saves every newly minted token to store,
// so refreshed access tokens survive between runs. Save failures are passed
// to onErr (if set) and do not fail the request.
func PersistingSource(src oauth2.TokenSource, store Store, current *oauth2.Token, onErr func(error)) oauth2.TokenSource {
	return &persistingSource{src: src, store: store, last: current, onErr: onErr}
}

type persistingSource struct {
	mu    sync.Mutex
	src   oauth2.TokenSource
	store Store
	last  *oauth2.Token
	onErr func(error)
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last != nil && p.last.AccessToken == tok.AccessToken {
		return tok, nil
	}
	// Refresh responses may omit the refresh token; keep the one we had.
	if tok.RefreshToken == "" && p.last != nil && p.last.RefreshToken != "" {
		cp := *tok
		cp.RefreshToken = p.last.RefreshToken
		tok = &cp
	}
	if err := p.store.Save(tok); err != nil && p.onErr != nil {
		p.onErr(err)
	}
	p.last = tok
	return tok, nil
}
