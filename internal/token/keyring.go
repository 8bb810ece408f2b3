package token

import (
	"encoding/json"
	"fmt"

	"github.com/99designs/keyring"
	"golang.org/x/oauth2"
)

const (
	serviceName = "inboxdomains"
	itemKey     = "oauth-token"
)

// KeyringStore keeps the token in the OS keyring (Keychain, Secret Service,
// WinCred, pass, or an encrypted file as the last resort).
type KeyringStore struct {
	ring keyring.Keyring
	key  string
}

// OpenKeyring opens the system keyring. fileDir is used by the encrypted
// file backend when no native keyring is available.
func OpenKeyring(fileDir string) (*KeyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("inboxdomains-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyringStore(ring), nil
}

func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring, key: itemKey}
}

func (s *KeyringStore) Location() string {
	return fmt.Sprintf("keyring (%s/%s)", serviceName, s.key)
}

func (s *KeyringStore) Load() (*oauth2.Token, error) {
	item, err := s.ring.Get(s.key)
	if err != nil {
		return nil, fmt.Errorf("getting %q from keyring: %w", s.key, err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(item.Data, &tok); err != nil {
		return nil, fmt.Errorf("decode keyring token: %w", err)
	}
	if err := validate(&tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

func (s *KeyringStore) Save(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	err = s.ring.Set(keyring.Item{
		Key:         s.key,
		Data:        data,
		Label:       "inboxdomains OAuth token",
		Description: "Gmail read-only OAuth token",
	})
	if err != nil {
		return fmt.Errorf("setting %q in keyring: %w", s.key, err)
	}
	return nil
}
