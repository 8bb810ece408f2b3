package token

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

// FileStore keeps the token as JSON at Path.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Location() string { return s.Path }

func (s *FileStore) Load() (*oauth2.Token, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.Path, err)
	}
	if err := validate(&tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// Save writes the token through a temp file and rename so a crash never
// leaves a truncated token behind.
func (s *FileStore) Save(tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	tmp := s.Path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode token: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, s.Path)
}
