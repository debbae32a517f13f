package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"lostfound/internal/model"
)

// Store persists the session between runs as a JSON file readable only by
// the current user.
type Store struct {
	path string
}

func NewStore(path string) *Store { return &Store{path: path} }

type storedSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         struct {
		ID          string  `json:"id"`
		Email       *string `json:"email,omitempty"`
		DisplayName *string `json:"display_name,omitempty"`
	} `json:"user"`
}

// Load returns the saved session, or nil if none has been saved.
func (s *Store) Load() (*model.Session, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var st storedSession
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if st.AccessToken == "" {
		return nil, nil
	}
	return &model.Session{
		AccessToken:  st.AccessToken,
		RefreshToken: st.RefreshToken,
		TokenType:    st.TokenType,
		ExpiresAt:    st.ExpiresAt,
		User: model.User{
			ID:          st.User.ID,
			Email:       st.User.Email,
			DisplayName: st.User.DisplayName,
		},
	}, nil
}

// Save writes sess atomically. A nil session clears the store.
func (s *Store) Save(sess *model.Session) error {
	if sess == nil {
		return s.Clear()
	}
	var st storedSession
	st.AccessToken = sess.AccessToken
	st.RefreshToken = sess.RefreshToken
	st.TokenType = sess.TokenType
	st.ExpiresAt = sess.ExpiresAt
	st.User.ID = sess.User.ID
	st.User.Email = sess.User.Email
	st.User.DisplayName = sess.User.DisplayName

	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename session: %w", err)
	}
	return nil
}

// Clear removes the saved session. Missing files are not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
