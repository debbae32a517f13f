package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lostfound/internal/model"
)

func TestStore_MissingFileIsNoSession(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "session.json"))
	sess, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestStore_SaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dir", "session.json")
	s := NewStore(path)
	email := "a@b.com"
	want := &model.Session{
		AccessToken:  "at",
		RefreshToken: "rt",
		TokenType:    "bearer",
		ExpiresAt:    time.Unix(1_700_000_000, 0).UTC(),
		User:         model.User{ID: "u1", Email: &email},
	}
	require.NoError(t, s.Save(want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "at", got.AccessToken)
	assert.Equal(t, "rt", got.RefreshToken)
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))
	require.NotNil(t, got.User.Email)
	assert.Equal(t, email, *got.User.Email)
	assert.Nil(t, got.User.DisplayName)

	require.NoError(t, s.Save(nil))
	got, err = s.Load()
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Clear())
}

func TestStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewStore(path).Load()
	assert.Error(t, err)
}
