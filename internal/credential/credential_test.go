// ABOUTME: Tests for credential construction and the durable stores
// ABOUTME: Covers JWT claim decoding, restart survival, sealing, and corrupt files

package credential

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAuth_OpaqueToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cred := FromAuth("tok-1", 900000, now)

	assert.Equal(t, "tok-1", cred.Token)
	assert.Equal(t, now, cred.IssuedAt)
	assert.Equal(t, 15*time.Minute, cred.ExpiresIn)
	assert.Equal(t, now.Add(15*time.Minute), cred.ExpiresAt())
}

func TestFromAuth_JWTClaimsWin(t *testing.T) {
	issued := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour)),
	}).SignedString([]byte("not-the-server-key"))
	require.NoError(t, err)

	cred := FromAuth(token, 900000, issued.Add(5*time.Minute))

	assert.Equal(t, issued, cred.IssuedAt)
	assert.Equal(t, time.Hour, cred.ExpiresIn)
}

func TestCredential_ExpiredIsAdvisory(t *testing.T) {
	now := time.Now()
	cred := &Credential{Token: "t", IssuedAt: now.Add(-2 * time.Hour), ExpiresIn: time.Hour}

	assert.True(t, cred.Expired(now))

	var unknown *Credential
	assert.True(t, unknown.ExpiresAt().IsZero())
	assert.False(t, (&Credential{Token: "t"}).Expired(now))
}

func TestFileStore_EmptyRead(t *testing.T) {
	s := NewFileStore(t.TempDir(), "")

	cred, err := s.Read()
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestFileStore_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, NewFileStore(dir, "").Write(&Credential{Token: "tok-1", IssuedAt: issued, ExpiresIn: time.Minute}))

	// A second store over the same directory stands in for a new process.
	cred, err := NewFileStore(dir, "").Read()
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "tok-1", cred.Token)
	assert.Equal(t, issued, cred.IssuedAt)

	info, err := os.Stat(filepath.Join(dir, credentialFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_WriteReplacesWholesale(t *testing.T) {
	s := NewFileStore(t.TempDir(), "")
	require.NoError(t, s.Write(&Credential{Token: "old", ExpiresIn: time.Hour}))
	require.NoError(t, s.Write(&Credential{Token: "new"}))

	cred, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, "new", cred.Token)
	assert.Zero(t, cred.ExpiresIn)
}

func TestFileStore_ClearIsIdempotent(t *testing.T) {
	s := NewFileStore(t.TempDir(), "")
	require.NoError(t, s.Write(&Credential{Token: "tok-1"}))

	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())

	cred, err := s.Read()
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestFileStore_RejectsEmptyToken(t *testing.T) {
	s := NewFileStore(t.TempDir(), "")
	assert.Error(t, s.Write(&Credential{}))
	assert.Error(t, s.Write(nil))
}

func TestFileStore_CorruptFileIsAbsent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, credentialFile), []byte("{not json"), 0o600))

	cred, err := NewFileStore(dir, "").Read()
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestFileStore_Sealed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewFileStore(dir, "hunter2").Write(&Credential{Token: "tok-secret"}))

	raw, err := os.ReadFile(filepath.Join(dir, credentialFile))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "tok-secret")

	cred, err := NewFileStore(dir, "hunter2").Read()
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "tok-secret", cred.Token)

	// Wrong passphrase reads as no credential rather than an error.
	cred, err = NewFileStore(dir, "wrong").Read()
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func countDerivations(t *testing.T) *int {
	t.Helper()
	prev := deriveKey
	var n int
	deriveKey = func(passphrase string, salt []byte) []byte {
		n++
		return prev(passphrase, salt)
	}
	t.Cleanup(func() { deriveKey = prev })
	return &n
}

func TestFileStore_SealedReadsDeriveOnce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewFileStore(dir, "hunter2").Write(&Credential{Token: "tok-secret"}))
	derived := countDerivations(t)

	store := NewFileStore(dir, "hunter2")
	for i := 0; i < 5; i++ {
		cred, err := store.Read()
		require.NoError(t, err)
		require.NotNil(t, cred)
		assert.Equal(t, "tok-secret", cred.Token)
	}
	assert.Equal(t, 1, *derived)

	// Own writes are served without re-opening the envelope.
	require.NoError(t, store.Write(&Credential{Token: "tok-next"}))
	*derived = 0
	cred, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t, "tok-next", cred.Token)
	assert.Equal(t, 0, *derived)
}

func TestFileStore_SeesOtherProcessChanges(t *testing.T) {
	dir := t.TempDir()
	mine := NewFileStore(dir, "hunter2")
	other := NewFileStore(dir, "hunter2")
	require.NoError(t, mine.Write(&Credential{Token: "tok-1"}))

	cred, _ := mine.Read()
	require.NotNil(t, cred)

	require.NoError(t, other.Write(&Credential{Token: "tok-2"}))
	cred, err := mine.Read()
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "tok-2", cred.Token)

	require.NoError(t, other.Clear())
	cred, err = mine.Read()
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestSealOpen(t *testing.T) {
	sealed, err := Seal("pass", []byte("payload"))
	require.NoError(t, err)

	plain, err := Open("pass", sealed)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(plain))

	_, err = Open("other", sealed)
	assert.ErrorIs(t, err, ErrSealAuth)

	_, err = Open("pass", []byte("plain text"))
	assert.ErrorIs(t, err, ErrSealInvalid)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(&Credential{Token: "seed"})

	cred, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, "seed", cred.Token)

	// Callers get a copy.
	cred.Token = "mutated"
	again, _ := s.Read()
	assert.Equal(t, "seed", again.Token)

	require.NoError(t, s.Clear())
	cred, _ = s.Read()
	assert.Nil(t, cred)
}
