// ABOUTME: Passphrase sealing for the persisted credential file
// ABOUTME: argon2id key derivation with XChaCha20-Poly1305 encryption

package credential

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	sealPrefix  = "OMNIBUS1\n"
	saltSize    = 16
	kdfTime     = 2
	kdfMemoryKB = 64 * 1024
	kdfThreads  = 1
)

var (
	// ErrSealInvalid is returned for data that is not a sealed envelope.
	ErrSealInvalid = errors.New("sealed credential is invalid")
	// ErrSealAuth is returned when the passphrase does not open the envelope.
	ErrSealAuth = errors.New("sealed credential authentication failed")
)

type envelope struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Seal encrypts plaintext with a key derived from passphrase.
func Seal(passphrase string, plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(envelope{
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, []byte(sealPrefix)),
	})
	if err != nil {
		return nil, err
	}
	return append([]byte(sealPrefix), raw...), nil
}

// Open reverses Seal.
func Open(passphrase string, data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, []byte(sealPrefix)) {
		return nil, ErrSealInvalid
	}
	var env envelope
	if err := json.Unmarshal(data[len(sealPrefix):], &env); err != nil {
		return nil, ErrSealInvalid
	}
	if len(env.Salt) != saltSize || len(env.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, ErrSealInvalid
	}

	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, env.Salt))
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, []byte(sealPrefix))
	if err != nil {
		return nil, ErrSealAuth
	}
	return plaintext, nil
}

// deriveKey is replaced in tests
var deriveKey = func(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, kdfTime, kdfMemoryKB, kdfThreads, chacha20poly1305.KeySize)
}
