// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/jeranaias/paichat-tui/internal/util"
)

// =============================================================================
// ENCRYPTED TOKEN KEYSTORE
// =============================================================================
//
// The browser client kept the token pair in sessionStorage; a terminal
// client has no such sandbox, so the pair is encrypted at rest instead.
// AES-256-GCM with a PBKDF2-SHA-256 key derived from a per-install random
// secret. Format: ENC:base64(salt | nonce | ciphertext).

const (
	encryptedPrefix  = "ENC:"
	keySize          = 32
	saltSize         = 32
	nonceSize        = 12
	pbkdf2Iterations = 600000

	secretFileName = "keystore.key"
	tokensFileName = "tokens.enc"
)

var (
	// ErrDecryptionFailed indicates a wrong key or tampered token file.
	ErrDecryptionFailed = errors.New("token decryption failed")
	// ErrInvalidCiphertext indicates the token file format is invalid.
	ErrInvalidCiphertext = errors.New("invalid token file format")
)

// FileKeystore persists the token pair encrypted under a directory
// (normally ~/.paichat). Implements TokenStore.
type FileKeystore struct {
	dir string
}

// NewFileKeystore creates a keystore rooted at dir, generating the install
// secret on first use.
func NewFileKeystore(dir string) (*FileKeystore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	ks := &FileKeystore{dir: dir}
	if _, err := ks.secret(); err != nil {
		return nil, err
	}
	return ks, nil
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Save stores the complete pair encrypted at rest.
func (ks *FileKeystore) Save(access, refresh string) error {
	plaintext, err := json.Marshal(tokenPair{AccessToken: access, RefreshToken: refresh})
	if err != nil {
		return err
	}
	sealed, err := ks.encrypt(plaintext)
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(ks.tokensPath(), []byte(sealed), 0600)
}

// Load returns the stored pair. A missing file yields empty strings and no
// error: the user is simply signed out.
func (ks *FileKeystore) Load() (string, string, error) {
	verifyKeystorePermissions(ks.tokensPath())

	data, err := os.ReadFile(ks.tokensPath())
	if errors.Is(err, os.ErrNotExist) {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}

	plaintext, err := ks.decrypt(strings.TrimSpace(string(data)))
	if err != nil {
		return "", "", err
	}
	var pair tokenPair
	if err := json.Unmarshal(plaintext, &pair); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	// Never surface a partial pair.
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return "", "", nil
	}
	return pair.AccessToken, pair.RefreshToken, nil
}

// Clear removes the stored pair.
func (ks *FileKeystore) Clear() error {
	err := os.Remove(ks.tokensPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// =============================================================================
// CRYPTO PLUMBING
// =============================================================================

func (ks *FileKeystore) tokensPath() string {
	return filepath.Join(ks.dir, tokensFileName)
}

func (ks *FileKeystore) secretPath() string {
	return filepath.Join(ks.dir, secretFileName)
}

// secret returns the per-install random secret, creating it on first use.
func (ks *FileKeystore) secret() ([]byte, error) {
	verifyKeystorePermissions(ks.secretPath())

	data, err := os.ReadFile(ks.secretPath())
	if err == nil && len(data) == keySize {
		return data, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	secret := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return nil, err
	}
	if err := util.AtomicWriteFile(ks.secretPath(), secret, 0600); err != nil {
		return nil, err
	}
	return secret, nil
}

func (ks *FileKeystore) encrypt(plaintext []byte) (string, error) {
	secret, err := ks.secret()
	if err != nil {
		return "", err
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key := pbkdf2.Key(secret, salt, pbkdf2Iterations, keySize, sha256.New)
	defer zeroBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	packed := append(append(salt, nonce...), sealed...)
	return encryptedPrefix + base64.StdEncoding.EncodeToString(packed), nil
}

func (ks *FileKeystore) decrypt(value string) ([]byte, error) {
	if !strings.HasPrefix(value, encryptedPrefix) {
		return nil, ErrInvalidCiphertext
	}
	packed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, encryptedPrefix))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	if len(packed) < saltSize+nonceSize+1 {
		return nil, ErrInvalidCiphertext
	}

	secret, err := ks.secret()
	if err != nil {
		return nil, err
	}

	salt := packed[:saltSize]
	nonce := packed[saltSize : saltSize+nonceSize]
	ciphertext := packed[saltSize+nonceSize:]

	key := pbkdf2.Key(secret, salt, pbkdf2Iterations, keySize, sha256.New)
	defer zeroBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// zeroBytes wipes key material after use.
// SECURITY: prevents disclosure via crash dumps.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
