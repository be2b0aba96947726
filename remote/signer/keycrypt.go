package signer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/pkg/errors"
	"golang.org/x/crypto/scrypt"
)

// hardenPassphrase stretches a passphrase into a 32-byte AES key with
// scrypt, deriving the salt from the passphrase itself so the same
// passphrase always yields the same key.
func hardenPassphrase(pass []byte) []byte {
	passHash := sha256.Sum256(pass)
	salt := passHash[16:]
	key, err := scrypt.Key(pass, salt, 32768, 8, 1, 32)
	if err != nil {
		panic(err)
	}
	return key
}

// EncryptKey seals a hex private key under a passphrase, returning a
// base64 blob suitable for storage in git config. Used by `ngit login
// --passphrase` so the key never sits in config in the clear.
func EncryptKey(privHex, passphrase string) (string, error) {
	if _, err := hex.DecodeString(privHex); err != nil {
		return "", errors.Wrap(err, "invalid private key hex")
	}
	block, err := aes.NewCipher(hardenPassphrase([]byte(passphrase)))
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(privHex), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptKey reverses EncryptKey, returning the hex private key.
func DecryptKey(blob, passphrase string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", errors.Wrap(err, "stored key blob is not valid base64")
	}
	block, err := aes.NewCipher(hardenPassphrase([]byte(passphrase)))
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(sealed) < gcm.NonceSize() {
		return "", errors.New("stored key blob is truncated")
	}
	nonce, ct := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	privHex, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", errors.New("wrong passphrase or corrupt key blob")
	}
	return string(privHex), nil
}
