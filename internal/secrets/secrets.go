// Package secrets decrypts the venue-credentials blob (spec §6): AES-256
// in CBC mode with PKCS#7 padding, keyed by PBKDF2-HMAC-SHA256 over the
// operator-supplied password with an empty salt and 100000 iterations.
// Grounded on original_source/exchanges/credential_encoding.py, the only
// place this format is defined — there is no teacher analog, since the
// Polymarket source reads its wallet key from plaintext config.
package secrets

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyLength  = 32
	iterations = 100000
	blockSize  = aes.BlockSize
)

// Credentials is one venue's decrypted credential set. Field names match
// the keys the venue's concrete client expects (e.g. Hyperliquid reads
// "secret_key"; a venue requiring an API key/secret pair would read those
// instead) — the shape is intentionally a flat string map since different
// venues carry different credential fields.
type Credentials map[string]string

// deriveKey derives a 32-byte AES-256 key from password with an empty
// salt, matching derive_key's PBKDF2HMAC(SHA256, length=32, salt=b”,
// iterations=100000).
func deriveKey(password string) []byte {
	return pbkdf2.Key([]byte(password), nil, iterations, keyLength, sha256.New)
}

// Decrypt reverses encrypt_file's iv+ciphertext layout: the first 16
// bytes of blob are the AES-CBC IV, the remainder is PKCS#7-padded
// ciphertext.
func Decrypt(blob []byte, password string) ([]byte, error) {
	if len(blob) < blockSize {
		return nil, fmt.Errorf("secrets: blob too short to contain an IV")
	}
	iv, ciphertext := blob[:blockSize], blob[blockSize:]
	if len(ciphertext)%blockSize != 0 {
		return nil, fmt.Errorf("secrets: ciphertext is not a multiple of the block size")
	}

	block, err := aes.NewCipher(deriveKey(password))
	if err != nil {
		return nil, fmt.Errorf("secrets: new cipher: %w", err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	return unpad(padded)
}

// unpad strips PKCS#7 padding, validating that every pad byte agrees with
// the claimed padding length — a malformed key (wrong password) almost
// always fails this check rather than silently producing garbage.
func unpad(data []byte) ([]byte, error) {
	n := len(data)
	if n == 0 || n%blockSize != 0 {
		return nil, fmt.Errorf("secrets: invalid padded length %d", n)
	}
	padLen := int(data[n-1])
	if padLen == 0 || padLen > blockSize || padLen > n {
		return nil, fmt.Errorf("secrets: invalid PKCS#7 padding (wrong password?)")
	}
	if !bytes.Equal(data[n-padLen:], bytes.Repeat([]byte{byte(padLen)}, padLen)) {
		return nil, fmt.Errorf("secrets: invalid PKCS#7 padding (wrong password?)")
	}
	return data[:n-padLen], nil
}

// Load decrypts blob and parses it as the venue-credentials map spec §6
// describes. A decryption or parse failure is returned as an error;
// engine.New wraps it and returns it, and the process then logs it and
// exits with status 1 before any engine goroutine has started.
func Load(blob []byte, password string) (map[string]Credentials, error) {
	plaintext, err := Decrypt(blob, password)
	if err != nil {
		return nil, err
	}

	var creds map[string]Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("secrets: decode credentials json: %w", err)
	}
	return creds, nil
}
