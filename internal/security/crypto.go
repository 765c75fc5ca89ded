package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrCiphertextTooShort is returned when sealed data is shorter than a nonce
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Encryptor seals journal content at rest with AES-GCM
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor creates an encryptor. Key must be 16, 24, or 32 bytes.
func NewEncryptor(key []byte) (*Encryptor, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("invalid key length: %d (must be 16, 24, or 32)", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Encryptor{aead: aead}, nil
}

// NewEncryptorFromBase64 creates an encryptor from a base64-encoded key
func NewEncryptorFromBase64(keyBase64 string) (*Encryptor, error) {
	key, err := base64.StdEncoding.DecodeString(keyBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	return NewEncryptor(key)
}

// Encrypt seals plaintext. The nonce is prepended to the output.
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return e.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens data produced by Encrypt
func (e *Encryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	nonceSize := e.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrCiphertextTooShort
	}

	nonce, body := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

// EncryptJSON marshals v and seals it
func (e *Encryptor) EncryptJSON(v any) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return e.Encrypt(plaintext)
}

// DecryptJSON opens ciphertext and unmarshals it into v
func (e *Encryptor) DecryptJSON(ciphertext []byte, v any) error {
	plaintext, err := e.Decrypt(ciphertext)
	if err != nil {
		return err
	}
	return json.Unmarshal(plaintext, v)
}

// EncryptString seals plaintext and returns it base64-encoded
func (e *Encryptor) EncryptString(plaintext string) (string, error) {
	ciphertext, err := e.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptString opens a value produced by EncryptString
func (e *Encryptor) DecryptString(ciphertextBase64 string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextBase64)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}
	plaintext, err := e.Decrypt(ciphertext)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

const (
	sealedTextPrefix = "enc:v1:"
	sealedJSONTag    = 'e'
	plainJSONTag     = 'p'
)

// SealText encrypts a stored text column. A nil Encryptor stores text as-is,
// and OpenText accepts both forms so encryption can be enabled later.
func (e *Encryptor) SealText(plaintext string) (string, error) {
	if e == nil || plaintext == "" {
		return plaintext, nil
	}
	sealed, err := e.EncryptString(plaintext)
	if err != nil {
		return "", err
	}
	return sealedTextPrefix + sealed, nil
}

// OpenText reverses SealText
func (e *Encryptor) OpenText(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedTextPrefix) {
		return stored, nil
	}
	if e == nil {
		return "", errors.New("encrypted value found but no encryption key is configured")
	}
	return e.DecryptString(strings.TrimPrefix(stored, sealedTextPrefix))
}

// SealJSON marshals v into a tagged blob, encrypted when a key is configured
func (e *Encryptor) SealJSON(v any) ([]byte, error) {
	if e == nil {
		plaintext, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return append([]byte{plainJSONTag}, plaintext...), nil
	}
	sealed, err := e.EncryptJSON(v)
	if err != nil {
		return nil, err
	}
	return append([]byte{sealedJSONTag}, sealed...), nil
}

// OpenJSON reverses SealJSON
func (e *Encryptor) OpenJSON(blob []byte, v any) error {
	if len(blob) == 0 {
		return errors.New("empty sealed blob")
	}
	switch blob[0] {
	case plainJSONTag:
		return json.Unmarshal(blob[1:], v)
	case sealedJSONTag:
		if e == nil {
			return errors.New("encrypted value found but no encryption key is configured")
		}
		return e.DecryptJSON(blob[1:], v)
	default:
		return fmt.Errorf("unknown sealed blob tag %q", blob[0])
	}
}
