// Package vault implements the SecretVault port with AES-256-GCM envelopes.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/inboxrelay/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SecretVault = (*Vault)(nil)

const (
	envelopePrefix = "enc:"
	maskPrefix     = "***"
	weakMarker     = "weak"
	tagSize        = 16

	// defaultKeyMaterial is used only when no secret is configured at all.
	defaultKeyMaterial = "inboxrelay-default-key"
)

// KeySource records which configured value the vault key was derived from.
type KeySource string

const (
	KeySourcePrimary           KeySource = "primary"
	KeySourceServiceCredential KeySource = "service_credential"
	KeySourceDefault           KeySource = "default"
)

// Failure classes reported when an envelope cannot be opened.
var (
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrInvalidEncoding   = errors.New("invalid base64 segment")
	ErrInvalidNonce      = errors.New("invalid nonce length")
	ErrInvalidTag        = errors.New("invalid auth tag length")
	ErrAuthentication    = errors.New("authentication failed")
)

// Vault seals tenant credentials into `enc:<nonce>:<tag>:<ciphertext>`
// envelopes. The key is derived once in New and never changes, so a Vault is
// safe for concurrent use.
type Vault struct {
	aead   cipher.AEAD
	source KeySource
	logger *slog.Logger
}

// New derives the vault key from the first non-empty secret in order: primary,
// serviceCredential, then a built-in default. Falling back is logged as a
// warning; envelopes sealed under the built-in default carry a trailing
// ":weak" segment so they can be found and re-sealed later.
func New(primary, serviceCredential string, logger *slog.Logger) (*Vault, error) {
	if logger == nil {
		logger = slog.Default()
	}

	material, source := primary, KeySourcePrimary
	switch {
	case primary != "":
	case serviceCredential != "":
		material, source = serviceCredential, KeySourceServiceCredential
		logger.Warn("token encryption key not set, deriving vault key from the database service credential")
	default:
		material, source = defaultKeyMaterial, KeySourceDefault
		logger.Warn("no secret material configured, vault is using the built-in default key; stored credentials are NOT protected",
			"marker", weakMarker,
		)
	}

	key := sha256.Sum256([]byte(material))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}

	return &Vault{aead: aead, source: source, logger: logger}, nil
}

// Source returns where the vault key came from.
func (v *Vault) Source() KeySource {
	return v.source
}

// Encrypt seals plaintext with a fresh random nonce. It returns "" for empty
// input or if the system random source fails.
func (v *Vault) Encrypt(plaintext string) string {
	if plaintext == "" {
		return ""
	}

	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		v.logger.Error("vault encrypt failed", "class", "nonce", "error", err)
		return ""
	}

	// Seal returns ciphertext || tag; the envelope stores them separately.
	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	var b strings.Builder
	b.WriteString(envelopePrefix)
	b.WriteString(base64.StdEncoding.EncodeToString(nonce))
	b.WriteByte(':')
	b.WriteString(base64.StdEncoding.EncodeToString(tag))
	b.WriteByte(':')
	b.WriteString(base64.StdEncoding.EncodeToString(ciphertext))
	if v.source == KeySourceDefault {
		b.WriteByte(':')
		b.WriteString(weakMarker)
	}
	return b.String()
}

// Decrypt opens an envelope. Non-envelope values are legacy plaintext and are
// returned unchanged. Any failure yields "" and is logged with its class; callers
// must treat "" as "secret unavailable".
func (v *Vault) Decrypt(value string) string {
	if value == "" {
		return ""
	}
	if !IsEnvelope(value) {
		return value
	}

	plaintext, err := v.open(value)
	if err != nil {
		v.logger.Warn("vault decrypt failed", "class", failureClass(err), "error", err)
		return ""
	}
	return plaintext
}

// Mask returns "" for an empty or undecryptable value, "****" for plaintext of
// four characters or fewer, otherwise "***" followed by the last four.
func (v *Vault) Mask(value string) string {
	plain := []rune(v.Decrypt(value))
	switch {
	case len(plain) == 0:
		return ""
	case len(plain) <= 4:
		return "****"
	default:
		return maskPrefix + string(plain[len(plain)-4:])
	}
}

// IsMasked reports whether value is a masked display string echoed back by a
// client. Masked values must never be sealed.
func (v *Vault) IsMasked(value string) bool {
	return strings.HasPrefix(value, maskPrefix)
}

// Seal prepares a submitted credential for storage. It returns false when the
// stored value must be left unchanged: the input is empty or still masked.
func (v *Vault) Seal(submitted string) (string, bool) {
	if submitted == "" || v.IsMasked(submitted) {
		return "", false
	}
	sealed := v.Encrypt(submitted)
	return sealed, sealed != ""
}

// IsEnvelope reports whether value carries the envelope prefix.
func IsEnvelope(value string) bool {
	return strings.HasPrefix(value, envelopePrefix)
}

// NeedsRotation reports whether value was sealed under the built-in default key.
func NeedsRotation(value string) bool {
	if !IsEnvelope(value) {
		return false
	}
	parts := strings.Split(value, ":")
	return len(parts) == 5 && parts[4] == weakMarker
}

func (v *Vault) open(value string) (string, error) {
	parts := strings.Split(value, ":")
	switch {
	case len(parts) == 4:
	case len(parts) == 5 && parts[4] == weakMarker:
	default:
		return "", fmt.Errorf("%w: %d segments", ErrMalformedEnvelope, len(parts))
	}
	if parts[1] == "" || parts[2] == "" || parts[3] == "" {
		return "", fmt.Errorf("%w: empty segment", ErrMalformedEnvelope)
	}

	nonce, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: nonce: %w", ErrInvalidEncoding, err)
	}
	tag, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("%w: tag: %w", ErrInvalidEncoding, err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext: %w", ErrInvalidEncoding, err)
	}

	if len(nonce) != v.aead.NonceSize() {
		return "", fmt.Errorf("%w: %d bytes", ErrInvalidNonce, len(nonce))
	}
	if len(tag) != tagSize {
		return "", fmt.Errorf("%w: %d bytes", ErrInvalidTag, len(tag))
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	return string(plaintext), nil
}

func failureClass(err error) string {
	switch {
	case errors.Is(err, ErrMalformedEnvelope):
		return "malformed"
	case errors.Is(err, ErrInvalidEncoding):
		return "encoding"
	case errors.Is(err, ErrInvalidNonce):
		return "nonce"
	case errors.Is(err, ErrInvalidTag):
		return "tag"
	case errors.Is(err, ErrAuthentication):
		return "auth"
	default:
		return "unknown"
	}
}
