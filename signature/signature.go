// Package signature signs and verifies payment-provider style webhook signatures.
// The header has the form "t=<unix seconds>,v1=<hex hmac>[,v1=<hex hmac>...]" and the
// signed content is "<unix seconds>.<payload>".
package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// HeaderName is the header carrying the signature
	HeaderName = "stripe-signature"

	// SecretPrefix is the prefix for endpoint signing secrets
	SecretPrefix = "whsec_"

	// SignatureVersion is the scheme identifier for HMAC-SHA256 signatures
	SignatureVersion = "v1"

	// MinSecretBytes is the minimum recommended secret size (192 bits)
	MinSecretBytes = 24

	// MaxSecretBytes is the maximum recommended secret size (512 bits)
	MaxSecretBytes = 64

	// DefaultTolerance is how old a signed timestamp may be
	DefaultTolerance = 5 * time.Minute
)

var (
	ErrNoValidSignature = errors.New("no signature matches the payload")
	ErrTimestampTooOld  = errors.New("timestamp outside the tolerance zone")
	ErrMalformedHeader  = errors.New("malformed signature header")
)

// Secret represents an endpoint signing secret
type Secret struct {
	raw     []byte
	encoded string
}

// GenerateSecret creates a new cryptographically secure signing secret
// between MinSecretBytes and MaxSecretBytes in size.
func GenerateSecret(size int) (Secret, error) {
	if size < MinSecretBytes || size > MaxSecretBytes {
		return Secret{}, fmt.Errorf("secret size must be between %d and %d bytes", MinSecretBytes, MaxSecretBytes)
	}

	bytes := make([]byte, size)
	if _, err := rand.Read(bytes); err != nil {
		return Secret{}, fmt.Errorf("generating random bytes: %w", err)
	}

	return Secret{
		raw:     bytes,
		encoded: SecretPrefix + base64.StdEncoding.EncodeToString(bytes),
	}, nil
}

// ParseSecret parses a base64-encoded secret with the whsec_ prefix
func ParseSecret(encoded string) (Secret, error) {
	if !strings.HasPrefix(encoded, SecretPrefix) {
		return Secret{}, fmt.Errorf("secret must start with %s prefix", SecretPrefix)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(encoded, SecretPrefix))
	if err != nil {
		return Secret{}, fmt.Errorf("decoding base64 secret: %w", err)
	}

	if len(raw) < MinSecretBytes || len(raw) > MaxSecretBytes {
		return Secret{}, fmt.Errorf("secret size must be between %d and %d bytes", MinSecretBytes, MaxSecretBytes)
	}

	return Secret{
		raw:     raw,
		encoded: encoded,
	}, nil
}

// String returns the encoded secret with prefix
func (s Secret) String() string {
	return s.encoded
}

// Bytes returns the raw secret bytes
func (s Secret) Bytes() []byte {
	return s.raw
}

// Header is a parsed signature header
type Header struct {
	Timestamp  time.Time
	Signatures []string // hex encoded v1 signatures
}

// String renders the header value
func (h Header) String() string {
	parts := make([]string, 0, len(h.Signatures)+1)
	parts = append(parts, "t="+strconv.FormatInt(h.Timestamp.Unix(), 10))
	for _, sig := range h.Signatures {
		parts = append(parts, SignatureVersion+"="+sig)
	}
	return strings.Join(parts, ",")
}

// Sign computes the header for payload at timestamp
func Sign(secret Secret, timestamp time.Time, payload []byte) Header {
	return Header{
		Timestamp:  time.Unix(timestamp.Unix(), 0).UTC(),
		Signatures: []string{compute(secret, timestamp.Unix(), payload)},
	}
}

func compute(secret Secret, unix int64, payload []byte) string {
	mac := hmac.New(sha256.New, secret.Bytes())
	mac.Write([]byte(strconv.FormatInt(unix, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseHeader parses "t=...,v1=..." keeping every v1 entry; other schemes are ignored
func ParseHeader(value string) (Header, error) {
	if strings.TrimSpace(value) == "" {
		return Header{}, fmt.Errorf("%w: header is empty", ErrMalformedHeader)
	}

	var h Header
	seenTimestamp := false
	for _, item := range strings.Split(value, ",") {
		key, val, ok := strings.Cut(strings.TrimSpace(item), "=")
		if !ok {
			return Header{}, fmt.Errorf("%w: %q", ErrMalformedHeader, item)
		}
		switch key {
		case "t":
			unix, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return Header{}, fmt.Errorf("%w: invalid timestamp %q", ErrMalformedHeader, val)
			}
			h.Timestamp = time.Unix(unix, 0).UTC()
			seenTimestamp = true
		case SignatureVersion:
			h.Signatures = append(h.Signatures, val)
		}
	}

	if !seenTimestamp {
		return Header{}, fmt.Errorf("%w: missing timestamp", ErrMalformedHeader)
	}
	if len(h.Signatures) == 0 {
		return Header{}, fmt.Errorf("%w: no %s signatures", ErrMalformedHeader, SignatureVersion)
	}
	return h, nil
}

// Verify checks header against payload with any of secrets (several secrets cover rotation).
// A zero tolerance disables the timestamp check.
func Verify(header string, payload []byte, now time.Time, tolerance time.Duration, secrets ...Secret) error {
	if len(secrets) == 0 {
		return fmt.Errorf("must provide at least one secret")
	}

	h, err := ParseHeader(header)
	if err != nil {
		return err
	}

	if tolerance > 0 && now.Sub(h.Timestamp) > tolerance {
		return ErrTimestampTooOld
	}

	for _, secret := range secrets {
		expected, _ := hex.DecodeString(compute(secret, h.Timestamp.Unix(), payload))
		for _, sig := range h.Signatures {
			got, err := hex.DecodeString(sig)
			if err != nil {
				continue
			}
			if hmac.Equal(expected, got) {
				return nil
			}
		}
	}
	return ErrNoValidSignature
}
