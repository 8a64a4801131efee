package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/ed25519"

	"github.com/congo-pay/timelock/internal/identity"
)

// Request headers carrying a signed request.
const (
	HeaderIdentity  = "X-Identity"
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"
)

var (
	// ErrBadSignature is returned when a signature does not verify.
	ErrBadSignature = errors.New("signature verification failed")

	// ErrStaleRequest is returned when the signed timestamp is too far from now.
	ErrStaleRequest = errors.New("request timestamp outside allowed window")

	// ErrReplay is returned when a signature has already been accepted.
	ErrReplay = errors.New("request signature already used")
)

// Request is the signed portion of an HTTP request.
type Request struct {
	Method    string
	Path      string
	Timestamp int64
	Body      []byte
}

// Canonical returns the bytes covered by the signature:
// method, path, unix timestamp and hex sha256 of the body, newline separated.
func (r Request) Canonical() []byte {
	sum := sha256.Sum256(r.Body)
	var b strings.Builder
	b.WriteString(strings.ToUpper(r.Method))
	b.WriteByte('\n')
	b.WriteString(r.Path)
	b.WriteByte('\n')
	b.WriteString(strconv.FormatInt(r.Timestamp, 10))
	b.WriteByte('\n')
	b.WriteString(hex.EncodeToString(sum[:]))
	return []byte(b.String())
}

// Sign returns the base58 ed25519 signature of r.
func Sign(priv ed25519.PrivateKey, r Request) string {
	return base58.Encode(ed25519.Sign(priv, r.Canonical()))
}

// Verify checks that sig is id's signature over r.
func Verify(id identity.Identity, r Request, sig string) error {
	raw := base58.Decode(sig)
	if len(raw) != ed25519.SignatureSize {
		return fmt.Errorf("signature length %d: %w", len(raw), ErrBadSignature)
	}
	if !ed25519.Verify(id.PublicKey(), r.Canonical(), raw) {
		return ErrBadSignature
	}
	return nil
}

// CheckFreshness rejects timestamps further than maxSkew from now.
func CheckFreshness(ts int64, now time.Time, maxSkew time.Duration) error {
	delta := now.Sub(time.Unix(ts, 0))
	if delta < 0 {
		delta = -delta
	}
	if delta > maxSkew {
		return fmt.Errorf("skew %s exceeds %s: %w", delta, maxSkew, ErrStaleRequest)
	}
	return nil
}
