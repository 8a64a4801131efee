package identity

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/ed25519"
)

// Size is the byte length of identities, addresses and namespaces.
const Size = 32

const (
	walletSeed  = "wallet"
	derivedMark = "ProgramDerivedAddress"
)

var (
	// ErrInvalidEncoding is returned when a base58 string does not decode to 32 bytes.
	ErrInvalidEncoding = errors.New("invalid identity encoding")

	// ErrOnCurve indicates a candidate address is a valid ed25519 point and
	// could therefore have a private key.
	ErrOnCurve = errors.New("derived address lies on the ed25519 curve")

	// ErrNoViableBump is returned when no bump seed yields an off-curve address.
	ErrNoViableBump = errors.New("unable to find a viable bump seed")
)

// Identity is the ed25519 public key of a principal.
type Identity [Size]byte

// Address is the storage location of a wallet record. It is derived from the
// owner identity and never chosen by clients.
type Address [Size]byte

// Namespace scopes address derivation to one deployment.
type Namespace [Size]byte

// FromPublicKey converts an ed25519 public key into an Identity.
func FromPublicKey(pub ed25519.PublicKey) (Identity, error) {
	var id Identity
	if len(pub) != ed25519.PublicKeySize {
		return id, fmt.Errorf("public key length %d: %w", len(pub), ErrInvalidEncoding)
	}
	copy(id[:], pub)
	return id, nil
}

// PublicKey returns the identity as an ed25519 public key.
func (id Identity) PublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(id[:])
}

func (id Identity) String() string { return base58.Encode(id[:]) }

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool { return id == Identity{} }

// AccountCode is the ledger account holding the identity's external balance.
func (id Identity) AccountCode() string { return "system:" + id.String() }

// MarshalText encodes the identity as base58.
func (id Identity) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText decodes a base58 identity.
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (a Address) String() string { return base58.Encode(a[:]) }

// AccountCode is the ledger account holding the wallet balance.
func (a Address) AccountCode() string { return "wallet:" + a.String() }

// MarshalText encodes the address as base58.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (n Namespace) String() string { return base58.Encode(n[:]) }

// Parse decodes a base58 identity.
func Parse(s string) (Identity, error) {
	var id Identity
	if err := decode(s, id[:]); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// ParseAddress decodes a base58 wallet address.
func ParseAddress(s string) (Address, error) {
	var a Address
	if err := decode(s, a[:]); err != nil {
		return Address{}, err
	}
	return a, nil
}

// ParseNamespace decodes a base58 namespace.
func ParseNamespace(s string) (Namespace, error) {
	var n Namespace
	if err := decode(s, n[:]); err != nil {
		return Namespace{}, err
	}
	return n, nil
}

func decode(s string, dst []byte) error {
	raw := base58.Decode(s)
	if len(raw) != len(dst) {
		return fmt.Errorf("%q decodes to %d bytes: %w", s, len(raw), ErrInvalidEncoding)
	}
	copy(dst, raw)
	return nil
}

// CreateAddress hashes the wallet seed, owner and bump under the namespace.
// It fails with ErrOnCurve when the digest is a valid curve point.
func (n Namespace) CreateAddress(owner Identity, bump uint8) (Address, error) {
	h := sha256.New()
	h.Write([]byte(walletSeed))
	h.Write(owner[:])
	h.Write([]byte{bump})
	h.Write(n[:])
	h.Write([]byte(derivedMark))
	sum := h.Sum(nil)

	if _, err := new(edwards25519.Point).SetBytes(sum); err == nil {
		return Address{}, ErrOnCurve
	}

	var addr Address
	copy(addr[:], sum)
	return addr, nil
}

// Derive finds the canonical wallet address for owner, searching bumps from
// 255 downwards and returning the first off-curve candidate.
func (n Namespace) Derive(owner Identity) (Address, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		addr, err := n.CreateAddress(owner, uint8(bump))
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return Address{}, 0, err
		}
	}
	return Address{}, 0, ErrNoViableBump
}

// Verify reports whether addr is the address owner derives to with bump.
func (n Namespace) Verify(addr Address, owner Identity, bump uint8) bool {
	derived, err := n.CreateAddress(owner, bump)
	return err == nil && derived == addr
}
