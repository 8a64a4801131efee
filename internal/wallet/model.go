package wallet

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/congo-pay/timelock/internal/identity"
)

// WalletSize is the encoded length of a wallet record: discriminator, owner,
// release time and bump.
const WalletSize = discriminatorSize + identity.Size + 8 + 1

const discriminatorSize = 8

// discriminator tags every encoded record so foreign data is never decoded as a wallet.
var discriminator = func() [discriminatorSize]byte {
	sum := sha256.Sum256([]byte("account:Wallet"))
	var d [discriminatorSize]byte
	copy(d[:], sum[:discriminatorSize])
	return d
}()

// Wallet is a single-owner time-locked account. Owner and ReleaseTime never
// change after creation.
type Wallet struct {
	Owner       identity.Identity
	ReleaseTime int64
	Bump        uint8

	// Address is where the record lives. It is not part of the encoding.
	Address identity.Address
}

// Released reports whether funds may leave the wallet at unix time now.
func (w Wallet) Released(now int64) bool {
	return now >= w.ReleaseTime
}

// MarshalBinary encodes the wallet into its fixed-size record layout.
func (w Wallet) MarshalBinary() ([]byte, error) {
	buf := make([]byte, WalletSize)
	copy(buf, discriminator[:])
	off := discriminatorSize
	copy(buf[off:], w.Owner[:])
	off += identity.Size
	binary.LittleEndian.PutUint64(buf[off:], uint64(w.ReleaseTime))
	off += 8
	buf[off] = w.Bump
	return buf, nil
}

// UnmarshalBinary decodes a record produced by MarshalBinary. Address is left untouched.
func (w *Wallet) UnmarshalBinary(data []byte) error {
	if len(data) != WalletSize {
		return fmt.Errorf("wallet record is %d bytes, want %d: %w", len(data), WalletSize, ErrCorruptRecord)
	}
	if !bytes.Equal(data[:discriminatorSize], discriminator[:]) {
		return fmt.Errorf("unexpected discriminator %x: %w", data[:discriminatorSize], ErrCorruptRecord)
	}
	off := discriminatorSize
	copy(w.Owner[:], data[off:off+identity.Size])
	off += identity.Size
	w.ReleaseTime = int64(binary.LittleEndian.Uint64(data[off:]))
	off += 8
	w.Bump = data[off]
	return nil
}

// View is the read model returned by Service.Get.
type View struct {
	Wallet
	Balance      uint64
	Reserve      uint64
	Withdrawable uint64
	// Unlocked is true once the release time has passed.
	Unlocked     bool
}

// Receipt describes the ledger movement performed by a lifecycle operation.
type Receipt struct {
	TransactionID string
	Address       identity.Address
	Amount        uint64
	WalletBalance uint64
	OwnerBalance  uint64
}
