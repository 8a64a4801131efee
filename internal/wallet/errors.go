package wallet

import "errors"

var (
	// ErrTooEarly is returned when funds are requested before the release time.
	ErrTooEarly = errors.New("wallet is still locked")

	// ErrUnauthorized indicates the caller does not own the wallet.
	ErrUnauthorized = errors.New("caller is not the wallet owner")

	// ErrAlreadyExists is returned when the owner already has a wallet.
	ErrAlreadyExists = errors.New("wallet already exists")

	// ErrNotFound is returned when no wallet lives at the derived address.
	ErrNotFound = errors.New("wallet not found")

	// ErrInvalidAddress means the stored bump does not re-derive the address.
	ErrInvalidAddress = errors.New("wallet address does not match owner")

	// ErrCorruptRecord is returned for records that do not decode as a wallet.
	ErrCorruptRecord = errors.New("corrupt wallet record")
)
