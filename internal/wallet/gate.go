package wallet

import (
	"fmt"

	"github.com/congo-pay/timelock/internal/identity"
)

// Authorize fails with ErrUnauthorized unless caller owns w.
func Authorize(w Wallet, caller identity.Identity) error {
	return authorizeOwner(w.Owner, caller)
}

// CheckRelease fails with ErrTooEarly while now is before the release time.
func CheckRelease(w Wallet, now int64) error {
	if !w.Released(now) {
		return fmt.Errorf("%d seconds remaining: %w", w.ReleaseTime-now, ErrTooEarly)
	}
	return nil
}

func authorizeOwner(owner, caller identity.Identity) error {
	if caller.IsZero() || caller != owner {
		return ErrUnauthorized
	}
	return nil
}
