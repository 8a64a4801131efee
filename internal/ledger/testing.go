package ledger

// SeedBalance is a test helper that opens the account when needed and sets its
// balance on an in-memory ledger. It is a no-op for other backends.
func SeedBalance(l Ledger, code string, amount uint64) {
	if mem, ok := l.(*InMemory); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[code] = amount
	}
}
