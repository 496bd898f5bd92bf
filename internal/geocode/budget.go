package geocode

import "sync"

// Budget caps the new provider lookups one run may make. It is safe for
// concurrent use; concurrent consumers never push usage past the limit.
type Budget struct {
	mu    sync.Mutex
	limit int
	used  int
}

// NewBudget creates a budget of limit lookups. A limit of zero or less
// allows none.
func NewBudget(limit int) *Budget {
	return &Budget{limit: max(limit, 0)}
}

// TryConsume takes one lookup from the budget. It returns false once the
// budget is exhausted.
func (b *Budget) TryConsume() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.used >= b.limit {
		return false
	}
	b.used++
	return true
}

// Used returns how many lookups have been consumed.
func (b *Budget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}

// Remaining returns how many lookups are left.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.limit - b.used
}
