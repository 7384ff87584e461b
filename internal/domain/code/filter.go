package code

import (
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	filterMinCapacity = 1024
	filterFalsePos    = 0.01
)

// Filter is a bloom-filter fast path over known code tokens. A definite miss
// skips the database lookup entirely; a hit (possibly false positive) falls
// through to the repository, so it never affects correctness.
//
// Tokens created or renamed through this process must be fed back via Add.
// Codes written directly to the database by another process are invisible to
// the filter, so it is only enabled for single-writer deployments.
type Filter struct {
	mu sync.RWMutex
	bf *bloom.BloomFilter
}

// NewFilter builds a Filter seeded with the given tokens.
func NewFilter(tokens []string) *Filter {
	capacity := uint(len(tokens) * 2)
	if capacity < filterMinCapacity {
		capacity = filterMinCapacity
	}

	bf := bloom.NewWithEstimates(capacity, filterFalsePos)
	for _, t := range tokens {
		bf.AddString(normalizeToken(t))
	}
	return &Filter{bf: bf}
}

// MayContain reports whether the token might be a known code. False means
// the token is definitely unknown.
func (f *Filter) MayContain(token string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.TestString(normalizeToken(token))
}

// Add records a newly created or renamed token.
func (f *Filter) Add(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bf.AddString(normalizeToken(token))
}

// normalizeToken lowercases the token to match the case-insensitive lookup.
func normalizeToken(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}
