package service

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	linkFilterCapacity = 1_000_000
	linkFilterFPRate   = 0.001
)

// linkFilter is a concurrency-safe bloom filter over share-link ids. It can
// say "definitely unknown" without touching the database; known ids always
// pass (no false negatives as long as every insert goes through Add).
type linkFilter struct {
	mu sync.Mutex
	f  *bloom.BloomFilter
}

func newLinkFilter() *linkFilter {
	return &linkFilter{f: bloom.NewWithEstimates(linkFilterCapacity, linkFilterFPRate)}
}

func (lf *linkFilter) Add(id string) {
	lf.mu.Lock()
	lf.f.AddString(id)
	lf.mu.Unlock()
}

// MayContain reports whether id could be a known link.
func (lf *linkFilter) MayContain(id string) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	return lf.f.TestString(id)
}
