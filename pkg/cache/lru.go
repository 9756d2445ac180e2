package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultLRUSize = 512

// NewLRU returns a bounded in-process cache whose entries expire after ttl. It
// backs the listing cache when Redis is not configured.
func NewLRU(size int, ttl time.Duration) *expirable.LRU[string, []byte] {
	if size <= 0 {
		size = defaultLRUSize
	}
	return expirable.NewLRU[string, []byte](size, nil, ttl)
}
