package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewLRUEvictsOldest(t *testing.T) {
	lru := NewLRU(2, time.Minute)
	lru.Add("a", []byte("1"))
	lru.Add("b", []byte("2"))
	lru.Add("c", []byte("3"))

	_, ok := lru.Get("a")
	assert.False(t, ok)
	v, ok := lru.Get("c")
	assert.True(t, ok)
	assert.Equal(t, []byte("3"), v)
}

func TestNewLRUDefaultsSize(t *testing.T) {
	lru := NewLRU(0, time.Minute)
	for i := 0; i < defaultLRUSize+10; i++ {
		lru.Add(string(rune('a'+i%26))+time.Duration(i).String(), nil)
	}
	assert.Equal(t, defaultLRUSize, lru.Len())
}
