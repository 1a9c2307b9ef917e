package ratelimit

import "sync"

const numShards = 64

// shard is one partition of the client map.
type shard[V any] struct {
	mu    sync.Mutex
	items map[string]V
}

// shardedMap partitions keys across fixed shards so concurrent clients
// rarely contend on the same lock.
type shardedMap[V any] struct {
	shards [numShards]shard[V]
}

func newShardedMap[V any]() *shardedMap[V] {
	var m shardedMap[V]
	for i := range m.shards {
		m.shards[i].items = make(map[string]V)
	}
	return &m
}

// getShard picks the shard for key via inline FNV-1a, avoiding a hasher
// allocation on the hot path.
func (m *shardedMap[V]) getShard(key string) *shard[V] {
	h := uint32(2166136261)
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= 16777619
	}
	return &m.shards[h%numShards]
}

// deleteFunc removes every entry for which fn returns true. Shards are
// locked one at a time, so concurrent Allow calls only ever wait on a
// single shard.
func (m *shardedMap[V]) deleteFunc(fn func(key string, v V) bool) {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for k, v := range s.items {
			if fn(k, v) {
				delete(s.items, k)
			}
		}
		s.mu.Unlock()
	}
}

// len counts entries across all shards.
func (m *shardedMap[V]) len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		n += len(s.items)
		s.mu.Unlock()
	}
	return n
}
