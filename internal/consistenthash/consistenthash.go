// consistenthash maps rule source ids onto orchestrator partitions so that
// a rule unit always lands on the same partition while partitions come and
// go with minimal reshuffling.
package consistenthash

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"sync"
)

// HashFunc hashes ring keys.
type HashFunc func(data []byte) uint32

// Ring is a consistent hashing ring of named partitions.
type Ring struct {
	hashFunc HashFunc
	replicas int               // virtual nodes per partition
	keys     []uint32          // sorted hash ring
	owners   map[uint32]string // hash -> partition
	members  map[string]bool   // real partitions
	mu       sync.RWMutex
}

// New creates a ring with the given number of virtual nodes per partition.
// A nil hashFunc selects fnv-1a.
func New(replicas int, hashFunc HashFunc) *Ring {
	if hashFunc == nil {
		hashFunc = fnvHash
	}
	if replicas <= 0 {
		replicas = 1
	}
	return &Ring{
		hashFunc: hashFunc,
		replicas: replicas,
		owners:   make(map[uint32]string),
		members:  make(map[string]bool),
	}
}

func fnvHash(data []byte) uint32 {
	h := fnv.New32a()
	_, _ = h.Write(data)
	return h.Sum32()
}

// Add adds a partition to the ring. Adding an existing partition is a no-op.
func (r *Ring) Add(partition string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.members[partition] {
		return
	}
	r.members[partition] = true

	for i := 0; i < r.replicas; i++ {
		hash := r.hashFunc([]byte(partition + strconv.Itoa(i)))
		r.keys = append(r.keys, hash)
		r.owners[hash] = partition
	}

	sort.Slice(r.keys, func(i, j int) bool {
		return r.keys[i] < r.keys[j]
	})
}

// Remove removes a partition and its virtual nodes from the ring.
func (r *Ring) Remove(partition string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.members[partition] {
		return
	}
	delete(r.members, partition)

	keys := make([]uint32, 0, len(r.keys))
	for _, key := range r.keys {
		if r.owners[key] != partition {
			keys = append(keys, key)
		} else {
			delete(r.owners, key)
		}
	}
	r.keys = keys
}

// Get returns the partition owning the given key, or "" on an empty ring.
func (r *Ring) Get(key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.keys) == 0 {
		return ""
	}

	hash := r.hashFunc([]byte(key))
	idx := sort.Search(len(r.keys), func(i int) bool {
		return r.keys[i] >= hash
	})
	if idx == len(r.keys) {
		idx = 0 // wrap around
	}
	return r.owners[r.keys[idx]]
}

// Members returns the partitions currently on the ring.
func (r *Ring) Members() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]string, 0, len(r.members))
	for m := range r.members {
		members = append(members, m)
	}
	return members
}

// Len returns the number of partitions on the ring.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Distribution returns how many virtual nodes each partition owns.
func (r *Ring) Distribution() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dist := make(map[string]int)
	for _, p := range r.owners {
		dist[p]++
	}
	return dist
}

// String describes the ring.
func (r *Ring) String() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return fmt.Sprintf("Ring{partitions=%d, virtual_nodes=%d, replicas=%d}",
		len(r.members), len(r.keys), r.replicas)
}
