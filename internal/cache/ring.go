package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/sundayezeilo/shortlink/internal/errx"
)

// VirtualNodes is the number of synthetic ring positions per physical
// shard. 150 keeps the load spread within a few percent of uniform.
const VirtualNodes = 150

// Shard pairs a backing store with a stable identifier used for
// diagnostics and health reporting.
type Shard struct {
	Name  string
	Store Store
}

type ringEntry struct {
	hash  uint64
	shard Shard
}

// Ring maps keys to shards via consistent hashing with virtual nodes.
// The ring is built once at construction and immutable afterwards, so
// lookups are safe for unsynchronized concurrent use. Changing the
// shard set requires building a new Ring.
type Ring struct {
	entries []ringEntry // sorted by hash
	shards  []Shard     // distinct physical shards, construction order
}

// NewRing builds a ring over the given shards. It fails if no shards
// are configured; that is a startup-time fatal condition, not a
// per-request error.
func NewRing(shards []Shard) (*Ring, error) {
	const op = "cache.NewRing"

	if len(shards) == 0 {
		return nil, errx.E(op, errx.Internal, errors.New("no cache shards configured"))
	}

	entries := make([]ringEntry, 0, len(shards)*VirtualNodes)
	for i, shard := range shards {
		for j := 0; j < VirtualNodes; j++ {
			h := hashKey(fmt.Sprintf("shard-%d#%d", i, j))
			entries = append(entries, ringEntry{hash: h, shard: shard})
		}
	}

	// Hash collisions between virtual nodes are vanishingly unlikely in a
	// 64-bit space; when they happen the later shard wins after sorting.
	sort.Slice(entries, func(i, j int) bool { return entries[i].hash < entries[j].hash })

	return &Ring{
		entries: entries,
		shards:  append([]Shard(nil), shards...),
	}, nil
}

// GetShard returns the shard owning key: the clockwise successor of the
// key's hash on the ring, wrapping to the smallest entry past the end.
func (r *Ring) GetShard(key string) Shard {
	h := hashKey(key)

	idx := sort.Search(len(r.entries), func(i int) bool {
		return r.entries[i].hash >= h
	})
	if idx == len(r.entries) {
		idx = 0
	}
	return r.entries[idx].shard
}

// Shards returns the distinct physical shards in construction order.
func (r *Ring) Shards() []Shard {
	return append([]Shard(nil), r.shards...)
}

// Health pings each distinct shard and reports reachability per shard
// name. Probe failures are reported as false, never propagated.
func (r *Ring) Health(ctx context.Context) map[string]bool {
	health := make(map[string]bool, len(r.shards))
	for _, shard := range r.shards {
		health[shard.Name] = shard.Store.Ping(ctx) == nil
	}
	return health
}

// hashKey digests the key with SHA-256 and interprets the first 8 bytes
// as a big-endian uint64, giving uniform placement across the ring.
func hashKey(key string) uint64 {
	sum := sha256.Sum256([]byte(key))
	return binary.BigEndian.Uint64(sum[:8])
}
