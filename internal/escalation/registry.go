package escalation

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"
)

const registryShards = 32

// Key identifies one conversation's deadline slot.
type Key struct {
	TenantID      string
	CounterpartID string
}

// Deadline is an explicit timer entry: who it belongs to, when the clock
// started, and when it fires.
type Deadline struct {
	Key            Key
	ConversationID string
	ArmedAt        time.Time
	FireAt         time.Time
}

// ExpiryFunc is invoked outside the registry lock when a deadline elapses.
type ExpiryFunc func(Deadline)

type entry struct {
	deadline Deadline
	seq      uint64
	timer    *time.Timer
}

type registryShard struct {
	mu      sync.Mutex
	entries map[Key]*entry
}

// Registry holds the active deadline timers, at most one per conversation
// key. All mutations for one key serialize through that key's shard, so a
// cancel requested before expiry is always observed by the expiry path.
type Registry struct {
	shards  [registryShards]registryShard
	seq     atomic.Uint64
	stopped atomic.Bool
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].entries = make(map[Key]*entry)
	}
	return r
}

// Arm schedules d, replacing any prior entry for the same key. The previous
// timer, if armed, is stopped first so the key never holds two live timers.
func (r *Registry) Arm(d Deadline, onExpire ExpiryFunc) {
	if r.stopped.Load() {
		return
	}
	shard := r.shardFor(d.Key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	// Stop may have drained this shard between the check above and the
	// lock; inserting now would leave a timer no drain will ever see.
	if r.stopped.Load() {
		return
	}

	if prev, ok := shard.entries[d.Key]; ok {
		prev.timer.Stop()
		delete(shard.entries, d.Key)
	}

	seq := r.seq.Add(1)
	e := &entry{deadline: d, seq: seq}
	e.timer = time.AfterFunc(time.Until(d.FireAt), func() {
		r.expire(d.Key, seq, onExpire)
	})
	shard.entries[d.Key] = e
}

// Cancel removes the key's pending deadline. Returns whether a timer was
// armed.
func (r *Registry) Cancel(key Key) bool {
	shard := r.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	e, ok := shard.entries[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(shard.entries, key)
	return true
}

// Active returns the pending deadline for key, if any.
func (r *Registry) Active(key Key) (Deadline, bool) {
	shard := r.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	e, ok := shard.entries[key]
	if !ok {
		return Deadline{}, false
	}
	return e.deadline, true
}

// Len reports the number of armed timers across all shards.
func (r *Registry) Len() int {
	total := 0
	for i := range r.shards {
		shard := &r.shards[i]
		shard.mu.Lock()
		total += len(shard.entries)
		shard.mu.Unlock()
	}
	return total
}

// Stop cancels every armed timer and rejects further arming. Armed entries
// are drained so none can leak past the engine's lifetime.
func (r *Registry) Stop() {
	r.stopped.Store(true)
	for i := range r.shards {
		shard := &r.shards[i]
		shard.mu.Lock()
		for key, e := range shard.entries {
			e.timer.Stop()
			delete(shard.entries, key)
		}
		shard.mu.Unlock()
	}
}

// expire runs on the timer goroutine. A stale sequence number means the
// entry was re-armed or cancelled after this timer was scheduled; the firing
// is then a no-op.
func (r *Registry) expire(key Key, seq uint64, onExpire ExpiryFunc) {
	shard := r.shardFor(key)
	shard.mu.Lock()
	e, ok := shard.entries[key]
	if !ok || e.seq != seq {
		shard.mu.Unlock()
		return
	}
	delete(shard.entries, key)
	shard.mu.Unlock()

	onExpire(e.deadline)
}

func (r *Registry) shardFor(key Key) *registryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.TenantID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(key.CounterpartID))
	return &r.shards[h.Sum32()%registryShards]
}
