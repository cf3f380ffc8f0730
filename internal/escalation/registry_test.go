package escalation

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deadlineFor(key Key, fireIn time.Duration) Deadline {
	now := time.Now()
	return Deadline{
		Key:            key,
		ConversationID: "conv-1",
		ArmedAt:        now,
		FireAt:         now.Add(fireIn),
	}
}

func TestRegistryArmReplacesPriorTimer(t *testing.T) {
	registry := NewRegistry()
	defer registry.Stop()
	key := Key{TenantID: "t1", CounterpartID: "c1"}

	var fired atomic.Int32
	first := deadlineFor(key, time.Hour)
	registry.Arm(first, func(Deadline) { fired.Add(1) })

	second := deadlineFor(key, 2*time.Hour)
	registry.Arm(second, func(Deadline) { fired.Add(1) })

	assert.Equal(t, 1, registry.Len())
	active, ok := registry.Active(key)
	require.True(t, ok)
	assert.Equal(t, second.FireAt, active.FireAt)
	assert.Equal(t, int32(0), fired.Load())
}

func TestRegistryExpiryFiresExactlyOnce(t *testing.T) {
	registry := NewRegistry()
	defer registry.Stop()
	key := Key{TenantID: "t1", CounterpartID: "c1"}

	var fired atomic.Int32
	registry.Arm(deadlineFor(key, time.Millisecond), func(Deadline) { fired.Add(1) })

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, registry.Len())

	// The fired entry is gone; a late cancel is a no-op.
	assert.False(t, registry.Cancel(key))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestRegistryCancelBeforeExpiryIsObserved(t *testing.T) {
	registry := NewRegistry()
	defer registry.Stop()
	key := Key{TenantID: "t1", CounterpartID: "c1"}

	var fired atomic.Int32
	registry.Arm(deadlineFor(key, 30*time.Millisecond), func(Deadline) { fired.Add(1) })
	assert.True(t, registry.Cancel(key))

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
	assert.Equal(t, 0, registry.Len())
}

func TestRegistryRearmInvalidatesInFlightTimer(t *testing.T) {
	registry := NewRegistry()
	defer registry.Stop()
	key := Key{TenantID: "t1", CounterpartID: "c1"}

	var fired atomic.Int32
	// Fire-at already in the past: the timer goroutine races the re-arm.
	registry.Arm(deadlineFor(key, -time.Millisecond), func(Deadline) { fired.Add(1) })
	registry.Arm(deadlineFor(key, time.Hour), func(Deadline) { fired.Add(1) })

	time.Sleep(50 * time.Millisecond)
	// Either the stale timer lost the race and was suppressed by its
	// sequence number, or it never ran; the long timer must still be armed
	// unless the stale one fired first and was replaced before firing.
	assert.LessOrEqual(t, fired.Load(), int32(1))
	assert.LessOrEqual(t, registry.Len(), 1)
}

func TestRegistryAtMostOneTimerPerKeyUnderConcurrency(t *testing.T) {
	registry := NewRegistry()
	defer registry.Stop()
	key := Key{TenantID: "t1", CounterpartID: "c1"}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%3 == 0 {
				registry.Cancel(key)
			} else {
				registry.Arm(deadlineFor(key, time.Hour), func(Deadline) {})
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, registry.Len(), 1)
}

func TestRegistryStopDrainsAllTimers(t *testing.T) {
	registry := NewRegistry()
	var fired atomic.Int32
	for i := 0; i < 10; i++ {
		key := Key{TenantID: "t1", CounterpartID: string(rune('a' + i))}
		registry.Arm(deadlineFor(key, 50*time.Millisecond), func(Deadline) { fired.Add(1) })
	}
	registry.Stop()
	assert.Equal(t, 0, registry.Len())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())

	// Arming after Stop is rejected.
	registry.Arm(deadlineFor(Key{TenantID: "t2", CounterpartID: "x"}, time.Hour), func(Deadline) {})
	assert.Equal(t, 0, registry.Len())
}

func TestRegistryArmRacingStopNeverLeaksTimer(t *testing.T) {
	key := Key{TenantID: "t1", CounterpartID: "c1"}

	for i := 0; i < 2000; i++ {
		registry := NewRegistry()
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			registry.Arm(deadlineFor(key, time.Hour), func(Deadline) {})
		}()
		go func() {
			defer wg.Done()
			registry.Stop()
		}()
		wg.Wait()

		// Whatever the interleaving, either Arm lost to the stopped flag
		// or Stop drained the fresh entry; nothing survives both.
		require.Equal(t, 0, registry.Len(), "iteration %d leaked an armed timer past Stop", i)
	}
}
