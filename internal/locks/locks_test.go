package locks

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockSerializesSameKey(t *testing.T) {
	reg := NewRegistry()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := reg.Lock("ITM_1")
			counter++
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	reg := NewRegistry()

	releaseA := reg.Lock("ITM_a")
	done := make(chan struct{})
	go func() {
		release := reg.Lock("ITM_b")
		release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on a different key blocked")
	}
	releaseA()
}

func TestEntryRemovedAfterLastRelease(t *testing.T) {
	reg := NewRegistry()

	release := reg.Lock("ITM_1")
	release()

	reg.mu.Lock()
	defer reg.mu.Unlock()
	require.Empty(t, reg.items)
}
