package syncutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	k := NewKeyedMutex()

	var (
		wg      sync.WaitGroup
		active  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("team:1")
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, k.len(), "released keys are dropped")
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	k := NewKeyedMutex()

	unlockA := k.Lock("team:1")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := k.Lock("team:2")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on an unrelated key blocked")
	}
}

func TestKeyedMutexUnlockIsIdempotent(t *testing.T) {
	k := NewKeyedMutex()

	unlock := k.Lock("competition:3")
	unlock()
	unlock()

	relock := k.Lock("competition:3")
	relock()
	assert.Equal(t, 0, k.len())
}
