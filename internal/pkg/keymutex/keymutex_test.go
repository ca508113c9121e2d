package keymutex

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyMutex_SerializesSameKey(t *testing.T) {
	km := New()

	counter := 0
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("session-1")
			counter++
			km.Unlock("session-1")
		}()
	}

	wg.Wait()
	assert.Equal(t, 100, counter)
}

func TestKeyMutex_DistinctKeysDoNotBlock(t *testing.T) {
	km := New()

	km.Lock("session-1")

	done := make(chan struct{})
	go func() {
		km.Lock("session-2")
		km.Unlock("session-2")
		close(done)
	}()

	<-done // must complete while session-1 is still held
	km.Unlock("session-1")
}

func TestKeyMutex_MapDrainsAfterUnlock(t *testing.T) {
	km := New()

	km.Lock("a")
	km.Lock("b")
	km.Unlock("a")
	km.Unlock("b")

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.locks)
}

func TestKeyMutex_UnlockUnlockedKeyPanics(t *testing.T) {
	km := New()

	assert.Panics(t, func() {
		km.Unlock("never-locked")
	})
}
