package locks

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	k := NewKeyedMutex()

	const workers = 32
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			k.Lock("user:alice")
			counter++
			k.Unlock("user:alice")
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	k := NewKeyedMutex()

	k.Lock("a")
	done := make(chan struct{})
	go func() {
		k.Lock("b")
		k.Unlock("b")
		close(done)
	}()
	<-done // "b" must not block on "a"
	k.Unlock("a")
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := NewKeyedMutex()

	k.Lock("x")
	k.Unlock("x")

	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.entries)
}

func TestKeyedMutexUnlockUnheldPanics(t *testing.T) {
	k := NewKeyedMutex()
	assert.Panics(t, func() { k.Unlock("never-locked") })
}
