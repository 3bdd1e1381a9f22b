package task

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRowLocks_SerializePerID(t *testing.T) {
	var l rowLocks
	counter := 0
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.lock("a")
			defer unlock()
			v := counter
			counter = v + 1
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Zero(t, l.held())
}

func TestRowLocks_IndependentIDs(t *testing.T) {
	var l rowLocks
	unlockA := l.lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := l.lock("b")
		unlockB()
		close(done)
	}()
	<-done
	assert.Equal(t, 1, l.held())
	unlockA()
	assert.Zero(t, l.held())
}
