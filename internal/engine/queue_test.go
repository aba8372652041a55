package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keytrigger/internal/compose"
)

func newRequest(op string) *request {
	return &request{keyMapID: "km", edit: compose.Edit{Op: op}, reply: make(chan Result, 1)}
}

func TestEditQueue_FIFO(t *testing.T) {
	q := newEditQueue(0)

	for _, op := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(newRequest(op)))
	}

	for _, want := range []string{"a", "b", "c"} {
		r, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, r.edit.Op)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "queue should be empty")
}

func TestEditQueue_SignalCoalesces(t *testing.T) {
	q := newEditQueue(0)
	q.Enqueue(newRequest("a"))
	q.Enqueue(newRequest("b"))

	<-q.Wait()
	select {
	case <-q.Wait():
		t.Fatal("signal should be coalesced")
	default:
	}
	assert.Equal(t, 2, q.Len())
}

func TestEditQueue_Close(t *testing.T) {
	q := newEditQueue(0)
	q.Enqueue(newRequest("a"))
	assert.False(t, q.Closed())
	q.Close()
	q.Close()
	assert.True(t, q.Closed())

	assert.False(t, q.Enqueue(newRequest("b")), "enqueue after close should fail")

	<-q.Wait() // pending signal from the enqueue
	_, open := <-q.Wait()
	assert.False(t, open, "signal channel should be closed")

	rest := q.drain()
	require.Len(t, rest, 1)
	assert.Equal(t, "a", rest[0].edit.Op)
	assert.Equal(t, 0, q.Len())
}

func TestEditQueue_ConcurrentProducers(t *testing.T) {
	q := newEditQueue(0)
	const producers = 8
	const perProducer = 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(newRequest("set_vibrate"))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, q.Len())
}

func TestEditQueue_Hint(t *testing.T) {
	assert.Equal(t, defaultQueueHint, cap(newEditQueue(0).requests))
	assert.Equal(t, 64, cap(newEditQueue(64).requests))

	q := newEditQueue(1)
	for _, op := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(newRequest(op)))
	}
	assert.Equal(t, 3, q.Len())
}
