package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueAddIsIdempotent(t *testing.T) {
	q := NewQueue()

	assert.True(t, q.Add("/p/a"))
	assert.False(t, q.Add("/p/a"))
	assert.Equal(t, 1, q.Len())
	assert.True(t, q.Has("/p/a"))
}

func TestQueueDrainReturnsSortedSnapshot(t *testing.T) {
	q := NewQueue()
	q.Add("/p/c")
	q.Add("/p/a")
	q.Add("/p/b")

	assert.Equal(t, []string{"/p/a", "/p/b", "/p/c"}, q.Drain())
	assert.Equal(t, 0, q.Len())

	// Paths added after the drain form the next snapshot.
	q.Add("/p/d")
	assert.Equal(t, []string{"/p/d"}, q.Drain())
}

func TestQueueRemove(t *testing.T) {
	q := NewQueue()
	q.Add("/p/a")
	q.Remove("/p/a")
	q.Remove("/p/missing")

	assert.Equal(t, 0, q.Len())
	assert.False(t, q.Has("/p/a"))
}
