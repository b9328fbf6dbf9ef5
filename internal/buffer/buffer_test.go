package buffer

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHistoryBounded pushes past capacity and checks length and order after
// every push.
func TestHistoryBounded(t *testing.T) {
	for _, capacity := range []int{1, 6, 8} {
		t.Run(fmt.Sprintf("capacity %d", capacity), func(t *testing.T) {
			h := NewHistory(capacity)
			var pushed []string

			for n := 1; n <= 3*capacity; n++ {
				msg := fmt.Sprintf("message %d", n)
				h.PushFront(msg)
				pushed = append(pushed, msg)

				snap := h.Snapshot()
				require.Len(t, snap, min(n, capacity))
				for i, got := range snap {
					assert.Equal(t, pushed[len(pushed)-1-i], got, "entry %d after %d pushes", i, n)
				}
			}
		})
	}
}

func TestHistoryEvictsOldestAtCapacityPlusOne(t *testing.T) {
	h := NewHistory(8)
	for i := 0; i <= 8; i++ {
		h.PushFront(fmt.Sprintf("m%d", i))
	}

	snap := h.Snapshot()
	assert.Equal(t, []string{"m8", "m7", "m6", "m5", "m4", "m3", "m2", "m1"}, snap)
	assert.NotContains(t, snap, "m0")

	front, ok := h.Front()
	assert.True(t, ok)
	assert.Equal(t, "m8", front)
}

func TestHistorySnapshotIsCopy(t *testing.T) {
	h := NewHistory(2)
	h.PushFront("a")
	snap := h.Snapshot()
	snap[0] = "changed"

	front, _ := h.Front()
	assert.Equal(t, "a", front)
}

func TestHistoryEmpty(t *testing.T) {
	h := NewHistory(0)
	assert.Equal(t, 1, h.Capacity())
	assert.Equal(t, 0, h.Len())
	_, ok := h.Front()
	assert.False(t, ok)
	assert.Empty(t, h.Snapshot())
}

// TestHistoryConcurrentAccess runs one writer against a render-style reader.
func TestHistoryConcurrentAccess(t *testing.T) {
	h := NewHistory(6)
	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			assert.LessOrEqual(t, len(h.Snapshot()), 6)
		}
	}()

	for i := 0; i < 1000; i++ {
		h.PushFront(fmt.Sprintf("m%d", i))
	}
	close(stop)
	wg.Wait()

	front, _ := h.Front()
	assert.Equal(t, "m999", front)
	assert.Equal(t, 6, h.Len())
}

func TestEditAppendRespectsCapacity(t *testing.T) {
	e := NewEdit(3)
	assert.True(t, e.Append('a'))
	assert.True(t, e.Append('é'))
	assert.True(t, e.Append('c'))
	assert.False(t, e.Append('d'))
	assert.Equal(t, "aéc", e.String())
	assert.Equal(t, 3, e.Len())
}

func TestEditBackspace(t *testing.T) {
	e := NewEdit(0)
	assert.Equal(t, DefaultEditCapacity, e.Capacity())
	assert.False(t, e.Backspace())

	e.Append('h')
	e.Append('ü')
	assert.True(t, e.Backspace())
	assert.Equal(t, "h", e.String())
	assert.True(t, e.Backspace())
	assert.Equal(t, "", e.String())
	assert.Equal(t, 0, e.Len())
}

func TestEditClear(t *testing.T) {
	e := NewEdit(DefaultEditCapacity)
	for _, r := range "hello" {
		e.Append(r)
	}
	e.Clear()
	assert.Equal(t, "", e.String())
	assert.Equal(t, 0, e.Len())

	for i := 0; i < DefaultEditCapacity; i++ {
		require.True(t, e.Append('x'))
	}
	assert.False(t, e.Append('x'))
}
