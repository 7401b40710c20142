package registry

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listener struct{ name string }

type roomDevice struct{ room, device int }

type notifier interface{ notify() }

// batch is a value listener that cannot be compared with ==
type batch struct{ seen []string }

func (batch) notify() {}

type pointerNotifier struct{}

func (*pointerNotifier) notify() {}

func TestRegisterLookup(t *testing.T) {
	r := New[roomDevice, *listener]("test")
	lamp := &listener{name: "lamp"}

	_, replaced := r.Register(roomDevice{1, 2}, lamp)
	assert.False(t, replaced)

	got, ok := r.Lookup(roomDevice{1, 2})
	require.True(t, ok)
	assert.Same(t, lamp, got)

	_, ok = r.Lookup(roomDevice{1, 3})
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRegisterLastWriteWins(t *testing.T) {
	r := New[string, *listener]("test")
	first := &listener{name: "first"}
	second := &listener{name: "second"}

	r.Register("f-1", first)
	prev, replaced := r.Register("f-1", second)

	assert.True(t, replaced)
	assert.Same(t, first, prev)

	got, _ := r.Lookup("f-1")
	assert.Same(t, second, got)
	assert.Equal(t, 1, r.Len())
}

func TestUnregister(t *testing.T) {
	r := New[string, *listener]("test")
	l := &listener{}
	r.Register("a", l)

	assert.True(t, r.Unregister("a"))
	assert.False(t, r.Unregister("a"))
	_, ok := r.Lookup("a")
	assert.False(t, ok)
}

func TestUnregisterListener(t *testing.T) {
	r := New[string, *listener]("test")
	shared := &listener{name: "shared"}
	other := &listener{name: "other"}
	r.Register("a", shared)
	r.Register("b", shared)
	r.Register("c", other)

	assert.Equal(t, 2, r.UnregisterListener(shared))
	assert.Equal(t, []string{"c"}, r.IDs())
	assert.Equal(t, 0, r.UnregisterListener(shared))
}

func TestUncomparableListeners(t *testing.T) {
	r := New[string, notifier]("test")

	require.NotPanics(t, func() {
		r.Register("a", batch{})
		_, replaced := r.Register("a", batch{seen: []string{"x"}})
		assert.True(t, replaced)
		assert.Equal(t, 0, r.UnregisterListener(batch{}))
	})
	assert.Equal(t, 1, r.Len())

	p := &pointerNotifier{}
	r.Register("b", p)
	assert.Equal(t, 1, r.UnregisterListener(p))
	assert.Equal(t, []string{"a"}, r.IDs())
}

func TestSame(t *testing.T) {
	p := &pointerNotifier{}
	assert.True(t, Same[notifier](p, p))
	assert.False(t, Same[notifier](p, &pointerNotifier{}))
	assert.True(t, Same[notifier](nil, nil))
	assert.False(t, Same[notifier](nil, p))
	assert.False(t, Same[notifier](batch{}, batch{}))
	assert.False(t, Same[notifier](batch{}, p))
}

func TestConcurrentAccess(t *testing.T) {
	r := New[int, *listener]("test")
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := g*1000 + i
				l := &listener{name: fmt.Sprint(id)}
				r.Register(id, l)
				got, ok := r.Lookup(id)
				if !ok || got != l {
					t.Errorf("lookup %d returned %v", id, got)
				}
				if i%2 == 0 {
					r.Unregister(id)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 8*100, r.Len())
	ids := r.IDs()
	sort.Ints(ids)
	for _, id := range ids {
		assert.Equal(t, 1, id%2, "even ids were unregistered")
	}
}

func TestCache(t *testing.T) {
	c := NewCache()
	c.Set("f-1", 215)
	c.Set("f-2", 1)

	v, ok := c.Get("f-1")
	require.True(t, ok)
	assert.Equal(t, int64(215), v.Raw)
	assert.False(t, v.Updated.IsZero())

	snap := c.Snapshot()
	assert.Len(t, snap, 2)
	snap["f-3"] = Value{}
	assert.Equal(t, 2, c.Len(), "snapshot must be a copy")

	c.Reset()
	_, ok = c.Get("f-1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}
