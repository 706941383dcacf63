package prover

import (
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

// countingHandler carries a distinct id so instance identity checks do not
// depend on zero-size pointer semantics.
type countingHandler struct {
	MockHandler
	id int
}

func TestRegistryMemoizesHandlers(t *testing.T) {
	c := qt.New(t)
	built := 0
	RegisterBuilder("memo-test", func() (Handler, error) {
		built++
		return &countingHandler{id: built}, nil
	})

	r := NewRegistry()
	first, err := r.Get("memo-test")
	c.Assert(err, qt.IsNil)
	second, err := r.Get("memo-test")
	c.Assert(err, qt.IsNil)
	c.Assert(second, qt.Equals, first)
	c.Assert(built, qt.Equals, 1)

	// a fresh registry constructs its own instance
	other := NewRegistry()
	third, err := other.Get("memo-test")
	c.Assert(err, qt.IsNil)
	c.Assert(third, qt.Not(qt.Equals), first)
	c.Assert(built, qt.Equals, 2)
}

func TestRegistryUnknownProofSystem(t *testing.T) {
	c := qt.New(t)
	r := NewRegistry()
	_, err := r.Get("no-such-system")
	c.Assert(err, qt.ErrorMatches, `unknown proof system.*`)
}

func TestRegistryConcurrentGet(t *testing.T) {
	c := qt.New(t)
	built := 0
	RegisterBuilder("concurrent-test", func() (Handler, error) {
		built++
		time.Sleep(10 * time.Millisecond)
		return &countingHandler{id: built}, nil
	})

	r := NewRegistry()
	var wg sync.WaitGroup
	handlers := make([]Handler, 8)
	for i := range handlers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := r.Get("concurrent-test")
			c.Check(err, qt.IsNil)
			handlers[i] = h
		}()
	}
	wg.Wait()
	c.Assert(built, qt.Equals, 1)
	for _, h := range handlers {
		c.Assert(h, qt.Equals, handlers[0])
	}
}

func TestRegistryClear(t *testing.T) {
	c := qt.New(t)
	built := 0
	RegisterBuilder("clear-test", func() (Handler, error) {
		built++
		return &countingHandler{id: built}, nil
	})

	r := NewRegistry()
	first, err := r.Get("clear-test")
	c.Assert(err, qt.IsNil)
	r.Clear()
	second, err := r.Get("clear-test")
	c.Assert(err, qt.IsNil)
	c.Assert(second, qt.Not(qt.Equals), first)
	c.Assert(built, qt.Equals, 2)
}
