package server

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"reflow/layout"
	"reflow/reader"
)

func TestSessionCacheConcurrentOpen(t *testing.T) {
	var opened atomic.Int32
	gate := make(chan struct{})
	c := newSessionCache(4, func(key string) (*reader.Session, error) {
		opened.Add(1)
		if key == "slow" {
			<-gate
		}
		return &reader.Session{Doc: &layout.Document{}}, nil
	})

	var wg sync.WaitGroup
	entries := make([]*cacheEntry, 8)
	for i := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := c.acquire("slow")
			if err != nil {
				t.Error(err)
				return
			}
			entries[i] = e
		}()
	}

	// other books are served while one is being formatted
	done := make(chan struct{})
	go func() {
		defer close(done)
		e, err := c.acquire("fast")
		if err != nil {
			t.Error(err)
			return
		}
		c.release(e)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("acquire blocked by book being opened")
	}

	close(gate)
	wg.Wait()
	if n := opened.Load(); n != 2 {
		t.Errorf("opened %d times, want 2", n)
	}
	for i, e := range entries {
		if e == nil || e != entries[0] || e.session == nil {
			t.Fatalf("entry %d: %+v", i, e)
		}
		c.release(e)
	}
	if entries[0].refs != 0 {
		t.Errorf("refs %d after release", entries[0].refs)
	}
}

func TestSessionCacheOpenError(t *testing.T) {
	var opened atomic.Int32
	fail := errors.New("broken book")
	c := newSessionCache(4, func(key string) (*reader.Session, error) {
		if opened.Add(1) == 1 {
			return nil, fail
		}
		return &reader.Session{Doc: &layout.Document{}}, nil
	})

	if _, err := c.acquire("a"); !errors.Is(err, fail) {
		t.Fatalf("expected open error, got %v", err)
	}
	if n := c.len(); n != 0 {
		t.Errorf("failed book cached, %d entries", n)
	}
	e, err := c.acquire("a")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	c.release(e)
	if n := opened.Load(); n != 2 {
		t.Errorf("opened %d times, want 2", n)
	}
}

func TestSessionCacheEvictInUse(t *testing.T) {
	c := newSessionCache(1, func(key string) (*reader.Session, error) {
		return &reader.Session{Doc: &layout.Document{}}, nil
	})

	a, err := c.acquire("a")
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.acquire("b")
	if err != nil {
		t.Fatal(err)
	}
	if !a.evicted || b.evicted || c.len() != 1 {
		t.Fatalf("unexpected eviction: a %v, b %v, %d entries", a.evicted, b.evicted, c.len())
	}
	if a.session == nil || a.refs != 1 {
		t.Errorf("evicted entry in use lost its session")
	}
	c.release(a)
	c.release(b)
	c.close()
	if c.len() != 0 {
		t.Errorf("%d entries after close", c.len())
	}
}
