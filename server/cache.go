package server

import (
	"container/list"
	"sync"

	"reflow/reader"
)

type cacheEntry struct {
	key     string
	session *reader.Session
	err     error
	ready   chan struct{} // closed when loading is finished
	refs    int
	evicted bool
	elem    *list.Element
}

// sessionCache keeps most recently used formatted books. Evicted session is
// closed when the last request using it releases it.
type sessionCache struct {
	mu    sync.Mutex
	size  int
	lru   *list.List // front is most recently used
	items map[string]*cacheEntry
	open  func(key string) (*reader.Session, error)
}

func newSessionCache(size int, open func(key string) (*reader.Session, error)) *sessionCache {
	return &sessionCache{
		size:  max(size, 1),
		lru:   list.New(),
		items: make(map[string]*cacheEntry),
		open:  open,
	}
}

// acquire returns session for key, opening it when necessary. Books are
// opened outside of the cache lock, requests for a book being opened wait
// for the first one to finish, so every book is formatted once.
func (c *sessionCache) acquire(key string) (*cacheEntry, error) {
	c.mu.Lock()
	if e, ok := c.items[key]; ok {
		e.refs++
		c.lru.MoveToFront(e.elem)
		c.mu.Unlock()

		<-e.ready
		if e.err != nil {
			c.release(e)
			return nil, e.err
		}
		return e, nil
	}

	e := &cacheEntry{key: key, ready: make(chan struct{}), refs: 1}
	e.elem = c.lru.PushFront(e)
	c.items[key] = e
	c.evict()
	c.mu.Unlock()

	s, err := c.open(key)

	c.mu.Lock()
	e.session, e.err = s, err
	if err != nil && !e.evicted {
		c.lru.Remove(e.elem)
		delete(c.items, key)
		e.evicted = true
	}
	close(e.ready)
	c.mu.Unlock()

	if err != nil {
		c.release(e)
		return nil, err
	}
	return e, nil
}

// evict drops least recently used entries over the size limit. Must be
// called with lock held.
func (c *sessionCache) evict() {
	for c.lru.Len() > c.size {
		old := c.lru.Remove(c.lru.Back()).(*cacheEntry)
		delete(c.items, old.key)
		old.evicted = true
		if old.refs == 0 {
			old.close()
		}
	}
}

func (c *sessionCache) release(e *cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e.refs--
	if e.evicted && e.refs == 0 {
		e.close()
	}
}

func (c *sessionCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lru.Len()
}

// close closes every cached session not in use.
func (c *sessionCache) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.items {
		e.evicted = true
		if e.refs == 0 {
			e.close()
		}
	}
	c.items = make(map[string]*cacheEntry)
	c.lru.Init()
}

// close releases session of a loaded entry, entries still loading are held
// by their loader and never get here with no references.
func (e *cacheEntry) close() {
	if e.session != nil {
		e.session.Close()
	}
}
