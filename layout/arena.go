package layout

import (
	"sync"
)

const arenaChunkSize = 64 << 10

var chunkPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, arenaChunkSize)
		return &b
	},
}

// Arena is a bump allocator for decoded text. Every slice it hands out stays
// valid until Release, instructions borrow from it instead of owning copies.
// Arena is not safe for concurrent use.
type Arena struct {
	chunks []*[]byte
	cur    []byte
	size   int
}

// NewArena returns empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Alloc returns zeroed slice of n bytes. Capacity of the result is limited to
// n, so appending to it never tramples neighbouring allocations.
func (a *Arena) Alloc(n int) []byte {
	if n <= 0 {
		return nil
	}
	a.size += n
	if n > arenaChunkSize/4 {
		// large blocks are not worth pooling
		return make([]byte, n)
	}
	if cap(a.cur)-len(a.cur) < n {
		p := chunkPool.Get().(*[]byte)
		a.chunks = append(a.chunks, p)
		a.cur = (*p)[:0]
	}
	start := len(a.cur)
	a.cur = a.cur[:start+n]
	b := a.cur[start : start+n : start+n]
	clear(b)
	return b
}

// Copy places copy of data into the arena.
func (a *Arena) Copy(data []byte) []byte {
	b := a.Alloc(len(data))
	copy(b, data)
	return b
}

// CopyString places copy of s into the arena.
func (a *Arena) CopyString(s string) []byte {
	b := a.Alloc(len(s))
	copy(b, s)
	return b
}

// Size returns number of bytes handed out so far.
func (a *Arena) Size() int {
	if a == nil {
		return 0
	}
	return a.size
}

// Release returns memory to the pool. All previously allocated slices become
// invalid.
func (a *Arena) Release() {
	if a == nil {
		return
	}
	for _, p := range a.chunks {
		*p = (*p)[:0]
		chunkPool.Put(p)
	}
	a.chunks, a.cur, a.size = nil, nil, 0
}
