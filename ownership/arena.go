package ownership

import (
	"errors"
	"fmt"
	"sync"
)

// Ptr is an opaque address in an Arena. The zero Ptr is null.
type Ptr uint64

var (
	ErrDoubleFree     = errors.New("double free")
	ErrUnknownPointer = errors.New("unknown pointer")
	ErrSpanMismatch   = errors.New("free span does not match allocation")
	ErrKindMismatch   = errors.New("free entry point does not match allocation")
)

type block struct {
	data []byte
	str  bool
}

// Arena is a simulated native heap. Allocations are byte-exact and must be
// released through the entry point matching their shape, mirroring the
// generated free_rust/free_str pair.
type Arena struct {
	mu     sync.Mutex
	next   Ptr
	live   map[Ptr]block
	freed  map[Ptr]bool
	allocs int
	frees  int
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{live: make(map[Ptr]block), freed: make(map[Ptr]bool)}
}

func (a *Arena) alloc(b block) Ptr {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next += 16
	p := a.next
	a.live[p] = b
	a.allocs++
	return p
}

// AllocBuffer copies data into a new buffer allocation.
func (a *Arena) AllocBuffer(data []byte) Ptr {
	return a.alloc(block{data: append([]byte{}, data...)})
}

// AllocString copies s into a new NUL-terminated string allocation.
func (a *Arena) AllocString(s string) Ptr {
	data := make([]byte, len(s)+1)
	copy(data, s)
	return a.alloc(block{data: data, str: true})
}

func (a *Arena) lookup(p Ptr) (block, error) {
	if b, ok := a.live[p]; ok {
		return b, nil
	}
	if a.freed[p] {
		return block{}, fmt.Errorf("%w: %#x", ErrDoubleFree, uint64(p))
	}
	return block{}, fmt.Errorf("%w: %#x", ErrUnknownPointer, uint64(p))
}

// Read returns a copy of the first n bytes of a live allocation.
func (a *Arena) Read(p Ptr, n int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, err := a.lookup(p)
	if err != nil {
		return nil, err
	}
	if n < 0 || n > len(b.data) {
		return nil, fmt.Errorf("%w: read %d bytes of %d at %#x", ErrSpanMismatch, n, len(b.data), uint64(p))
	}
	return append([]byte{}, b.data[:n]...), nil
}

// ReadString returns the string stored at a live string allocation.
func (a *Arena) ReadString(p Ptr) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, err := a.lookup(p)
	if err != nil {
		return "", err
	}
	if !b.str {
		return "", fmt.Errorf("%w: %#x is a buffer", ErrKindMismatch, uint64(p))
	}
	return string(b.data[:len(b.data)-1]), nil
}

// FreeBuffer releases a buffer allocation. byteLen must equal the allocated
// size exactly.
func (a *Arena) FreeBuffer(p Ptr, byteLen int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, err := a.lookup(p)
	if err != nil {
		return err
	}
	if b.str {
		return fmt.Errorf("%w: %#x is a string", ErrKindMismatch, uint64(p))
	}
	if byteLen != len(b.data) {
		return fmt.Errorf("%w: freed %d bytes of %d at %#x", ErrSpanMismatch, byteLen, len(b.data), uint64(p))
	}
	a.release(p)
	return nil
}

// FreeString releases a string allocation.
func (a *Arena) FreeString(p Ptr) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, err := a.lookup(p)
	if err != nil {
		return err
	}
	if !b.str {
		return fmt.Errorf("%w: %#x is a buffer", ErrKindMismatch, uint64(p))
	}
	a.release(p)
	return nil
}

func (a *Arena) release(p Ptr) {
	delete(a.live, p)
	a.freed[p] = true
	a.frees++
}

// Outstanding returns the number of live allocations.
func (a *Arena) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// Stats returns the total allocation and free counts.
func (a *Arena) Stats() (allocs, frees int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocs, a.frees
}
