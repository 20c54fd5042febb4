// Package ownership tracks every allocation the generated bridge hands to the
// host and the entry point the host must call to release it.
//
// Strategies record a Transfer for each host-bound allocation they emit and
// Provide each free entry point that is in scope for the module. Verify then
// checks that every transfer has exactly one matching entry point. Arena is a
// simulated native heap used to exercise the same discipline at run time.
package ownership

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind is the shape of a host-bound allocation.
type Kind int

const (
	KindString      Kind = iota // NUL-terminated UTF-8, freed whole
	KindBuffer                  // length-tagged integer buffer, freed by byte span
	KindStructArray             // array of proxy records, freed by element count
	KindProxy                   // single proxy record owning nested strings
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBuffer:
		return "buffer"
	case KindStructArray:
		return "struct-array"
	case KindProxy:
		return "proxy"
	default:
		return "unknown"
	}
}

// Transfer records one allocation whose ownership moves to the host.
type Transfer struct {
	Kind Kind
	Site string // e.g. "DemoTrait.greet return"
	Free string // entry point the host calls to release it
	// Width is the element byte width for buffers; the host frees
	// count*Width bytes.
	Width int
	Elem  string // element or record type, for diagnostics
	// Inbound marks an allocation the host hands to the library, which
	// releases it through a host-provided entry point.
	Inbound bool
}

func (t Transfer) String() string {
	if t.Inbound {
		return fmt.Sprintf("%s host %s via %s", t.Site, t.Kind, t.Free)
	}
	switch t.Kind {
	case KindBuffer:
		return fmt.Sprintf("%s %s (width %d) via %s", t.Site, t.Kind, t.Width, t.Free)
	case KindStructArray, KindProxy:
		return fmt.Sprintf("%s %s of %s via %s", t.Site, t.Kind, t.Elem, t.Free)
	}
	return fmt.Sprintf("%s %s via %s", t.Site, t.Kind, t.Free)
}

// Ledger pairs recorded transfers with provided free entry points. A Ledger
// belongs to one module generation and is not safe for concurrent use.
type Ledger struct {
	transfers []Transfer
	provided  map[string]int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{provided: make(map[string]int)}
}

// Record notes a host-bound allocation.
func (l *Ledger) Record(t Transfer) {
	l.transfers = append(l.transfers, t)
}

// Provide notes that the free entry point named free is emitted and in scope.
func (l *Ledger) Provide(free string) {
	l.provided[free]++
}

// Transfers returns the recorded transfers in emission order.
func (l *Ledger) Transfers() []Transfer {
	return append([]Transfer(nil), l.transfers...)
}

// Provided returns the provided entry points, sorted.
func (l *Ledger) Provided() []string {
	names := make([]string, 0, len(l.provided))
	for n := range l.provided {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ErrUnpaired is wrapped by Verify failures.
var ErrUnpaired = errors.New("ownership transfer without exactly one free entry point")

// Verify checks that every transfer names a free entry point provided
// exactly once.
func (l *Ledger) Verify() error {
	var problems []string
	for _, t := range l.transfers {
		switch n := l.provided[t.Free]; {
		case n == 0:
			problems = append(problems, fmt.Sprintf("%s: %s is not emitted", t, t.Free))
		case n > 1:
			problems = append(problems, fmt.Sprintf("%s: %s is emitted %d times", t, t.Free, n))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrUnpaired, strings.Join(problems, "; "))
	}
	return nil
}
