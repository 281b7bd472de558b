package compiler

import (
	"fmt"
	"sort"
)

// Scope is one frame of the allocator's scope stack. It records the
// addresses Owned within it; all of them are returned to the free pool in
// bulk when the scope exits.
type Scope struct {
	owned []Address
	live  bool
}

// Allocator maps bindings to tape addresses. Reused offsets are physically
// the same cells, so correctness rests on the scope discipline (no two live
// Owned bindings share an address) and on dirty tracking (a logically fresh
// cell must not inherit a stale value).
type Allocator struct {
	scopes []*Scope
	free   []Address // released addresses, kept sorted ascending
	next   Address   // high-water mark: highest address ever claimed + 1
	dirty  map[Address]bool
	owner  map[Address]*Scope

	enters int
	exits  int

	// OnAlloc, when set, is called with every address handed out. Tests
	// use it to assert ownership invariants on each allocation.
	OnAlloc func(Address)
}

func NewAllocator() *Allocator {
	return &Allocator{
		scopes: []*Scope{{live: true}},
		dirty:  map[Address]bool{},
		owner:  map[Address]*Scope{},
	}
}

func (a *Allocator) top() *Scope {
	return a.scopes[len(a.scopes)-1]
}

// EnterScope pushes a new scope and returns its handle.
func (a *Allocator) EnterScope() *Scope {
	s := &Scope{live: true}
	a.scopes = append(a.scopes, s)
	a.enters++
	return s
}

// ExitScope pops the scope identified by handle, which must be the current
// top. Every address it owns goes back to the free pool; the dirty flag is
// left as the IR proved it, so a cell zeroed before release can be reissued
// without an explicit clear.
func (a *Allocator) ExitScope(handle *Scope) error {
	if len(a.scopes) == 1 {
		return fmt.Errorf("%w: cannot exit the root scope", ErrScopeUnderflow)
	}
	if a.top() != handle {
		return fmt.Errorf("%w: handle is not the innermost scope", ErrInvalidScopeNesting)
	}
	a.scopes = a.scopes[:len(a.scopes)-1]
	a.exits++

	handle.live = false
	a.free = append(a.free, handle.owned...)
	sort.Slice(a.free, func(i, j int) bool { return a.free[i] < a.free[j] })
	return nil
}

// AllocateOwned returns the lowest-numbered free address, extending the
// high-water mark when the pool is empty, and registers it as Owned in the
// current top scope.
func (a *Allocator) AllocateOwned() Address {
	var addr Address
	if len(a.free) > 0 {
		addr = a.free[0]
		a.free = a.free[1:]
	} else {
		addr = a.next
		a.next++
	}
	a.top().owned = append(a.top().owned, addr)
	a.owner[addr] = a.top()
	if a.OnAlloc != nil {
		a.OnAlloc(addr)
	}
	return addr
}

// BindBorrowed returns addr as a non-owning binding. The check is pure
// scope-liveness bookkeeping: if the Owned binding's scope has already been
// popped the borrow would dangle.
func (a *Allocator) BindBorrowed(addr Address) (Address, error) {
	s, ok := a.owner[addr]
	if !ok || !s.live {
		return 0, fmt.Errorf("%w: address %d has no live owner", ErrDanglingBorrow, addr)
	}
	return addr, nil
}

// IsClean reports whether the allocator currently believes addr holds zero.
// Never-used addresses start clean; everything else follows the IR facts
// recorded through MarkClean and MarkDirty.
func (a *Allocator) IsClean(addr Address) bool {
	return !a.dirty[addr]
}

func (a *Allocator) MarkClean(addr Address) {
	delete(a.dirty, addr)
}

func (a *Allocator) MarkDirty(addr Address) {
	a.dirty[addr] = true
}

// HighWater returns one past the highest address ever claimed.
func (a *Allocator) HighWater() Address {
	return a.next
}

// LiveAddresses returns the set of addresses owned by scopes still on the
// stack. The optimizer treats these as observable at program end.
func (a *Allocator) LiveAddresses() map[Address]bool {
	live := map[Address]bool{}
	for _, s := range a.scopes {
		for _, addr := range s.owned {
			live[addr] = true
		}
	}
	return live
}

// Balanced reports whether every EnterScope has been matched by an
// ExitScope.
func (a *Allocator) Balanced() bool {
	return a.enters == a.exits
}
