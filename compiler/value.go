package compiler

import "fmt"

// Address identifies one tape cell. Addresses are handed out by the
// Allocator; source code never picks them.
type Address int

type Kind int

const (
	// KindConstant is a value fully known at compile time. It has no
	// address; every read of it is inlined as a literal during lowering.
	KindConstant Kind = iota
	// KindOwned carries an address reserved exclusively for this binding.
	// The owning scope releases the address on exit.
	KindOwned
	// KindBorrowed carries an address that belongs to some other Owned
	// binding. Reads and writes go through to the original storage, and a
	// borrow never releases the address.
	KindBorrowed
)

// Value is the compile-time representation of a source-level value.
type Value struct {
	Kind Kind
	Byte uint8   // meaningful for KindConstant
	Addr Address // meaningful for KindOwned and KindBorrowed
}

func ConstantValue(b uint8) Value {
	return Value{Kind: KindConstant, Byte: b}
}

func OwnedValue(addr Address) Value {
	return Value{Kind: KindOwned, Addr: addr}
}

func BorrowedValue(addr Address) Value {
	return Value{Kind: KindBorrowed, Addr: addr}
}

func (v Value) IsConstant() bool { return v.Kind == KindConstant }
func (v Value) IsOwned() bool    { return v.Kind == KindOwned }
func (v Value) IsBorrowed() bool { return v.Kind == KindBorrowed }

// Borrow returns a non-owning view of an addressed value.
func (v Value) Borrow() Value {
	if v.Kind == KindConstant {
		panic("cannot borrow a constant value")
	}
	return BorrowedValue(v.Addr)
}

func (v Value) String() string {
	switch v.Kind {
	case KindConstant:
		return fmt.Sprintf("const(%d)", v.Byte)
	case KindOwned:
		return fmt.Sprintf("owned(&%d)", v.Addr)
	default:
		return fmt.Sprintf("borrow(&%d)", v.Addr)
	}
}
