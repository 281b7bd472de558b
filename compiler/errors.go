package compiler

import "errors"

// Internal invariant violations. The AST contract guarantees these cannot
// happen for trees produced by the parser; when they do surface, the caller
// should report them as a compiler-internal failure, not a user error.
var (
	ErrUnboundIdentifier   = errors.New("unbound identifier")
	ErrScopeUnderflow      = errors.New("scope underflow")
	ErrInvalidScopeNesting = errors.New("invalid scope nesting")
	ErrDanglingBorrow      = errors.New("dangling borrow")
)
