package core

import (
	"fmt"
	"strings"
)

// maxStateNameBytes is the hard limit ASL places on a state name.
const maxStateNameBytes = 75

// stateNames is the state-name allocator. It produces globally unique
// ASL state names: truncate to maxStateNameBytes, then, on collision,
// append a space and the smallest unused integer.
//
// Two disjoint allocators exist per compilation: stateNames for
// States map keys, varNames for user identifiers. They must never
// share a memo.
type stateNames struct {
	seen map[string]bool
}

func newStateNames() *stateNames {
	return &stateNames{seen: map[string]bool{}}
}

// Alloc returns a fresh, unique state name derived from want.
func (n *stateNames) Alloc(want string) string {
	if len(want) > maxStateNameBytes {
		want = want[:maxStateNameBytes]
	}
	if !n.seen[want] {
		n.seen[want] = true
		return want
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s %d", want, i)
		if len(candidate) > maxStateNameBytes {
			// shave the base, not the counter
			base := want[:maxStateNameBytes-len(candidate)+len(want)]
			candidate = fmt.Sprintf("%s %d", base, i)
		}
		if !n.seen[candidate] {
			n.seen[candidate] = true
			return candidate
		}
	}
}

// varNames is the variable-name allocator. Each declaration (a
// pointer-identity key supplied by the caller) is assigned a name the
// first time it's seen; later lookups of the same declaration return
// the memoized name. Distinct declarations that want the same surface
// identifier collide and get a "__N" suffix.
type varNames struct {
	byDecl map[interface{}]string
	used   map[string]bool
}

func newVarNames() *varNames {
	return &varNames{
		byDecl: map[interface{}]string{},
		used:   map[string]bool{},
	}
}

// Alloc returns the allocated JSON path name (without the "$."
// prefix) for decl, allocating one from want on first sight.
func (n *varNames) Alloc(decl interface{}, want string) string {
	if name, ok := n.byDecl[decl]; ok {
		return name
	}
	name := want
	if n.used[name] {
		for i := 1; ; i++ {
			candidate := fmt.Sprintf("%s__%d", want, i)
			if !n.used[candidate] {
				name = candidate
				break
			}
		}
	}
	n.used[name] = true
	n.byDecl[decl] = name
	return name
}

// Lookup returns the previously allocated name for decl, or "", false
// if decl has never been allocated.
func (n *varNames) Lookup(decl interface{}) (string, bool) {
	name, ok := n.byDecl[decl]
	return name, ok
}

// heapSlots is a monotonic counter producing fresh scratch addresses.
// No recycling: determinism depends on every compilation consuming
// the counter in the same traversal order.
type heapSlots struct {
	next int
}

// Alloc returns the next "$.heapN" path.
func (h *heapSlots) Alloc() string {
	p := fmt.Sprintf("$.heap%d", h.next)
	h.next++
	return p
}

// sanitizeIdent strips characters JSON Path can't carry unescaped so
// a surface identifier can be embedded directly into a path segment.
// Surface identifiers are already restricted to JS identifier syntax
// by the (out of scope) parser, so this is mostly a defensive no-op.
func sanitizeIdent(s string) string {
	return strings.TrimSpace(s)
}
