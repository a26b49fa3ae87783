// Package topology reconstructs dataflow operator hierarchies.
//
// Materialize reports every operator with a hierarchical address: a sequence
// of scope ids where each proper prefix denotes an enclosing scope. Resolving
// an address's prefixes root-to-leaf against the operator snapshot yields the
// call stack the profile format requires.
package topology

import (
	"fmt"
	"strconv"
	"strings"
)

// Address locates one operator within a dataflow's nesting structure.
type Address []uint64

// ParseAddress parses the Materialize text form of a list, e.g. "{1,2,3}".
func ParseAddress(s string) (Address, error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(s, "{"), "}")
	if trimmed == "" {
		return nil, fmt.Errorf("empty operator address %q", s)
	}

	parts := strings.Split(trimmed, ",")
	addr := make(Address, len(parts))
	for i, part := range parts {
		seg, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed operator address %q: %w", s, err)
		}
		addr[i] = seg
	}
	return addr, nil
}

// String renders the Materialize text form.
func (a Address) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, seg := range a {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(seg, 10))
	}
	b.WriteByte('}')
	return b.String()
}

// Prefix returns the first n segments. The result aliases a.
func (a Address) Prefix(n int) Address {
	return a[:n]
}

// Parent returns the enclosing scope's address, or nil for a root.
func (a Address) Parent() Address {
	if len(a) <= 1 {
		return nil
	}
	return a[:len(a)-1]
}

// Leaf returns the innermost segment.
func (a Address) Leaf() uint64 {
	return a[len(a)-1]
}

// Compare orders addresses lexicographically by segment, shorter first on
// equal prefixes. Used for the deterministic sample ordering.
func (a Address) Compare(b Address) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}
