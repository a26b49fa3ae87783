package topology

import (
	"fmt"
)

// Row is one operator-address record as delivered by the introspection
// relation: the operator's worker, its address in Materialize text form, and
// its human-readable name. Rows are comparable so they can key a multiset.
type Row struct {
	Worker  uint64
	Address string
	Name    string
}

type opKey struct {
	worker uint64
	addr   string
}

// Resolver maps (worker, address) to call stacks over one immutable
// point-in-time snapshot of the operator-address relation.
//
// Operators are namespaced per worker: two workers reporting the same address
// denote independently-instantiated operators, and their stacks are never
// merged here. Worker separation in the artifact happens via a sample label.
type Resolver struct {
	names map[opKey]string
}

// NewResolver builds a Resolver from the snapshot multiset of operator rows.
func NewResolver(snapshot map[Row]int64) (*Resolver, error) {
	names := make(map[opKey]string, len(snapshot))
	for row := range snapshot {
		addr, err := ParseAddress(row.Address)
		if err != nil {
			return nil, err
		}
		names[opKey{worker: row.Worker, addr: addr.String()}] = row.Name
	}
	return &Resolver{names: names}, nil
}

// PlaceholderName is the documented fallback for a scope that has no
// directly-observable operator row. Downstream viewers key on stack text, so
// this rendering is a compatibility contract: do not change it.
func PlaceholderName(segment uint64) string {
	return fmt.Sprintf("[unknown operator %d]", segment)
}

// Lookup returns the name recorded for an exact (worker, address) pair.
func (r *Resolver) Lookup(worker uint64, addr Address) (string, bool) {
	name, ok := r.names[opKey{worker: worker, addr: addr.String()}]
	return name, ok
}

// Stack resolves addr into a root-to-leaf sequence of operator names. Missing
// ancestors are filled with PlaceholderName so the stack depth always equals
// the address depth; gaps reports how many were filled. ok is false when the
// leaf itself is unknown, in which case the caller cannot attribute the
// address to any operator.
func (r *Resolver) Stack(worker uint64, addr Address) (stack []string, gaps int, ok bool) {
	if len(addr) == 0 {
		return nil, 0, false
	}

	if _, ok := r.Lookup(worker, addr); !ok {
		return nil, 0, false
	}

	stack = make([]string, 0, len(addr))
	for i := 1; i <= len(addr); i++ {
		prefix := addr.Prefix(i)
		name, found := r.Lookup(worker, prefix)
		if !found {
			name = PlaceholderName(prefix.Leaf())
			gaps++
		}
		stack = append(stack, name)
	}
	return stack, gaps, true
}
