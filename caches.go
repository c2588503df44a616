package bencode

import (
	"reflect"
	"sync"
)

// codecCache memoizes the compiled codec func (or compile error) for
// each type handed to the reflection layer. Compilation is two-phase:
// the compiler publishes a forward reference before descending into a
// type's children, so self-referential types (legal in bencode, the
// data bounds the recursion) resolve through the cache at run time
// instead of recursing forever at compile time.
type codecCache[F any] struct {
	m sync.Map // reflect.Type -> codecEntry[F]
}

type codecEntry[F any] struct {
	fn  F
	err error
}

func (c *codecCache[F]) load(t reflect.Type) (codecEntry[F], bool) {
	ent, ok := c.m.Load(t)
	if !ok {
		var zero codecEntry[F]
		return zero, false
	}
	return ent.(codecEntry[F]), true
}

func (c *codecCache[F]) loadOrStore(t reflect.Type, ent codecEntry[F]) (codecEntry[F], bool) {
	prev, loaded := c.m.LoadOrStore(t, ent)
	return prev.(codecEntry[F]), loaded
}

func (c *codecCache[F]) store(t reflect.Type, ent codecEntry[F]) {
	c.m.Store(t, ent)
}
