// Package dependency provides change sources that void cached entries.
//
// A Dependency is handed to the primary store together with the value it
// guards. The store asks HasChanged on reads and during its sweeps and evicts
// the entry with reason DependencyChanged once it reports true. Ownership
// passes to the store on write: when the entry dies, the store closes the
// dependency if it implements io.Closer. Do not share one instance between
// entries.
package dependency

import (
	"io"
	"reflect"

	"github.com/cockroachdb/errors"
)

// Dependency reports whether the external resource it watches has changed
// since the dependency was created. Once true, it must stay true.
// Implementations must be safe for concurrent use and should be pointer
// types, so that instances can be told apart.
type Dependency interface {
	HasChanged() bool
}

// Close releases d if it holds resources. nil is allowed.
func Close(d Dependency) error {
	if c, ok := d.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Aggregate is changed as soon as any member is. It owns its members and
// closes them all.
type Aggregate struct {
	deps []Dependency
}

var _ Dependency = (*Aggregate)(nil)

// NewAggregate groups deps; nil members are skipped.
func NewAggregate(deps ...Dependency) *Aggregate {
	a := &Aggregate{deps: make([]Dependency, 0, len(deps))}
	for _, d := range deps {
		if d != nil {
			a.deps = append(a.deps, d)
		}
	}
	return a
}

func (a *Aggregate) HasChanged() bool {
	for _, d := range a.deps {
		if d.HasChanged() {
			return true
		}
	}
	return false
}

// Close closes every member and combines their errors.
func (a *Aggregate) Close() error {
	var err error
	for _, d := range a.deps {
		err = errors.CombineErrors(err, Close(d))
	}
	return err
}

// Contains reports whether d is outer itself or a member of an Aggregate
// reachable from outer. Closing outer then closes d too.
func Contains(outer, d Dependency) bool {
	if outer == nil || d == nil {
		return false
	}
	if same(outer, d) {
		return true
	}
	if a, ok := outer.(*Aggregate); ok {
		for _, m := range a.deps {
			if Contains(m, d) {
				return true
			}
		}
	}
	return false
}

// same compares a and b without panicking on uncomparable dynamic types,
// which are never considered the same.
func same(a, b Dependency) bool {
	t := reflect.TypeOf(a)
	return t == reflect.TypeOf(b) && t.Comparable() && a == b
}
