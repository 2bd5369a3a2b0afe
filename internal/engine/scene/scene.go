// Package scene is a headless entity world: entities carry typed components
// and form a parent/child tree.
package scene

import (
	"reflect"
	"slices"
)

// Entity identifies a spawned object. The zero value is never allocated.
type Entity uint32

// Invalid is the zero entity.
const Invalid Entity = 0

// Releaser is implemented by components holding asset handles. Despawn
// calls Release on every component that implements it.
type Releaser interface {
	Release()
}

type node struct {
	parent     Entity
	children   []Entity
	components map[reflect.Type]any // values are *T
}

// World owns entities and their components. It is not safe for concurrent
// use; drive it from one goroutine.
type World struct {
	next     Entity
	entities map[Entity]*node
}

// NewWorld creates an empty world.
func NewWorld() *World {
	return &World{entities: make(map[Entity]*node)}
}

// Spawn creates an entity with the given components.
func (w *World) Spawn(components ...any) Entity {
	w.next++
	e := w.next
	w.entities[e] = &node{components: make(map[reflect.Type]any, len(components))}
	w.Insert(e, components...)
	return e
}

// Insert adds or replaces components on e. Components are keyed by their
// dynamic type; inserting a pointer stores the pointed-to value. A replaced
// component that implements Releaser is released.
func (w *World) Insert(e Entity, components ...any) {
	n, ok := w.entities[e]
	if !ok {
		return
	}
	for _, c := range components {
		if c == nil {
			continue
		}
		v := reflect.ValueOf(c)
		if v.Kind() == reflect.Pointer {
			if v.IsNil() {
				continue
			}
			v = v.Elem()
		}
		if old, ok := n.components[v.Type()].(Releaser); ok {
			old.Release()
		}
		p := reflect.New(v.Type())
		p.Elem().Set(v)
		n.components[v.Type()] = p.Interface()
	}
}

// Alive reports whether e exists.
func (w *World) Alive(e Entity) bool {
	_, ok := w.entities[e]
	return ok
}

// Count returns the number of live entities.
func (w *World) Count() int {
	return len(w.entities)
}

// AddChild attaches child under parent, detaching it from any previous parent.
func (w *World) AddChild(parent, child Entity) {
	p, ok := w.entities[parent]
	c, ok2 := w.entities[child]
	if !ok || !ok2 || parent == child {
		return
	}
	if c.parent != Invalid {
		w.detach(child)
	}
	c.parent = parent
	p.children = append(p.children, child)
}

func (w *World) detach(child Entity) {
	c := w.entities[child]
	if p, ok := w.entities[c.parent]; ok {
		p.children = slices.DeleteFunc(p.children, func(e Entity) bool { return e == child })
	}
	c.parent = Invalid
}

// Parent returns the parent of e.
func (w *World) Parent(e Entity) (Entity, bool) {
	n, ok := w.entities[e]
	if !ok || n.parent == Invalid {
		return Invalid, false
	}
	return n.parent, true
}

// Children returns the children of e in attachment order.
func (w *World) Children(e Entity) []Entity {
	n, ok := w.entities[e]
	if !ok {
		return nil
	}
	return slices.Clone(n.children)
}

// Roots returns every entity without a parent, in spawn order.
func (w *World) Roots() []Entity {
	var out []Entity
	for e, n := range w.entities {
		if n.parent == Invalid {
			out = append(out, e)
		}
	}
	slices.Sort(out)
	return out
}

// Walk visits e and its descendants depth-first, parents before children.
// Returning false from fn skips the subtree.
func (w *World) Walk(e Entity, fn func(e Entity, depth int) bool) {
	w.walk(e, 0, fn)
}

func (w *World) walk(e Entity, depth int, fn func(Entity, int) bool) {
	n, ok := w.entities[e]
	if !ok || !fn(e, depth) {
		return
	}
	for _, c := range n.children {
		w.walk(c, depth+1, fn)
	}
}

// Despawn removes e and its descendants, releasing handle-holding components.
func (w *World) Despawn(e Entity) {
	n, ok := w.entities[e]
	if !ok {
		return
	}
	if n.parent != Invalid {
		w.detach(e)
	}
	w.despawn(e)
}

func (w *World) despawn(e Entity) {
	n := w.entities[e]
	for _, c := range n.children {
		w.despawn(c)
	}
	for _, c := range n.components {
		if r, ok := c.(Releaser); ok {
			r.Release()
		}
	}
	delete(w.entities, e)
}

// Clear despawns every entity.
func (w *World) Clear() {
	for _, e := range w.Roots() {
		w.despawn(e)
	}
}

// Get returns a pointer to the T component of e. The pointer stays valid
// until the component is replaced or removed.
func Get[T any](w *World, e Entity) (*T, bool) {
	n, ok := w.entities[e]
	if !ok {
		return nil, false
	}
	c, ok := n.components[reflect.TypeFor[T]()]
	if !ok {
		return nil, false
	}
	return c.(*T), true
}

// Has reports whether e carries a T component.
func Has[T any](w *World, e Entity) bool {
	_, ok := Get[T](w, e)
	return ok
}

// Remove deletes the T component of e without releasing it and returns it.
func Remove[T any](w *World, e Entity) (T, bool) {
	var zero T
	n, ok := w.entities[e]
	if !ok {
		return zero, false
	}
	t := reflect.TypeFor[T]()
	c, ok := n.components[t]
	if !ok {
		return zero, false
	}
	delete(n.components, t)
	return *c.(*T), true
}

// Query returns every entity carrying a T component, in spawn order.
func Query[T any](w *World) []Entity {
	t := reflect.TypeFor[T]()
	var out []Entity
	for e, n := range w.entities {
		if _, ok := n.components[t]; ok {
			out = append(out, e)
		}
	}
	slices.Sort(out)
	return out
}
