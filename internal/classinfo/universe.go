package classinfo

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/hanpama/classgraph/internal/errs"
)

// Classifier maps a live instance to a class name.
type Classifier func(instance any) (string, bool)

// Universe is the registry of known classes, keyed by name. It is safe for
// concurrent use; registration and reads may interleave.
type Universe struct {
	mu          sync.RWMutex
	classes     map[string]*Class
	goTypes     map[reflect.Type]string
	classifiers []Classifier
	identity    IdentityPolicy
}

type Option func(*Universe)

// WithIdentityPolicy selects how identity accessors are chosen when a class
// declares both id-like and full-name-like accessors.
func WithIdentityPolicy(p IdentityPolicy) Option { return func(u *Universe) { u.identity = p } }

func NewUniverse(opts ...Option) *Universe {
	u := &Universe{
		classes: make(map[string]*Class),
		goTypes: make(map[reflect.Type]string),
	}
	for _, o := range opts {
		o(u)
	}
	return u
}

// Register adds classes to the universe, replacing classes with the same
// name. Registration is atomic: if any class would close a superclass cycle
// nothing is registered.
func (u *Universe) Register(classes ...*Class) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	prev := make(map[string]*Class, len(classes))
	for _, c := range classes {
		if c == nil || c.Name == "" {
			return fmt.Errorf("classinfo: register: class without a name")
		}
		if old, ok := u.classes[c.Name]; ok {
			prev[c.Name] = old
		} else {
			prev[c.Name] = nil
		}
		u.classes[c.Name] = c
	}
	for _, c := range classes {
		if err := u.checkSuperChain(c); err != nil {
			for name, old := range prev {
				if old == nil {
					delete(u.classes, name)
				} else {
					u.classes[name] = old
				}
			}
			return err
		}
	}
	return nil
}

func (u *Universe) checkSuperChain(c *Class) error {
	seen := map[string]bool{c.Name: true}
	for cur := c; cur.Super != ""; {
		if seen[cur.Super] {
			return fmt.Errorf("classinfo: register %s: superclass cycle through %s", c.Name, cur.Super)
		}
		seen[cur.Super] = true
		next, ok := u.classes[cur.Super]
		if !ok {
			return nil
		}
		cur = next
	}
	return nil
}

// Unregister removes classes by name. Unknown names are ignored.
func (u *Universe) Unregister(names ...string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, n := range names {
		delete(u.classes, n)
	}
}

// AddClassifier registers a function consulted by ClassOf for instances that
// neither implement Instance nor are registered Go types.
func (u *Universe) AddClassifier(fn Classifier) {
	u.mu.Lock()
	u.classifiers = append(u.classifiers, fn)
	u.mu.Unlock()
}

// Lookup returns the class registered under name.
func (u *Universe) Lookup(name string) (*Class, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	c, ok := u.classes[name]
	return c, ok
}

// Classes returns every registered class sorted by name.
func (u *Universe) Classes() []*Class {
	u.mu.RLock()
	out := make([]*Class, 0, len(u.classes))
	for _, c := range u.classes {
		out = append(out, c)
	}
	u.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered classes.
func (u *Universe) Len() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.classes)
}

// Supers returns the known superclass chain of c, nearest first.
func (u *Universe) Supers(c *Class) []*Class {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.supers(c)
}

func (u *Universe) supers(c *Class) []*Class {
	var out []*Class
	for cur := c; cur.Super != ""; {
		next, ok := u.classes[cur.Super]
		if !ok {
			break
		}
		out = append(out, next)
		cur = next
	}
	return out
}

// Interfaces returns every interface c implements, directly or through its
// ancestors and super-interfaces, breadth first in declaration order.
func (u *Universe) Interfaces(c *Class) []*Class {
	u.mu.RLock()
	defer u.mu.RUnlock()
	var (
		out   []*Class
		seen  = map[string]bool{}
		queue []string
	)
	queue = append(queue, c.Interfaces...)
	for _, s := range u.supers(c) {
		queue = append(queue, s.Interfaces...)
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		ic, ok := u.classes[name]
		if !ok {
			continue
		}
		out = append(out, ic)
		queue = append(queue, ic.Interfaces...)
		if ic.Super != "" {
			queue = append(queue, ic.Super)
		}
	}
	return out
}

// IsAssignable reports whether values of class sub can be used where class
// sup is expected. Every class is assignable to itself.
func (u *Universe) IsAssignable(sub, sup string) bool {
	if sub == sup {
		return true
	}
	u.mu.RLock()
	defer u.mu.RUnlock()
	seen := map[string]bool{sub: true}
	queue := []string{sub}
	for len(queue) > 0 {
		c, ok := u.classes[queue[0]]
		queue = queue[1:]
		if !ok {
			continue
		}
		next := c.Interfaces
		if c.Super != "" {
			next = append([]string{c.Super}, next...)
		}
		for _, n := range next {
			if n == sup {
				return true
			}
			if !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
	return false
}

// KnownSubtypes returns every registered, non-internal, non-synthetic class
// other than c that is assignable to c, sorted by name.
func (u *Universe) KnownSubtypes(c *Class) []*Class {
	var out []*Class
	for _, cand := range u.Classes() {
		if cand.Name == c.Name || cand.Internal || cand.IsProxy() {
			continue
		}
		if u.IsAssignable(cand.Name, c.Name) {
			out = append(out, cand)
		}
	}
	return out
}

// Properties returns the exported properties declared by c itself.
func (u *Universe) Properties(c *Class) ([]Property, error) {
	if !c.Exported {
		return nil, fmt.Errorf("%s: %w", c.Name, errs.ErrNotIntrospectable)
	}
	return c.Properties, nil
}

// RealClass strips proxy layers from c and returns the declared class.
func (u *Universe) RealClass(c *Class) *Class {
	u.mu.RLock()
	defer u.mu.RUnlock()
	for c.IsProxy() {
		next, ok := u.classes[c.Super]
		if !ok {
			break
		}
		c = next
	}
	return c
}

// ClassOf returns the declared class of a live instance, with proxy layers
// already stripped.
func (u *Universe) ClassOf(instance any) (*Class, bool) {
	name, ok := u.className(instance)
	if !ok {
		return nil, false
	}
	c, ok := u.Lookup(name)
	if !ok {
		return nil, false
	}
	return u.RealClass(c), true
}

func (u *Universe) className(instance any) (string, bool) {
	if instance == nil {
		return "", false
	}
	if in, ok := instance.(Instance); ok {
		return in.ClassName(), true
	}
	u.mu.RLock()
	classifiers := u.classifiers
	t := reflect.TypeOf(instance)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name, ok := u.goTypes[t]
	u.mu.RUnlock()
	if ok {
		return name, true
	}
	for _, fn := range classifiers {
		if name, ok := fn(instance); ok {
			return name, true
		}
	}
	return "", false
}
