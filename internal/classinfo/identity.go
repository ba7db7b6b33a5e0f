package classinfo

import (
	"fmt"
	"strings"
)

// IdentityPolicy decides between id-like and full-name-like accessors when a
// class offers both.
type IdentityPolicy int

const (
	// IdentityFirstDeclared takes the first matching accessor in scan order.
	IdentityFirstDeclared IdentityPolicy = iota
	// IdentityPreferID takes an id-like accessor over a full-name-like one.
	IdentityPreferID
	// IdentityPreferFullName takes a full-name-like accessor over an id-like one.
	IdentityPreferFullName
)

// ParseIdentityPolicy parses the config spelling of a policy.
func ParseIdentityPolicy(s string) (IdentityPolicy, error) {
	switch strings.ToLower(s) {
	case "", "first-declared":
		return IdentityFirstDeclared, nil
	case "prefer-id":
		return IdentityPreferID, nil
	case "prefer-full-name":
		return IdentityPreferFullName, nil
	}
	return 0, fmt.Errorf("unknown identity policy %q", s)
}

func identityKind(name string) (idLike, fullNameLike bool) {
	switch strings.ToLower(name) {
	case "getid", "id":
		return true, false
	case "getfullname", "fullname":
		return false, true
	}
	return false, false
}

// IdentityAccessor finds the accessor that identifies instances of c. It
// scans the class's own accessors, then its superclass chain nearest first,
// then its interfaces, considering only public accessors without parameters.
func (u *Universe) IdentityAccessor(c *Class) (Accessor, bool) {
	scan := []*Class{c}
	scan = append(scan, u.Supers(c)...)
	scan = append(scan, u.Interfaces(c)...)

	var firstID, firstFull *Accessor
	var first *Accessor
	for _, sc := range scan {
		for i := range sc.Accessors {
			a := &sc.Accessors[i]
			if !a.Public || a.Params != 0 || a.Call == nil {
				continue
			}
			idLike, fullLike := identityKind(a.Name)
			if !idLike && !fullLike {
				continue
			}
			if first == nil {
				first = a
			}
			if idLike && firstID == nil {
				firstID = a
			}
			if fullLike && firstFull == nil {
				firstFull = a
			}
		}
	}
	var pick *Accessor
	switch u.identity {
	case IdentityPreferID:
		pick = firstID
		if pick == nil {
			pick = firstFull
		}
	case IdentityPreferFullName:
		pick = firstFull
		if pick == nil {
			pick = firstID
		}
	default:
		pick = first
	}
	if pick == nil {
		return Accessor{}, false
	}
	return *pick, true
}

// IdentityOf returns the identity string of a live instance.
func (u *Universe) IdentityOf(instance any) (string, bool) {
	c, ok := u.ClassOf(instance)
	if !ok {
		return "", false
	}
	acc, ok := u.IdentityAccessor(c)
	if !ok {
		return "", false
	}
	v, err := acc.Call(instance)
	if err != nil || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}
