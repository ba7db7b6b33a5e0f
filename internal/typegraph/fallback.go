package typegraph

import "fmt"

// FallbackSuffix is appended to an interface name to name its fallback.
const FallbackSuffix = "__"

// synthesizeFallbacks gives every interface node an identity-only object
// implementation, in discovery order.
func (b *builder) synthesizeFallbacks() {
	var ifaces []*TypeNode
	for _, n := range b.nodes {
		if n.Kind == Interface {
			ifaces = append(ifaces, n)
		}
	}
	for _, iface := range ifaces {
		b.synthesize(iface)
	}
}

func (b *builder) synthesize(iface *TypeNode) *TypeNode {
	fb := newTypeNode(b.names.allocate(iface.Name+FallbackSuffix), Object, iface.Class)
	fb.Description = fmt.Sprintf("Generic implementation of %s with only identity defined", iface.Name)
	b.addIdentityFields(fb, iface.Class)
	fb.FallbackFor = iface
	iface.Fallback = fb
	b.nodes = append(b.nodes, fb)
	b.byName[fb.Name] = fb
	return fb
}
