package typegraph

// demote turns every object node whose class is a proper ancestor of another
// discovered class into an interface carrying only identity fields.
func (b *builder) demote() {
	for _, n := range b.nodes {
		if n.Kind != Object {
			continue
		}
		for _, other := range b.nodes {
			if other == n || other.Class.Name == n.Class.Name {
				continue
			}
			if b.u.IsAssignable(other.Class.Name, n.Class.Name) {
				b.log.Debug("demoting common ancestor to interface", "type", n.Name, "descendant", other.Name)
				n.Kind = Interface
				n.Fields = nil
				n.fieldIndex = map[string]int{}
				b.addIdentityFields(n, n.Class)
				break
			}
		}
	}
}

// link records implements edges: a node implements every interface node whose
// class its own class is assignable to. Interfaces are visited in discovery
// order, so Implements lists come out in that order.
func (b *builder) link() {
	var ifaces []*TypeNode
	for _, n := range b.nodes {
		if n.Kind == Interface {
			ifaces = append(ifaces, n)
		}
	}
	for _, iface := range ifaces {
		for _, cand := range b.nodes {
			if cand == iface || !b.u.IsAssignable(cand.Class.Name, iface.Class.Name) {
				continue
			}
			if cand.Kind == Interface && b.u.IsAssignable(iface.Class.Name, cand.Class.Name) {
				// mutually assignable interfaces cannot implement each other
				continue
			}
			cand.Implements = append(cand.Implements, iface.Name)
		}
	}
	for _, iface := range ifaces {
		for _, cand := range b.nodes {
			if cand.Kind == Object && cand.ImplementsName(iface.Name) {
				iface.PossibleTypes = append(iface.PossibleTypes, cand.Name)
			}
		}
	}
}
