package nut

// Walk visits root and every transitively referenced nut exactly once, in
// depth-first discovery order. Shared nodes are visited on first encounter
// only, so traversal terminates even when many parents reference the same
// nut.
func Walk(root *Nut, visit func(*Nut) error) error {
	return walk(root, visit, make(map[*Nut]struct{}))
}

// WalkAll walks every root in order through one shared visited set.
func WalkAll(roots []*Nut, visit func(*Nut) error) error {
	seen := make(map[*Nut]struct{})
	for _, root := range roots {
		if err := walk(root, visit, seen); err != nil {
			return err
		}
	}
	return nil
}

// Flatten returns every nut reachable from the roots exactly once, in the
// order WalkAll would visit them.
func Flatten(roots []*Nut) []*Nut {
	var out []*Nut
	_ = WalkAll(roots, func(n *Nut) error {
		out = append(out, n)
		return nil
	})
	return out
}

func walk(n *Nut, visit func(*Nut) error, seen map[*Nut]struct{}) error {
	if n == nil {
		return nil
	}
	if _, ok := seen[n]; ok {
		return nil
	}
	seen[n] = struct{}{}
	if err := visit(n); err != nil {
		return err
	}
	for _, ref := range n.Referenced() {
		if err := walk(ref, visit, seen); err != nil {
			return err
		}
	}
	return nil
}
