package dimension

import (
	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/molaperr"
)

// ensureDerived recomputes topoOrder, level/indent/depth, baseElementsOf,
// and stringConsolidated if either cache is stale. Caller must hold the
// write lock (recompute touches d.elements entries in place).
func (d *Dimension) ensureDerived() {
	if d.validLevel && d.validBase {
		return
	}
	order := d.postOrder() // children before parents
	d.topoOrder = order

	if !d.validLevel {
		d.computeLevels(order)
		d.validLevel = true
	}
	if !d.validBase {
		d.computeBaseElements(order)
		d.computeStringConsolidated(order)
		d.validBase = true
	}
}

// postOrder returns every element id such that each id appears after all
// of its children (a DFS post-order walk over the parent->child DAG,
// started from every node so disconnected roots are all covered).
func (d *Dimension) postOrder() []ids.ID {
	visited := make(map[ids.ID]bool, len(d.elements))
	out := make([]ids.ID, 0, len(d.elements))

	var visit func(ids.ID)
	visit = func(id ids.ID) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, cw := range d.parentToChildren[id] {
			visit(cw.Child)
		}
		out = append(out, id)
	}
	for id := range d.elements {
		visit(id)
	}
	return out
}

// computeLevels fills in Level (post-order: children before parents,
// level = 0 for leaves, max(child level)+1 for consolidated), then Depth
// and Indent (processed root-to-leaf, the reverse of order).
func (d *Dimension) computeLevels(order []ids.ID) {
	for _, id := range order {
		e := d.elements[id]
		children := d.parentToChildren[id]
		if len(children) == 0 {
			e.Level = 0
			continue
		}
		max := 0
		for _, cw := range children {
			if lvl := d.elements[cw.Child].Level; lvl+1 > max {
				max = lvl + 1
			}
		}
		e.Level = max
	}

	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		e := d.elements[id]
		parents := d.childToParents[id]
		if len(parents) == 0 {
			e.Depth = 0
			e.Indent = 0
			continue
		}
		maxDepth := 0
		for _, p := range parents {
			if dep := d.elements[p].Depth; dep+1 > maxDepth {
				maxDepth = dep + 1
			}
		}
		e.Depth = maxDepth
		e.Indent = d.elements[parents[0]].Indent + 1
	}
}

// computeBaseElements fills baseElementsOf[e] for every element: the
// weighted multiset of leaves reachable from e, weights multiplying
// along the path and summing across paths that reach the same leaf
// (spec.md §3 invariant: baseElementsOf[e] = ⨁_child weight(child)·baseElementsOf[child]).
func (d *Dimension) computeBaseElements(order []ids.ID) {
	d.baseElementsOf = make(map[ids.ID]map[ids.ID]float64, len(order))
	for _, id := range order {
		children := d.parentToChildren[id]
		if len(children) == 0 {
			d.baseElementsOf[id] = map[ids.ID]float64{id: 1}
			continue
		}
		acc := make(map[ids.ID]float64)
		for _, cw := range children {
			for leaf, w := range d.baseElementsOf[cw.Child] {
				acc[leaf] += w * cw.Weight
			}
		}
		d.baseElementsOf[id] = acc
	}
}

// computeStringConsolidated marks every consolidated element that has at
// least one String or already-marked string-consolidated descendant
// (SPEC_FULL.md Supplemented Features #2).
func (d *Dimension) computeStringConsolidated(order []ids.ID) {
	d.stringConsolidated = make(map[ids.ID]bool, len(order))
	for _, id := range order {
		e := d.elements[id]
		if e.Kind.IsBase() {
			continue
		}
		mixed := false
		for _, cw := range d.parentToChildren[id] {
			child := d.elements[cw.Child]
			if child.Kind == String || d.stringConsolidated[cw.Child] {
				mixed = true
				break
			}
		}
		if mixed {
			d.stringConsolidated[id] = true
		}
	}
}

// BaseElements returns the weighted leaf multiset of e: for a base
// element, {e: 1}; for a consolidated element, its full weighted
// expansion (spec.md §4.8 uses this directly for aggregation/splash).
func (d *Dimension) BaseElements(e ids.ID) map[ids.ID]float64 {
	d.mu.Lock()
	d.ensureDerived()
	src := d.baseElementsOf[e]
	out := make(map[ids.ID]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	d.mu.Unlock()
	return out
}

// IsStringConsolidated reports whether e is a consolidated element with a
// string or string-consolidated descendant.
func (d *Dimension) IsStringConsolidated(e ids.ID) bool {
	d.mu.Lock()
	d.ensureDerived()
	v := d.stringConsolidated[e]
	d.mu.Unlock()
	return v
}

// Stats returns e's current Level, Depth, and Indent, recomputing the
// dimension's derived caches first if they are stale.
func (d *Dimension) Stats(e ids.ID) (level, depth, indent int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.elements[e]
	if !ok {
		return 0, 0, 0, molaperr.Wrap(molaperr.KindInput, "Stats", molaperr.ErrUnknownID)
	}
	d.ensureDerived()
	return el.Level, el.Depth, el.Indent, nil
}

// TopologicalOrder returns elements ordered so every child precedes its
// parents, recomputing first if stale.
func (d *Dimension) TopologicalOrder() []ids.ID {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensureDerived()
	out := make([]ids.ID, len(d.topoOrder))
	copy(out, d.topoOrder)
	return out
}
