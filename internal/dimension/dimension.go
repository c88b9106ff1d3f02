package dimension

import (
	"sort"
	"strings"
	"sync"

	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/molaperr"
)

// ChildWeight pairs a prospective child id with the weight its parent
// should apply when summing it (spec.md §3 "Element"/"Dimension").
type ChildWeight struct {
	Child  ids.ID
	Weight float64
}

// Dimension holds an element table, the parent/child weighted multigraph,
// and the lazily-recomputed derived structures (topological order,
// baseElementsOf) spec.md §3/§4.3 describe. All exported methods are
// safe for concurrent use: structural mutations take the write lock,
// reads that don't need the derived caches take the read lock, and reads
// that do trigger a recompute under the write lock first.
type Dimension struct {
	mu sync.RWMutex

	name string

	elements  map[ids.ID]*Element
	nameToID  map[string]ids.ID
	freeIDs   map[ids.ID]struct{}
	nextFresh ids.ID // smallest id never yet allocated

	// parentToChildren[p] lists p's children with weights; childToParents[c]
	// lists c's parents. Kept in sync by AddChildren/RemoveChildren/delete.
	parentToChildren map[ids.ID][]ChildWeight
	childToParents   map[ids.ID][]ids.ID

	// stringConsolidated[e] is true when e is Consolidated and has at
	// least one String or string-consolidated descendant (SPEC_FULL.md
	// Supplemented Features #2).
	stringConsolidated map[ids.ID]bool

	validLevel bool // level/indent/depth are current
	validBase  bool // baseElementsOf is current

	topoOrder     []ids.ID
	baseElementsOf map[ids.ID]map[ids.ID]float64

	// token increments on every structural mutation; internal/cache uses
	// it as the dimension's entry in a plan's relevantTokens (spec.md §4.10).
	token uint64
}

// New creates an empty dimension named name.
func New(name string) *Dimension {
	return &Dimension{
		name:               name,
		elements:           make(map[ids.ID]*Element),
		nameToID:           make(map[string]ids.ID),
		freeIDs:            make(map[ids.ID]struct{}),
		parentToChildren:   make(map[ids.ID][]ChildWeight),
		childToParents:     make(map[ids.ID][]ids.ID),
		stringConsolidated: make(map[ids.ID]bool),
	}
}

// Name returns the dimension's name.
func (d *Dimension) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.name
}

// Token returns the dimension's current change epoch.
func (d *Dimension) Token() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.token
}

func (d *Dimension) invalidate() {
	d.validLevel = false
	d.validBase = false
	d.token++
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	if strings.TrimSpace(name) != name {
		return false
	}
	for _, r := range name {
		if r < 0x20 {
			return false
		}
	}
	return true
}

// Size returns the number of elements currently in the dimension.
func (d *Dimension) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.elements)
}

// AddElement creates a new base element (Numeric or String) or an empty
// Consolidated one, returning its freshly assigned id. The id is
// nextFresh (a freed id is reused only once every fresh id has been
// handed out), and the new element is appended at the highest position.
func (d *Dimension) AddElement(name string, kind Kind) (ids.ID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !validName(name) {
		return 0, molaperr.Wrap(molaperr.KindInput, "AddElement", molaperr.ErrInvalidName)
	}
	if _, exists := d.nameToID[name]; exists {
		return 0, molaperr.Wrap(molaperr.KindState, "AddElement", molaperr.ErrNameInUse)
	}

	id := d.allocID()
	d.elements[id] = &Element{
		ID:       id,
		Name:     name,
		Position: len(d.elements),
		Kind:     kind,
	}
	d.nameToID[name] = id
	d.invalidate()
	return id, nil
}

// allocID returns a fresh id, so an id freed by a deletion is not handed
// out again; only once fresh ids run out does it fall back to the
// smallest free id.
func (d *Dimension) allocID() ids.ID {
	if len(d.freeIDs) > 0 && d.nextFresh == ids.NoID {
		var best ids.ID
		first := true
		for id := range d.freeIDs {
			if first || id < best {
				best = id
				first = false
			}
		}
		delete(d.freeIDs, best)
		return best
	}
	id := d.nextFresh
	d.nextFresh++
	return id
}

// Element returns a copy of the element with the given id.
func (d *Dimension) Element(id ids.ID) (Element, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.elements[id]
	if !ok {
		return Element{}, molaperr.Wrap(molaperr.KindInput, "Element", molaperr.ErrUnknownID)
	}
	return e.clone(), nil
}

// ElementByName looks up an element by its unique name.
func (d *Dimension) ElementByName(name string) (Element, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.nameToID[name]
	if !ok {
		return Element{}, molaperr.Wrap(molaperr.KindInput, "ElementByName", molaperr.ErrUnknownID)
	}
	return d.elements[id].clone(), nil
}

// ChangeName renames an element, enforcing the same validity and
// uniqueness rules as AddElement.
func (d *Dimension) ChangeName(id ids.ID, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.elements[id]
	if !ok {
		return molaperr.Wrap(molaperr.KindInput, "ChangeName", molaperr.ErrUnknownID)
	}
	if !validName(name) {
		return molaperr.Wrap(molaperr.KindInput, "ChangeName", molaperr.ErrInvalidName)
	}
	if existing, exists := d.nameToID[name]; exists && existing != id {
		return molaperr.Wrap(molaperr.KindState, "ChangeName", molaperr.ErrNameInUse)
	}

	delete(d.nameToID, e.Name)
	e.Name = name
	d.nameToID[name] = id
	d.token++ // name changes don't affect level/base caches
	return nil
}

// ChangeKind sets an element's kind. Setting Consolidated on an element
// with no children is rejected, mirroring "children(e) = ∅ ⇔ kind(e) ∈
// {numeric, string}" (spec.md §3); removing all children instead
// demotes a consolidated element automatically (see removeChildrenLocked).
func (d *Dimension) ChangeKind(id ids.ID, kind Kind) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.elements[id]
	if !ok {
		return molaperr.Wrap(molaperr.KindInput, "ChangeKind", molaperr.ErrUnknownID)
	}
	if kind == Consolidated && len(d.parentToChildren[id]) == 0 {
		return molaperr.Wrap(molaperr.KindInput, "ChangeKind", molaperr.ErrInvalidName)
	}
	if kind.IsBase() && len(d.parentToChildren[id]) > 0 {
		return molaperr.Wrap(molaperr.KindState, "ChangeKind", molaperr.ErrDimensionLocked)
	}
	e.Kind = kind
	d.invalidate()
	return nil
}

// Move changes an element's position, shifting every element currently
// between the old and new position by one slot the way a client-facing
// reorder expects.
func (d *Dimension) Move(id ids.ID, newPosition int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.elements[id]
	if !ok {
		return molaperr.Wrap(molaperr.KindInput, "Move", molaperr.ErrUnknownID)
	}
	if newPosition < 0 || newPosition >= len(d.elements) {
		return molaperr.Wrap(molaperr.KindInput, "Move", molaperr.ErrInvalidPosition)
	}

	old := e.Position
	if old == newPosition {
		return nil
	}
	for _, other := range d.elements {
		if other.ID == id {
			continue
		}
		if old < newPosition && other.Position > old && other.Position <= newPosition {
			other.Position--
		} else if newPosition < old && other.Position >= newPosition && other.Position < old {
			other.Position++
		}
	}
	e.Position = newPosition
	d.token++
	return nil
}

// AddChildren attaches children to parent with the given weights,
// rejecting any child that would introduce a cycle. An existing
// (parent,child) pair has its weight updated rather than duplicated.
// All-or-nothing: if any proposed child would cycle, no edges are added.
func (d *Dimension) AddChildren(parent ids.ID, children []ChildWeight) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.elements[parent]; !ok {
		return molaperr.Wrap(molaperr.KindInput, "AddChildren", molaperr.ErrUnknownID)
	}
	for _, cw := range children {
		if _, ok := d.elements[cw.Child]; !ok {
			return molaperr.Wrap(molaperr.KindInput, "AddChildren", molaperr.ErrUnknownID)
		}
		if cw.Child == parent || d.canReach(cw.Child, parent) {
			return molaperr.Wrap(molaperr.KindState, "AddChildren", molaperr.ErrCircularRef)
		}
	}

	for _, cw := range children {
		d.setEdge(parent, cw.Child, cw.Weight)
	}
	d.elements[parent].Kind = Consolidated
	d.invalidate()
	return nil
}

// setEdge inserts or updates the (parent,child) edge; caller holds the
// write lock.
func (d *Dimension) setEdge(parent, child ids.ID, weight float64) {
	edges := d.parentToChildren[parent]
	for i := range edges {
		if edges[i].Child == child {
			edges[i].Weight = weight
			return
		}
	}
	d.parentToChildren[parent] = append(edges, ChildWeight{Child: child, Weight: weight})
	d.childToParents[child] = append(d.childToParents[child], parent)
}

// canReach reports whether to is reachable from from by following
// parent->child edges downward; used to detect that adding the edge
// (prospectiveParent=to, prospectiveChild=from) would close a cycle.
// Caller holds the write lock.
func (d *Dimension) canReach(from, to ids.ID) bool {
	seen := make(map[ids.ID]bool)
	var dfs func(ids.ID) bool
	dfs = func(cur ids.ID) bool {
		if cur == to {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
		for _, cw := range d.parentToChildren[cur] {
			if dfs(cw.Child) {
				return true
			}
		}
		return false
	}
	return dfs(from)
}

// RemoveChildren detaches the given children from parent. If parent is
// left with no children, it becomes Numeric (spec.md §3 invariant).
func (d *Dimension) RemoveChildren(parent ids.ID, children []ids.ID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.elements[parent]; !ok {
		return molaperr.Wrap(molaperr.KindInput, "RemoveChildren", molaperr.ErrUnknownID)
	}
	toRemove := make(map[ids.ID]bool, len(children))
	for _, c := range children {
		toRemove[c] = true
	}
	d.removeChildrenLocked(parent, toRemove)
	d.invalidate()
	return nil
}

func (d *Dimension) removeChildrenLocked(parent ids.ID, toRemove map[ids.ID]bool) {
	edges := d.parentToChildren[parent]
	kept := edges[:0]
	for _, cw := range edges {
		if toRemove[cw.Child] {
			d.childToParents[cw.Child] = removeID(d.childToParents[cw.Child], parent)
			continue
		}
		kept = append(kept, cw)
	}
	if len(kept) == 0 {
		delete(d.parentToChildren, parent)
		if e, ok := d.elements[parent]; ok {
			e.Kind = Numeric
		}
	} else {
		d.parentToChildren[parent] = kept
	}
}

func removeID(list []ids.ID, target ids.ID) []ids.ID {
	out := list[:0]
	for _, id := range list {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// DeleteElement removes a single element: it is dropped from every
// parent/child edge it participates in, its position is closed, and its
// id returns to the free-id pool. Any parent left childless becomes
// Numeric. Callers that need to delete several elements should use
// DeleteElements, which amortizes the position-shift cost.
func (d *Dimension) DeleteElement(id ids.ID) error {
	return d.DeleteElements([]ids.ID{id})
}

// DeleteElements removes a batch of elements with the same observable
// result as calling DeleteElement once per id, but computes the
// resulting positions in O(N+D log D) rather than O(N·D) by sorting the
// batch once and shifting positions in a single pass (spec.md §4.3, §9).
func (d *Dimension) DeleteElements(targets []ids.ID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	doomed := make(map[ids.ID]bool, len(targets))
	for _, id := range targets {
		if _, ok := d.elements[id]; !ok {
			return molaperr.Wrap(molaperr.KindInput, "DeleteElements", molaperr.ErrUnknownID)
		}
		doomed[id] = true
	}
	if len(doomed) == 0 {
		return nil
	}

	removedPositions := make([]int, 0, len(doomed))
	for id := range doomed {
		removedPositions = append(removedPositions, d.elements[id].Position)
	}
	sort.Ints(removedPositions)

	// Shift every *surviving* element's position down by however many
	// removed positions sat below it, in one O(N) walk in position order
	// rather than one O(N) pass per delete.
	byPos := make([]*Element, len(d.elements))
	for _, e := range d.elements {
		byPos[e.Position] = e
	}
	shift := 0
	for pos, e := range byPos {
		if shift < len(removedPositions) && removedPositions[shift] == pos {
			shift++
			continue
		}
		e.Position -= shift
	}

	for id := range doomed {
		for _, parent := range append([]ids.ID(nil), d.childToParents[id]...) {
			d.removeChildrenLocked(parent, map[ids.ID]bool{id: true})
		}
		for _, cw := range d.parentToChildren[id] {
			d.childToParents[cw.Child] = removeID(d.childToParents[cw.Child], id)
		}
		delete(d.parentToChildren, id)
		delete(d.childToParents, id)
		delete(d.nameToID, d.elements[id].Name)
		delete(d.elements, id)
		delete(d.stringConsolidated, id)
		d.freeIDs[id] = struct{}{}
	}

	d.invalidate()
	return nil
}

// ClearElements removes every element from the dimension, resetting it
// to empty (the fresh-id counter is reset too, so ids are reused across a
// clear: the next AddElement after Clear starts again from id 0).
func (d *Dimension) ClearElements() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.elements = make(map[ids.ID]*Element)
	d.nameToID = make(map[string]ids.ID)
	d.freeIDs = make(map[ids.ID]struct{})
	d.nextFresh = 0
	d.parentToChildren = make(map[ids.ID][]ChildWeight)
	d.childToParents = make(map[ids.ID][]ids.ID)
	d.stringConsolidated = make(map[ids.ID]bool)
	d.invalidate()
}

// Children returns the weighted children of e (empty for base elements).
func (d *Dimension) Children(e ids.ID) []ChildWeight {
	d.mu.RLock()
	defer d.mu.RUnlock()
	edges := d.parentToChildren[e]
	out := make([]ChildWeight, len(edges))
	copy(out, edges)
	return out
}

// Parents returns the parents of e.
func (d *Dimension) Parents(e ids.ID) []ids.ID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ps := d.childToParents[e]
	out := make([]ids.ID, len(ps))
	copy(out, ps)
	return out
}

// AllIDs returns every element id currently in the dimension, in no
// particular order.
func (d *Dimension) AllIDs() []ids.ID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]ids.ID, 0, len(d.elements))
	for id := range d.elements {
		out = append(out, id)
	}
	return out
}
