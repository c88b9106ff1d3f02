package cube

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dreamware/molap/internal/cache"
	"github.com/dreamware/molap/internal/config"
	"github.com/dreamware/molap/internal/dimension"
	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/journal"
	"github.com/dreamware/molap/internal/molaperr"
	"github.com/dreamware/molap/internal/rollback"
	"github.com/dreamware/molap/internal/rule"
	"github.com/dreamware/molap/internal/storage"
	"github.com/dreamware/molap/internal/stream"
)

// Cube is one sparse cube: an ordered list of dimensions, its storage,
// its registered rules, and the supporting cache/rollback/journal
// machinery spec.md §3/§4 describe.
type Cube struct {
	ID   int64
	Name string
	Dims []*dimension.Dimension

	Storage *storage.MixedStorage
	cache   *cache.Cache
	locks   *rollback.Manager
	log     *journal.CommandWriter // nil until WireJournal is called

	cfg config.Config

	rulesMu    sync.RWMutex
	rules      []*rule.Rule
	nextRuleID int64
}

var nextCubeID int64

func newCube(name string, dims []*dimension.Dimension, cfg config.Config) *Cube {
	c := &Cube{
		ID:         atomic.AddInt64(&nextCubeID, 1),
		Name:       name,
		Dims:       dims,
		Storage:    storage.NewMixedStorage(),
		cfg:        cfg,
		nextRuleID: 1,
	}
	c.cache = cache.New(cfg.CacheByteBudget, cfg.CacheBarrier, cfg.CacheClearBarrier, cfg.CacheClearBarrierCells, nil)
	c.locks = rollback.NewManager(cfg.DataDir, cfg.RollbackMemoryBudgetBytes, cfg.RollbackFileBudgetBytes, cfg.LockSweepInterval, cfg.LockSweepInterval*3)
	c.locks.SetOnAbandoned(c.rollbackAbandonedLock)
	c.locks.Start()
	return c
}

// WireJournal attaches a command journal to the cube; every accepted
// write appends one line to it. Cubes created without a call to this are
// still fully functional (useful for tests), they just don't persist.
func (c *Cube) WireJournal(w *journal.CommandWriter) { c.log = w }

// NumDims returns the number of dimensions the cube spans.
func (c *Cube) NumDims() int { return len(c.Dims) }

// fingerprintTokens returns the current change-epoch token for every
// dimension, used as the cache fingerprint's relevantTokens input
// (spec.md §4.10): any structural change to any cube dimension
// invalidates every fingerprint computed from it.
func (c *Cube) fingerprintTokens() []uint64 {
	out := make([]uint64, len(c.Dims))
	for i, d := range c.Dims {
		out[i] = d.Token()
	}
	return out
}

// cellAccess adapts a Cube to rule.Underlying, so a rule's Source
// references resolve through the cube's own recursive cell resolver.
type cellAccess struct{ cube *Cube }

func (a cellAccess) Get(path ids.Path, guard map[string]bool) (stream.CellValue, error) {
	return a.cube.evalCell(path, guard)
}

// dimResolver adapts a Cube's dimension list to rule.DimResolver.
type dimResolver struct{ cube *Cube }

func (r dimResolver) ElementID(dim int, name string) (ids.ID, bool) {
	if dim < 0 || dim >= len(r.cube.Dims) {
		return 0, false
	}
	e, err := r.cube.Dims[dim].ElementByName(name)
	if err != nil {
		return 0, false
	}
	return e.ID, true
}

func (r dimResolver) AllElements(dim int) []ids.ID {
	if dim < 0 || dim >= len(r.cube.Dims) {
		return nil
	}
	out := r.cube.Dims[dim].AllIDs()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// governingRule returns the last (highest-priority) registered rule
// whose target area contains path, so a later-registered rule overrides
// an earlier one's overlap (spec.md §4.9 "rules are tried in order").
func (c *Cube) governingRule(path ids.Path) *rule.Rule {
	c.rulesMu.RLock()
	defer c.rulesMu.RUnlock()
	for i := len(c.rules) - 1; i >= 0; i-- {
		if c.rules[i].Contains(path) {
			return c.rules[i]
		}
	}
	return nil
}

// evalCell resolves path's value: a governing rule wins outright; absent
// one, a fully-base path is read straight from storage and a path with
// any consolidated coordinate is aggregated from its weighted base
// expansion, recursing back through evalCell so a rule governing a base
// leaf still applies (spec.md §8 invariant 4: "value(b) applies any
// overriding rule"). guard threads the in-progress rule-path set so a
// rule reference chain that loops back onto a cell already on the stack
// is reported as RuleCircular instead of recursing forever.
func (c *Cube) evalCell(path ids.Path, guard map[string]bool) (stream.CellValue, error) {
	if r := c.governingRule(path); r != nil {
		return r.EvalGuarded(path, cellAccess{c}, guard)
	}
	return c.aggregateCell(path, guard)
}

// aggregateCell computes path's consolidated value directly, without
// consulting a governing rule at path itself (the caller already did).
func (c *Cube) aggregateCell(path ids.Path, guard map[string]bool) (stream.CellValue, error) {
	expansions := make([]map[ids.ID]float64, len(path))
	trivial := true
	for i, id := range path {
		be := c.Dims[i].BaseElements(id)
		expansions[i] = be
		if len(be) != 1 || be[id] != 1 {
			trivial = false
		}
	}

	if trivial {
		return c.rawStorageValue(path)
	}

	var (
		sum     float64
		isErr   bool
		errKind molaperr.Kind
		kind    = stream.Numeric
		strVal  string
	)
	combo := make(ids.Path, len(path))
	var walkErr error
	var walk func(dim int, weight float64)
	walk = func(dim int, weight float64) {
		if walkErr != nil || isErr {
			return
		}
		if dim == len(path) {
			v, err := c.evalCell(combo.Clone(), guard)
			if err != nil {
				walkErr = err
				return
			}
			if v.IsError() {
				isErr = true
				errKind = v.ErrKind
				return
			}
			if v.Kind == stream.String {
				// A string-consolidated parent is only well-defined when
				// exactly one base leaf contributes (spec.md §9 Open
				// Question territory); weighted string summation has no
				// meaning, so treat any weighted blend as TypeMismatch.
				if weight != 1 || kind == stream.String && strVal != "" && strVal != v.Str {
					isErr = true
					errKind = molaperr.KindInput
					return
				}
				kind = stream.String
				strVal = v.Str
				return
			}
			sum += v.AsDouble() * weight
			return
		}
		for leaf, w := range expansions[dim] {
			combo[dim] = leaf
			walk(dim+1, weight*w)
		}
	}
	walk(0, 1)

	if walkErr != nil {
		return stream.CellValue{}, walkErr
	}
	if isErr {
		return stream.ErrorVal(errKind), nil
	}
	if kind == stream.String {
		return stream.StringVal(strVal), nil
	}
	return stream.NumberValue(sum), nil
}

// rawStorageValue reads a fully-base path straight from the storage
// layer, with no aggregation or rule involved.
func (c *Cube) rawStorageValue(path ids.Path) (stream.CellValue, error) {
	if v, ruleID, ok := c.Storage.Numeric.Get(path); ok {
		return stream.CellValue{Kind: stream.Numeric, Num: v, RuleID: ruleID}, nil
	}
	if s, ok := c.Storage.Strings.Get(path); ok {
		return stream.StringVal(s), nil
	}
	return stream.EmptyValue, nil
}

// validatePath reports an error unless path has exactly one coordinate
// per dimension and every coordinate names an element that actually
// exists in its dimension.
func (c *Cube) validatePath(path ids.Path) error {
	if len(path) != len(c.Dims) {
		return errInvalidAreaDims
	}
	for i, id := range path {
		if _, err := c.Dims[i].Element(id); err != nil {
			return molaperr.Wrap(molaperr.KindInput, "Cube", molaperr.ErrUnknownID)
		}
	}
	return nil
}

// GetCellValue resolves a single cell, applying any governing rule and
// any required consolidation, serving the result from cache when
// possible.
func (c *Cube) GetCellValue(path ids.Path) (stream.CellValue, error) {
	if err := c.validatePath(path); err != nil {
		return stream.CellValue{}, err
	}
	fp := cache.ComputeFingerprint(c.ID, pathAreaKey(path), "point", c.fingerprintTokens())
	records, err := c.cache.GetOrCompute(fp, 1, func() ([]stream.Record, error) {
		v, err := c.evalCell(path, make(map[string]bool, 4))
		if err != nil {
			return nil, err
		}
		return []stream.Record{{Key: path.Clone(), Value: v}}, nil
	})
	if err != nil {
		return stream.CellValue{}, err
	}
	if len(records) == 0 {
		return stream.EmptyValue, nil
	}
	return records[0].Value, nil
}

// pathAreaKey builds a stable string key for a single-cell area, used as
// a cache fingerprint input.
func pathAreaKey(path ids.Path) string {
	buf := make([]byte, 0, len(path)*6)
	for i, id := range path {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendUint(buf, uint32(id))
	}
	return string(buf)
}

func appendUint(buf []byte, v uint32) []byte {
	if v == 0 {
		return append(buf, '0')
	}
	start := len(buf)
	for v > 0 {
		buf = append(buf, byte('0'+v%10))
		v /= 10
	}
	// reverse the digits just appended
	for i, j := start, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return buf
}
