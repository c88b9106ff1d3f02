package cube

import (
	"sort"
	"strconv"
	"strings"

	"github.com/dreamware/molap/internal/aggregate"
	"github.com/dreamware/molap/internal/cache"
	"github.com/dreamware/molap/internal/dimension"
	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/molaperr"
	"github.com/dreamware/molap/internal/plan"
	"github.com/dreamware/molap/internal/rule"
	"github.com/dreamware/molap/internal/stream"
)

var errInvalidAreaDims = molaperr.Wrap(molaperr.KindInput, "Cube.GetCellArea", molaperr.ErrInvalidPath)

// GetCellArea streams every cell addressed by area, applying
// consolidation and rule overlays, optionally reordered by perm (nil
// leaves the cube's native dimension order in place).
//
// The plan is built in three stages (spec.md §4.5, §4.8, §4.9):
//  1. a rule overlay on top of the raw base cells a consolidation needs,
//     so a rule governing a base leaf feeds the correct value upward
//     (spec.md §8 invariant 4);
//  2. aggregation from those base cells to exactly the coordinates area
//     requests, via one DimExpander per dimension built from area's
//     selectors;
//  3. a second rule overlay for rules governing the requested
//     coordinates directly (covering targets, like a pure consolidated
//     cell, that have no corresponding base storage entry at all — S5).
func (c *Cube) GetCellArea(area ids.Area, perm plan.Permutation) (stream.Stream, error) {
	if area.NumDims() != len(c.Dims) {
		return nil, errInvalidAreaDims
	}

	expanders := make([]aggregate.DimExpander, len(c.Dims))
	baseSelectors := make([]ids.DimSelector, len(c.Dims))
	for i, d := range c.Dims {
		targets := selectorIDs(d, area.Dims[i])
		reverse := make(map[ids.ID][]aggregate.LeafTarget)
		baseSet := ids.NewSet()
		for _, t := range targets {
			for leaf, w := range d.BaseElements(t) {
				reverse[leaf] = append(reverse[leaf], aggregate.LeafTarget{ID: t, Weight: w})
				baseSet.Add(leaf)
			}
		}
		expanders[i] = func(leaf ids.ID) []aggregate.LeafTarget { return reverse[leaf] }
		baseSelectors[i] = ids.SetDim(baseSet)
	}
	baseArea := ids.NewArea(baseSelectors...)

	access := cellAccess{c}
	baseRules := c.ruleOverlays(baseArea, access)
	var baseView stream.Stream = plan.NewSource(c.Storage, baseArea)
	if len(baseRules) > 0 {
		baseView = plan.NewCombination(append([]stream.Stream{baseView}, baseRules...)...)
	}

	aggregated := plan.NewAggregation(baseView, expanders)

	targetRules := c.ruleOverlays(area, access)
	var result stream.Stream = aggregated
	if len(targetRules) > 0 {
		result = plan.NewCombination(append([]stream.Stream{result}, targetRules...)...)
	}

	if perm != nil {
		result = plan.NewRearrange(result, perm)
	}

	return c.cachedArea(area, perm, result)
}

// cachedArea materializes result once (area queries are bounded by
// construction) and serves repeat identical queries from the cube's
// cache, keyed by a fingerprint over the dimensions' tokens so any
// structural change invalidates it automatically.
func (c *Cube) cachedArea(area ids.Area, perm plan.Permutation, result stream.Stream) (stream.Stream, error) {
	fp := cache.ComputeFingerprint(c.ID, areaKey(area), permKind(perm), c.fingerprintTokens())
	baseCells := area.Size(c.dimSizes())
	records, err := c.cache.GetOrCompute(fp, baseCells, func() ([]stream.Record, error) {
		var out []stream.Record
		for result.Next() {
			out = append(out, stream.Record{Key: result.GetKey().Clone(), Value: result.GetValue()})
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return stream.NewSliceStream(records), nil
}

func (c *Cube) dimSizes() []int {
	out := make([]int, len(c.Dims))
	for i, d := range c.Dims {
		out[i] = d.Size()
	}
	return out
}

// ruleOverlays builds one stream per registered rule whose target area
// overlaps area, evaluating only the paths that fall inside area.
func (c *Cube) ruleOverlays(area ids.Area, access cellAccess) []stream.Stream {
	c.rulesMu.RLock()
	rules := make([]*rule.Rule, len(c.rules))
	copy(rules, c.rules)
	c.rulesMu.RUnlock()

	var out []stream.Stream
	for _, r := range rules {
		var records []stream.Record
		for _, p := range r.TargetPaths() {
			if !area.Contains(p) {
				continue
			}
			records = append(records, stream.Record{Key: p, Value: r.Eval(p, access)})
		}
		if len(records) > 0 {
			out = append(out, stream.NewSortedSliceStream(records))
		}
	}
	return out
}

// selectorIDs returns every target element id a DimSelector picks,
// sorted ascending: the dimension's full element set for All, or the
// selector's explicit set otherwise.
func selectorIDs(d *dimension.Dimension, sel ids.DimSelector) []ids.ID {
	if sel.All {
		all := d.AllIDs()
		sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
		return all
	}
	if sel.Set == nil {
		return nil
	}
	return sel.Set.Slice()
}

// areaKey builds a stable string key for an Area, used as a cache
// fingerprint input.
func areaKey(area ids.Area) string {
	buf := make([]byte, 0, 16*len(area.Dims))
	for i, d := range area.Dims {
		if i > 0 {
			buf = append(buf, '|')
		}
		if d.All {
			buf = append(buf, 'A')
			continue
		}
		buf = append(buf, 'S')
		if d.Set != nil {
			d.Set.Each(func(id ids.ID) bool {
				buf = append(buf, ',')
				buf = appendUint(buf, uint32(id))
				return true
			})
		}
	}
	return string(buf)
}

// parseAreaKey is areaKey's inverse, used to reconstruct a rule's target
// Area from its journaled form during replay.
func parseAreaKey(key string, numDims int) (ids.Area, error) {
	parts := strings.Split(key, "|")
	if len(parts) != numDims {
		return ids.Area{}, molaperr.Wrap(molaperr.KindInput, "parseAreaKey", molaperr.ErrInvalidPath)
	}
	dims := make([]ids.DimSelector, numDims)
	for i, p := range parts {
		if p == "" {
			return ids.Area{}, molaperr.Wrap(molaperr.KindInput, "parseAreaKey", molaperr.ErrInvalidPath)
		}
		switch p[0] {
		case 'A':
			dims[i] = ids.AllDim()
		case 'S':
			set := ids.NewSet()
			for _, tok := range strings.Split(p[1:], ",") {
				if tok == "" {
					continue
				}
				n, err := strconv.ParseUint(tok, 10, 32)
				if err != nil {
					return ids.Area{}, molaperr.Wrap(molaperr.KindInput, "parseAreaKey", molaperr.ErrInvalidPath)
				}
				set.Add(ids.ID(n))
			}
			dims[i] = ids.SetDim(set)
		default:
			return ids.Area{}, molaperr.Wrap(molaperr.KindInput, "parseAreaKey", molaperr.ErrInvalidPath)
		}
	}
	return ids.NewArea(dims...), nil
}

func permKind(perm plan.Permutation) string {
	if perm == nil {
		return "area"
	}
	buf := make([]byte, 0, 4*len(perm))
	for i, p := range perm {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendUint(buf, uint32(p))
	}
	return "area:" + string(buf)
}
