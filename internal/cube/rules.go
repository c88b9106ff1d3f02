package cube

import (
	"sync/atomic"

	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/molaperr"
	"github.com/dreamware/molap/internal/rule"
)

// AddRule parses text and registers it as the cube's newest, highest-
// priority rule, targeting every cell in target. Later-added rules win
// over earlier ones wherever their targets overlap (spec.md §4.9).
func (c *Cube) AddRule(text string, target ids.Area) (*rule.Rule, error) {
	id := atomic.AddInt64(&c.nextRuleID, 1)
	r, err := rule.New(id, text, target, len(c.Dims), dimResolver{c})
	if err != nil {
		return nil, err
	}

	c.rulesMu.Lock()
	c.rules = append(c.rules, r)
	c.rulesMu.Unlock()

	// A rule's influence isn't bounded by its own target: any cached
	// aggregation recursing through a cell it now governs is stale, and
	// fingerprints carry no rule-state token to catch that. Clear rather
	// than soft-invalidate, the same as a lock rollback does.
	c.cache.Clear()
	c.appendJournal("RULE_ADD", serializeRule(r))
	return r, nil
}

// ModifyRule replaces the text and target of the rule with id ruleID,
// keeping its position (and so its relative priority) unchanged.
func (c *Cube) ModifyRule(ruleID int64, text string, target ids.Area) (*rule.Rule, error) {
	r, err := rule.New(ruleID, text, target, len(c.Dims), dimResolver{c})
	if err != nil {
		return nil, err
	}

	c.rulesMu.Lock()
	idx := indexOfRule(c.rules, ruleID)
	if idx < 0 {
		c.rulesMu.Unlock()
		return nil, molaperr.Wrap(molaperr.KindState, "Cube.ModifyRule", molaperr.ErrNoSuchRule)
	}
	c.rules[idx] = r
	c.rulesMu.Unlock()

	c.cache.Clear()
	c.appendJournal("RULE_MODIFY", serializeRule(r))
	return r, nil
}

// DeleteRule removes the rule with id ruleID.
func (c *Cube) DeleteRule(ruleID int64) error {
	c.rulesMu.Lock()
	idx := indexOfRule(c.rules, ruleID)
	if idx < 0 {
		c.rulesMu.Unlock()
		return molaperr.Wrap(molaperr.KindState, "Cube.DeleteRule", molaperr.ErrNoSuchRule)
	}
	c.rules = append(c.rules[:idx], c.rules[idx+1:]...)
	c.rulesMu.Unlock()

	c.cache.Clear()
	c.appendJournal("RULE_DELETE", serializeRuleID(ruleID))
	return nil
}

// restoreRule registers r at its own id, bypassing nextRuleID's
// allocator, and advances nextRuleID past it. Used only by journal/
// snapshot replay, where RULE_MODIFY and RULE_DELETE commands address a
// rule by the id it was originally given and AddRule's normal path
// would hand out a fresh one instead.
func (c *Cube) restoreRule(r *rule.Rule) {
	c.rulesMu.Lock()
	c.rules = append(c.rules, r)
	c.rulesMu.Unlock()

	for {
		cur := atomic.LoadInt64(&c.nextRuleID)
		if r.ID < cur {
			return
		}
		if atomic.CompareAndSwapInt64(&c.nextRuleID, cur, r.ID+1) {
			return
		}
	}
}

// ListRules returns every registered rule, in priority order (lowest
// priority first, matching registration order).
func (c *Cube) ListRules() []*rule.Rule {
	c.rulesMu.RLock()
	defer c.rulesMu.RUnlock()
	out := make([]*rule.Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

func indexOfRule(rules []*rule.Rule, id int64) int {
	for i, r := range rules {
		if r.ID == id {
			return i
		}
	}
	return -1
}
