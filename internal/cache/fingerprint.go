package cache

import (
	"hash/fnv"
	"sort"
	"strconv"
)

// Fingerprint identifies one cached plan result: a cube, the area it was
// read over, the shape of plan that produced it, and the change tokens
// of every dimension and rule the plan depends on. Any of those tokens
// advancing makes the fingerprint (and therefore the cached entry) stale.
type Fingerprint uint64

// ComputeFingerprint hashes the cache key components into a Fingerprint.
// relevantTokens need not be pre-sorted; Compute sorts a copy so that
// argument order never changes the hash.
func ComputeFingerprint(cubeID int64, areaKey string, planKind string, relevantTokens []uint64) Fingerprint {
	tokens := append([]uint64(nil), relevantTokens...)
	sort.Slice(tokens, func(i, j int) bool { return tokens[i] < tokens[j] })

	h := fnv.New64a()
	h.Write(strconv.AppendInt(nil, cubeID, 10))
	h.Write([]byte{0})
	h.Write([]byte(areaKey))
	h.Write([]byte{0})
	h.Write([]byte(planKind))
	for _, tok := range tokens {
		h.Write([]byte{0})
		h.Write(strconv.AppendUint(nil, tok, 10))
	}
	return Fingerprint(h.Sum64())
}
