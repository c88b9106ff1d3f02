package ids

// DimSelector is one dimension's contribution to an Area: either an
// explicit Set of allowed ids, or "all" (every element of the dimension,
// resolved by the caller who knows the dimension's full id range).
type DimSelector struct {
	Set *Set // nil with All false selects nothing
	All bool
}

// AllDim returns a selector matching every element of its dimension.
func AllDim() DimSelector { return DimSelector{All: true} }

// SetDim returns a selector restricted to the given set.
func SetDim(s *Set) DimSelector { return DimSelector{Set: s} }

// Contains reports whether id is selected. An All selector reports true
// for every id; it does not check that id exists in the dimension.
func (d DimSelector) Contains(id ID) bool {
	if d.All {
		return true
	}
	return d.Set != nil && d.Set.Contains(id)
}

// Size returns the number of selected ids; dimSize is the full element
// count of the owning dimension, used only when d.All.
func (d DimSelector) Size(dimSize int) int {
	if d.All {
		return dimSize
	}
	if d.Set == nil {
		return 0
	}
	return d.Set.Len()
}

// Area is a per-dimension selector over a cube: the Cartesian product of
// its DimSelectors. len(Dims) must equal the cube's dimension count.
type Area struct {
	Dims []DimSelector
}

// NewArea builds an area from per-dimension selectors.
func NewArea(dims ...DimSelector) Area { return Area{Dims: dims} }

// Size returns the product of per-dimension sizes; dimSizes gives the
// full element count of each cube dimension (used for All selectors).
func (a Area) Size(dimSizes []int) int64 {
	total := int64(1)
	for i, d := range a.Dims {
		sz := dimSizes[i]
		if !d.All {
			sz = d.Size(dimSizes[i])
		}
		total *= int64(sz)
		if total == 0 {
			return 0
		}
	}
	return total
}

// Contains reports whether path lies within the area.
func (a Area) Contains(path Path) bool {
	if len(path) != len(a.Dims) {
		return false
	}
	for i, d := range a.Dims {
		if !d.Contains(path[i]) {
			return false
		}
	}
	return true
}

// NumDims returns the number of dimensions the area spans.
func (a Area) NumDims() int { return len(a.Dims) }
