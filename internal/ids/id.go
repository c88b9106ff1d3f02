package ids

// ID is a 32-bit identifier, dense within a single dimension. It is never
// meaningful across dimensions: two elements in different dimensions may
// share the same ID.
type ID uint32

// NoID is the reserved sentinel meaning "wildcard/all" wherever a single
// ID is expected but no specific element is selected.
const NoID ID = 1<<32 - 1

// Valid reports whether id is a concrete element id (not the wildcard).
func (id ID) Valid() bool { return id != NoID }
