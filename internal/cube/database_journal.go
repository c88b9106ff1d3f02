package cube

import (
	"strconv"
	"strings"

	"github.com/dreamware/molap/internal/dimension"
	"github.com/dreamware/molap/internal/ids"
	"github.com/dreamware/molap/internal/journal"
	"github.com/dreamware/molap/internal/molaperr"
)

// parseKind maps a dimension.Kind's String() form back to the Kind,
// the inverse formatting used by serializeAddElement.
func parseKind(s string) (dimension.Kind, error) {
	switch s {
	case "numeric":
		return dimension.Numeric, nil
	case "string":
		return dimension.String, nil
	case "consolidated":
		return dimension.Consolidated, nil
	default:
		return 0, molaperr.Wrap(molaperr.KindInput, "parseKind", molaperr.ErrInvalidPath)
	}
}

// serializeAddElement encodes an ADD_ELEMENT command: the owning
// dimension, the new element's name, and its kind.
func serializeAddElement(dimName, elemName string, kind dimension.Kind) string {
	return journalField(dimName, elemName, kind.String())
}

// serializeElementOp encodes a structural command addressed at one
// existing element: the dimension, the element id, then any
// operation-specific trailing fields.
func serializeElementOp(dimName string, id ids.ID, extra ...string) string {
	var b strings.Builder
	fw := journal.NewFileWriter(&b)
	fw.Field(dimName)
	fw.Integer(int64(id))
	for _, e := range extra {
		fw.Field(e)
	}
	fw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

// serializeChildren encodes ADD_CHILDREN: the dimension, the parent id,
// the child ids, and their weights (as parallel lists, so a replay can
// zip them back into []dimension.ChildWeight).
func serializeChildren(dimName string, parent ids.ID, children []dimension.ChildWeight) string {
	var b strings.Builder
	fw := journal.NewFileWriter(&b)
	fw.Field(dimName)
	fw.Integer(int64(parent))
	childIDs := make([]int64, len(children))
	weights := make([]string, len(children))
	for i, cw := range children {
		childIDs[i] = int64(cw.Child)
		weights[i] = strconv.FormatFloat(cw.Weight, 'g', -1, 64)
	}
	fw.IntList(childIDs)
	fw.Field(strings.Join(weights, ","))
	fw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

// idsCSV joins ids as a bare comma-separated string, for embedding as one
// Field within a larger command (serializeElementOp's extra fields are
// themselves escaped strings, not nested IntLists).
func idsCSV(targets []ids.ID) string {
	parts := make([]string, len(targets))
	for i, t := range targets {
		parts[i] = strconv.FormatInt(int64(t), 10)
	}
	return strings.Join(parts, ",")
}

// parseIDsCSV is idsCSV's inverse; an empty string yields no ids.
func parseIDsCSV(s string) ([]ids.ID, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]ids.ID, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, molaperr.Wrap(molaperr.KindInput, "parseIDsCSV", molaperr.ErrInvalidPath)
		}
		out[i] = ids.ID(n)
	}
	return out, nil
}

// serializeIDList encodes a structural command over a set of element
// ids within one dimension (DELETE_ELEMENT's targets).
func serializeIDList(dimName string, targets []ids.ID) string {
	var b strings.Builder
	fw := journal.NewFileWriter(&b)
	fw.Field(dimName)
	out := make([]int64, len(targets))
	for i, t := range targets {
		out[i] = int64(t)
	}
	fw.IntList(out)
	fw.Flush()
	return strings.TrimRight(b.String(), "\n")
}
