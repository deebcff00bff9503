package options

import (
	"strconv"
	"strings"
)

// namedList binds a descriptor property name to the slice that stores it.
type namedList struct {
	name   string
	values *[]string
}

// appendLists concatenates src into dst pairwise. Both sides must come from
// the same type so that positions line up; empty sources are skipped.
func appendLists(dst, src []namedList) {
	for i := range dst {
		if len(*src[i].values) == 0 {
			continue
		}
		*dst[i].values = append(*dst[i].values, *src[i].values...)
	}
}

// copyStrings returns a copy that never shares a backing array with in.
func copyStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// setList stores values under name; it reports false for unknown names.
func setList(lists []namedList, name string, values []string) bool {
	for _, l := range lists {
		if l.name == name {
			*l.values = copyStrings(values)
			return true
		}
	}
	return false
}

// renderLists produces the deterministic debug form shared by all list types.
func renderLists(kind string, lists []namedList) string {
	var b strings.Builder
	b.WriteString(kind)
	b.WriteString("{")
	for i, l := range lists {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(l.name)
		b.WriteString(": [")
		for j, v := range *l.values {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(v))
		}
		b.WriteString("]")
	}
	b.WriteString("}")
	return b.String()
}

// toMap returns the non-empty lists keyed by property name.
func toMap(lists []namedList) map[string][]string {
	out := make(map[string][]string)
	for _, l := range lists {
		if len(*l.values) > 0 {
			out[l.name] = copyStrings(*l.values)
		}
	}
	return out
}
