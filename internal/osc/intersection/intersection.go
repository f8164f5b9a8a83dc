// Package intersection computes the column overlap between an origin
// table and its shadow copy, since an ALTER may have added or dropped
// columns that the other side doesn't have.
package intersection

// Columns returns the columns present in both origin and shadow,
// preserving origin's ordering. It is the set of columns safe to
// reference in a mirrored INSERT/UPDATE against both tables.
func Columns(origin, shadow []string) []string {
	inShadow := make(map[string]struct{}, len(shadow))
	for _, c := range shadow {
		inShadow[c] = struct{}{}
	}

	var out []string
	for _, c := range origin {
		if _, ok := inShadow[c]; ok {
			out = append(out, c)
		}
	}
	return out
}
