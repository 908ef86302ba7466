package store

// SanitizeSchemaIdentifier normalizes a dynamic schema identifier (a
// structural label or a native relationship type) so it is safe to
// splice into a query. The contract: the result starts with an ASCII
// letter and contains only letters, digits, and underscores. Invalid
// inner characters are replaced by underscores; an invalid (or missing)
// leading character gets the fixed prefix "T_".
//
// The function is pure and independent of any backing-store driver.
func SanitizeSchemaIdentifier(id string) string {
	out := make([]byte, 0, len(id)+2)
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			out = append(out, byte(r))
		case r >= '0' && r <= '9', r == '_':
			out = append(out, byte(r))
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 || !isASCIILetter(out[0]) {
		out = append([]byte("T_"), out...)
	}
	return string(out)
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
