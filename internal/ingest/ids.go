package ingest

// Record identifiers are decimal strings without leading zeros (snowflake
// IDs rendered in base 10), so a longer string is always the larger ID and
// equal-length strings compare lexicographically.

// CompareID returns -1, 0, or 1 as a is less than, equal to, or greater
// than b. The empty string sorts before every ID.
func CompareID(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// MaxID returns the larger of two record identifiers.
func MaxID(a, b string) string {
	if CompareID(a, b) >= 0 {
		return a
	}
	return b
}
