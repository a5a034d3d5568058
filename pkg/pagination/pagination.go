package pagination

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows any list query can request.
	MaxLimit = 100
)

// NormalizeLimit enforces the package default and maximum limits.
func NormalizeLimit(limit int) int {
	return NormalizeLimitWithDefault(limit, DefaultLimit)
}

// NormalizeLimitWithDefault is NormalizeLimit with a caller-supplied default,
// itself clamped to MaxLimit.
func NormalizeLimitWithDefault(limit, def int) int {
	if def <= 0 {
		def = DefaultLimit
	}
	if limit <= 0 {
		limit = def
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
