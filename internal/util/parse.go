package util

import "strconv"

// ParseInt parses a string to an integer, returning defaultValue if parsing fails
func ParseInt(s string, defaultValue int) int {
	if val, err := strconv.Atoi(s); err == nil {
		return val
	}
	return defaultValue
}

// ClampInt bounds v to [min, max]
func ClampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ParsePage parses page/limit query values with bounds. Page is 1-based;
// limit is clamped to [1, maxLimit].
func ParsePage(pageStr, limitStr string, defaultLimit, maxLimit int) (page, limit int) {
	page = ParseInt(pageStr, 1)
	if page < 1 {
		page = 1
	}
	limit = ClampInt(ParseInt(limitStr, defaultLimit), 1, maxLimit)
	return page, limit
}
