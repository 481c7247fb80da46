package common

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseIndex parses a non-negative row index from a path segment.
func ParseIndex(value string) (int, error) {
	i, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || i < 0 {
		return 0, fmt.Errorf("invalid index %q", value)
	}
	return i, nil
}
