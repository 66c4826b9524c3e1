package domain

import "strings"

// CompareRank orders two rank keys. Keys are opaque strings compared
// byte-wise; a nil key sorts after every present key, two nil keys are equal.
func CompareRank(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return strings.Compare(*a, *b)
}
