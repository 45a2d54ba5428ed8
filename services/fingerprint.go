package services

import (
	"crypto/sha256"
	"fmt"
	"math"
	"sort"
	"strings"
)

// TemperatureBucketSize groups near-identical weather readings so they share
// one cache entry.
const TemperatureBucketSize = 5

// BuildFingerprint derives the cache key for one recommendation request.
// Selection order never matters: ids are sorted lexicographically before
// joining. Temperature is floored to the nearest 5 degrees, or "none" when the
// caller has no weather context.
func BuildFingerprint(ids []string, style string, temperature *float64) string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	bucket := "none"
	if temperature != nil {
		b := int(math.Floor(*temperature/TemperatureBucketSize)) * TemperatureBucketSize
		bucket = fmt.Sprint(b)
	}
	return strings.Join(sorted, "|") + "|" + style + "|" + bucket
}

// BuildItemSetHash is the narrow, content-addressed form used by saved outfit
// dedup: sorted-id join only, no style or temperature. It must agree whether
// the ids come from a fresh analysis or a previously saved record.
func BuildItemSetHash(ids []string) string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "|")))
	return fmt.Sprintf("%x", sum)
}
