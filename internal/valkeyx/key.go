// Package valkeyx provides shared Valkey client helpers: connection setup,
// key construction, and nil-reply checks.
package valkeyx

import (
	"fmt"
	"strings"
)

// BuildKey joins a prefix and an id: {prefix}:{id}.
func BuildKey(prefix, id string) string {
	return fmt.Sprintf("%s:%s", prefix, strings.TrimSpace(id))
}

// BuildKey2 joins a prefix and two ids: {prefix}:{id1}:{id2}.
func BuildKey2(prefix, id1, id2 string) string {
	return fmt.Sprintf("%s:%s:%s", prefix, strings.TrimSpace(id1), strings.TrimSpace(id2))
}

// BuildKey3 joins a prefix and three ids: {prefix}:{id1}:{id2}:{id3}.
func BuildKey3(prefix, id1, id2, id3 string) string {
	return fmt.Sprintf("%s:%s:%s:%s", prefix, strings.TrimSpace(id1), strings.TrimSpace(id2), strings.TrimSpace(id3))
}
