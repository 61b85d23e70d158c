// Package strings holds small helpers for list-valued settings.
package strings

import (
	"strings"
)

// SplitList splits value on sep and cleans the parts with DedupeAndTrim.
// An empty value yields nil.
//
//	SplitList("kafka-1:9092, kafka-2:9092,,kafka-1:9092", ",")
//	// []string{"kafka-1:9092", "kafka-2:9092"}
func SplitList(value, sep string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	out := DedupeAndTrim(strings.Split(value, sep))
	if len(out) == 0 {
		return nil
	}
	return out
}

// DedupeAndTrim trims each element and drops empties and repeats, keeping
// first-seen order.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
