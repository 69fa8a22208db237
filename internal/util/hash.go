// Package util provides shared utility functions.
package util

import "hash/fnv"

// ContentHash computes a 4-byte FNV-1a hash of a string. It is used for
// cheap change detection (clipboard loop avoidance) and does not need to
// be reversible or collision-proof.
func ContentHash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}
