package deduplication

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"sort"
)

// Hasher derives a stable identity for events that carry no ID.
type Hasher struct {
	algorithm string
}

func NewHasher(algorithm string) *Hasher {
	return &Hasher{algorithm: algorithm}
}

// ComputeHash hashes fields in key order. Values are JSON encoded so nested
// maps hash the same regardless of insertion order.
func (h *Hasher) ComputeHash(fields map[string]any) (string, error) {
	if len(fields) == 0 {
		return "", fmt.Errorf("no fields specified for hashing")
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sum := h.newHash()
	for _, k := range keys {
		encoded, err := json.Marshal(fields[k])
		if err != nil {
			return "", fmt.Errorf("failed to encode field %s: %w", k, err)
		}
		sum.Write([]byte(k))
		sum.Write([]byte{'='})
		sum.Write(encoded)
		sum.Write([]byte{'|'})
	}

	return hex.EncodeToString(sum.Sum(nil)), nil
}

func (h *Hasher) newHash() hash.Hash {
	if h.algorithm == "md5" {
		return md5.New()
	}
	return sha256.New()
}
