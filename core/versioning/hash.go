package versioning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// ComputeSnapshotHash returns a stable hex digest of a diagram snapshot.
// encoding/json writes map keys in sorted order at every nesting level, so
// the digest is independent of element insertion order.
func ComputeSnapshotHash(data Snapshot) string {
	encoded, err := json.Marshal(data)
	if err != nil {
		encoded = fallbackEncode(data)
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

// fallbackEncode handles payloads json.Marshal rejects. Keys are sorted to
// keep the encoding canonical.
func fallbackEncode(data Snapshot) []byte {
	ids := make([]string, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var encoded []byte
	for _, id := range ids {
		encoded = append(encoded, id...)
		encoded = append(encoded, '=')
		encoded = append(encoded, fmt.Sprintf("%v", data[id])...)
		encoded = append(encoded, ';')
	}
	return encoded
}

// ShortHash abbreviates a digest for log lines and UI labels.
func ShortHash(hash string) string {
	if len(hash) <= 8 {
		return hash
	}
	return hash[:8]
}
