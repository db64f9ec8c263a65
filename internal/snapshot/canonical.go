package snapshot

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// CanonicalJSON produces a deterministic JSON encoding of a snapshot:
// struct fields in declared order, map keys sorted lexicographically, no
// insignificant whitespace, no HTML escaping, empty fields omitted.
func CanonicalJSON(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	// Remove trailing newline added by Encode
	result := buf.Bytes()
	if len(result) > 0 && result[len(result)-1] == '\n' {
		result = result[:len(result)-1]
	}

	return result, nil
}

// ComputeSnapshotRev computes the sha256 hash of canonical JSON bytes.
// Returns "sha256:<hex>" format.
func ComputeSnapshotRev(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}

// VerifyRev recomputes the snapshot rev with the embedded rev cleared and
// compares it against the embedded value. A snapshot without a rev passes.
func VerifyRev(snap *Snapshot) error {
	embedded := snap.Meta.SnapshotRev
	if embedded == "" {
		return nil
	}

	snap.Meta.SnapshotRev = ""
	data, err := CanonicalJSON(snap)
	snap.Meta.SnapshotRev = embedded
	if err != nil {
		return err
	}

	if computed := ComputeSnapshotRev(data); computed != embedded {
		return fmt.Errorf("snapshot_rev mismatch: embedded %s, computed %s", embedded, computed)
	}
	return nil
}
