// Package testutil provides deterministic fixtures for circuit and session
// tests. All fixtures use the mock proof system so tests never need real
// circom artifacts.
package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/omron-net/omron-node/circuits"
	"github.com/omron-net/omron-node/config"
	"github.com/omron-net/omron-node/prover"
)

// DeterministicCircuitID derives a stable hex circuit id from n, shaped like
// the sha256 ids used on the deployment layer.
func DeterministicCircuitID(n uint64) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "circuit-%d", n))
	return hex.EncodeToString(sum[:])
}

// MockMetadata returns circuit metadata for the mock proof system with the
// given name and version.
func MockMetadata(name, version string) circuits.Metadata {
	return circuits.Metadata{
		Name:        name,
		Description: "test circuit",
		Author:      "testutil",
		Version:     version,
		Type:        "proof_of_computation",
		ProofSystem: prover.ProofSystemMock,
	}
}

// WriteCircuitDir materializes a model_<id> circuit directory with its
// metadata file under root, returning the directory path. Tests point
// Registry.LoadFromDir at root afterwards.
func WriteCircuitDir(root, id string, meta circuits.Metadata) (string, error) {
	dir := filepath.Join(root, config.CircuitDirPrefix+id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, config.MetadataFileName), data, 0o644); err != nil {
		return "", err
	}
	return dir, nil
}

// MockCircuit builds an in-memory circuit backed by a real on-disk directory
// under root, ready for session use.
func MockCircuit(root, name, version string) (*circuits.Circuit, error) {
	id := DeterministicCircuitID(0)
	meta := MockMetadata(name, version)
	dir, err := WriteCircuitDir(root, id, meta)
	if err != nil {
		return nil, err
	}
	return circuits.NewCircuit(id, dir, meta)
}
