// Package circuits defines the provable circuit catalog: the Circuit type
// describing one deployed provable model, and the Registry that loads,
// indexes and resolves circuits by id, subnet and version.
package circuits

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blang/semver/v4"

	"github.com/omron-net/omron-node/config"
)

// Metadata describes a deployed circuit. It is read once from the circuit
// directory and never mutated afterwards.
type Metadata struct {
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	Author         string       `json:"author"`
	Version        string       `json:"version"`
	Type           string       `json:"type"`
	ProofSystem    string       `json:"proof_system"`
	Netuid         *uint32      `json:"netuid,omitempty"`
	WeightsVersion uint64       `json:"weights_version"`
	InputSchema    *InputSchema `json:"input_schema,omitempty"`
}

// Circuit is the versioned, provable representation of a model. Instances
// are immutable after construction and safe to share across sessions
// without locking.
type Circuit struct {
	ID       string
	Dir      string
	Metadata Metadata

	version semver.Version
}

// LoadCircuit constructs a Circuit from its on-disk directory by parsing
// the metadata file. The metadata version must be a parseable semantic
// version, otherwise ordering queries on the registry would be undefined.
func LoadCircuit(id, dir string) (*Circuit, error) {
	data, err := os.ReadFile(filepath.Join(dir, config.MetadataFileName))
	if err != nil {
		return nil, fmt.Errorf("read circuit metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse circuit metadata: %w", err)
	}
	return NewCircuit(id, dir, meta)
}

// NewCircuit builds a Circuit from already parsed metadata. Used by the
// registry when the metadata for an id is cached from a previous load.
func NewCircuit(id, dir string, meta Metadata) (*Circuit, error) {
	if meta.ProofSystem == "" {
		return nil, fmt.Errorf("circuit %s: missing proof system", id)
	}
	v, err := semver.ParseTolerant(meta.Version)
	if err != nil {
		return nil, fmt.Errorf("circuit %s: invalid version %q: %w", id, meta.Version, err)
	}
	return &Circuit{
		ID:       id,
		Dir:      dir,
		Metadata: meta,
		version:  v,
	}, nil
}

// Version returns the parsed semantic version of the circuit.
func (c *Circuit) Version() semver.Version {
	return c.version
}

// ArtifactPath returns the path of a named artifact file inside the circuit
// directory, such as the proving key or the witness generator.
func (c *Circuit) ArtifactPath(name string) string {
	return filepath.Join(c.Dir, name)
}

func (c *Circuit) String() string {
	return fmt.Sprintf("%s (%s v%s)", c.ID, c.Metadata.Name, c.Metadata.Version)
}
