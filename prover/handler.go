// Package prover defines the proof-system handler capability and the
// registry that memoizes one handler instance per proof-system tag.
//
// Handlers are external collaborators from the point of view of the session
// core: they own the cryptographic backend, while the session owns the
// lifecycle and the scratch files the handler reads and writes.
package prover

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/omron-net/omron-node/storage"
)

// ErrAggregationUnsupported is returned by handlers whose proof system has
// no native proof aggregation.
var ErrAggregationUnsupported = errors.New("proof system does not support aggregation")

// Env carries the session state a handler operates on. Every field is
// serializable: worker processes rebuild an Env from a wire job instead of
// sharing memory with the parent.
type Env struct {
	CircuitID   string           `cbor:"circuitId"`
	CircuitDir  string           `cbor:"circuitDir"`
	ProofSystem string           `cbor:"proofSystem"`
	SessionID   string           `cbor:"sessionId"`
	Inputs      []byte           `cbor:"inputs,omitempty"`
	Scratch     *storage.Scratch `cbor:"scratch"`
}

// CircuitArtifact returns the path of a named file inside the circuit
// directory, such as the proving or verification key.
func (e *Env) CircuitArtifact(name string) string {
	return filepath.Join(e.CircuitDir, name)
}

// Handler is the capability contract of one proof system.
type Handler interface {
	// GenInputFile writes the session input artifact to the scratch input
	// path, in the format the witness generator expects.
	GenInputFile(env *Env) error

	// GenerateWitness runs the model inference through the circuit and
	// writes the witness artifact. When returnContent is true the witness
	// bytes are also returned.
	GenerateWitness(env *Env, returnContent bool) ([]byte, error)

	// GenProof produces the proof and its public signals from the session
	// input, writing both artifacts to the scratch area.
	GenProof(env *Env) (proof, publicSignals []byte, err error)

	// VerifyProof checks a proof against the given public inputs. A proof
	// that is well-formed but invalid verifies to (false, nil); only a
	// malformed or unreadable proof is an error.
	VerifyProof(env *Env, inputs, proof []byte) (bool, error)

	// AggregateProofs combines multiple proofs into one, returning the
	// aggregated proof and the time the aggregation took.
	AggregateProofs(env *Env, proofs [][]byte) ([]byte, time.Duration, error)
}
