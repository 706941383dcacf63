package prover

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ProofSystemMock is the tag of the deterministic mock proof system used in
// tests and local development. Proofs are content digests rather than
// cryptographic arguments, but the handler honors the full capability
// contract, including aggregation.
const ProofSystemMock = "mock"

func init() {
	RegisterBuilder(ProofSystemMock, func() (Handler, error) {
		return &MockHandler{}, nil
	})
}

// MockHandler implements the proof-system capability with sha256 digests.
type MockHandler struct{}

type mockProof struct {
	Circuit string `json:"circuit"`
	Digest  string `json:"digest"`
}

func mockDigest(circuitID string, inputs []byte) string {
	sum := sha256.Sum256(append([]byte(circuitID), bytes.TrimSpace(inputs)...))
	return hex.EncodeToString(sum[:])
}

// GenInputFile writes the session inputs to the scratch input path. Absent
// inputs produce an empty JSON object so the rest of the pipeline stays
// exercisable.
func (h *MockHandler) GenInputFile(env *Env) error {
	inputs := env.Inputs
	if len(inputs) == 0 {
		inputs = []byte("{}")
	}
	if err := os.WriteFile(env.Scratch.InputPath, inputs, 0o600); err != nil {
		return fmt.Errorf("write input artifact: %w", err)
	}
	return nil
}

// GenerateWitness derives a deterministic witness from the input artifact.
func (h *MockHandler) GenerateWitness(env *Env, returnContent bool) ([]byte, error) {
	raw, err := os.ReadFile(env.Scratch.InputPath)
	if err != nil {
		return nil, fmt.Errorf("read input artifact: %w", err)
	}
	witness, err := json.Marshal(map[string]string{
		"witness": mockDigest(env.CircuitID, raw),
	})
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(env.Scratch.WitnessPath, witness, 0o600); err != nil {
		return nil, fmt.Errorf("write witness artifact: %w", err)
	}
	if returnContent {
		return witness, nil
	}
	return nil, nil
}

// GenProof emits a digest proof bound to the circuit id and the inputs,
// along with a single public signal.
func (h *MockHandler) GenProof(env *Env) ([]byte, []byte, error) {
	if _, err := h.GenerateWitness(env, false); err != nil {
		return nil, nil, err
	}
	raw, err := os.ReadFile(env.Scratch.InputPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read input artifact: %w", err)
	}
	digest := mockDigest(env.CircuitID, raw)
	proof, err := json.Marshal(mockProof{Circuit: env.CircuitID, Digest: digest})
	if err != nil {
		return nil, nil, err
	}
	pubSignals, err := json.Marshal([]string{digest})
	if err != nil {
		return nil, nil, err
	}
	if err := os.WriteFile(env.Scratch.ProofPath, proof, 0o600); err != nil {
		return nil, nil, fmt.Errorf("write proof artifact: %w", err)
	}
	if err := os.WriteFile(env.Scratch.PublicPath, pubSignals, 0o600); err != nil {
		return nil, nil, fmt.Errorf("write public signals artifact: %w", err)
	}
	return proof, pubSignals, nil
}

// VerifyProof recomputes the digest from the given inputs and compares it
// against the proof. A well-formed proof with a wrong digest verifies to
// (false, nil); only an unparseable proof is an error.
func (h *MockHandler) VerifyProof(env *Env, inputs, proof []byte) (bool, error) {
	var p mockProof
	if err := json.Unmarshal(proof, &p); err != nil {
		return false, fmt.Errorf("malformed proof: %w", err)
	}
	if p.Circuit != env.CircuitID {
		return false, nil
	}
	return p.Digest == mockDigest(env.CircuitID, inputs), nil
}

// AggregateProofs concatenates the proof digests into a single aggregate
// digest and writes the aggregated-proof artifact.
func (h *MockHandler) AggregateProofs(env *Env, proofs [][]byte) ([]byte, time.Duration, error) {
	start := time.Now()
	hash := sha256.New()
	for _, proof := range proofs {
		hash.Write(proof)
	}
	aggregated, err := json.Marshal(map[string]string{
		"aggregated": hex.EncodeToString(hash.Sum(nil)),
	})
	if err != nil {
		return nil, 0, err
	}
	if err := os.WriteFile(env.Scratch.AggregatedProofPath, aggregated, 0o600); err != nil {
		return nil, 0, fmt.Errorf("write aggregated proof artifact: %w", err)
	}
	return aggregated, time.Since(start), nil
}
