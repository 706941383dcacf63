package prover

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	rapidprover "github.com/iden3/go-rapidsnark/prover"
	rapidtypes "github.com/iden3/go-rapidsnark/types"
	"github.com/iden3/go-rapidsnark/verifier"
	"github.com/iden3/go-rapidsnark/witness"

	"github.com/omron-net/omron-node/log"
)

// ProofSystemCircom is the tag of the circom/groth16 proof system.
const ProofSystemCircom = "circom"

// Artifact file names inside a circuit directory, as produced by the circom
// toolchain.
const (
	circomWasmFile = "circuit.wasm"
	circomZkeyFile = "circuit.zkey"
	circomVkeyFile = "verification_key.json"
)

func init() {
	RegisterBuilder(ProofSystemCircom, func() (Handler, error) {
		return NewCircomHandler(), nil
	})
}

// CircomHandler proves and verifies circom circuits through rapidsnark.
// Witness calculators embed a WASM runtime and are expensive to build, so
// they are memoized per circuit id for the handler's lifetime.
type CircomHandler struct {
	calcMu      sync.Mutex
	calculators map[string]*witness.Circom2WitnessCalculator

	// proveMu serializes rapidsnark prover calls: the native code is not
	// safe for concurrent use.
	proveMu sync.Mutex
}

// NewCircomHandler creates a circom proof handler with an empty calculator
// cache.
func NewCircomHandler() *CircomHandler {
	return &CircomHandler{
		calculators: make(map[string]*witness.Circom2WitnessCalculator),
	}
}

func (h *CircomHandler) calculator(env *Env) (*witness.Circom2WitnessCalculator, error) {
	h.calcMu.Lock()
	defer h.calcMu.Unlock()
	if calc, ok := h.calculators[env.CircuitID]; ok {
		return calc, nil
	}
	wasm, err := os.ReadFile(env.CircuitArtifact(circomWasmFile))
	if err != nil {
		return nil, fmt.Errorf("read witness generator: %w", err)
	}
	calc, err := witness.NewCircom2WitnessCalculator(wasm, true)
	if err != nil {
		return nil, fmt.Errorf("instance witness calculator: %w", err)
	}
	h.calculators[env.CircuitID] = calc
	return calc, nil
}

// GenInputFile writes the session inputs as circom input JSON.
func (h *CircomHandler) GenInputFile(env *Env) error {
	if len(env.Inputs) == 0 {
		return fmt.Errorf("circuit %s: no inputs provided", env.CircuitID)
	}
	if err := os.WriteFile(env.Scratch.InputPath, env.Inputs, 0o600); err != nil {
		return fmt.Errorf("write input artifact: %w", err)
	}
	return nil
}

// GenerateWitness runs the inference through the circuit WASM and writes
// the binary witness artifact.
func (h *CircomHandler) GenerateWitness(env *Env, returnContent bool) ([]byte, error) {
	raw, err := os.ReadFile(env.Scratch.InputPath)
	if err != nil {
		return nil, fmt.Errorf("read input artifact: %w", err)
	}
	parsed, err := witness.ParseInputs(raw)
	if err != nil {
		return nil, fmt.Errorf("parse circom inputs: %w", err)
	}
	calc, err := h.calculator(env)
	if err != nil {
		return nil, err
	}
	wtns, err := calc.CalculateWTNSBin(parsed, true)
	if err != nil {
		return nil, fmt.Errorf("calculate witness: %w", err)
	}
	if err := os.WriteFile(env.Scratch.WitnessPath, wtns, 0o600); err != nil {
		return nil, fmt.Errorf("write witness artifact: %w", err)
	}
	if returnContent {
		return wtns, nil
	}
	return nil, nil
}

// GenProof computes the witness and produces a groth16 proof with its
// public signals, writing both artifacts to the scratch area.
func (h *CircomHandler) GenProof(env *Env) ([]byte, []byte, error) {
	wtns, err := h.GenerateWitness(env, true)
	if err != nil {
		return nil, nil, err
	}
	zkey, err := os.ReadFile(env.CircuitArtifact(circomZkeyFile))
	if err != nil {
		return nil, nil, fmt.Errorf("read proving key: %w", err)
	}
	h.proveMu.Lock()
	proof, pubSignals, err := rapidprover.Groth16ProverRaw(zkey, wtns)
	h.proveMu.Unlock()
	if err != nil {
		return nil, nil, fmt.Errorf("groth16 prove: %w", err)
	}
	if err := os.WriteFile(env.Scratch.ProofPath, []byte(proof), 0o600); err != nil {
		return nil, nil, fmt.Errorf("write proof artifact: %w", err)
	}
	if err := os.WriteFile(env.Scratch.PublicPath, []byte(pubSignals), 0o600); err != nil {
		return nil, nil, fmt.Errorf("write public signals artifact: %w", err)
	}
	return []byte(proof), []byte(pubSignals), nil
}

// VerifyProof checks a groth16 proof against the circuit verification key.
// inputs must be the JSON array of public signals. A proof that parses but
// does not verify returns (false, nil).
func (h *CircomHandler) VerifyProof(env *Env, inputs, proof []byte) (bool, error) {
	vkey, err := os.ReadFile(env.CircuitArtifact(circomVkeyFile))
	if err != nil {
		return false, fmt.Errorf("read verification key: %w", err)
	}
	var proofData rapidtypes.ProofData
	if err := json.Unmarshal(proof, &proofData); err != nil {
		return false, fmt.Errorf("malformed proof: %w", err)
	}
	var pubSignals []string
	if err := json.Unmarshal(inputs, &pubSignals); err != nil {
		return false, fmt.Errorf("malformed public signals: %w", err)
	}
	zkp := rapidtypes.ZKProof{Proof: &proofData, PubSignals: pubSignals}
	if err := verifier.VerifyGroth16(zkp, vkey); err != nil {
		log.Debugw("proof did not verify", "circuit", env.CircuitID, "error", err.Error())
		return false, nil
	}
	return true, nil
}

// AggregateProofs is not available for the circom backend.
func (h *CircomHandler) AggregateProofs(_ *Env, _ [][]byte) ([]byte, time.Duration, error) {
	return nil, 0, ErrAggregationUnsupported
}
