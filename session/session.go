// Package session manages the lifecycle of a verified inference session: a
// single run of a circuit over one set of inputs, from input materialization
// through proof generation or verification to cleanup of on-disk artifacts.
//
// Proof generation and verification run in a freshly spawned worker process by
// default (see workers.ProcessDispatcher), so native prover state never leaks
// between sessions and a crashing prover cannot take the node down with it.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/omron-net/omron-node/circuits"
	"github.com/omron-net/omron-node/log"
	"github.com/omron-net/omron-node/metrics"
	"github.com/omron-net/omron-node/prover"
	"github.com/omron-net/omron-node/storage"
	"github.com/omron-net/omron-node/workers"
)

var (
	// ErrNilCircuit is returned by New when no circuit is provided.
	ErrNilCircuit = errors.New("session requires a circuit")
	// ErrInputNotWritten is returned when an operation needs the input
	// artifact on disk but the session never materialized it.
	ErrInputNotWritten = errors.New("session input artifact not written")
	// ErrSessionEnded is returned by any operation invoked after End.
	ErrSessionEnded = errors.New("session already ended")
	// ErrProofGeneration wraps any failure while producing a proof.
	ErrProofGeneration = errors.New("proof generation failed")
	// ErrVerification wraps infrastructure failures during verification.
	// An invalid proof is not an error, it is a false result.
	ErrVerification = errors.New("proof verification failed")
)

type state int

const (
	stateCreated state = iota
	stateInputWritten
	stateWitnessGenerated
	stateProofGenerated
	stateVerified
	stateEnded
)

// defaultHandlers is shared across sessions so expensive handler
// construction happens once per proof system per node process.
var defaultHandlers = prover.NewRegistry()

// Session is a single verified inference run. It is safe for concurrent use,
// though the usual pattern is one goroutine driving a session start to end.
type Session struct {
	ID      string
	Circuit *circuits.Circuit
	Scratch *storage.Scratch

	inputs      []byte
	handler     prover.Handler
	handlers    *prover.Registry
	dispatcher  workers.Dispatcher
	tracker     *metrics.Tracker
	scratchRoot string

	mu    sync.Mutex
	state state
}

// Option configures a Session at creation time.
type Option func(*Session)

// WithDispatcher overrides the worker dispatcher. Tests use
// workers.NewInlineDispatcher to avoid spawning processes.
func WithDispatcher(d workers.Dispatcher) Option {
	return func(s *Session) { s.dispatcher = d }
}

// WithHandlers overrides the proof handler registry used to resolve the
// circuit's proof system.
func WithHandlers(r *prover.Registry) Option {
	return func(s *Session) { s.handlers = r }
}

// WithMetrics attaches a tracker that records per-proof timings.
func WithMetrics(t *metrics.Tracker) Option {
	return func(s *Session) { s.tracker = t }
}

// WithScratchRoot overrides the scratch base directory, normally the
// RAM-backed ephemeral root.
func WithScratchRoot(root string) Option {
	return func(s *Session) { s.scratchRoot = root }
}

// New creates a session for the given circuit, validates the inputs against
// the circuit's input schema when one is declared, and writes the input
// artifact to session-scoped scratch storage. The returned session is ready
// for GenerateProof or VerifyProof.
func New(circuit *circuits.Circuit, inputs []byte, opts ...Option) (*Session, error) {
	if circuit == nil {
		return nil, ErrNilCircuit
	}
	s := &Session{
		ID:       uuid.New().String(),
		Circuit:  circuit,
		inputs:   inputs,
		handlers: defaultHandlers,
		state:    stateCreated,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dispatcher == nil {
		s.dispatcher = &workers.ProcessDispatcher{}
	}
	if schema := circuit.Metadata.InputSchema; schema != nil && len(inputs) > 0 {
		if err := schema.Validate(inputs); err != nil {
			return nil, fmt.Errorf("inputs rejected by circuit %s schema: %w", circuit.ID, err)
		}
	}
	handler, err := s.handlers.Get(circuit.Metadata.ProofSystem)
	if err != nil {
		return nil, err
	}
	s.handler = handler

	if s.scratchRoot == "" {
		s.scratchRoot = storage.EphemeralRoot()
	}
	s.Scratch = storage.NewScratchAt(s.scratchRoot, circuit.ID, s.ID)
	if err := s.Scratch.Ensure(); err != nil {
		return nil, fmt.Errorf("could not create session scratch dir: %w", err)
	}
	if err := handler.GenInputFile(s.env()); err != nil {
		s.Scratch.Cleanup()
		return nil, fmt.Errorf("could not write input artifact: %w", err)
	}
	s.state = stateInputWritten
	log.Debugw("session started",
		"sessionId", s.ID, "circuit", circuit.ID, "proofSystem", circuit.Metadata.ProofSystem)
	return s, nil
}

func (s *Session) env() *prover.Env {
	return &prover.Env{
		CircuitID:   s.Circuit.ID,
		CircuitDir:  s.Circuit.Dir,
		ProofSystem: s.Circuit.Metadata.ProofSystem,
		SessionID:   s.ID,
		Inputs:      s.inputs,
		Scratch:     s.Scratch,
	}
}

// require fails when the session has ended or has not yet reached min.
func (s *Session) require(min state) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state == stateEnded:
		return ErrSessionEnded
	case s.state < min:
		return ErrInputNotWritten
	}
	return nil
}

func (s *Session) advance(to state) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateEnded && s.state < to {
		s.state = to
	}
}

// GenerateProof produces a proof over the session inputs in an isolated
// worker process. It returns the proof, the public signals and the elapsed
// wall time in seconds. Worker failures are never swallowed: they surface
// wrapped in ErrProofGeneration.
func (s *Session) GenerateProof(ctx context.Context) ([]byte, []byte, float64, error) {
	if err := s.require(stateInputWritten); err != nil {
		return nil, nil, 0, err
	}
	start := time.Now()
	res, err := s.dispatcher.Dispatch(ctx, &workers.Job{
		Op:  workers.OpProve,
		Env: s.env(),
	})
	if err == nil && res.Err != "" {
		err = errors.New(res.Err)
	}
	elapsed := time.Since(start)
	if s.tracker != nil {
		s.tracker.Record(metrics.Sample{
			Circuit:   s.Circuit.ID,
			ProofTime: elapsed,
			TotalTime: elapsed,
			Success:   err == nil,
		})
	}
	if err != nil {
		log.Errorw(err, fmt.Sprintf("proof generation failed for session %s", s.ID))
		return nil, nil, 0, fmt.Errorf("%w: %v", ErrProofGeneration, err)
	}
	s.advance(stateProofGenerated)
	log.Infow("proof generated",
		"sessionId", s.ID, "circuit", s.Circuit.ID, "took", elapsed.String())
	return res.Proof, res.PublicSignals, elapsed.Seconds(), nil
}

// VerifyProof checks the given proof against the given inputs in an isolated
// worker process. A well-formed but invalid proof yields (false, nil); any
// infrastructure failure is re-raised wrapped in ErrVerification so callers
// never mistake a broken verifier for a cheating prover.
func (s *Session) VerifyProof(ctx context.Context, inputs, proof []byte) (bool, error) {
	if err := s.require(stateInputWritten); err != nil {
		return false, err
	}
	res, err := s.dispatcher.Dispatch(ctx, &workers.Job{
		Op:           workers.OpVerify,
		Env:          s.env(),
		VerifyInputs: inputs,
		Proof:        proof,
	})
	if err == nil && res.Err != "" {
		err = errors.New(res.Err)
	}
	if err != nil {
		log.Errorw(err, fmt.Sprintf("verification failed for session %s", s.ID))
		return false, fmt.Errorf("%w: %v", ErrVerification, err)
	}
	s.advance(stateVerified)
	return res.Valid, nil
}

// GenerateWitness runs witness generation in-process. When returnContent is
// true the raw witness bytes are returned as well as written to scratch.
func (s *Session) GenerateWitness(returnContent bool) ([]byte, error) {
	if err := s.require(stateInputWritten); err != nil {
		return nil, err
	}
	wtns, err := s.handler.GenerateWitness(s.env(), returnContent)
	if err != nil {
		return nil, fmt.Errorf("witness generation failed for session %s: %w", s.ID, err)
	}
	s.advance(stateWitnessGenerated)
	return wtns, nil
}

// AggregateProofs folds previously generated proofs into a single aggregated
// proof via the circuit's handler. Handlers without aggregation support
// return prover.ErrAggregationUnsupported. The second return value is the
// aggregation wall time in seconds.
func (s *Session) AggregateProofs(proofs [][]byte) ([]byte, float64, error) {
	if err := s.require(stateInputWritten); err != nil {
		return nil, 0, err
	}
	agg, took, err := s.handler.AggregateProofs(s.env(), proofs)
	if err != nil {
		return nil, 0, err
	}
	return agg, took.Seconds(), nil
}

// End removes the session's input, witness, proof and public signal
// artifacts and marks the session finished. The aggregated proof artifact is
// deliberately left in place so callers can hand it off after the session is
// gone; Scratch.Cleanup removes it along with the session directory. End is
// idempotent and never fails: removal problems are logged and skipped.
func (s *Session) End() {
	s.mu.Lock()
	if s.state == stateEnded {
		s.mu.Unlock()
		return
	}
	s.state = stateEnded
	s.mu.Unlock()
	for _, path := range []string{
		s.Scratch.InputPath,
		s.Scratch.WitnessPath,
		s.Scratch.ProofPath,
		s.Scratch.PublicPath,
	} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warnw("could not remove session artifact", "path", path, "error", err.Error())
		}
	}
	log.Debugw("session ended", "sessionId", s.ID, "circuit", s.Circuit.ID)
}
