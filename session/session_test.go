package session

import (
	"context"
	"os"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/omron-net/omron-node/circuits"
	"github.com/omron-net/omron-node/internal/testutil"
	"github.com/omron-net/omron-node/metrics"
	"github.com/omron-net/omron-node/prover"
	"github.com/omron-net/omron-node/workers"
)

func newTestSession(t *testing.T, inputs []byte, opts ...Option) *Session {
	t.Helper()
	circuit, err := testutil.MockCircuit(t.TempDir(), "test-model", "1.0.0")
	qt.Assert(t, err, qt.IsNil)
	opts = append([]Option{
		WithDispatcher(workers.NewInlineDispatcher()),
		WithScratchRoot(t.TempDir()),
	}, opts...)
	s, err := New(circuit, inputs, opts...)
	qt.Assert(t, err, qt.IsNil)
	t.Cleanup(s.End)
	return s
}

func TestNewRequiresCircuit(t *testing.T) {
	c := qt.New(t)
	_, err := New(nil, []byte(`{}`))
	c.Assert(err, qt.ErrorIs, ErrNilCircuit)
}

func TestNewWritesInputArtifact(t *testing.T) {
	c := qt.New(t)
	inputs := []byte(`{"inputs":[1,2,3]}`)
	s := newTestSession(t, inputs)

	data, err := os.ReadFile(s.Scratch.InputPath)
	c.Assert(err, qt.IsNil)
	c.Assert(data, qt.DeepEquals, inputs)
}

func TestNewValidatesInputSchema(t *testing.T) {
	c := qt.New(t)
	meta := testutil.MockMetadata("schema-model", "1.0.0")
	meta.InputSchema = &circuits.InputSchema{
		Type:       "object",
		Properties: map[string]*circuits.Property{"inputs": {Type: "array", MinItems: 1}},
		Required:   []string{"inputs"},
	}
	root := t.TempDir()
	id := testutil.DeterministicCircuitID(1)
	dir, err := testutil.WriteCircuitDir(root, id, meta)
	c.Assert(err, qt.IsNil)
	circuit, err := circuits.NewCircuit(id, dir, meta)
	c.Assert(err, qt.IsNil)

	_, err = New(circuit, []byte(`{"wrong":true}`),
		WithDispatcher(workers.NewInlineDispatcher()), WithScratchRoot(t.TempDir()))
	c.Assert(err, qt.ErrorMatches, `inputs rejected.*missing required input.*`)

	s, err := New(circuit, []byte(`{"inputs":[1]}`),
		WithDispatcher(workers.NewInlineDispatcher()), WithScratchRoot(t.TempDir()))
	c.Assert(err, qt.IsNil)
	s.End()
}

func TestGenerateProofLifecycle(t *testing.T) {
	c := qt.New(t)
	inputs := []byte(`{"inputs":[1,2,3]}`)
	s := newTestSession(t, inputs)

	proof, pubSignals, elapsed, err := s.GenerateProof(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(proof, qt.Not(qt.HasLen), 0)
	c.Assert(pubSignals, qt.Not(qt.HasLen), 0)
	c.Assert(elapsed >= 0, qt.IsTrue)

	valid, err := s.VerifyProof(context.Background(), inputs, proof)
	c.Assert(err, qt.IsNil)
	c.Assert(valid, qt.IsTrue)

	s.End()
	for _, path := range []string{
		s.Scratch.InputPath,
		s.Scratch.WitnessPath,
		s.Scratch.ProofPath,
		s.Scratch.PublicPath,
	} {
		_, err := os.Stat(path)
		c.Assert(os.IsNotExist(err), qt.IsTrue, qt.Commentf("artifact %s survived End", path))
	}
}

func TestVerifyProofInvalidIsNotAnError(t *testing.T) {
	c := qt.New(t)
	inputs := []byte(`{"inputs":[1]}`)
	s := newTestSession(t, inputs)

	proof, _, _, err := s.GenerateProof(context.Background())
	c.Assert(err, qt.IsNil)

	valid, err := s.VerifyProof(context.Background(), []byte(`{"inputs":[2]}`), proof)
	c.Assert(err, qt.IsNil)
	c.Assert(valid, qt.IsFalse)

	// a malformed proof is an infrastructure error, not a false verdict
	_, err = s.VerifyProof(context.Background(), inputs, []byte("garbage"))
	c.Assert(err, qt.ErrorIs, ErrVerification)
}

func TestGenerateProofFailureSurfaces(t *testing.T) {
	c := qt.New(t)
	s := newTestSession(t, []byte(`{"inputs":[1]}`))
	// removing the input artifact makes witness generation fail in the worker
	c.Assert(os.Remove(s.Scratch.InputPath), qt.IsNil)

	_, _, _, err := s.GenerateProof(context.Background())
	c.Assert(err, qt.ErrorIs, ErrProofGeneration)
}

func TestSessionEndedRejectsOperations(t *testing.T) {
	c := qt.New(t)
	s := newTestSession(t, []byte(`{"inputs":[1]}`))
	s.End()
	s.End() // idempotent

	_, _, _, err := s.GenerateProof(context.Background())
	c.Assert(err, qt.ErrorIs, ErrSessionEnded)
	_, err = s.VerifyProof(context.Background(), nil, nil)
	c.Assert(err, qt.ErrorIs, ErrSessionEnded)
	_, err = s.GenerateWitness(true)
	c.Assert(err, qt.ErrorIs, ErrSessionEnded)
	_, _, err = s.AggregateProofs(nil)
	c.Assert(err, qt.ErrorIs, ErrSessionEnded)
}

func TestGenerateWitness(t *testing.T) {
	c := qt.New(t)
	s := newTestSession(t, []byte(`{"inputs":[1]}`))

	wtns, err := s.GenerateWitness(true)
	c.Assert(err, qt.IsNil)
	c.Assert(wtns, qt.Not(qt.HasLen), 0)
	_, err = os.Stat(s.Scratch.WitnessPath)
	c.Assert(err, qt.IsNil)
}

func TestAggregateProofsKeepsArtifactAfterEnd(t *testing.T) {
	c := qt.New(t)
	s := newTestSession(t, []byte(`{"inputs":[1]}`))

	proof, _, _, err := s.GenerateProof(context.Background())
	c.Assert(err, qt.IsNil)
	aggregated, took, err := s.AggregateProofs([][]byte{proof, proof})
	c.Assert(err, qt.IsNil)
	c.Assert(aggregated, qt.Not(qt.HasLen), 0)
	c.Assert(took >= 0, qt.IsTrue)

	// the aggregated proof survives End for later hand-off
	s.End()
	_, err = os.Stat(s.Scratch.AggregatedProofPath)
	c.Assert(err, qt.IsNil)
}

func TestSessionRecordsMetrics(t *testing.T) {
	c := qt.New(t)
	tracker := metrics.NewTracker()
	s := newTestSession(t, []byte(`{"inputs":[1]}`), WithMetrics(tracker))

	_, _, _, err := s.GenerateProof(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(tracker.Len(), qt.Equals, 1)
	summary := tracker.Summary()
	c.Assert(summary.Successes, qt.Equals, 1)
	c.Assert(summary.WithinDeadline, qt.Equals, 1)

	// failed runs are recorded too
	c.Assert(os.Remove(s.Scratch.InputPath), qt.IsNil)
	_, _, _, err = s.GenerateProof(context.Background())
	c.Assert(err, qt.IsNotNil)
	c.Assert(tracker.Len(), qt.Equals, 2)
	c.Assert(tracker.Summary().Successes, qt.Equals, 1)
}

func TestSessionUnknownProofSystem(t *testing.T) {
	c := qt.New(t)
	meta := testutil.MockMetadata("ghost-model", "1.0.0")
	meta.ProofSystem = "nonexistent"
	root := t.TempDir()
	id := testutil.DeterministicCircuitID(2)
	dir, err := testutil.WriteCircuitDir(root, id, meta)
	c.Assert(err, qt.IsNil)
	circuit, err := circuits.NewCircuit(id, dir, meta)
	c.Assert(err, qt.IsNil)

	_, err = New(circuit, []byte(`{}`), WithHandlers(prover.NewRegistry()), WithScratchRoot(t.TempDir()))
	c.Assert(err, qt.ErrorMatches, `unknown proof system.*`)
}
