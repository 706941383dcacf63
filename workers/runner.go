package workers

import (
	"fmt"
	"io"

	"github.com/omron-net/omron-node/log"
	"github.com/omron-net/omron-node/prover"
	"github.com/omron-net/omron-node/storage"
)

// WorkerModeEnv marks a process as a job worker. The main binary checks it
// before anything else and hands control to Run.
const WorkerModeEnv = "OMRON_WORKER_MODE"

// Run is the worker-side entry point: it decodes one job from stdin,
// executes it with a handler registry local to this process, and encodes
// the result to stdout. It always returns after a single job.
func Run(stdin io.Reader, stdout io.Writer) error {
	data, err := io.ReadAll(stdin)
	if err != nil {
		return fmt.Errorf("read job: %w", err)
	}
	var job Job
	if err := storage.DecodeArtifact(data, &job); err != nil {
		return fmt.Errorf("decode job: %w", err)
	}
	// Handlers must be rebuilt here: the parent's handler cache is not
	// shared across the process boundary.
	result := Execute(&job, prover.NewRegistry())
	encoded, err := storage.EncodeArtifact(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if _, err := stdout.Write(encoded); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// Execute runs one job against the given handler registry. Handler failures
// are reported inside the Result, never as a process failure.
func Execute(job *Job, handlers *prover.Registry) *Result {
	if job.Env == nil {
		return &Result{Err: "job has no environment"}
	}
	handler, err := handlers.Get(job.Env.ProofSystem)
	if err != nil {
		return &Result{Err: err.Error()}
	}
	switch job.Op {
	case OpProve:
		proof, pubSignals, err := handler.GenProof(job.Env)
		if err != nil {
			log.Warnw("proof generation failed in worker",
				"circuit", job.Env.CircuitID, "session", job.Env.SessionID, "error", err.Error())
			return &Result{Err: err.Error()}
		}
		return &Result{Proof: proof, PublicSignals: pubSignals}
	case OpVerify:
		valid, err := handler.VerifyProof(job.Env, job.VerifyInputs, job.Proof)
		if err != nil {
			log.Warnw("proof verification failed in worker",
				"circuit", job.Env.CircuitID, "session", job.Env.SessionID, "error", err.Error())
			return &Result{Err: err.Error()}
		}
		return &Result{Valid: valid}
	default:
		return &Result{Err: fmt.Sprintf("unknown job operation %q", job.Op)}
	}
}
