package workers

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/omron-net/omron-node/log"
	"github.com/omron-net/omron-node/prover"
	"github.com/omron-net/omron-node/storage"
)

// Dispatcher sends one job to an isolated execution unit and waits for its
// result. The context is the caller's cancellation and timeout hook: when
// it expires, the execution unit is torn down and Dispatch returns the
// context error.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *Job) (*Result, error)
}

// ProcessDispatcher spawns one fresh OS process per job: the node binary
// re-executed in worker mode, with the CBOR job on stdin and the CBOR
// result on stdout. No pooling, no reuse; the per-call startup cost buys
// full fault isolation from native proving code.
type ProcessDispatcher struct {
	// BinPath is the worker binary. Empty means the current executable.
	BinPath string
}

func (d *ProcessDispatcher) binary() (string, error) {
	if d.BinPath != "" {
		return d.BinPath, nil
	}
	return os.Executable()
}

// Dispatch runs the job in a fresh worker process.
func (d *ProcessDispatcher) Dispatch(ctx context.Context, job *Job) (*Result, error) {
	bin, err := d.binary()
	if err != nil {
		return nil, fmt.Errorf("resolve worker binary: %w", err)
	}
	encoded, err := storage.EncodeArtifact(job)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}

	cmd := exec.CommandContext(ctx, bin)
	cmd.Env = append(os.Environ(), WorkerModeEnv+"=1")
	cmd.Stdin = bytes.NewReader(encoded)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debugw("dispatching job to worker process", "op", job.Op, "session", job.Env.SessionID)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("worker process failed: %w, stderr=%s",
			err, strings.TrimSpace(stderr.String()))
	}

	var result Result
	if err := storage.DecodeArtifact(stdout.Bytes(), &result); err != nil {
		return nil, fmt.Errorf("decode worker result: %w", err)
	}
	return &result, nil
}

// InlineDispatcher executes jobs in-process, inside a goroutine with panic
// recovery. It trades the process-level isolation of ProcessDispatcher for
// zero startup cost and is what tests use.
type InlineDispatcher struct {
	mu       sync.Mutex
	handlers *prover.Registry
}

// NewInlineDispatcher creates an inline dispatcher with its own handler
// registry.
func NewInlineDispatcher() *InlineDispatcher {
	return &InlineDispatcher{handlers: prover.NewRegistry()}
}

func (d *InlineDispatcher) registry() *prover.Registry {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handlers == nil {
		d.handlers = prover.NewRegistry()
	}
	return d.handlers
}

// Dispatch runs the job in a goroutine, recovering panics into job errors.
func (d *InlineDispatcher) Dispatch(ctx context.Context, job *Job) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := make(chan *Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- &Result{Err: fmt.Sprintf("worker panic: %v", r)}
			}
		}()
		results <- Execute(job, d.registry())
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-results:
		return result, nil
	}
}
