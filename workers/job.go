// Package workers isolates proof generation and verification in
// single-task worker processes. A job is fully serialized, executed in a
// fresh process that shares no memory with the parent, and the worker is
// torn down once the result is back. A crash or leak inside native proving
// code therefore cannot corrupt or starve the calling process.
package workers

import (
	"github.com/omron-net/omron-node/prover"
)

// Job operations.
const (
	OpProve  = "prove"
	OpVerify = "verify"
)

// Job is the serializable description of one unit of proof work. The
// embedded Env carries everything a worker needs to rebuild the handler
// and the scratch paths; nothing references live parent-process state.
type Job struct {
	Op  string      `cbor:"op"`
	Env *prover.Env `cbor:"env"`

	// VerifyInputs and Proof are only set for verify jobs.
	VerifyInputs []byte `cbor:"verifyInputs,omitempty"`
	Proof        []byte `cbor:"proof,omitempty"`
}

// Result is the serializable outcome of a job. A handler-level failure
// travels in Err with a clean worker exit; a non-zero worker exit means the
// process itself died.
type Result struct {
	Proof         []byte `cbor:"proof,omitempty"`
	PublicSignals []byte `cbor:"publicSignals,omitempty"`
	Valid         bool   `cbor:"valid,omitempty"`
	Err           string `cbor:"err,omitempty"`
}
