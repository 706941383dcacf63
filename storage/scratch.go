// Package storage manages the ephemeral per-session scratch area where
// inference-proof artifacts (input, witness, proof, public signals) live
// between generation and cleanup.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/omron-net/omron-node/log"
)

// ramDiskPath is preferred as the scratch root when the host exposes a
// RAM-backed filesystem, since proof artifacts are written and deleted at
// high frequency.
const ramDiskPath = "/dev/shm"

// scratchSubdir namespaces all scratch files under the ephemeral root.
const scratchSubdir = "omron"

// EphemeralRoot returns the base directory for scratch storage: a RAM disk
// when available, the OS temp directory otherwise.
func EphemeralRoot() string {
	if info, err := os.Stat(ramDiskPath); err == nil && info.IsDir() {
		return filepath.Join(ramDiskPath, scratchSubdir)
	}
	return filepath.Join(os.TempDir(), scratchSubdir)
}

// Scratch derives the deterministic artifact paths for one session. All
// paths are namespaced by model id and session id so concurrent sessions
// never collide, even for the same model. A Scratch is exclusively owned by
// its session and must not be shared.
type Scratch struct {
	ModelID   string
	SessionID string

	BasePath            string
	InputPath           string
	WitnessPath         string
	ProofPath           string
	AggregatedProofPath string
	PublicPath          string
}

// NewScratch derives all paths for the (modelID, sessionID) pair under the
// default ephemeral root. It is a pure function: no directory is created
// until Ensure is called.
func NewScratch(modelID, sessionID string) *Scratch {
	return NewScratchAt(EphemeralRoot(), modelID, sessionID)
}

// NewScratchAt is NewScratch with an explicit base directory.
func NewScratchAt(base, modelID, sessionID string) *Scratch {
	tag := fmt.Sprintf("%s_%s", modelID, sessionID)
	return &Scratch{
		ModelID:             modelID,
		SessionID:           sessionID,
		BasePath:            base,
		InputPath:           filepath.Join(base, fmt.Sprintf("input_%s.json", tag)),
		WitnessPath:         filepath.Join(base, fmt.Sprintf("witness_%s.json", tag)),
		ProofPath:           filepath.Join(base, fmt.Sprintf("proof_%s.json", tag)),
		AggregatedProofPath: filepath.Join(base, fmt.Sprintf("aggregated_proof_%s.json", tag)),
		PublicPath:          filepath.Join(base, fmt.Sprintf("proof_%s.public.json", tag)),
	}
}

// Ensure creates the base directory. It is the only filesystem side effect
// of setting up a scratch area and must run before any artifact is written.
func (s *Scratch) Ensure() error {
	if err := os.MkdirAll(s.BasePath, 0o700); err != nil {
		return fmt.Errorf("create scratch base %s: %w", s.BasePath, err)
	}
	return nil
}

// ProofPathForIteration returns the proof path for iteration n, distinct
// from the base proof path and from any other iteration.
func (s *Scratch) ProofPathForIteration(n int) string {
	return filepath.Join(s.BasePath, fmt.Sprintf("proof_%s_%s_%d.json", s.ModelID, s.SessionID, n))
}

// SessionDir returns a nested directory for grouping artifacts of the given
// session id, creating it if necessary.
func (s *Scratch) SessionDir(sessionID string) (string, error) {
	dir := filepath.Join(s.BasePath, sessionID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create session dir %s: %w", dir, err)
	}
	return dir, nil
}

// ArtifactPaths returns the five artifact paths owned by the scratch area,
// in a fixed order.
func (s *Scratch) ArtifactPaths() []string {
	return []string{
		s.InputPath,
		s.WitnessPath,
		s.ProofPath,
		s.AggregatedProofPath,
		s.PublicPath,
	}
}

// Cleanup removes every artifact file that exists, then removes the base
// directory if it ended up empty. Removal failures are logged and never
// returned; calling Cleanup twice is safe.
func (s *Scratch) Cleanup() {
	removed := 0
	for _, path := range s.ArtifactPaths() {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil {
			if !os.IsNotExist(err) {
				log.Warnw("failed to remove scratch artifact", "path", path, "error", err.Error())
			}
			continue
		}
		removed++
	}

	// The base directory is shared between sessions; drop it only once the
	// last artifact is gone.
	if entries, err := os.ReadDir(s.BasePath); err == nil && len(entries) == 0 {
		if err := os.Remove(s.BasePath); err != nil {
			log.Debugw("could not remove scratch base", "path", s.BasePath, "error", err.Error())
		}
	}
	log.Debugw("scratch cleanup completed", "session", s.SessionID, "removed", removed)
}
