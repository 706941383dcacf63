package storage

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ArtifactEncoding selects the wire format used for encoded artifacts such
// as worker jobs and metric records.
type ArtifactEncoding int

const (
	// ArtifactEncodingCBOR is the deterministic CBOR encoding, the default.
	ArtifactEncodingCBOR ArtifactEncoding = iota
	// ArtifactEncodingJSON is the JSON encoding.
	ArtifactEncodingJSON
)

// EncodeArtifact encodes an artifact in the requested format. CBOR is used
// when no format is given.
func EncodeArtifact(a any, encoding ...ArtifactEncoding) ([]byte, error) {
	if len(encoding) > 0 && encoding[0] == ArtifactEncodingJSON {
		return json.Marshal(a)
	}
	encOpts := cbor.CoreDetEncOptions()
	em, err := encOpts.EncMode()
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return em.Marshal(a)
}

// DecodeArtifact decodes an artifact from the requested format into out.
// CBOR is used when no format is given.
func DecodeArtifact(data []byte, out any, encoding ...ArtifactEncoding) error {
	if len(encoding) > 0 && encoding[0] == ArtifactEncodingJSON {
		return json.Unmarshal(data, out)
	}
	return cbor.Unmarshal(data, out)
}
