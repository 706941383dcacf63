// Package config provides the static configuration consumed by the circuit
// registry and the session manager: the mainnet to testnet subnet mapping,
// the list of blacklisted circuit ids and the timing conventions used by
// the network.
package config

import "time"

// DefaultProofDeadline is the network convention for the maximum wall-clock
// time a verified inference response may take before validators score it as
// a timeout. The core never enforces it; callers bound proof generation with
// a context deadline derived from this value.
const DefaultProofDeadline = 45 * time.Second

// CircuitDirPrefix is the directory naming pattern for deployed circuits.
// A catalog directory contains one "model_<id>" subdirectory per circuit.
const CircuitDirPrefix = "model_"

// MetadataFileName is the per-circuit metadata file inside its directory.
const MetadataFileName = "metadata.json"

// MainnetTestnetNetuids maps each mainnet subnet id to its testnet
// counterparts. Circuits deployed for a mainnet subnet are served on the
// listed testnet subnets as well.
var MainnetTestnetNetuids = [][2]uint32{
	{2, 118},
	{2, 256},
	{49, 119},
}

// IgnoredCircuitIDs lists circuit ids that must never be loaded into a
// registry, regardless of their presence in the catalog directory. These are
// circuits with known unsound artifacts that have been superseded.
var IgnoredCircuitIDs = []string{
	"55de10a6bcf638af4bc79901d63204a9e5b1c6534670aa03010bae6045e3d0e8",
	"9998a12b8194d3e57d332b484ede57c3d871d42a0a41d35d7936c4eeba7dff6e",
}

// TestnetNetuidsFor returns the testnet subnet ids mapped to the given
// mainnet netuid, or nil when the netuid has no testnet counterpart.
func TestnetNetuidsFor(netuid uint32) []uint32 {
	var uids []uint32
	for _, pair := range MainnetTestnetNetuids {
		if pair[0] == netuid {
			uids = append(uids, pair[1])
		}
	}
	return uids
}
