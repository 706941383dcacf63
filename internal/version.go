// Package internal holds build-time metadata shared by the node binaries.
package internal

// Version is the build version, overridden at build time with
// -ldflags "-X github.com/omron-net/omron-node/internal.Version=v1.2.3".
var Version = "dev"
