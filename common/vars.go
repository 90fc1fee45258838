// Package common contains process-wide helpers shared by the binaries.
package common

// PackageName is used as the metrics namespace and default log service.
const PackageName = "attestation_registry"

// Version is set at build time via -ldflags "-X .../common.Version=...".
var Version = "dev"
