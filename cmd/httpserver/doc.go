// Package main (cmd/httpserver) runs the attestation registry server.
//
// The server hosts the registration state machine behind the HTTP API described
// in package api. Its environment is assembled from flags:
//
//   - Storage: one or more --storage URIs. Several URIs form a replicated
//     store that reads from the first backend holding a key and writes to all.
//   - Clock: --clock=eth follows the head block of --rpc-addr, --clock=time
//     derives heights from wall time since --genesis at --block-interval.
//   - Treasury: --treasury=memory keeps payments in process, --treasury=eth
//     sends claims from the account in --treasury-key-file over --rpc-addr.
//   - Events: always logged, optionally published to --events-redis.
//
// Example usage with a local node and redis storage:
//
//	attestation-server --rpc-addr=http://localhost:8545 \
//	    --listen-addr=0.0.0.0:8080 \
//	    --clock=eth \
//	    --storage=redis://localhost:6379/0?prefix=attestation \
//	    --storage=file:///var/lib/attestation
//
// The server implements graceful shutdown on SIGINT/SIGTERM and supports
// health checks, metrics collection and optional profiling endpoints.
package main
