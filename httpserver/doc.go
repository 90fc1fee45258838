/*
Package httpserver hosts the attestation engine behind an HTTP API.

The host is responsible for everything the state machine leaves to its
environment:

  - Caller identity: mutating requests carry a flashbots-style signature
    header and the recovered address is passed to the engine as the caller.
  - Serialization: one mutex guards every engine call, so at most one
    operation is in flight.
  - Error mapping: engine error kinds become HTTP statuses and the error code
    is returned in the JSON body.
  - Observability: request logging through httplogger and prometheus counters
    per operation and outcome.

# Endpoints

See package api for the request and response types of each route. In
addition to the API the server exposes:

  - GET /livez   - Liveness check
  - GET /readyz  - Readiness check, 503 while draining
  - GET /drain   - Mark the server not ready ahead of a shutdown
  - GET /undrain - Mark the server ready again
  - /debug/*     - pprof, when enabled

Metrics are served on a separate listener (MetricsAddr).
*/
package httpserver
