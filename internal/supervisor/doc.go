// Package supervisor launches and owns the local backend web server. It is
// structured into small files by concern:
//
//   - runtime.go: interpreter discovery (Locator) and module checks.
//   - version.go: version parsing and comparison for probe output.
//   - ports.go: Endpoint and free-port acquisition in a bounded range.
//   - spawn.go: Process handle, output capture, termination.
//   - readiness.go: State, the one-shot ready cell, line matching, health polling.
//   - supervisor.go: Supervisor, tying discovery, spawn and readiness together.
//   - config.go: Config and package defaults.
//   - errors.go: error types and helpers (IsRuntimeNotFound, IsAllPortsBusy,
//     IsSpawnError, IsBackendExited).
//   - events.go, eventpub_memory.go: lifecycle events.
//   - metrics.go: Prometheus collectors for launches.
//
// A launch resolves exactly once, to Ready, ReadyByTimeout or Failed, from
// whichever source fires first: a readiness line plus the grace period, a
// successful health check, the fallback timeout, an early exit of the child, or
// cancellation of the caller's context.
package supervisor
