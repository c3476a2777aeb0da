// Package hosted provides the client-side session and data-access layer for
// applications backed by a hosted backend service (auth plus a REST table
// surface).
//
// Session bootstrap:
//   - Store runs a small state machine on Start: a config check (missing or
//     placeholder settings short-circuit into local-only mode), then a session
//     probe raced against a fixed deadline, with a persistent auth-event
//     subscription established alongside the probe rather than after it.
//     Whichever of the probe result and the deadline resolves second is a
//     guaranteed no-op, so a late session can never clobber a timed-out
//     bootstrap.
//   - The consolidated view {User, Profile, Session, Loading,
//     ConnectionError} has a single writer; consumers read snapshots via
//     State or Subscribe.
//
// Degraded mode:
//   - ConnectionError marks the service as unreachable or unconfigured.
//     Credential and data operations short-circuit with ErrNoConnection
//     instead of touching the network, and the access gate offers an explicit
//     continue-offline path rather than failing hard.
//
// Access gate:
//   - Decide maps a state snapshot plus two session-local UI flags to exactly
//     one render outcome (loading, connection choice, content, auth prompt),
//     evaluated in a fixed order. middleware/gateware applies the same
//     decision at an HTTP boundary.
package hosted
