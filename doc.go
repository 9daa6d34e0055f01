// Package hmsAuth provides an embeddable authentication and session-security
// engine with JWT access tokens, rotating refresh tokens with family-based
// reuse detection, an in-memory access-token revocation blacklist, and
// per-source brute-force protection.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// hmsAuth is the public surface. It exposes [Engine], [Builder], [Config],
// the port interfaces ([UserStore], [PasswordHasher], [EmailSender]), and
// value types (LoginResult, AuthResult, MetricsSnapshot). Subpackages carry
// one concern each: jwt (token codec), blacklist (revocation cache), guard
// (brute-force protection), refresh (rotation store), password (hashing and
// strength policy), verification (one-shot email/reset tokens).
//
// # What this package must NOT do
//
//   - Own durable user storage. Users are read and written only through the
//     [UserStore] port; the engine never sees a database handle.
//   - Serve HTTP. The middleware subpackage is an optional adapter; the core
//     never imports net/http.
//   - Send email. Delivery goes through the [EmailSender] port and failures
//     there never fail the security decision.
//
// # Failure contract
//
// Every rejection is a typed *AuthError carrying a kind, an HTTP status, and
// a stable machine code. Validate fails closed: an expired, malformed,
// wrong-type, or blacklisted token is always an error, never a zero-value
// success.
package hmsAuth
