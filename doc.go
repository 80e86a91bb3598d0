// Package credentials implements the token and credential lifecycle for an
// application: JWT access/refresh pairs, one-time email verification and
// password reset tokens, and the stateful repositories backing them.
//
// Token pairs:
//   - TokenService signs access and refresh tokens with independent secrets
//     and a kind discriminator, so neither kind can stand in for the other.
//     Refresh tokens are additionally tracked server-side in an active set,
//     making every session individually revocable.
//   - SessionManager owns that set: login adds a token, refresh rotates it
//     atomically (reuse of a rotated-out token always fails), logout removes
//     one, and logout-everywhere clears the set.
//
// One-time tokens:
//   - Email verification and password reset use opaque random tokens with an
//     absolute expiry, stored on the user record and cleared on first use.
//     The command handlers (RegisterUserHandler, VerifyEmailHandler,
//     ResendVerificationHandler, RequestPasswordResetHandler,
//     ResetPasswordHandler) orchestrate these flows.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by SessionManager and
//     the command handlers to describe login, refresh, logout, registration,
//     verification, and password reset events. Sinks run best-effort (errors
//     are logged) so you can forward to a database or queue without blocking
//     authentication.
package credentials
