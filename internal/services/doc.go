// Package services talks to the Spotify Web API on behalf of the pipeline tasks.
//
// # Credentials
//
// [CredentialResolver] loads a [SecretBundle] from a [SecretSource] ([FileSecretSource] or
// [EnvSecretSource]) and performs one OAuth2 refresh-token grant per call. Tokens are never cached
// across invocations.
//
// # Spotify Client
//
// [SpotifyClient] issues rate-limited requests with a bearer token from a [TokenProvider]. It
// fetches the token once and reuses it for the rest of the invocation. Paging loops stop after a
// fixed number of pages so a single invocation stays within its host deadline.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrTokenExpired] : response body carried an "error" member
//   - [shared.ErrAPIRequest] : transport failure or non-2xx status
//   - [shared.ErrRefreshFailed] : identity provider rejected the refresh token
//   - [shared.ErrMissingCredentials] : secret bundle incomplete
package services
