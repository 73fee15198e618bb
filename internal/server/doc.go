// Package server runs the short-lived local HTTP server used to mint a Spotify refresh token.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [RequestLogger] and [Recoverer] are the two middlewares the callback server installs.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// and sends the result through a channel. It only processes one callback to prevent replay attacks.
//
// # Usage
//
// `spotlake auth` builds the authorization URL, opens the browser, and calls [ServeCallback], which listens on
// the host and port of the configured redirect URI until one callback arrives or the context ends. The
// refresh token of the returned [oauth2.Token] is written to the secrets file read by the credential resolver.
package server
