// Package auth provides API key middleware for the relay's command endpoints.
//
// New(mode, header, key) returns a Guard. Guard.Middleware wraps an
// http.Handler and validates the key from the named request header.
//
// When mode != "apikey" or key == "", all requests pass through (useful for
// local development on a trusted LAN, which is how headsets usually reach the
// relay). When the key is incorrect or absent, the middleware answers 401 with
// a JSON error body. Guard.Update swaps the settings atomically so a config
// reload takes effect on the next request.
package auth
