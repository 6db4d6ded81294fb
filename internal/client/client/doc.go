// Package client is the folio HTTP API client used by the admin CLI.
//
// The client keeps the current token pair, attaches the access token to
// every authenticated call and, when the server answers 401 token_expired,
// refreshes once and retries the call. Rotated tokens are reported through
// the OnTokens hook so the caller can persist the refresh token.
//
// # Error Handling
//
// Non-2xx responses become *APIError, which unwraps to a sentinel so callers
// can match with errors.Is: common.ErrorNotFound, common.ErrVersionConflict,
// ErrUnauthorized, ErrForbidden, ErrUnavailable. Transport failures wrap
// ErrUnavailable.
package client
