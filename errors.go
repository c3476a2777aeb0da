package hosted

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeNoConnection     = "NO_CONNECTION"
	textCodeNotConfigured    = "NOT_CONFIGURED"
	textCodeNotAuthenticated = "NOT_AUTHENTICATED"
	textCodeBootstrapTimeout = "BOOTSTRAP_TIMEOUT"
)

// ErrNoConnection is returned by operations that require the hosted service
// while the store is in degraded (connection error) mode.
var ErrNoConnection = goerrors.New("hosted service unreachable, operating in local-only mode", goerrors.CategoryOperation).
	WithTextCode(textCodeNoConnection)

// ErrNotConfigured is returned when the service URL or anon key is missing or
// still set to the placeholder sentinel.
var ErrNotConfigured = goerrors.New("hosted service is not configured", goerrors.CategoryOperation).
	WithTextCode(textCodeNotConfigured)

// ErrNotAuthenticated is returned by user-scoped operations when no session
// user is present.
var ErrNotAuthenticated = goerrors.New("no authenticated user", goerrors.CategoryAuth).
	WithTextCode(textCodeNotAuthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrBootstrapTimeout marks the probe outcome when the session retrieval lost
// the race against the bootstrap deadline.
var ErrBootstrapTimeout = goerrors.New("session probe timed out", goerrors.CategoryOperation).
	WithTextCode(textCodeBootstrapTimeout)
