package auth

import (
	"errors"
	"fmt"
)

// ErrAuth is the root of every sign-in failure. Callers that only show a
// generic message match on it; the two variants below exist so the message
// can say whether the server answered without a token.
var ErrAuth = errors.New("authentication failed")

var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrAuth)
	ErrInvalidResponse    = fmt.Errorf("%w: invalid response from server", ErrAuth)
)

var (
	ErrNotAuthenticated = errors.New("not signed in")
	ErrOpaqueToken      = errors.New("token is not a JWT")
)
