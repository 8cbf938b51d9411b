package auth

import "errors"

// Sentinel errors for the back-office auth flow: missing or malformed bearer
// credentials, a staff role below the route's requirement, and tokens that
// fail signature or claim validation.
var (
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrForbidden    = errors.New("auth: forbidden")
	ErrInvalidToken = errors.New("auth: invalid token")
)
