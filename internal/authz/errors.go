package authz

import "errors"

// The outcome taxonomy shared by every core operation. Handlers map these
// onto transport status codes; the services never see HTTP.
var (
	// Identity failures. Terminal for the request, surfaced as "not
	// authenticated".
	ErrPrincipalNotFound = errors.New("principal not found")
	ErrTenantInactive    = errors.New("tenant is not active")

	// ErrTenantMismatch is a hard invariant violation: either a bug or a
	// cross-tenant probe. Logged at elevated severity, surfaced as "not
	// authorized" without revealing whether the resource exists.
	ErrTenantMismatch = errors.New("tenant mismatch")

	// ErrNotFound covers resources that are absent or, deliberately, exist in
	// another tenant that the caller has no business knowing about.
	ErrNotFound = errors.New("not found")

	// ErrForbidden: authenticated, resource exists in-tenant, but role or
	// ownership checks fail.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict: a uniqueness or idempotency invariant would be violated.
	// An expected, recoverable outcome rather than a bug.
	ErrConflict = errors.New("conflict")

	// ErrGone: a time-boxed resource (invitation) has expired.
	ErrGone = errors.New("gone")
)
