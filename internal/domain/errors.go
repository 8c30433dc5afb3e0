package domain

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// Invalid reports a caller input problem. The operation has no side effects.
func Invalid(msg string) error {
	return validationError(msg)
}

// NotFoundError names the missing resource. Err keeps the underlying lookup
// error so errors.Is still matches storage sentinels.
type NotFoundError struct {
	Resource string
	Err      error
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

func NotFound(resource string, err error) error {
	return &NotFoundError{Resource: resource, Err: err}
}

// PermissionCode is the stable identifier callers branch on when an actor may
// not perform an operation.
type PermissionCode string

const (
	CodeActorIdentityRequired      PermissionCode = "actor_identity_required"
	CodeActorNotRegistered         PermissionCode = "actor_not_registered"
	CodeUserBlocked                PermissionCode = "user_blocked"
	CodeForbiddenRequiresCoach     PermissionCode = "forbidden_requires_coach"
	CodeForbiddenRequiresClient    PermissionCode = "forbidden_requires_client"
	CodeForbiddenOtherCoach        PermissionCode = "forbidden_other_coach"
	CodeForbiddenNotYourBooking    PermissionCode = "forbidden_not_your_booking"
	CodeForbiddenOtherCoachBooking PermissionCode = "forbidden_other_coach_booking"
)

type PermissionError struct {
	Code PermissionCode
}

func (e *PermissionError) Error() string {
	return string(e.Code)
}

func Forbidden(code PermissionCode) error {
	return &PermissionError{Code: code}
}

// Rejection is an expected, routine refusal of a booking request. It is
// returned as part of a result rather than as an error.
type Rejection string

const (
	RejectionOutsideAvailability Rejection = "outside_availability"
	RejectionBlockedByException  Rejection = "blocked_by_exception"
	RejectionSlotNotAvailable    Rejection = "slot_not_available"
	RejectionClientIDRequired    Rejection = "client_id_required_for_coach"
)
