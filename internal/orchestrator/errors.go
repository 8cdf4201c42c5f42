package orchestrator

import (
	"errors"

	"tasnim.dev/cloud-gatekeeper/internal/access"
)

var (
	// ErrNotAuthorized is returned when the actor is unknown or not an admin.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrNotFound is returned when the request or requester does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidAction is returned for a decision that is neither approve
	// nor reject.
	ErrInvalidAction = errors.New("invalid action")
)

// errorClass labels err for metrics.
func errorClass(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidAction):
		return "invalid_action"
	case errors.Is(err, access.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, access.ErrSelfApproval):
		return "self_approval"
	default:
		return "error"
	}
}
