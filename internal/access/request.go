// Package access holds the AccessRequest aggregate, the single authority
// over an access request's lifecycle. It performs no I/O.
package access

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidState is returned when a transition is attempted on a
	// request that is no longer PENDING, including a lost race.
	ErrInvalidState = errors.New("access request is not pending")

	// ErrSelfApproval is returned when the approver is the requester.
	ErrSelfApproval = errors.New("requester cannot decide their own access request")
)

// TimeNow is the clock used for timestamps. Tests may replace it.
var TimeNow = time.Now

// AccessRequest is a request for access to a cloud project.
type AccessRequest struct {
	ID              string
	RequesterID     string
	RequesterEmail  string
	Project         string
	Permissions     []string
	Status          Status
	ApproverID      string
	RejectionReason string
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Version increments on every persisted replacement.
	Version int64

	staged []Event
}

// New creates a PENDING request and stages a Created event.
func New(requesterID, requesterEmail, project string) *AccessRequest {
	now := TimeNow().UTC()
	r := &AccessRequest{
		ID:             uuid.New().String(),
		RequesterID:    requesterID,
		RequesterEmail: requesterEmail,
		Project:        project,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.stage(Created{RequestID: r.ID, ActorID: requesterID, At: now})
	return r
}

// Approve moves the request to APPROVED.
func (r *AccessRequest) Approve(approverID string) error {
	if err := r.checkDecidable(approverID); err != nil {
		return err
	}
	now := TimeNow().UTC()
	r.Status = StatusApproved
	r.ApproverID = approverID
	r.UpdatedAt = now
	r.stage(Approved{RequestID: r.ID, ApproverID: approverID, At: now})
	return nil
}

// Reject moves the request to REJECTED with an optional reason.
func (r *AccessRequest) Reject(approverID, reason string) error {
	if err := r.checkDecidable(approverID); err != nil {
		return err
	}
	now := TimeNow().UTC()
	r.Status = StatusRejected
	r.ApproverID = approverID
	r.RejectionReason = reason
	r.UpdatedAt = now
	r.stage(Rejected{RequestID: r.ID, ApproverID: approverID, Reason: reason, At: now})
	return nil
}

// PullEvents returns the events staged since the last call and clears them.
func (r *AccessRequest) PullEvents() []Event {
	events := r.staged
	r.staged = nil
	return events
}

func (r *AccessRequest) checkDecidable(approverID string) error {
	if r.Status != StatusPending {
		return fmt.Errorf("%w: %s is %s", ErrInvalidState, r.ID, r.Status)
	}
	if approverID == r.RequesterID {
		return ErrSelfApproval
	}
	return nil
}

func (r *AccessRequest) stage(e Event) {
	r.staged = append(r.staged, e)
}
