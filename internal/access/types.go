package access

import "time"

// Status is the lifecycle state of an access request.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Event is a lifecycle transition of an AccessRequest. The set of
// implementations is closed: Created, Approved and Rejected.
type Event interface {
	AggregateID() string
	Actor() string
	OccurredAt() time.Time
	isEvent()
}

// Created is staged when a request enters PENDING.
type Created struct {
	RequestID string
	ActorID   string
	At        time.Time
}

// Approved is staged on PENDING -> APPROVED.
type Approved struct {
	RequestID  string
	ApproverID string
	At         time.Time
}

// Rejected is staged on PENDING -> REJECTED. Reason may be empty.
type Rejected struct {
	RequestID  string
	ApproverID string
	Reason     string
	At         time.Time
}

func (e Created) AggregateID() string   { return e.RequestID }
func (e Created) Actor() string         { return e.ActorID }
func (e Created) OccurredAt() time.Time { return e.At }
func (Created) isEvent()                {}

func (e Approved) AggregateID() string   { return e.RequestID }
func (e Approved) Actor() string         { return e.ApproverID }
func (e Approved) OccurredAt() time.Time { return e.At }
func (Approved) isEvent()                {}

func (e Rejected) AggregateID() string   { return e.RequestID }
func (e Rejected) Actor() string         { return e.ApproverID }
func (e Rejected) OccurredAt() time.Time { return e.At }
func (Rejected) isEvent()                {}

// EventName returns a stable label for logs and metrics.
func EventName(e Event) string {
	switch e.(type) {
	case Created:
		return "created"
	case Approved:
		return "approved"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}
