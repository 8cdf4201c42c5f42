// Package orchestrator drives access request decisions: it authorizes the
// actor, applies the transition, persists it, and then runs the side effects
// of the resulting events.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"tasnim.dev/cloud-gatekeeper/internal/access"
	"tasnim.dev/cloud-gatekeeper/internal/events"
	"tasnim.dev/cloud-gatekeeper/internal/logging"
	"tasnim.dev/cloud-gatekeeper/internal/metrics"
	"tasnim.dev/cloud-gatekeeper/internal/store"
)

type Action string

const (
	ActionApprove Action = "APPROVE"
	ActionReject  Action = "REJECT"
)

// ParseAction accepts approve, reject and deny in any case.
func ParseAction(s string) (Action, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "APPROVE":
		return ActionApprove, nil
	case "REJECT", "DENY":
		return ActionReject, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
}

// Requests stores access requests. Missing requests are reported with
// store.ErrNotFound and lost replacements with store.ErrVersionConflict.
type Requests interface {
	Create(ctx context.Context, req *access.AccessRequest) error
	Replace(ctx context.Context, req *access.AccessRequest, expectedVersion int64) error
	FindByID(ctx context.Context, id string) (*access.AccessRequest, error)
	ListByStatus(ctx context.Context, status access.Status) ([]*access.AccessRequest, error)
}

// Users looks up identities. Missing users are reported with
// store.ErrNotFound.
type Users interface {
	FindByID(ctx context.Context, id string) (*access.User, error)
}

// OutcomeRecorder keeps the result of every side effect.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, o store.Outcome) error
	LatestOutcome(ctx context.Context, requestID, subscriber string) (store.Outcome, error)
}

type DecideInput struct {
	RequestID  string
	ApproverID string
	Action     Action
	Reason     string
}

// Unprovisioned is an approved request whose access was never granted.
// LastOutcome is nil when no provisioning attempt was recorded.
type Unprovisioned struct {
	Request     *access.AccessRequest
	LastOutcome *store.Outcome
}

type Orchestrator struct {
	requests Requests
	users    Users
	outcomes OutcomeRecorder
	bus      *events.Bus
	locks    *keyedMutex
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

type Option func(*Orchestrator)

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

func New(requests Requests, users Users, outcomes OutcomeRecorder, bus *events.Bus, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		requests: requests,
		users:    users,
		outcomes: outcomes,
		bus:      bus,
		locks:    newKeyedMutex(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Decide approves or rejects a request. Once the decision is persisted it is
// final: side effects run before Decide returns, but their failures are only
// recorded.
func (o *Orchestrator) Decide(ctx context.Context, in DecideInput) (*access.AccessRequest, error) {
	log := logging.WithRequest(o.log, in.RequestID).With().
		Str("approver_id", in.ApproverID).
		Str("action", string(in.Action)).
		Logger()

	req, err := o.decide(ctx, in)
	o.metrics.ObserveDecision(strings.ToLower(string(in.Action)), errorClass(err))
	if err != nil {
		log.Warn().Err(err).Msg("decision refused")
		return nil, err
	}

	log.Info().Str("status", string(req.Status)).Msg("decision recorded")
	o.record(ctx, req.ID, o.bus.Flush(ctx, req.ID))
	return req, nil
}

func (o *Orchestrator) decide(ctx context.Context, in DecideInput) (*access.AccessRequest, error) {
	if in.Action != ActionApprove && in.Action != ActionReject {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, in.Action)
	}

	approver, err := o.authorize(ctx, in.ApproverID)
	if err != nil {
		return nil, err
	}

	unlock := o.locks.Lock(in.RequestID)
	defer unlock()

	req, err := o.requests.FindByID(ctx, in.RequestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: access request %s", ErrNotFound, in.RequestID)
		}
		return nil, fmt.Errorf("loading access request: %w", err)
	}

	expected := req.Version
	if in.Action == ActionApprove {
		err = req.Approve(approver.ID)
	} else {
		err = req.Reject(approver.ID, in.Reason)
	}
	if err != nil {
		return nil, err
	}

	if err := o.requests.Replace(ctx, req, expected); err != nil {
		switch {
		case errors.Is(err, store.ErrVersionConflict):
			return nil, fmt.Errorf("%w: %s was decided concurrently", access.ErrInvalidState, req.ID)
		case errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("%w: access request %s", ErrNotFound, req.ID)
		default:
			return nil, fmt.Errorf("persisting decision: %w", err)
		}
	}

	o.bus.Stage(req.ID, req.PullEvents()...)
	return req, nil
}

// Intake creates a request from a requester's free-text message.
func (o *Orchestrator) Intake(ctx context.Context, requesterID, message string) (*access.AccessRequest, error) {
	user, err := o.users.FindByID(ctx, requesterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: requester %s", ErrNotFound, requesterID)
		}
		return nil, fmt.Errorf("loading requester: %w", err)
	}

	req := access.New(user.ID, user.Email, access.ProjectFromMessage(message))
	req.Permissions = access.PermissionsFromMessage(message)

	if err := o.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("storing access request: %w", err)
	}

	o.log.Info().
		Str("request_id", req.ID).
		Str("requester_id", req.RequesterID).
		Str("project", req.Project).
		Strs("permissions", req.Permissions).
		Msg("access request created")

	o.bus.Stage(req.ID, req.PullEvents()...)
	o.record(ctx, req.ID, o.bus.Flush(ctx, req.ID))
	return req, nil
}

// ListPending returns PENDING requests to an admin viewer.
func (o *Orchestrator) ListPending(ctx context.Context, viewerID string) ([]*access.AccessRequest, error) {
	if _, err := o.authorize(ctx, viewerID); err != nil {
		return nil, err
	}
	reqs, err := o.requests.ListByStatus(ctx, access.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("listing pending requests: %w", err)
	}
	return reqs, nil
}

// ListUnprovisioned returns APPROVED requests whose latest provisioning
// attempt failed or was never recorded.
func (o *Orchestrator) ListUnprovisioned(ctx context.Context, viewerID string) ([]Unprovisioned, error) {
	if _, err := o.authorize(ctx, viewerID); err != nil {
		return nil, err
	}
	approved, err := o.requests.ListByStatus(ctx, access.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("listing approved requests: %w", err)
	}

	var out []Unprovisioned
	for _, req := range approved {
		latest, err := o.outcomes.LatestOutcome(ctx, req.ID, ProvisioningSubscriberName)
		switch {
		case errors.Is(err, store.ErrNotFound):
			out = append(out, Unprovisioned{Request: req})
		case err != nil:
			return nil, fmt.Errorf("loading provisioning outcome of %s: %w", req.ID, err)
		case !latest.OK:
			out = append(out, Unprovisioned{Request: req, LastOutcome: &latest})
		}
	}
	return out, nil
}

func (o *Orchestrator) authorize(ctx context.Context, userID string) (*access.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: no actor", ErrNotAuthorized)
	}
	user, err := o.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user %s", ErrNotAuthorized, userID)
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if !user.CanDecide() {
		return nil, fmt.Errorf("%w: %s is not a cloud admin", ErrNotAuthorized, userID)
	}
	return user, nil
}

// record stores every side-effect result. Recording failures are logged and
// never returned.
func (o *Orchestrator) record(ctx context.Context, requestID string, results []events.Result) {
	ctx = context.WithoutCancel(ctx)
	for _, r := range results {
		event := access.EventName(r.Event)
		ok := r.Err == nil
		o.metrics.ObserveSideEffect(r.Subscriber, event, ok)

		outcome := store.Outcome{
			RequestID:  requestID,
			Subscriber: r.Subscriber,
			Event:      event,
			OK:         ok,
		}
		if !ok {
			outcome.Detail = logging.Redact(r.Err.Error())
			o.log.Error().Str("error", outcome.Detail).
				Str("request_id", requestID).
				Str("subscriber", r.Subscriber).
				Str("event", event).
				Msg("side effect failed")
		}

		if err := o.outcomes.RecordOutcome(ctx, outcome); err != nil {
			o.log.Error().Err(err).
				Str("request_id", requestID).
				Str("subscriber", r.Subscriber).
				Msg("recording outcome failed")
		}
	}
}
