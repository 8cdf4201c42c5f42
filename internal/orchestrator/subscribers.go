package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"tasnim.dev/cloud-gatekeeper/internal/access"
	"tasnim.dev/cloud-gatekeeper/internal/events"
	"tasnim.dev/cloud-gatekeeper/internal/notify"
	"tasnim.dev/cloud-gatekeeper/internal/provision"
	"tasnim.dev/cloud-gatekeeper/internal/store"
)

const (
	NotificationSubscriberName = "notification"
	ProvisioningSubscriberName = "provisioning"
)

type RequestFinder interface {
	FindByID(ctx context.Context, id string) (*access.AccessRequest, error)
}

type Notifier interface {
	Deliver(ctx context.Context, channel string, msg notify.Message) error
}

type Granter interface {
	Grant(ctx context.Context, identity string, target provision.Target, permissions []string) (provision.Grant, error)
}

// NotificationSubscriber tells admins about new requests and requesters
// about decisions.
type NotificationSubscriber struct {
	requests     RequestFinder
	notifier     Notifier
	adminChannel string
}

func NewNotificationSubscriber(requests RequestFinder, notifier Notifier, adminChannel string) *NotificationSubscriber {
	return &NotificationSubscriber{requests: requests, notifier: notifier, adminChannel: adminChannel}
}

func (s *NotificationSubscriber) Name() string { return NotificationSubscriberName }

func (s *NotificationSubscriber) OnCreated(ctx context.Context, e access.Created) error {
	req, err := s.requests.FindByID(ctx, e.RequestID)
	if err != nil {
		return err
	}
	return s.notifier.Deliver(ctx, s.adminChannel, notify.RenderCreated(req))
}

func (s *NotificationSubscriber) OnApproved(ctx context.Context, e access.Approved) error {
	req, err := s.requests.FindByID(ctx, e.RequestID)
	if err != nil {
		return err
	}
	return s.notifier.Deliver(ctx, req.RequesterID, notify.RenderApproved(req, e.ApproverID))
}

func (s *NotificationSubscriber) OnRejected(ctx context.Context, e access.Rejected) error {
	req, err := s.requests.FindByID(ctx, e.RequestID)
	if err != nil {
		return err
	}
	return s.notifier.Deliver(ctx, req.RequesterID, notify.RenderRejected(req, e.ApproverID, e.Reason))
}

// ProvisioningSubscriber grants cloud access once a request is approved.
// Failures are reported to the admin channel and returned for recording;
// the request stays APPROVED.
type ProvisioningSubscriber struct {
	requests     RequestFinder
	users        Users
	granter      Granter
	notifier     Notifier
	adminChannel string
	log          zerolog.Logger
}

func NewProvisioningSubscriber(requests RequestFinder, users Users, granter Granter, notifier Notifier, adminChannel string, log zerolog.Logger) *ProvisioningSubscriber {
	return &ProvisioningSubscriber{
		requests:     requests,
		users:        users,
		granter:      granter,
		notifier:     notifier,
		adminChannel: adminChannel,
		log:          log,
	}
}

func (s *ProvisioningSubscriber) Name() string { return ProvisioningSubscriberName }

func (s *ProvisioningSubscriber) OnCreated(context.Context, access.Created) error {
	return events.ErrIgnored
}

func (s *ProvisioningSubscriber) OnRejected(context.Context, access.Rejected) error {
	return events.ErrIgnored
}

func (s *ProvisioningSubscriber) OnApproved(ctx context.Context, e access.Approved) error {
	req, err := s.requests.FindByID(ctx, e.RequestID)
	if err != nil {
		return err
	}

	grant, err := s.provision(ctx, req)
	if err != nil {
		if derr := s.notifier.Deliver(ctx, s.adminChannel, notify.RenderProvisioningFailed(req, err)); derr != nil {
			s.log.Error().Err(derr).Str("request_id", req.ID).Msg("could not report provisioning failure")
		}
		return err
	}

	if grant.Resource.Fallback() {
		s.log.Warn().
			Str("request_id", req.ID).
			Str("arn", grant.Resource.ARN).
			Msg("provisioned against a fallback resource")
	}
	return nil
}

func (s *ProvisioningSubscriber) provision(ctx context.Context, req *access.AccessRequest) (provision.Grant, error) {
	identity := ""
	user, err := s.users.FindByID(ctx, req.RequesterID)
	switch {
	case err == nil:
		identity = user.Username
	case !errors.Is(err, store.ErrNotFound):
		return provision.Grant{}, fmt.Errorf("loading requester: %w", err)
	}

	return s.granter.Grant(ctx, identity, provision.ForProject(req.Project), req.Permissions)
}
