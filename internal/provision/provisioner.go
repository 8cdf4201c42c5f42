// Package provision grants least-privilege inline policies to identities.
package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tasnim.dev/cloud-gatekeeper/internal/resolver"
)

// DefaultTimeout bounds each identity management call.
const DefaultTimeout = 5 * time.Second

// Provisioner grants permissions on resolved resources.
type Provisioner struct {
	identities IdentityManager
	resolver   ResourceResolver
	defaults   map[resolver.Kind][]string
	prefix     string
	timeout    time.Duration
	log        zerolog.Logger
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithTimeout sets the per-call timeout for identity management.
func WithTimeout(d time.Duration) Option {
	return func(p *Provisioner) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithDefaultPermissions overrides the actions granted per kind when a
// request names none.
func WithDefaultPermissions(defaults map[resolver.Kind][]string) Option {
	return func(p *Provisioner) {
		if len(defaults) > 0 {
			p.defaults = defaults
		}
	}
}

// WithPolicyPrefix overrides DefaultPolicyPrefix.
func WithPolicyPrefix(prefix string) Option {
	return func(p *Provisioner) {
		if prefix != "" {
			p.prefix = prefix
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Provisioner) { p.log = log }
}

func New(identities IdentityManager, res ResourceResolver, opts ...Option) *Provisioner {
	p := &Provisioner{
		identities: identities,
		resolver:   res,
		defaults:   DefaultPermissions,
		prefix:     DefaultPolicyPrefix,
		timeout:    DefaultTimeout,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Grant attaches an Allow policy for permissions on the target to identity.
// A missing identity yields *IdentityNotFoundError and no policy is attached.
func (p *Provisioner) Grant(ctx context.Context, identity string, target Target, permissions []string) (Grant, error) {
	log := p.log.With().Str("identity", identity).Logger()

	exists, err := p.identityExists(ctx, identity)
	if err != nil {
		return Grant{}, fmt.Errorf("checking identity %s: %w", identity, err)
	}
	if !exists {
		return Grant{}, p.notFound(ctx, identity)
	}

	var res resolver.ResolvedResource
	if target.Resource != nil {
		res = *target.Resource
	} else {
		res = p.resolver.Resolve(ctx, target.Project)
	}

	actions := permissions
	if len(actions) == 0 {
		actions = p.defaults[res.Kind]
	}
	if len(actions) == 0 {
		return Grant{}, fmt.Errorf("%w for %s resource %s", ErrNoPermissions, res.Kind, res.ARN)
	}

	doc, err := PolicyDocument(res, actions)
	if err != nil {
		return Grant{}, fmt.Errorf("building policy document: %w", err)
	}
	grant := Grant{
		Identity:    identity,
		Resource:    res,
		Permissions: actions,
		PolicyName:  PolicyName(p.prefix, res.ARN),
		Document:    doc,
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	err = p.identities.AttachPolicy(callCtx, identity, grant.PolicyName, doc)
	cancel()
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return Grant{}, p.notFound(ctx, identity)
		}
		return Grant{}, fmt.Errorf("attaching policy %s to %s: %w", grant.PolicyName, identity, err)
	}

	log.Info().
		Str("policy", grant.PolicyName).
		Str("arn", res.ARN).
		Str("strategy", string(res.Strategy)).
		Strs("actions", actions).
		Msg("granted access")
	return grant, nil
}

func (p *Provisioner) identityExists(ctx context.Context, identity string) (bool, error) {
	if identity == "" {
		return false, nil
	}
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.identities.IdentityExists(callCtx, identity)
}

// notFound builds the error for a missing identity, listing known
// identities when possible. Listing failures are ignored.
func (p *Provisioner) notFound(ctx context.Context, identity string) error {
	nf := &IdentityNotFoundError{Identity: identity}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	known, err := p.identities.ListIdentities(callCtx)
	if err != nil {
		p.log.Debug().Err(err).Msg("listing identities for diagnostics failed")
		return nf
	}
	nf.Known = known
	return nf
}
