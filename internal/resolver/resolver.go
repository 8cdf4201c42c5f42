// Package resolver maps a free-text project name to a concrete cloud
// resource.
//
// Resolution never fails. Strategies are tried in order and the first match
// wins:
//
//  1. resources tagged Project=<name>
//  2. resources of a known kind whose name contains <name>, ignoring case
//  3. a synthesized storage bucket ARN named after the project
//
// Candidates within a strategy are ordered by ARN so that the same discovery
// state always yields the same resource. Discovery errors and timeouts count
// as "no match".
package resolver

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tasnim.dev/cloud-gatekeeper/internal/utils"
)

// ProjectTagKey is the tag consulted by the first strategy.
const ProjectTagKey = "Project"

// DefaultTimeout bounds each discovery call.
const DefaultTimeout = 5 * time.Second

type Resolver struct {
	discovery Discovery
	timeout   time.Duration
	log       zerolog.Logger
	observe   func(Strategy)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTimeout sets the per-call discovery timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

// WithObserver registers a callback invoked with the winning strategy of
// every resolution.
func WithObserver(fn func(Strategy)) Option {
	return func(r *Resolver) { r.observe = fn }
}

func New(discovery Discovery, opts ...Option) *Resolver {
	r := &Resolver{
		discovery: discovery,
		timeout:   DefaultTimeout,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the resource the project name refers to.
func (r *Resolver) Resolve(ctx context.Context, project string) ResolvedResource {
	res := r.resolve(ctx, project)
	if r.observe != nil {
		r.observe(res.Strategy)
	}
	return res
}

func (r *Resolver) resolve(ctx context.Context, project string) ResolvedResource {
	log := r.log.With().Str("project", project).Logger()

	if d, ok := r.byTag(ctx, project, log); ok {
		log.Debug().Str("arn", d.ARN).Msg("resolved by tag")
		return toResolved(d, StrategyTag)
	}
	if d, ok := r.byName(ctx, project, log); ok {
		log.Debug().Str("arn", d.ARN).Msg("resolved by name")
		return toResolved(d, StrategyName)
	}

	res := Fallback(project)
	log.Warn().Str("arn", res.ARN).Msg("no resource found for project, using fallback identifier")
	return res
}

// Fallback is the resource synthesized when discovery finds nothing.
func Fallback(project string) ResolvedResource {
	return ResolvedResource{
		ARN:      "arn:aws:s3:::" + project,
		Kind:     KindStorage,
		Name:     project,
		Strategy: StrategyFallback,
	}
}

func (r *Resolver) byTag(ctx context.Context, project string, log zerolog.Logger) (Discovered, bool) {
	if r.discovery == nil || project == "" {
		return Discovered{}, false
	}
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	found, err := r.discovery.FindByTag(callCtx, ProjectTagKey, project)
	if err != nil {
		log.Warn().Err(err).Msg("tag discovery failed")
		return Discovered{}, false
	}
	return first(found)
}

func (r *Resolver) byName(ctx context.Context, project string, log zerolog.Logger) (Discovered, bool) {
	if r.discovery == nil || project == "" {
		return Discovered{}, false
	}
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	all, err := r.discovery.ListByKind(callCtx, KnownKinds)
	if err != nil {
		log.Warn().Err(err).Msg("listing resources by kind failed")
		return Discovered{}, false
	}

	needle := strings.ToLower(project)
	var matches []Discovered
	for _, d := range all {
		if d.ARN == "" {
			continue
		}
		if strings.Contains(strings.ToLower(nameOf(d)), needle) ||
			strings.Contains(strings.ToLower(utils.ResourceName(d.ARN)), needle) {
			matches = append(matches, d)
		}
	}
	return first(matches)
}

// first returns the candidate with the lexicographically smallest ARN.
func first(candidates []Discovered) (Discovered, bool) {
	var valid []Discovered
	for _, d := range candidates {
		if d.ARN != "" {
			valid = append(valid, d)
		}
	}
	if len(valid) == 0 {
		return Discovered{}, false
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].ARN < valid[j].ARN })
	return valid[0], true
}

func nameOf(d Discovered) string {
	if d.Name != "" {
		return d.Name
	}
	return utils.ResourceName(d.ARN)
}

func toResolved(d Discovered, s Strategy) ResolvedResource {
	kind := d.Kind
	if kind == "" {
		kind = KindFromService(utils.Service(d.ARN))
	}
	return ResolvedResource{
		ARN:      d.ARN,
		Kind:     kind,
		Name:     nameOf(d),
		Strategy: s,
	}
}
