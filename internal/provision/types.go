package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tasnim.dev/cloud-gatekeeper/internal/resolver"
)

// ErrIdentityNotFound matches every error reporting a missing identity.
// IdentityManager implementations wrap it when the identity does not exist.
var ErrIdentityNotFound = errors.New("identity not found")

// ErrNoPermissions is returned when no actions were requested and no default
// exists for the resource kind.
var ErrNoPermissions = errors.New("no permissions to grant")

// IdentityNotFoundError reports a grant against an identity that does not
// exist. Known lists existing identities when they could be fetched.
type IdentityNotFoundError struct {
	Identity string
	Known    []string
}

func (e *IdentityNotFoundError) Error() string {
	msg := fmt.Sprintf("identity %q not found", e.Identity)
	if len(e.Known) > 0 {
		msg += "; known identities: " + strings.Join(e.Known, ", ")
	}
	return msg
}

func (e *IdentityNotFoundError) Is(target error) bool {
	return target == ErrIdentityNotFound
}

// IdentityManager manages identities and their inline policies.
type IdentityManager interface {
	IdentityExists(ctx context.Context, name string) (bool, error)
	// AttachPolicy creates or replaces the named policy on the identity.
	AttachPolicy(ctx context.Context, identity, policyName, document string) error
	ListIdentities(ctx context.Context) ([]string, error)
}

// ResourceResolver resolves project names. *resolver.Resolver satisfies it.
type ResourceResolver interface {
	Resolve(ctx context.Context, project string) resolver.ResolvedResource
}

// Target names the resource to grant on: either an already resolved
// resource or a project name still to be resolved.
type Target struct {
	Project  string
	Resource *resolver.ResolvedResource
}

// ForProject targets the resource a project name resolves to.
func ForProject(project string) Target {
	return Target{Project: project}
}

// ForResource targets an already resolved resource.
func ForResource(r resolver.ResolvedResource) Target {
	return Target{Resource: &r}
}

// Grant describes a permission grant that was applied.
type Grant struct {
	Identity    string
	Resource    resolver.ResolvedResource
	Permissions []string
	PolicyName  string
	Document    string
}

// DefaultPermissions are granted when a request names no actions.
var DefaultPermissions = map[resolver.Kind][]string{
	resolver.KindStorage:         {"s3:GetObject", "s3:ListBucket"},
	resolver.KindFunction:        {"lambda:GetFunction", "lambda:InvokeFunction"},
	resolver.KindCompute:         {"ec2:DescribeInstances"},
	resolver.KindRelationalStore: {"rds:DescribeDBInstances"},
	resolver.KindKeyValueStore:   {"dynamodb:GetItem", "dynamodb:Query"},
}
