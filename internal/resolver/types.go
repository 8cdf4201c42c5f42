package resolver

import "context"

// Kind is the category of a cloud resource.
type Kind string

const (
	KindStorage         Kind = "storage"
	KindFunction        Kind = "function"
	KindCompute         Kind = "compute"
	KindRelationalStore Kind = "relational-store"
	KindKeyValueStore   Kind = "key-value-store"
)

// KnownKinds are searched by name when no tagged resource matches.
var KnownKinds = []Kind{KindStorage, KindFunction, KindCompute, KindRelationalStore, KindKeyValueStore}

// KindFromService maps an ARN service segment to a Kind. Unknown services
// map to a Kind named after the service.
func KindFromService(service string) Kind {
	switch service {
	case "s3":
		return KindStorage
	case "lambda":
		return KindFunction
	case "ec2":
		return KindCompute
	case "rds":
		return KindRelationalStore
	case "dynamodb":
		return KindKeyValueStore
	default:
		return Kind(service)
	}
}

// Strategy records how a resource was resolved.
type Strategy string

const (
	StrategyTag      Strategy = "tag"
	StrategyName     Strategy = "name"
	StrategyFallback Strategy = "fallback"
)

// Discovered is a resource reported by a Discovery implementation. Name is
// optional; when empty it is derived from the ARN.
type Discovered struct {
	ARN  string
	Kind Kind
	Name string
}

// ResolvedResource is the result of resolving a project name.
type ResolvedResource struct {
	ARN      string
	Kind     Kind
	Name     string
	Strategy Strategy
}

// Fallback reports whether the identifier was synthesized rather than found.
func (r ResolvedResource) Fallback() bool {
	return r.Strategy == StrategyFallback
}

// Discovery finds cloud resources.
type Discovery interface {
	FindByTag(ctx context.Context, key, value string) ([]Discovered, error)
	ListByKind(ctx context.Context, kinds []Kind) ([]Discovered, error)
}
