// Package discovery finds project resources in an AWS account. Tagged
// resources come from the Resource Groups Tagging API; buckets and instances
// that were never tagged are picked up from S3 and EC2 directly.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	tagging "github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	taggingtypes "github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi/types"
	"github.com/rs/zerolog"

	awsec2 "tasnim.dev/cloud-gatekeeper/internal/aws/ec2"
	awss3 "tasnim.dev/cloud-gatekeeper/internal/aws/s3"
	"tasnim.dev/cloud-gatekeeper/internal/resolver"
	"tasnim.dev/cloud-gatekeeper/internal/utils"
)

// ErrAllSourcesFailed is returned when no source could be queried.
var ErrAllSourcesFailed = errors.New("all discovery sources failed")

// resourceTypeFilters maps each kind to its tagging API resource type filter.
var resourceTypeFilters = map[resolver.Kind]string{
	resolver.KindStorage:         "s3",
	resolver.KindFunction:        "lambda:function",
	resolver.KindCompute:         "ec2:instance",
	resolver.KindRelationalStore: "rds:db",
	resolver.KindKeyValueStore:   "dynamodb:table",
}

type TaggingAPI interface {
	GetResources(ctx context.Context, params *tagging.GetResourcesInput, optFns ...func(*tagging.Options)) (*tagging.GetResourcesOutput, error)
}

type BucketLister interface {
	ListBuckets(ctx context.Context) ([]awss3.S3Bucket, error)
}

type InstanceLister interface {
	ListInstances(ctx context.Context) ([]awsec2.EC2Instance, error)
}

type Client struct {
	api       TaggingAPI
	buckets   BucketLister
	instances InstanceLister
	region    string
	accountID string
	log       zerolog.Logger
}

type Option func(*Client)

// WithBuckets adds S3 as a source of storage resources.
func WithBuckets(b BucketLister) Option {
	return func(c *Client) { c.buckets = b }
}

// WithInstances adds EC2 as a source of compute resources. region and
// accountID are used to build instance ARNs.
func WithInstances(i InstanceLister, region, accountID string) Option {
	return func(c *Client) {
		c.instances = i
		c.region = region
		c.accountID = accountID
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

func NewClient(api TaggingAPI, opts ...Option) *Client {
	c := &Client{api: api, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FindByTag returns resources carrying the tag key=value.
func (c *Client) FindByTag(ctx context.Context, key, value string) ([]resolver.Discovered, error) {
	found, err := c.getResources(ctx, &tagging.GetResourcesInput{
		TagFilters: []taggingtypes.TagFilter{{Key: aws.String(key), Values: []string{value}}},
	})
	if err != nil {
		return nil, err
	}
	return sortByARN(found), nil
}

// ListByKind returns every resource of the given kinds. Sources that fail are
// skipped; an error is returned only if all of them fail.
func (c *Client) ListByKind(ctx context.Context, kinds []resolver.Kind) ([]resolver.Discovered, error) {
	want := make(map[resolver.Kind]bool, len(kinds))
	var filters []string
	for _, k := range kinds {
		want[k] = true
		if f, ok := resourceTypeFilters[k]; ok {
			filters = append(filters, f)
		}
	}

	seen := make(map[string]bool)
	var out []resolver.Discovered
	add := func(items []resolver.Discovered) {
		for _, d := range items {
			if d.ARN == "" || seen[d.ARN] || !want[d.Kind] {
				continue
			}
			seen[d.ARN] = true
			out = append(out, d)
		}
	}

	var attempted, failed int
	var errs []error

	if len(filters) > 0 {
		attempted++
		tagged, err := c.getResources(ctx, &tagging.GetResourcesInput{ResourceTypeFilters: filters})
		if err != nil {
			failed++
			errs = append(errs, err)
			c.log.Warn().Err(err).Msg("tagging api listing failed")
		}
		add(tagged)
	}

	if c.buckets != nil && want[resolver.KindStorage] {
		attempted++
		buckets, err := c.buckets.ListBuckets(ctx)
		if err != nil {
			failed++
			errs = append(errs, err)
			c.log.Warn().Err(err).Msg("bucket listing failed")
		}
		for _, b := range buckets {
			add([]resolver.Discovered{{ARN: b.ARN(), Kind: resolver.KindStorage, Name: b.Name}})
		}
	}

	if c.instances != nil && want[resolver.KindCompute] {
		attempted++
		instances, err := c.instances.ListInstances(ctx)
		if err != nil {
			failed++
			errs = append(errs, err)
			c.log.Warn().Err(err).Msg("instance listing failed")
		}
		for _, i := range instances {
			add([]resolver.Discovered{{ARN: i.ARN(c.region, c.accountID), Kind: resolver.KindCompute, Name: i.Name}})
		}
	}

	if attempted > 0 && failed == attempted {
		return nil, fmt.Errorf("%w: %w", ErrAllSourcesFailed, errors.Join(errs...))
	}
	return sortByARN(out), nil
}

func (c *Client) getResources(ctx context.Context, input *tagging.GetResourcesInput) ([]resolver.Discovered, error) {
	var found []resolver.Discovered
	for {
		out, err := c.api.GetResources(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("GetResources: %w", err)
		}

		for _, m := range out.ResourceTagMappingList {
			arn := aws.ToString(m.ResourceARN)
			if arn == "" {
				continue
			}
			found = append(found, resolver.Discovered{
				ARN:  arn,
				Kind: resolver.KindFromService(utils.Service(arn)),
				Name: nameTag(m.Tags),
			})
		}

		if aws.ToString(out.PaginationToken) == "" {
			break
		}
		input.PaginationToken = out.PaginationToken
	}
	return found, nil
}

func nameTag(tags []taggingtypes.Tag) string {
	for _, t := range tags {
		if aws.ToString(t.Key) == "Name" {
			return aws.ToString(t.Value)
		}
	}
	return ""
}

func sortByARN(items []resolver.Discovered) []resolver.Discovered {
	sort.Slice(items, func(i, j int) bool { return items[i].ARN < items[j].ARN })
	return items
}
