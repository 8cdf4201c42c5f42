package discovery

import (
	"context"
	"errors"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	tagging "github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	taggingtypes "github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi/types"

	awsec2 "tasnim.dev/cloud-gatekeeper/internal/aws/ec2"
	awss3 "tasnim.dev/cloud-gatekeeper/internal/aws/s3"
	"tasnim.dev/cloud-gatekeeper/internal/resolver"
)

type mockTaggingAPI struct {
	getResourcesFunc func(ctx context.Context, params *tagging.GetResourcesInput, optFns ...func(*tagging.Options)) (*tagging.GetResourcesOutput, error)
}

func (m *mockTaggingAPI) GetResources(ctx context.Context, params *tagging.GetResourcesInput, optFns ...func(*tagging.Options)) (*tagging.GetResourcesOutput, error) {
	return m.getResourcesFunc(ctx, params, optFns...)
}

type mockBuckets struct {
	buckets []awss3.S3Bucket
	err     error
}

func (m *mockBuckets) ListBuckets(ctx context.Context) ([]awss3.S3Bucket, error) {
	return m.buckets, m.err
}

type mockInstances struct {
	instances []awsec2.EC2Instance
	err       error
}

func (m *mockInstances) ListInstances(ctx context.Context) ([]awsec2.EC2Instance, error) {
	return m.instances, m.err
}

func mapping(arn string, tags ...string) taggingtypes.ResourceTagMapping {
	m := taggingtypes.ResourceTagMapping{ResourceARN: awssdk.String(arn)}
	for i := 0; i+1 < len(tags); i += 2 {
		m.Tags = append(m.Tags, taggingtypes.Tag{Key: awssdk.String(tags[i]), Value: awssdk.String(tags[i+1])})
	}
	return m
}

func TestFindByTag(t *testing.T) {
	mock := &mockTaggingAPI{
		getResourcesFunc: func(ctx context.Context, params *tagging.GetResourcesInput, optFns ...func(*tagging.Options)) (*tagging.GetResourcesOutput, error) {
			if len(params.TagFilters) != 1 || awssdk.ToString(params.TagFilters[0].Key) != "Project" || params.TagFilters[0].Values[0] != "analytics" {
				t.Errorf("unexpected tag filters: %+v", params.TagFilters)
			}
			if params.PaginationToken == nil {
				return &tagging.GetResourcesOutput{
					ResourceTagMappingList: []taggingtypes.ResourceTagMapping{
						mapping("arn:aws:s3:::analytics-data", "Project", "analytics", "Name", "data"),
					},
					PaginationToken: awssdk.String("p2"),
				}, nil
			}
			return &tagging.GetResourcesOutput{
				ResourceTagMappingList: []taggingtypes.ResourceTagMapping{
					mapping("arn:aws:lambda:us-east-1:123:function:analytics-etl", "Project", "analytics"),
				},
				PaginationToken: awssdk.String(""),
			}, nil
		},
	}

	found, err := NewClient(mock).FindByTag(context.Background(), "Project", "analytics")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(found))
	}
	if found[0].Kind != resolver.KindFunction {
		t.Errorf("Kind = %s, want function", found[0].Kind)
	}
	if found[1].ARN != "arn:aws:s3:::analytics-data" || found[1].Name != "data" {
		t.Errorf("unexpected second resource: %+v", found[1])
	}
}

func TestFindByTag_Error(t *testing.T) {
	mock := &mockTaggingAPI{
		getResourcesFunc: func(ctx context.Context, params *tagging.GetResourcesInput, optFns ...func(*tagging.Options)) (*tagging.GetResourcesOutput, error) {
			return nil, errors.New("throttled")
		},
	}

	_, err := NewClient(mock).FindByTag(context.Background(), "Project", "x")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestListByKind_MergesSources(t *testing.T) {
	mock := &mockTaggingAPI{
		getResourcesFunc: func(ctx context.Context, params *tagging.GetResourcesInput, optFns ...func(*tagging.Options)) (*tagging.GetResourcesOutput, error) {
			if len(params.ResourceTypeFilters) != 2 {
				t.Errorf("expected 2 resource type filters, got %v", params.ResourceTypeFilters)
			}
			return &tagging.GetResourcesOutput{
				ResourceTagMappingList: []taggingtypes.ResourceTagMapping{
					mapping("arn:aws:s3:::shared-bucket"),
					mapping("arn:aws:ec2:us-east-1:123:instance/i-1", "Name", "web"),
				},
			}, nil
		},
	}
	buckets := &mockBuckets{buckets: []awss3.S3Bucket{{Name: "shared-bucket"}, {Name: "untagged-bucket"}}}
	instances := &mockInstances{instances: []awsec2.EC2Instance{{InstanceID: "i-1"}, {InstanceID: "i-2", Name: "batch"}}}

	c := NewClient(mock, WithBuckets(buckets), WithInstances(instances, "us-east-1", "123"))
	found, err := c.ListByKind(context.Background(), []resolver.Kind{resolver.KindStorage, resolver.KindCompute})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"arn:aws:ec2:us-east-1:123:instance/i-1",
		"arn:aws:ec2:us-east-1:123:instance/i-2",
		"arn:aws:s3:::shared-bucket",
		"arn:aws:s3:::untagged-bucket",
	}
	if len(found) != len(want) {
		t.Fatalf("expected %d resources, got %d: %+v", len(want), len(found), found)
	}
	for i, arn := range want {
		if found[i].ARN != arn {
			t.Errorf("found[%d].ARN = %s, want %s", i, found[i].ARN, arn)
		}
	}
	if found[0].Name != "web" {
		t.Errorf("tagged name should win over duplicate, got %q", found[0].Name)
	}
}

func TestListByKind_PartialFailure(t *testing.T) {
	mock := &mockTaggingAPI{
		getResourcesFunc: func(ctx context.Context, params *tagging.GetResourcesInput, optFns ...func(*tagging.Options)) (*tagging.GetResourcesOutput, error) {
			return nil, errors.New("access denied")
		},
	}
	buckets := &mockBuckets{buckets: []awss3.S3Bucket{{Name: "analytics-bucket"}}}

	found, err := NewClient(mock, WithBuckets(buckets)).ListByKind(context.Background(), resolver.KnownKinds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(found) != 1 || found[0].Kind != resolver.KindStorage {
		t.Errorf("unexpected result: %+v", found)
	}
}

func TestListByKind_AllSourcesFail(t *testing.T) {
	mock := &mockTaggingAPI{
		getResourcesFunc: func(ctx context.Context, params *tagging.GetResourcesInput, optFns ...func(*tagging.Options)) (*tagging.GetResourcesOutput, error) {
			return nil, errors.New("access denied")
		},
	}
	buckets := &mockBuckets{err: errors.New("no s3")}

	_, err := NewClient(mock, WithBuckets(buckets)).ListByKind(context.Background(), resolver.KnownKinds)
	if !errors.Is(err, ErrAllSourcesFailed) {
		t.Fatalf("expected ErrAllSourcesFailed, got %v", err)
	}
}

func TestListByKind_FiltersUnwantedKinds(t *testing.T) {
	mock := &mockTaggingAPI{
		getResourcesFunc: func(ctx context.Context, params *tagging.GetResourcesInput, optFns ...func(*tagging.Options)) (*tagging.GetResourcesOutput, error) {
			return &tagging.GetResourcesOutput{
				ResourceTagMappingList: []taggingtypes.ResourceTagMapping{
					mapping("arn:aws:dynamodb:us-east-1:123:table/orders"),
					mapping("arn:aws:sns:us-east-1:123:topic"),
				},
			}, nil
		},
	}
	buckets := &mockBuckets{buckets: []awss3.S3Bucket{{Name: "ignored"}}}

	found, err := NewClient(mock, WithBuckets(buckets)).ListByKind(context.Background(), []resolver.Kind{resolver.KindKeyValueStore})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(found) != 1 || found[0].Kind != resolver.KindKeyValueStore {
		t.Errorf("unexpected result: %+v", found)
	}
}
