package s3

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3API interface {
	ListBuckets(ctx context.Context, params *awss3.ListBucketsInput, optFns ...func(*awss3.Options)) (*awss3.ListBucketsOutput, error)
}

type Client struct {
	api S3API
}

func NewClient(api S3API) *Client {
	return &Client{api: api}
}

// ListBuckets returns every bucket visible to the caller, following
// continuation tokens.
func (c *Client) ListBuckets(ctx context.Context) ([]S3Bucket, error) {
	var buckets []S3Bucket
	var token *string

	for {
		out, err := c.api.ListBuckets(ctx, &awss3.ListBucketsInput{
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("ListBuckets: %w", err)
		}

		for _, b := range out.Buckets {
			var createdAt time.Time
			if b.CreationDate != nil {
				createdAt = *b.CreationDate
			}
			buckets = append(buckets, S3Bucket{
				Name:      aws.ToString(b.Name),
				Region:    aws.ToString(b.BucketRegion),
				CreatedAt: createdAt,
			})
		}

		if aws.ToString(out.ContinuationToken) == "" {
			break
		}
		token = out.ContinuationToken
	}

	return buckets, nil
}
