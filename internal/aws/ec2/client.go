package ec2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

type EC2API interface {
	DescribeInstances(ctx context.Context, params *awsec2.DescribeInstancesInput, optFns ...func(*awsec2.Options)) (*awsec2.DescribeInstancesOutput, error)
}

type Client struct {
	api EC2API
}

func NewClient(api EC2API) *Client {
	return &Client{api: api}
}

// ListInstances returns instances that are not terminated.
func (c *Client) ListInstances(ctx context.Context) ([]EC2Instance, error) {
	var instances []EC2Instance
	var nextToken *string

	for {
		out, err := c.api.DescribeInstances(ctx, &awsec2.DescribeInstancesInput{
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("DescribeInstances: %w", err)
		}

		for _, reservation := range out.Reservations {
			for _, inst := range reservation.Instances {
				var state types.InstanceStateName
				if inst.State != nil {
					state = inst.State.Name
				}
				if state == types.InstanceStateNameTerminated || state == types.InstanceStateNameShuttingDown {
					continue
				}

				name := ""
				for _, tag := range inst.Tags {
					if aws.ToString(tag.Key) == "Name" {
						name = aws.ToString(tag.Value)
						break
					}
				}

				instances = append(instances, EC2Instance{
					Name:       name,
					InstanceID: aws.ToString(inst.InstanceId),
					OwnerID:    aws.ToString(reservation.OwnerId),
					State:      string(state),
				})
			}
		}

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	return instances, nil
}
