package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	awss3sdk "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"tasnim.dev/cloud-gatekeeper/internal/aws/discovery"
	awsec2 "tasnim.dev/cloud-gatekeeper/internal/aws/ec2"
	awsiam "tasnim.dev/cloud-gatekeeper/internal/aws/iam"
	awss3 "tasnim.dev/cloud-gatekeeper/internal/aws/s3"
)

// ServiceClient bundles the AWS adapters the gatekeeper needs.
type ServiceClient struct {
	IAM       *awsiam.Client
	Discovery *discovery.Client
	AccountID string
	Region    string
}

func NewServiceClient(ctx context.Context, profile, region string, log zerolog.Logger) (*ServiceClient, error) {
	cfg, err := LoadConfig(ctx, profile, region)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	accountID := GetAccountID(ctx, cfg)
	if accountID == "" {
		log.Warn().Msg("could not determine AWS account id; instance ARNs will omit it")
	}

	s3Client := awss3.NewClient(awss3sdk.NewFromConfig(cfg))
	ec2Client := awsec2.NewClient(ec2.NewFromConfig(cfg))

	return &ServiceClient{
		IAM: awsiam.NewClient(iam.NewFromConfig(cfg)),
		Discovery: discovery.NewClient(
			resourcegroupstaggingapi.NewFromConfig(cfg),
			discovery.WithBuckets(s3Client),
			discovery.WithInstances(ec2Client, cfg.Region, accountID),
			discovery.WithLogger(log),
		),
		AccountID: accountID,
		Region:    cfg.Region,
	}, nil
}
