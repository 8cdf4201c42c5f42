package iam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsiam "github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/smithy-go"

	"tasnim.dev/cloud-gatekeeper/internal/provision"
)

type IAMAPI interface {
	GetUser(ctx context.Context, params *awsiam.GetUserInput, optFns ...func(*awsiam.Options)) (*awsiam.GetUserOutput, error)
	PutUserPolicy(ctx context.Context, params *awsiam.PutUserPolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.PutUserPolicyOutput, error)
	ListUsers(ctx context.Context, params *awsiam.ListUsersInput, optFns ...func(*awsiam.Options)) (*awsiam.ListUsersOutput, error)
}

// Client manages IAM users and their inline policies. It implements
// provision.IdentityManager.
type Client struct {
	api IAMAPI
}

func NewClient(api IAMAPI) *Client {
	return &Client{api: api}
}

// IdentityExists reports whether the IAM user exists.
func (c *Client) IdentityExists(ctx context.Context, userName string) (bool, error) {
	_, err := c.api.GetUser(ctx, &awsiam.GetUserInput{
		UserName: aws.String(userName),
	})
	if err != nil {
		if isNoSuchEntity(err) {
			return false, nil
		}
		return false, fmt.Errorf("GetUser(%s): %w", userName, err)
	}
	return true, nil
}

// AttachPolicy puts an inline policy on the user, replacing any policy with
// the same name. A missing user wraps provision.ErrIdentityNotFound.
func (c *Client) AttachPolicy(ctx context.Context, userName, policyName, document string) error {
	_, err := c.api.PutUserPolicy(ctx, &awsiam.PutUserPolicyInput{
		UserName:       aws.String(userName),
		PolicyName:     aws.String(policyName),
		PolicyDocument: aws.String(document),
	})
	if err != nil {
		if isNoSuchEntity(err) {
			return fmt.Errorf("PutUserPolicy(%s): %w", userName, provision.ErrIdentityNotFound)
		}
		return fmt.Errorf("PutUserPolicy(%s): %w", userName, err)
	}
	return nil
}

// ListIdentities returns every IAM user name.
func (c *Client) ListIdentities(ctx context.Context) ([]string, error) {
	users, err := c.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Name)
	}
	return names, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]IAMUser, error) {
	var users []IAMUser
	var marker *string

	for {
		out, err := c.api.ListUsers(ctx, &awsiam.ListUsersInput{
			Marker: marker,
		})
		if err != nil {
			return nil, fmt.Errorf("ListUsers: %w", err)
		}

		for _, u := range out.Users {
			var createdAt time.Time
			if u.CreateDate != nil {
				createdAt = *u.CreateDate
			}
			users = append(users, IAMUser{
				Name:      aws.ToString(u.UserName),
				UserID:    aws.ToString(u.UserId),
				ARN:       aws.ToString(u.Arn),
				Path:      aws.ToString(u.Path),
				CreatedAt: createdAt,
			})
		}

		if !out.IsTruncated {
			break
		}
		marker = out.Marker
	}

	return users, nil
}

func isNoSuchEntity(err error) bool {
	var nse *iamtypes.NoSuchEntityException
	if errors.As(err, &nse) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchEntity"
}
