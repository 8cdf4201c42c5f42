package utils

import "strings"

// Service returns the service segment of an ARN ("s3" for
// arn:aws:s3:::bucket), or "" if arn is not an ARN.
func Service(arn string) string {
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) < 6 || parts[0] != "arn" {
		return ""
	}
	return parts[2]
}

// Resource returns everything after the account segment of an ARN.
// Returns the input unchanged if it is not an ARN.
func Resource(arn string) string {
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) < 6 || parts[0] != "arn" {
		return arn
	}
	return parts[5]
}

// ResourceName extracts the resource's own name from an ARN, dropping any
// resource-type prefix:
//
//	arn:aws:s3:::my-bucket                          -> my-bucket
//	arn:aws:lambda:us-east-1:1:function:my-fn       -> my-fn
//	arn:aws:dynamodb:us-east-1:1:table/orders       -> orders
//	arn:aws:ec2:us-east-1:1:instance/i-0abc         -> i-0abc
func ResourceName(arn string) string {
	res := Resource(arn)
	if i := strings.LastIndexAny(res, "/:"); i >= 0 {
		return res[i+1:]
	}
	return res
}
