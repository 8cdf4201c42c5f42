package access

import "regexp"

// UnknownProject is used when a message names no project. It resolves like
// any other project name.
const UnknownProject = "unknown-project"

var (
	projectPattern    = regexp.MustCompile(`(?i)\bproject\s+([\w-]+)`)
	permissionPattern = regexp.MustCompile(`\b([a-z][a-z0-9-]*):([A-Z*][A-Za-z0-9*]*)`)
)

// iamServices are the action prefixes recognised in messages.
var iamServices = map[string]bool{
	"acm": true, "apigateway": true, "athena": true, "autoscaling": true,
	"cloudformation": true, "cloudfront": true, "cloudtrail": true, "cloudwatch": true,
	"codebuild": true, "codecommit": true, "codepipeline": true, "dynamodb": true,
	"ec2": true, "ecr": true, "ecs": true, "eks": true,
	"elasticache": true, "elasticloadbalancing": true, "es": true, "events": true,
	"firehose": true, "glue": true, "iam": true, "kinesis": true,
	"kms": true, "lambda": true, "logs": true, "rds": true,
	"redshift": true, "route53": true, "s3": true, "secretsmanager": true,
	"sns": true, "sqs": true, "ssm": true, "states": true,
	"sts": true, "tag": true,
}

// ProjectFromMessage extracts the project name that follows the word
// "project", or UnknownProject.
func ProjectFromMessage(text string) string {
	m := projectPattern.FindStringSubmatch(text)
	if m == nil {
		return UnknownProject
	}
	return m[1]
}

// PermissionsFromMessage extracts IAM-style actions such as "s3:GetObject"
// in order of first appearance. It returns nil when none are present, which
// leaves the permissions to be clarified or defaulted at provisioning.
func PermissionsFromMessage(text string) []string {
	var perms []string
	seen := make(map[string]bool)
	for _, m := range permissionPattern.FindAllStringSubmatch(text, -1) {
		if !iamServices[m[1]] {
			continue
		}
		p := m[1] + ":" + m[2]
		if seen[p] {
			continue
		}
		seen[p] = true
		perms = append(perms, p)
	}
	return perms
}
